package snapshot

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 快照的持久化存储
// 内存中的B树索引服务查询，SQLite负责跨进程保留快照：
// 保存快照时写穿到数据库，启动时从数据库重建索引

// Record 快照的数据库记录
type Record struct {
	ID      uint   `gorm:"primarykey"`
	Key     string `gorm:"uniqueIndex;size:255"`
	Payload []byte
	SavedAt time.Time
}

// TableName 指定表名
func (Record) TableName() string {
	return "snapshots"
}

// Store SQLite快照存储
type Store struct {
	db *gorm.DB
}

// OpenStore 打开（必要时创建）快照数据库并完成迁移
func OpenStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("打开快照数据库失败: %w", err)
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("迁移快照表失败: %w", err)
	}

	return &Store{db: db}, nil
}

// Save 保存快照，键已存在时覆盖负载
func (s *Store) Save(key string, payload []byte) error {
	var existing Record
	err := s.db.Where("key = ?", key).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		record := Record{Key: key, Payload: payload, SavedAt: time.Now()}
		return s.db.Create(&record).Error
	}
	if err != nil {
		return err
	}

	existing.Payload = payload
	existing.SavedAt = time.Now()
	return s.db.Save(&existing).Error
}

// LoadAll 按键升序读出全部快照记录
func (s *Store) LoadAll() ([]Record, error) {
	var records []Record
	err := s.db.Order("key asc").Find(&records).Error
	return records, err
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
