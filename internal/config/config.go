package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// AppConfig 应用配置
type AppConfig struct {
	// LogLevel 日志级别：debug、info、warn、error
	LogLevel string `json:"log_level"`

	// LogFile 运行日志文件路径，空串表示不写日志
	LogFile string `json:"log_file"`

	// DatabasePath 快照SQLite数据库路径
	DatabasePath string `json:"database_path"`

	// BTreeOrder 快照索引B树的阶数
	BTreeOrder int `json:"btree_order"`

	// HistoryFile CLI命令历史文件路径
	HistoryFile string `json:"history_file"`

	// RunningConfig 启动时自动加载的拓扑配置文件
	RunningConfig string `json:"running_config"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		LogLevel:      "info",
		LogFile:       "lan-sim.log",
		DatabasePath:  "lan-sim.db",
		BTreeOrder:    4,
		HistoryFile:   ".lan-sim_history",
		RunningConfig: "running-config.json",
	}
}

// Manager 配置管理器
type Manager struct {
	config     *AppConfig
	configFile string
}

// NewManager 创建配置管理器
func NewManager(configFile string) *Manager {
	return &Manager{
		configFile: configFile,
		config:     DefaultConfig(),
	}
}

// Load 加载配置文件
// 文件不存在时写出默认配置，保证首次运行后磁盘上有一份可编辑的配置
func (m *Manager) Load() error {
	if _, err := os.Stat(m.configFile); os.IsNotExist(err) {
		return m.Save()
	}

	data, err := os.ReadFile(m.configFile)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg AppConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}
	if cfg.BTreeOrder < 3 {
		cfg.BTreeOrder = DefaultConfig().BTreeOrder
	}

	m.config = &cfg
	return nil
}

// Save 保存配置文件
func (m *Manager) Save() error {
	data, err := json.MarshalIndent(m.config, "", "    ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}
	return os.WriteFile(m.configFile, data, 0644)
}

// Config 返回当前配置
func (m *Manager) Config() *AppConfig {
	return m.config
}
