package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"lan-sim/internal/cli"
	"lan-sim/internal/config"
	"lan-sim/internal/errlog"
	"lan-sim/internal/forwarding"
	"lan-sim/internal/logging"
	"lan-sim/internal/snapshot"
	"lan-sim/internal/topology"
)

func main() {
	fmt.Println("LAN模拟器启动中...")

	// 初始化配置管理器
	configManager := config.NewManager("config.json")
	if err := configManager.Load(); err != nil {
		log.Printf("加载配置失败，使用默认配置: %v", err)
	}

	cfg := configManager.Config()

	// 初始化日志系统
	logger := logging.NewLogger(logging.ParseLogLevel(cfg.LogLevel), cfg.LogFile)
	defer func() {
		_ = logger.Close()
	}()

	logger.Info("LAN模拟器启动中...")

	// 创建拓扑和错误日志
	topo := topology.New()
	errors := errlog.New()

	// 自动加载运行配置，文件不存在时从空拓扑开始
	if cfg.RunningConfig != "" {
		if data, err := os.ReadFile(cfg.RunningConfig); err == nil {
			if err := topo.Restore(data); err != nil {
				logger.Error("恢复运行配置失败: %v", err)
				fmt.Printf("恢复运行配置失败: %v\n", err)
			} else {
				logger.Info("已从 %s 恢复 %d 台设备", cfg.RunningConfig, len(topo.Devices()))
				fmt.Printf("已从 %s 恢复 %d 台设备\n", cfg.RunningConfig, len(topo.Devices()))
			}
		}
	}

	// 打开快照数据库并重建B树索引
	// 数据库不可用时退化为纯内存索引，不影响其余功能
	index := snapshot.NewIndex(cfg.BTreeOrder)
	var store *snapshot.Store
	if cfg.DatabasePath != "" {
		var err error
		store, err = snapshot.OpenStore(cfg.DatabasePath)
		if err != nil {
			logger.Warn("打开快照数据库失败，快照仅保存在内存中: %v", err)
			fmt.Printf("打开快照数据库失败，快照仅保存在内存中: %v\n", err)
			store = nil
		} else {
			records, err := store.LoadAll()
			if err != nil {
				logger.Warn("读取快照记录失败: %v", err)
			} else {
				for _, rec := range records {
					index.Put(rec.Key, rec.Payload)
				}
				if len(records) > 0 {
					logger.Info("已从数据库载入 %d 个快照", len(records))
					fmt.Printf("已从数据库载入 %d 个快照\n", len(records))
				}
			}
		}
	}
	defer func() {
		if store != nil {
			_ = store.Close()
		}
	}()

	// 创建转发引擎
	engine := forwarding.NewEngine(topo, errors, logger)

	logger.Info("LAN模拟器已启动")
	fmt.Println("LAN模拟器已启动")

	// 创建并启动CLI
	console := cli.NewCLI(topo, engine, errors, index, store, configManager, logger)
	go console.Start()

	// 等待中断信号或CLI退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		// 收到系统信号
	case <-console.GetExitChan():
		// CLI主动退出
	}

	logger.Info("正在关闭LAN模拟器...")
	fmt.Println("正在关闭LAN模拟器...")

	// 停止CLI
	console.Stop()

	logger.Info("LAN模拟器已关闭")
	fmt.Println("LAN模拟器已关闭")
}
