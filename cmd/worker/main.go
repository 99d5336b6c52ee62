package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"admitflow/backend/config"
	"admitflow/backend/internal/app"
	"admitflow/backend/internal/worker"
	"admitflow/backend/pkg/database"
	applogger "admitflow/backend/pkg/logger"
	"admitflow/backend/pkg/redis"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("ADMIT_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := applogger.NewLogger(&cfg.Log, "worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// 迁移由 server 负责，worker 只连接
	db, err := database.NewDB(&cfg.Database, applogger.GormLevel(cfg.Log.Level), logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}

	var rdb *redis.Client
	rdb, err = redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，注册补偿将仅依赖数据库约束", zap.Error(err))
		rdb = nil
	}

	svc, err := app.BuildService(cfg, db, rdb, logger)
	if err != nil {
		logger.Fatal("初始化服务失败", zap.Error(err))
	}

	retrier := worker.NewRetrier(svc.SideEffect, &cfg.Worker, logger)
	if err := retrier.Start(); err != nil {
		logger.Fatal("启动补偿任务调度失败", zap.Error(err), zap.String("spec", cfg.Worker.RetrySpec))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，等待进行中的补偿任务结束...", zap.String("signal", sig.String()))
	<-retrier.Stop().Done()

	sqlDB.Close()
	if rdb != nil {
		rdb.Close()
	}
	logger.Info("worker 已关闭")
}
