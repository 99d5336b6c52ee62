// Package worker 后台定时执行副作用补偿任务
package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"admitflow/backend/config"
	"admitflow/backend/internal/service"
)

const runTimeout = 2 * time.Minute

// Retrier 按 cron 表达式周期性调用 SideEffectService.RetryDue
type Retrier struct {
	svc    service.SideEffectService
	spec   string
	batch  int
	cron   *cron.Cron
	logger *zap.Logger
}

// NewRetrier 创建 Retrier；上一轮未结束时跳过本轮
func NewRetrier(svc service.SideEffectService, cfg *config.WorkerConfig, logger *zap.Logger) *Retrier {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	cl := cronLogger{logger.Sugar()}
	return &Retrier{
		svc:    svc,
		spec:   cfg.RetrySpec,
		batch:  batch,
		logger: logger,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

// Start 注册定时任务并启动调度
func (r *Retrier) Start() error {
	if _, err := r.cron.AddFunc(r.spec, func() { r.RunOnce(context.Background()) }); err != nil {
		return err
	}
	r.cron.Start()
	r.logger.Info("补偿任务调度已启动", zap.String("spec", r.spec), zap.Int("batch", r.batch))
	return nil
}

// Stop 停止调度，返回的 context 在进行中的任务结束后关闭
func (r *Retrier) Stop() context.Context {
	return r.cron.Stop()
}

// RunOnce 执行一轮补偿
func (r *Retrier) RunOnce(ctx context.Context) *service.RetryStats {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	// 执行汇总由 RetryDue 记录
	stats, err := r.svc.RetryDue(ctx, r.batch)
	if err != nil {
		r.logger.Error("执行补偿任务失败", zap.Error(err))
		return nil
	}
	return stats
}

// cronLogger 将 cron 内部日志转到 zap
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
