package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"admitflow/backend/internal/repository"
	pkgerrors "admitflow/backend/pkg/errors"
)

// runInTx 在事务中执行 fn；mock 仓储下 tx 为 nil，按顺序直接执行
func runInTx(ctx context.Context, repo *repository.Repository, logger *zap.Logger, fn func(txRepo *repository.Repository) error) (err error) {
	tx, err := repo.BeginTx(ctx)
	if err != nil {
		logger.Error("开启事务失败", zap.Error(err))
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			if tx != nil {
				tx.Rollback()
			}
			panic(r)
		}
	}()

	if err := fn(repo.WithTx(tx)); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		return err
	}

	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			logger.Error("提交事务失败", zap.Error(err))
			return err
		}
	}
	return nil
}

// retryOnConflict 乐观锁冲突时重新读取并执行一次
func retryOnConflict(fn func() error) error {
	err := fn()
	if errors.Is(err, pkgerrors.ErrOptimisticLock) {
		err = fn()
	}
	return err
}
