package repository

import (
	"context"

	"gorm.io/gorm"

	"admitflow/backend/internal/model"
)

// ProgrammeRepository 专业项目数据访问接口（只读）
type ProgrammeRepository interface {
	GetByID(ctx context.Context, id string) (*model.Programme, error)
}

type programmeRepo struct {
	db *gorm.DB
}

// NewProgrammeRepo 创建 ProgrammeRepository 实例
func NewProgrammeRepo(db *gorm.DB) ProgrammeRepository {
	return &programmeRepo{db: db}
}

func (r *programmeRepo) GetByID(ctx context.Context, id string) (*model.Programme, error) {
	var programme model.Programme
	err := r.db.WithContext(ctx).
		Where("programme_id = ?", id).
		First(&programme).Error
	if err != nil {
		return nil, err
	}
	return &programme, nil
}
