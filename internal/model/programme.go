package model

import (
	"time"

	"admitflow/backend/internal/tuition"
)

// Programme 专业项目表 — 对应 programmes（由后台 CRUD 维护，本服务只读）
type Programme struct {
	ProgrammeID   string              `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"programme_id"`
	Slug          string              `gorm:"type:varchar(100);not null;uniqueIndex"         json:"slug"`
	Name          string              `gorm:"type:varchar(200);not null"                     json:"name"`
	School        string              `gorm:"type:varchar(100);not null"                     json:"school"`
	DegreeLevel   tuition.DegreeLevel `gorm:"type:varchar(20);not null"                      json:"degree_level"`
	DurationYears int                 `gorm:"not null;default:3"                             json:"duration_years"`
	IntakeStart   *time.Time          `gorm:"type:date"                                      json:"intake_start,omitempty"`
	BaseModel
}

// TableName 指定表名
func (Programme) TableName() string { return "programmes" }
