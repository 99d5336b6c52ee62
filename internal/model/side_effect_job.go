package model

import (
	"time"

	"gorm.io/datatypes"
)

// SideEffectStatus 副作用补偿任务状态
type SideEffectStatus string

const (
	SideEffectPending   SideEffectStatus = "PENDING"
	SideEffectDone      SideEffectStatus = "DONE"
	SideEffectAbandoned SideEffectStatus = "ABANDONED"
)

// SideEffectKind 任务类别
type SideEffectKind string

const (
	SideEffectDocument     SideEffectKind = "DOCUMENT"
	SideEffectNotification SideEffectKind = "NOTIFICATION"
	SideEffectEnrollment   SideEffectKind = "ENROLLMENT" // 缴费已确认但注册未完成，由后台任务续做
)

// SideEffectJob 文档生成/通知失败后的补偿任务 — 对应 side_effect_jobs
// Name 为具体的文档或通知类型（OFFER_LETTER、PAYMENT_CONFIRMATION 等）
type SideEffectJob struct {
	JobID         string            `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"job_id"`
	ApplicationID string            `gorm:"type:uuid;not null;index"                       json:"application_id"`
	Kind          SideEffectKind    `gorm:"type:varchar(20);not null"                      json:"kind"`
	Name          string            `gorm:"type:varchar(50);not null"                      json:"name"`
	Payload       datatypes.JSONMap `gorm:"type:jsonb"                                     json:"payload,omitempty"`
	Status        SideEffectStatus  `gorm:"type:varchar(20);not null;default:'PENDING'"    json:"status"`
	Attempts      int               `gorm:"not null;default:1"                             json:"attempts"`
	LastError     string            `gorm:"type:text"                                      json:"last_error"`
	NextAttemptAt time.Time         `gorm:"not null"                                       json:"next_attempt_at"`
	BaseModel
}

// TableName 指定表名
func (SideEffectJob) TableName() string { return "side_effect_jobs" }
