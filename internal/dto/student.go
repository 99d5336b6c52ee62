package dto

// ── 学籍与通知 DTO ──

// StudentResponse 学籍响应
type StudentResponse struct {
	ID                     string `json:"id"`
	StudentID              string `json:"student_id"`
	UserID                 string `json:"user_id"`
	ApplicationID          string `json:"application_id"`
	ProgrammeID            string `json:"programme_id"`
	InstitutionalEmail     string `json:"institutional_email"`
	PersonalEmail          string `json:"personal_email"`
	EnrollmentStatus       string `json:"enrollment_status"`
	StartDate              string `json:"start_date"`
	ExpectedGraduationDate string `json:"expected_graduation_date"`
}

// EnrollmentResult 注册结果
type EnrollmentResult struct {
	Student           *StudentResponse `json:"student"`
	ApplicationStatus string           `json:"application_status"`
	Outcome
}

// NotificationResponse 站内通知
type NotificationResponse struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Title       string  `json:"title"`
	Content     string  `json:"content"`
	IsRead      bool    `json:"is_read"`
	RelatedType *string `json:"related_type,omitempty"`
	RelatedID   *string `json:"related_id,omitempty"`
	CreatedAt   string  `json:"created_at"`
}
