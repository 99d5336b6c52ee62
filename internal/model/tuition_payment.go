package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"admitflow/backend/internal/tuition"
)

// PaymentStatus 缴费记录状态
type PaymentStatus string

const (
	PaymentProcessing    PaymentStatus = "PROCESSING"     // 已登记，等待网关扣款结果
	PaymentCompleted     PaymentStatus = "COMPLETED"      // 支付网关已确认扣款
	PaymentPendingReview PaymentStatus = "PENDING_REVIEW" // 线下缴费，等待人工核实到账
	PaymentFailed        PaymentStatus = "FAILED"         // 网关未扣款
)

// PaymentMethod 缴费方式
type PaymentMethod string

const (
	MethodCard         PaymentMethod = "CARD"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodCash         PaymentMethod = "CASH"
)

// RequiresManualReview 线下方式需人工核实后才能注册
func (m PaymentMethod) RequiresManualReview() bool {
	return m == MethodBankTransfer || m == MethodCash
}

// TuitionPayment 学费缴费流水表 — 对应 tuition_payments
// 在线扣款先登记 PROCESSING 再调用网关，之后只允许 PROCESSING → COMPLETED/FAILED
type TuitionPayment struct {
	PaymentID             string            `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"payment_id"`
	OfferID               string            `gorm:"type:uuid;not null;index"                       json:"offer_id"`
	ApplicationID         string            `gorm:"type:uuid;not null;index"                       json:"application_id"`
	Amount                decimal.Decimal   `gorm:"type:numeric(12,2);not null"                    json:"amount"`
	PaymentPlan           tuition.Plan      `gorm:"type:varchar(20);not null"                      json:"payment_plan"`
	Status                PaymentStatus     `gorm:"type:varchar(20);not null"                      json:"status"`
	PaymentMethod         PaymentMethod     `gorm:"type:varchar(20);not null"                      json:"payment_method"`
	TransactionReference  string            `gorm:"type:varchar(64);not null;uniqueIndex"          json:"transaction_reference"`
	IdempotencyKey        string            `gorm:"type:varchar(100);not null;uniqueIndex"         json:"-"`
	Provider              string            `gorm:"type:varchar(30);not null"                      json:"provider"`
	ProviderTransactionID *string           `gorm:"type:varchar(100)"                              json:"provider_transaction_id,omitempty"`
	Country               string            `gorm:"type:varchar(2)"                                json:"country"`
	Currency              string            `gorm:"type:varchar(3);not null"                       json:"currency"`
	FXMetadata            datatypes.JSONMap `gorm:"type:jsonb"                                     json:"fx_metadata,omitempty"`
	FailureReason         *string           `gorm:"type:text"                                      json:"failure_reason,omitempty"`
	VerifiedAt            *time.Time        `json:"verified_at,omitempty"`
	VerifiedBy            *string           `gorm:"type:uuid"                                      json:"verified_by,omitempty"`
	CreatedAt             time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	CreatedBy             *string           `gorm:"type:uuid"                                      json:"created_by,omitempty"`
}

// TableName 指定表名
func (TuitionPayment) TableName() string { return "tuition_payments" }
