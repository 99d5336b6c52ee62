package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ── 录取通知模块 DTO ──

// IssueOfferRequest 人工签发录取通知请求
type IssueOfferRequest struct {
	TuitionFee        decimal.Decimal `json:"tuition_fee"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	PaymentDeadline   time.Time       `json:"payment_deadline"   binding:"required"`
	OfferType         string          `json:"offer_type"         binding:"required,oneof=DEPOSIT FULL"`
	ReinstateRejected bool            `json:"reinstate_rejected"` // 从 REJECTED 恢复录取需显式确认
}

// RespondOfferRequest 申请人答复录取通知请求
type RespondOfferRequest struct {
	Decision string `json:"decision" binding:"required,oneof=ACCEPT REJECT"`
}

// QuoteRequest 应缴金额查询参数
type QuoteRequest struct {
	Plan string `form:"plan" binding:"required,oneof=DEPOSIT FIRST_YEAR"`
}

// ── 响应 ──

// OfferResponse 录取通知响应
type OfferResponse struct {
	ID                 string  `json:"id"`
	ApplicationID      string  `json:"application_id"`
	TuitionFee         string  `json:"tuition_fee"`
	DiscountAmount     string  `json:"discount_amount"`
	OriginalFee        string  `json:"original_fee"`
	Deposit            string  `json:"deposit"`
	Currency           string  `json:"currency"`
	PaymentDeadline    string  `json:"payment_deadline"`
	OfferType          string  `json:"offer_type"`
	Status             string  `json:"status"`
	EarlyPaymentEndsAt string  `json:"early_payment_ends_at"`
	AcceptedAt         *string `json:"accepted_at,omitempty"`
	RejectedAt         *string `json:"rejected_at,omitempty"`
	PaidAt             *string `json:"paid_at,omitempty"`
	DocumentURL        *string `json:"document_url,omitempty"`
	CreatedAt          string  `json:"created_at"`
}

// OfferResult 录取通知操作结果
type OfferResult struct {
	Offer             *OfferResponse `json:"offer"`
	ApplicationStatus string         `json:"application_status"`
	Outcome
}

// QuoteResponse 当前时刻的应缴金额
type QuoteResponse struct {
	Plan              string `json:"plan"`
	Amount            string `json:"amount"`
	OriginalFee       string `json:"original_fee"`
	DiscountApplied   string `json:"discount_applied"`
	Deposit           string `json:"deposit"`
	Currency          string `json:"currency"`
	EarlyWindowOpen   bool   `json:"early_window_open"`
	EarlyWindowEndsAt string `json:"early_window_ends_at"`
}

// [自证通过] internal/dto/offer.go
