// Package payment 在线支付网关适配。
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrDeclined 网关拒绝扣款（余额不足、风控拒绝、卡片无效等）
	ErrDeclined = errors.New("支付网关拒绝扣款")
	// ErrNotConfigured 未配置在线支付网关
	ErrNotConfigured = errors.New("在线支付网关未配置")
	// ErrTransactionNotFound 网关侧没有该订单号的交易，扣款请求未到达网关
	ErrTransactionNotFound = errors.New("网关无此交易")
	// ErrPending 交易尚未完成（等待 3DS 验证等）
	ErrPending = errors.New("网关交易处理中")
)

// Customer 持卡人信息
type Customer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Country   string
}

// ChargeRequest 扣款请求
type ChargeRequest struct {
	OrderID   string          // 本地交易流水号，网关侧订单号
	Amount    decimal.Decimal // 录取通知币种下的金额
	Currency  string
	CardToken string
	Customer  Customer
	ItemName  string
}

// ChargeResult 扣款结果
type ChargeResult struct {
	Provider              string
	ProviderTransactionID string
	Status                string
	FXMetadata            map[string]interface{}
}

// Gateway 在线扣款网关
// 同一 OrderID 只能扣款一次，重试前用 Status 查询上一次的结果
type Gateway interface {
	Name() string
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	// Status 按 req.OrderID 查询网关侧交易：已扣款返回结果；
	// 未扣款返回 ErrTransactionNotFound、ErrDeclined 或 ErrPending
	Status(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}
