package payment

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProviderMidtrans 网关名称
const ProviderMidtrans = "midtrans"

// charger 抽象 coreapi.Client，便于测试替换
type charger interface {
	ChargeTransaction(req *coreapi.ChargeReq) (*coreapi.ChargeResponse, *midtrans.Error)
	CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, *midtrans.Error)
}

// MidtransGateway 基于 midtrans Core API 的信用卡扣款
// 网关按结算币种整数金额扣款，录取通知币种与结算币种不同时按固定汇率换算
type MidtransGateway struct {
	client             charger
	settlementCurrency string
	fxRate             decimal.Decimal
	logger             *zap.Logger
}

// MidtransOptions 网关配置
type MidtransOptions struct {
	ServerKey          string
	Production         bool
	SettlementCurrency string
	FXRate             decimal.Decimal // 1 单位通知币种 = FXRate 单位结算币种
}

// NewMidtransGateway 创建 midtrans 网关；ServerKey 为空时返回 nil
func NewMidtransGateway(opts MidtransOptions, logger *zap.Logger) *MidtransGateway {
	if opts.ServerKey == "" {
		return nil
	}
	env := midtrans.Sandbox
	if opts.Production {
		env = midtrans.Production
	}
	var c coreapi.Client
	c.New(opts.ServerKey, env)
	return newMidtransGateway(&c, opts, logger)
}

func newMidtransGateway(client charger, opts MidtransOptions, logger *zap.Logger) *MidtransGateway {
	rate := opts.FXRate
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}
	return &MidtransGateway{
		client:             client,
		settlementCurrency: strings.ToUpper(opts.SettlementCurrency),
		fxRate:             rate,
		logger:             logger,
	}
}

// Name 网关名称
func (g *MidtransGateway) Name() string { return ProviderMidtrans }

// Charge 以卡片 token 扣款
func (g *MidtransGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if g == nil || g.client == nil {
		return nil, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.CardToken == "" {
		return nil, fmt.Errorf("%w: 缺少卡片 token", ErrDeclined)
	}

	gross, fx := g.convert(req.Amount, req.Currency)

	charge := &coreapi.ChargeReq{
		PaymentType: coreapi.PaymentTypeCreditCard,
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: gross,
		},
		CreditCard: &coreapi.CreditCardDetails{
			TokenID:        req.CardToken,
			Authentication: true,
		},
		CustomerDetails: &midtrans.CustomerDetails{
			FName: req.Customer.FirstName,
			LName: req.Customer.LastName,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
		Items: &[]midtrans.ItemDetails{{
			ID:    req.OrderID,
			Name:  truncate(req.ItemName, 50),
			Price: gross,
			Qty:   1,
		}},
	}

	resp, mErr := g.client.ChargeTransaction(charge)
	if mErr != nil {
		g.logger.Warn("midtrans 扣款请求失败",
			zap.String("order_id", req.OrderID),
			zap.Int("status_code", mErr.StatusCode),
			zap.String("message", mErr.Message))
		return nil, fmt.Errorf("%w: %s", ErrDeclined, mErr.Message)
	}

	if resp.TransactionStatus == "pending" {
		// 本接口不处理 3DS 跳转，视为本次扣款未完成
		return nil, fmt.Errorf("%w: transaction_status=pending %s", ErrDeclined, resp.StatusMessage)
	}
	if err := captured(resp.TransactionStatus, resp.FraudStatus, resp.StatusMessage); err != nil {
		return nil, err
	}

	return &ChargeResult{
		Provider:              ProviderMidtrans,
		ProviderTransactionID: resp.TransactionID,
		Status:                resp.TransactionStatus,
		FXMetadata:            fx,
	}, nil
}

// Status 查询订单在 midtrans 侧的交易状态
func (g *MidtransGateway) Status(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if g == nil || g.client == nil {
		return nil, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, mErr := g.client.CheckTransaction(req.OrderID)
	if mErr != nil {
		if mErr.StatusCode == http.StatusNotFound {
			return nil, ErrTransactionNotFound
		}
		g.logger.Warn("midtrans 交易查询失败",
			zap.String("order_id", req.OrderID),
			zap.Int("status_code", mErr.StatusCode),
			zap.String("message", mErr.Message))
		return nil, fmt.Errorf("查询 midtrans 交易失败: %s", mErr.Message)
	}
	if resp.StatusCode == "404" {
		return nil, ErrTransactionNotFound
	}
	if resp.TransactionStatus == "pending" {
		return nil, fmt.Errorf("%w: %s", ErrPending, resp.StatusMessage)
	}
	if err := captured(resp.TransactionStatus, resp.FraudStatus, resp.StatusMessage); err != nil {
		return nil, err
	}

	_, fx := g.convert(req.Amount, req.Currency)
	return &ChargeResult{
		Provider:              ProviderMidtrans,
		ProviderTransactionID: resp.TransactionID,
		Status:                resp.TransactionStatus,
		FXMetadata:            fx,
	}, nil
}

// captured 仅 capture/settlement 且风控通过视为已扣款；deny、expire、cancel 等均为拒绝
func captured(status, fraud, message string) error {
	switch status {
	case "capture", "settlement":
		if fraud != "" && fraud != "accept" {
			return fmt.Errorf("%w: fraud_status=%s", ErrDeclined, fraud)
		}
		return nil
	}
	return fmt.Errorf("%w: transaction_status=%s %s", ErrDeclined, status, message)
}

// convert 换算为结算币种整数金额，同时返回汇率记录
func (g *MidtransGateway) convert(amount decimal.Decimal, currency string) (int64, map[string]interface{}) {
	currency = strings.ToUpper(currency)
	rate := g.fxRate
	to := g.settlementCurrency
	if to == "" || to == currency {
		rate = decimal.NewFromInt(1)
		to = currency
	}
	charged := amount.Mul(rate).Round(0)
	return charged.IntPart(), map[string]interface{}{
		"from_currency":  currency,
		"to_currency":    to,
		"rate":           rate.String(),
		"charged_amount": charged.String(),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
