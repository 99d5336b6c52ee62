// Package app 组装 server 与 worker 共用的依赖图
package app

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"admitflow/backend/config"
	"admitflow/backend/internal/gateway"
	"admitflow/backend/internal/payment"
	"admitflow/backend/internal/repository"
	"admitflow/backend/internal/service"
	"admitflow/backend/pkg/redis"
)

// BuildService 依赖注入: Repository → 外部网关 → Service
// rdb 为 nil 时幂等仅依赖数据库唯一约束
func BuildService(cfg *config.Config, db *gorm.DB, rdb *redis.Client, logger *zap.Logger) (*service.Service, error) {
	repo := repository.NewRepository(db)

	calc, err := service.NewCalculator(&cfg.Admission)
	if err != nil {
		return nil, err
	}

	payments, err := newPaymentGateway(&cfg.Payment, logger)
	if err != nil {
		return nil, err
	}

	deps := service.Deps{
		Calculator: calc,
		Gateway:    gateway.New(newDocumentService(&cfg.Documents), gateway.NewInAppNotifier(repo.Notification, logger), cfg.Documents.Timeout),
		Payments:   payments,
	}
	if rdb != nil {
		deps.Locker = rdb
	}

	return service.NewService(cfg, repo, deps, logger), nil
}

// newDocumentService 未配置渲染服务时直接返回规范地址
func newDocumentService(cfg *config.DocumentsConfig) gateway.DocumentService {
	if cfg.ServiceURL == "" {
		return gateway.NewStaticDocumentService(cfg.PublicBaseURL)
	}
	return gateway.NewHTTPDocumentService(cfg.ServiceURL, &http.Client{Timeout: cfg.Timeout})
}

// newPaymentGateway 未配置 ServerKey 时返回 nil，在线刷卡不可用
func newPaymentGateway(cfg *config.PaymentConfig, logger *zap.Logger) (payment.Gateway, error) {
	if cfg.MidtransServerKey == "" {
		logger.Warn("未配置支付网关，在线刷卡不可用")
		return nil, nil
	}

	rate := decimal.NewFromInt(1)
	if cfg.FXRate != "" {
		r, err := decimal.NewFromString(cfg.FXRate)
		if err != nil || !r.IsPositive() {
			return nil, fmt.Errorf("payment.fx_rate 无效: %q", cfg.FXRate)
		}
		rate = r
	}

	return payment.NewMidtransGateway(payment.MidtransOptions{
		ServerKey:          cfg.MidtransServerKey,
		Production:         cfg.Production,
		SettlementCurrency: cfg.SettlementCurrency,
		FXRate:             rate,
	}, logger), nil
}
