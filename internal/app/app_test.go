package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"admitflow/backend/config"
	"admitflow/backend/internal/gateway"
)

func TestNewPaymentGateway(t *testing.T) {
	t.Run("未配置 ServerKey", func(t *testing.T) {
		gw, err := newPaymentGateway(&config.PaymentConfig{}, zap.NewNop())
		require.NoError(t, err)
		assert.Nil(t, gw, "必须返回 nil 接口而非带类型的 nil")
	})

	t.Run("汇率无效", func(t *testing.T) {
		_, err := newPaymentGateway(&config.PaymentConfig{MidtransServerKey: "sk", FXRate: "abc"}, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("汇率为负", func(t *testing.T) {
		_, err := newPaymentGateway(&config.PaymentConfig{MidtransServerKey: "sk", FXRate: "-1"}, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("正常配置", func(t *testing.T) {
		gw, err := newPaymentGateway(&config.PaymentConfig{
			MidtransServerKey:  "sk",
			SettlementCurrency: "idr",
			FXRate:             "17500",
		}, zap.NewNop())
		require.NoError(t, err)
		require.NotNil(t, gw)
		assert.Equal(t, "midtrans", gw.Name())
	})
}

func TestNewDocumentService(t *testing.T) {
	_, static := newDocumentService(&config.DocumentsConfig{PublicBaseURL: "https://docs.test"}).(*gateway.StaticDocumentService)
	assert.True(t, static)

	_, remote := newDocumentService(&config.DocumentsConfig{ServiceURL: "https://render.test"}).(*gateway.HTTPDocumentService)
	assert.True(t, remote)
}
