// Package gateway 文档生成与通知的对外接口。
//
// 调用方只依赖 Gateway 接口；所有调用都带超时，失败只影响该副作用本身，
// 由调用方记录补偿任务，从不回滚触发它的状态变更。
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DocumentKind 文档类型
type DocumentKind string

const (
	DocOfferLetter     DocumentKind = "OFFER_LETTER"
	DocAdmissionLetter DocumentKind = "ADMISSION_LETTER"
)

// NotificationKind 通知类型
type NotificationKind string

const (
	NotifyOfferIssued         NotificationKind = "OFFER_ISSUED"
	NotifyDocumentsRequested  NotificationKind = "DOCUMENTS_REQUESTED"
	NotifyApplicationRejected NotificationKind = "APPLICATION_REJECTED"
	NotifyPaymentReceived     NotificationKind = "PAYMENT_RECEIVED" // 线下缴费待核实
	NotifyPaymentConfirmation NotificationKind = "PAYMENT_CONFIRMATION"
)

// ErrGatewayTimeout 调用超出时限
var ErrGatewayTimeout = errors.New("文档/通知服务响应超时")

// DocumentRequest 文档生成请求
type DocumentRequest struct {
	Kind          DocumentKind           `json:"kind"`
	ApplicationID string                 `json:"application_id"`
	Data          map[string]interface{} `json:"data,omitempty"` // 填充模板所需的申请人与费用信息
}

// Notification 通知请求
type Notification struct {
	Kind          NotificationKind       `json:"kind"`
	ApplicationID string                 `json:"application_id"`
	RecipientID   string                 `json:"recipient_id"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
}

// Gateway 文档/通知网关
type Gateway interface {
	// RequestDocument 请求生成文档，返回文档访问地址
	RequestDocument(ctx context.Context, req DocumentRequest) (string, error)
	SendNotification(ctx context.Context, n Notification) error
}

// DocumentService 文档生成服务
type DocumentService interface {
	Generate(ctx context.Context, req DocumentRequest) (string, error)
}

// Notifier 通知投递
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type boundedGateway struct {
	docs     DocumentService
	notifier Notifier
	timeout  time.Duration
}

// New 组合文档服务与通知投递，每次调用受 timeout 约束
func New(docs DocumentService, notifier Notifier, timeout time.Duration) Gateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &boundedGateway{docs: docs, notifier: notifier, timeout: timeout}
}

func (g *boundedGateway) RequestDocument(ctx context.Context, req DocumentRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	url, err := g.docs.Generate(ctx, req)
	if err != nil {
		return "", g.wrap(ctx, err)
	}
	return url, nil
}

func (g *boundedGateway) SendNotification(ctx context.Context, n Notification) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.notifier.Notify(ctx, n); err != nil {
		return g.wrap(ctx, err)
	}
	return nil
}

func (g *boundedGateway) wrap(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w (%s): %v", ErrGatewayTimeout, g.timeout, err)
	}
	return err
}

// DocumentURL 文档的规范访问地址
func DocumentURL(baseURL string, kind DocumentKind, applicationID string) string {
	name := strings.ToLower(strings.ReplaceAll(string(kind), "_", "-"))
	return fmt.Sprintf("%s/applications/%s/%s.pdf", strings.TrimRight(baseURL, "/"), applicationID, name)
}
