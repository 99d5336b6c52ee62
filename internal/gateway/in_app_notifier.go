package gateway

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"admitflow/backend/internal/model"
	"admitflow/backend/internal/repository"
)

// ErrUnknownNotification 未登记模板的通知类型
var ErrUnknownNotification = errors.New("未知的通知类型")

type template struct {
	title   string
	content string
}

var templates = map[NotificationKind]template{
	NotifyOfferIssued:         {"录取通知已签发", "您的申请已获录取，请在截止日期前确认录取通知。"},
	NotifyDocumentsRequested:  {"需要补交材料", "审核人员要求您补交材料，请查看申请详情。"},
	NotifyApplicationRejected: {"申请结果通知", "很遗憾，您的申请未获通过。"},
	NotifyPaymentReceived:     {"已收到缴费信息", "您的缴费记录已提交，工作人员核实到账后将为您办理注册。"},
	NotifyPaymentConfirmation: {"缴费成功，已完成注册", "您的学费已确认，学籍已生成，可在个人中心查看录取通知书。"},
}

// InAppNotifier 将通知写入站内通知表
// 邮件等外部渠道由通知服务订阅该表投递
type InAppNotifier struct {
	notifications repository.NotificationRepository
	logger        *zap.Logger
}

// NewInAppNotifier 创建站内通知投递
func NewInAppNotifier(notifications repository.NotificationRepository, logger *zap.Logger) *InAppNotifier {
	return &InAppNotifier{notifications: notifications, logger: logger}
}

func (n *InAppNotifier) Notify(ctx context.Context, msg Notification) error {
	tpl, ok := templates[msg.Kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNotification, msg.Kind)
	}
	if msg.RecipientID == "" {
		return errors.New("通知缺少接收人")
	}

	content := tpl.content
	if note, ok := msg.Payload["note"].(string); ok && note != "" {
		content = content + "\n" + note
	}

	row := model.NewApplicationNotification(msg.RecipientID, string(msg.Kind), tpl.title, content, msg.ApplicationID)
	if err := n.notifications.Create(ctx, row); err != nil {
		return fmt.Errorf("写入站内通知失败: %w", err)
	}

	n.logger.Debug("站内通知已写入",
		zap.String("kind", string(msg.Kind)),
		zap.String("application_id", msg.ApplicationID),
		zap.String("recipient_id", msg.RecipientID))
	return nil
}
