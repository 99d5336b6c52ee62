package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"admitflow/backend/internal/gateway"
	"admitflow/backend/internal/model"
	"admitflow/backend/internal/repository"
)

const (
	retryBaseDelay = time.Minute
	retryMaxDelay  = time.Hour
)

// sideEffects 文档/通知调用与失败记录
// 失败只写补偿任务并返回 ErrSideEffectFailed，不回滚已提交的状态
type sideEffects struct {
	repo   *repository.Repository
	gw     gateway.Gateway
	st     settings
	logger *zap.Logger
}

func newSideEffects(repo *repository.Repository, gw gateway.Gateway, st settings, logger *zap.Logger) *sideEffects {
	return &sideEffects{repo: repo, gw: gw, st: st, logger: logger}
}

// requestDocument 请求生成文档；record=false 时失败不写补偿任务（重新生成、后台重试）
func (e *sideEffects) requestDocument(ctx context.Context, kind gateway.DocumentKind, appID string, data map[string]interface{}, record bool) (string, error) {
	url, err := e.gw.RequestDocument(ctx, gateway.DocumentRequest{
		Kind:          kind,
		ApplicationID: appID,
		Data:          data,
	})
	if err != nil {
		e.logger.Warn("文档生成失败",
			zap.String("application_id", appID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		if record {
			e.record(ctx, appID, model.SideEffectDocument, string(kind), data, err)
		}
		return "", fmt.Errorf("%w: %s: %v", ErrSideEffectFailed, kind, err)
	}

	if err := e.repo.SideEffectJob.ResolvePending(ctx, appID, model.SideEffectDocument, string(kind)); err != nil {
		e.logger.Warn("标记补偿任务完成失败", zap.String("application_id", appID), zap.Error(err))
	}
	return url, nil
}

// notify 向申请人发送通知
func (e *sideEffects) notify(ctx context.Context, kind gateway.NotificationKind, app *model.Application, payload map[string]interface{}, record bool) error {
	err := e.gw.SendNotification(ctx, gateway.Notification{
		Kind:          kind,
		ApplicationID: app.ApplicationID,
		RecipientID:   app.ApplicantID,
		Payload:       payload,
	})
	if err != nil {
		e.logger.Warn("通知发送失败",
			zap.String("application_id", app.ApplicationID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		if record {
			jobPayload := map[string]interface{}{"recipient_id": app.ApplicantID}
			if len(payload) > 0 {
				jobPayload["payload"] = payload
			}
			e.record(ctx, app.ApplicationID, model.SideEffectNotification, string(kind), jobPayload, err)
		}
		return fmt.Errorf("%w: %s: %v", ErrSideEffectFailed, kind, err)
	}
	return nil
}

// recordEnrollment 缴费已确认但注册事务失败，交由后台任务续做
func (e *sideEffects) recordEnrollment(ctx context.Context, appID, paymentID string, cause error) {
	e.record(ctx, appID, model.SideEffectEnrollment, "ENROLLMENT", map[string]interface{}{"payment_id": paymentID}, cause)
}

func (e *sideEffects) record(ctx context.Context, appID string, kind model.SideEffectKind, name string, payload map[string]interface{}, cause error) {
	job := &model.SideEffectJob{
		ApplicationID: appID,
		Kind:          kind,
		Name:          name,
		Payload:       payload,
		Status:        model.SideEffectPending,
		Attempts:      1,
		LastError:     cause.Error(),
		NextAttemptAt: e.st.now().Add(retryDelay(1)),
	}
	if err := e.repo.SideEffectJob.Create(ctx, job); err != nil {
		// 补偿任务也写不进去时只能依赖工作人员手动重新生成
		e.logger.Error("记录补偿任务失败",
			zap.String("application_id", appID),
			zap.String("name", name),
			zap.Error(err),
		)
	}
}

// retryDelay 第 n 次失败后的等待时间：1m·2^(n-1)，上限 1h
func retryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := retryBaseDelay
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= retryMaxDelay {
			return retryMaxDelay
		}
	}
	return d
}

// letterData 文档模板所需的数据
func letterData(app *model.Application, programme *model.Programme, offer *model.AdmissionOffer) map[string]interface{} {
	info := app.PersonalInfo.Data()
	data := map[string]interface{}{
		"applicant_name": info.FullName(),
		"application_id": app.ApplicationID,
	}
	if programme != nil {
		data["programme_name"] = programme.Name
		data["school"] = programme.School
		data["degree_level"] = string(programme.DegreeLevel)
	}
	if offer != nil {
		data["tuition_fee"] = offer.TuitionFee.StringFixed(2)
		data["discount_amount"] = offer.DiscountAmount.StringFixed(2)
		data["currency"] = offer.Currency
		data["payment_deadline"] = offer.PaymentDeadline.Format(dateLayout)
		data["offer_type"] = string(offer.OfferType)
	}
	return data
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
