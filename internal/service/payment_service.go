package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"admitflow/backend/internal/admission"
	"admitflow/backend/internal/dto"
	"admitflow/backend/internal/gateway"
	"admitflow/backend/internal/model"
	"admitflow/backend/internal/payment"
	"admitflow/backend/internal/repository"
	"admitflow/backend/internal/tuition"
	pkgerrors "admitflow/backend/pkg/errors"
)

// ProviderManual 线下缴费（银行转账、现金）的记录来源
const ProviderManual = "manual"

// 网关订单号的 UUID 命名空间
var orderNamespace = uuid.MustParse("5b0f8a2e-3c4d-4e5f-8a9b-0c1d2e3f4a5b")

// PaymentService 学费缴费业务接口
type PaymentService interface {
	SubmitPayment(ctx context.Context, applicationID string, req *dto.SubmitPaymentRequest, callerID string) (*dto.PaymentResult, error)
	// VerifyPayment 工作人员核实线下到账：PENDING_REVIEW → COMPLETED，随后注册
	VerifyPayment(ctx context.Context, paymentID, callerID string) (*dto.PaymentResult, error)
	ListPayments(ctx context.Context, applicationID, callerID, role string) ([]dto.PaymentResponse, error)
}

type paymentService struct {
	repo       *repository.Repository
	calc       *tuition.Calculator
	gateway    payment.Gateway
	locker     IdempotencyLocker
	enrollment EnrollmentService
	effects    *sideEffects
	st         settings
	logger     *zap.Logger
}

// NewPaymentService 创建 PaymentService 实例
func NewPaymentService(
	repo *repository.Repository,
	calc *tuition.Calculator,
	gw payment.Gateway,
	locker IdempotencyLocker,
	enrollment EnrollmentService,
	effects *sideEffects,
	st settings,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		repo:       repo,
		calc:       calc,
		gateway:    gw,
		locker:     locker,
		enrollment: enrollment,
		effects:    effects,
		st:         st,
		logger:     logger,
	}
}

// ────────────────────── SubmitPayment ──────────────────────

func (s *paymentService) SubmitPayment(ctx context.Context, applicationID string, req *dto.SubmitPaymentRequest, callerID string) (*dto.PaymentResult, error) {
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return nil, ErrIdempotencyKeyRequired
	}

	// 同一幂等键的重放：返回已记录的缴费，必要时续做扣款确认或注册
	if existing, err := s.findByKey(ctx, key); err != nil {
		return nil, err
	} else if existing != nil {
		return s.replay(ctx, existing, applicationID, req.CardToken, callerID)
	}

	release, err := s.lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer release()

	app, err := loadApplication(ctx, s.repo, s.logger, applicationID, callerID)
	if err != nil {
		return nil, err
	}
	if app.Status == admission.StatusPaymentSubmitted || app.Status == admission.StatusEnrolled {
		return s.alreadySubmitted(ctx, app, callerID)
	}
	if app.Status != admission.StatusOfferAccepted {
		return nil, admission.Validate(app.Status, admission.StatusPaymentSubmitted)
	}

	offer, err := findOffer(ctx, s.repo, s.logger, applicationID)
	if err != nil {
		return nil, err
	}
	if offer == nil || offer.OfferID != req.OfferID {
		return nil, ErrOfferNotFound
	}
	if offer.Status != model.OfferAccepted {
		return nil, fmt.Errorf("%w: 录取通知状态为 %s", admission.ErrInvalidTransition, offer.Status)
	}

	plan := tuition.Plan(req.PaymentPlan)
	if offer.OfferType == model.OfferTypeFull && plan == tuition.PlanDeposit {
		return nil, ErrPaymentPlanNotAllowed
	}
	quote, err := s.calc.Quote(tuition.QuoteInput{
		TuitionFee:     offer.TuitionFee,
		DiscountAmount: offer.DiscountAmount,
		OfferCreatedAt: offer.CreatedAt,
		Now:            s.st.now(),
		Plan:           plan,
	})
	if err != nil {
		return nil, err
	}
	if !req.Amount.Equal(quote.Amount) {
		return nil, fmt.Errorf("%w: 应缴 %s %s，实际 %s", ErrPaymentAmountMismatch,
			quote.Amount.StringFixed(2), offer.Currency, req.Amount.StringFixed(2))
	}

	record := &model.TuitionPayment{
		OfferID:              offer.OfferID,
		ApplicationID:        applicationID,
		Amount:               quote.Amount,
		PaymentPlan:          plan,
		PaymentMethod:        model.PaymentMethod(req.PaymentMethod),
		TransactionReference: newTransactionReference(),
		IdempotencyKey:       key,
		Country:              strings.ToUpper(req.Country),
		Currency:             offer.Currency,
		CreatedAt:            s.st.now(),
		CreatedBy:            &callerID,
	}

	settled, err := s.settleInFlight(ctx, applicationID, callerID)
	if err != nil {
		return nil, err
	}
	if settled {
		// 上一笔在途扣款实际已成功
		if app, err = loadApplication(ctx, s.repo, s.logger, applicationID, callerID); err != nil {
			return nil, err
		}
		return s.alreadySubmitted(ctx, app, callerID)
	}

	if record.PaymentMethod.RequiresManualReview() {
		return s.submitManual(ctx, app, record, callerID)
	}
	return s.submitCard(ctx, app, record, req.CardToken, callerID)
}

// submitManual 线下缴费：记录 PENDING_REVIEW 并推进申请状态，等待工作人员核实
func (s *paymentService) submitManual(ctx context.Context, app *model.Application, record *model.TuitionPayment, callerID string) (*dto.PaymentResult, error) {
	record.Status = model.PaymentPendingReview
	record.Provider = ProviderManual

	err := runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if err := txRepo.Payment.Create(ctx, record); err != nil {
			return err
		}
		app.UpdatedBy = &callerID
		return txRepo.Application.UpdateStatus(ctx, app, admission.StatusPaymentSubmitted)
	})
	if err != nil {
		// 并发重放：另一请求已用同一幂等键落库
		if repository.IsUniqueViolation(err, "uq_tuition_payments_idempotency") {
			existing, getErr := s.findByKey(ctx, record.IdempotencyKey)
			if getErr == nil && existing != nil {
				return s.replay(ctx, existing, app.ApplicationID, "", callerID)
			}
		}
		s.logger.Error("记录缴费失败",
			zap.String("application_id", app.ApplicationID),
			zap.String("transaction_reference", record.TransactionReference),
			zap.Error(err),
		)
		return nil, err
	}
	s.logRecorded(record)

	result := &dto.PaymentResult{
		Payment:           toPaymentResponse(record),
		ApplicationStatus: string(app.Status),
	}
	payload := map[string]interface{}{
		"amount":                record.Amount.StringFixed(2),
		"currency":              record.Currency,
		"transaction_reference": record.TransactionReference,
	}
	if err := s.effects.notify(ctx, gateway.NotifyPaymentReceived, app, payload, true); err != nil {
		result.Warn(err.Error())
	}
	return result, nil
}

// submitCard 在线扣款：先登记 PROCESSING 记录再调用网关，确认扣款后与申请状态一并落库
// 登记之后的任何失败都可用同一幂等键重试，重试先向网关查询，不会重复扣款
func (s *paymentService) submitCard(ctx context.Context, app *model.Application, record *model.TuitionPayment, cardToken, callerID string) (*dto.PaymentResult, error) {
	if s.gateway == nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, payment.ErrNotConfigured)
	}

	record.Status = model.PaymentProcessing
	record.Provider = s.gateway.Name()
	if err := s.repo.Payment.Create(ctx, record); err != nil {
		switch {
		case repository.IsUniqueViolation(err, "uq_tuition_payments_idempotency"):
			existing, getErr := s.findByKey(ctx, record.IdempotencyKey)
			if getErr == nil && existing != nil {
				return s.replay(ctx, existing, app.ApplicationID, cardToken, callerID)
			}
		case repository.IsUniqueViolation(err, "uq_tuition_payments_in_flight"):
			return nil, ErrPaymentInProgress
		}
		s.logger.Error("登记扣款记录失败",
			zap.String("application_id", app.ApplicationID),
			zap.String("transaction_reference", record.TransactionReference),
			zap.Error(err),
		)
		return nil, err
	}

	res, err := s.chargeOrConfirm(ctx, app, record, cardToken)
	if err != nil {
		return nil, err
	}
	return s.finishCard(ctx, record, res, callerID)
}

// resume 同一幂等键重试在途扣款：先向网关确认上一次的结果
func (s *paymentService) resume(ctx context.Context, record *model.TuitionPayment, cardToken, callerID string) (*dto.PaymentResult, error) {
	if s.gateway == nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, payment.ErrNotConfigured)
	}
	release, err := s.lock(ctx, record.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	defer release()

	app, err := loadApplication(ctx, s.repo, s.logger, record.ApplicationID, callerID)
	if err != nil {
		return nil, err
	}

	res, err := s.gateway.Status(ctx, s.chargeRequest(app, record, cardToken))
	switch {
	case err == nil:
		s.logger.Info("在途扣款已由网关确认",
			zap.String("application_id", record.ApplicationID),
			zap.String("payment_id", record.PaymentID),
		)
	case errors.Is(err, payment.ErrTransactionNotFound):
		// 上一次请求未到达网关，沿用原订单号扣款
		if res, err = s.chargeOrConfirm(ctx, app, record, cardToken); err != nil {
			return nil, err
		}
	case errors.Is(err, payment.ErrDeclined):
		return nil, s.fail(ctx, record, err)
	default:
		return nil, fmt.Errorf("%w: 扣款结果尚未确认: %v", ErrPaymentInProgress, err)
	}
	return s.finishCard(ctx, record, res, callerID)
}

// settleInFlight 处理同一申请下其他幂等键的在途扣款
// 未超过锁时长视为仍在处理；超时后向网关确认，返回 true 表示该笔实际已扣款并已补记
func (s *paymentService) settleInFlight(ctx context.Context, applicationID, callerID string) (bool, error) {
	inFlight, err := s.repo.Payment.GetInFlightByApplication(ctx, applicationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		s.logger.Error("查询在途扣款失败", zap.String("application_id", applicationID), zap.Error(err))
		return false, err
	}
	if s.gateway == nil || s.st.now().Sub(inFlight.CreatedAt) < s.st.lockTTL {
		return false, ErrPaymentInProgress
	}

	res, err := s.gateway.Status(ctx, s.chargeRequest(nil, inFlight, ""))
	switch {
	case err == nil:
		applyCharge(inFlight, res)
		if _, err := s.completeCharge(ctx, inFlight, callerID); err != nil {
			return false, err
		}
		s.logger.Warn("超时的在途扣款经网关确认已成功，已补记",
			zap.String("application_id", applicationID),
			zap.String("payment_id", inFlight.PaymentID),
		)
		return true, nil
	case errors.Is(err, payment.ErrTransactionNotFound), errors.Is(err, payment.ErrDeclined):
		if markErr := s.repo.Payment.MarkFailed(ctx, inFlight.PaymentID, err.Error()); markErr != nil {
			// 另一请求刚刚处理了该笔
			return false, ErrPaymentInProgress
		}
		s.logger.Warn("超时的在途扣款未成功，已关闭",
			zap.String("application_id", applicationID),
			zap.String("payment_id", inFlight.PaymentID),
			zap.Error(err),
		)
		return false, nil
	default:
		return false, fmt.Errorf("%w: 上一笔扣款结果尚未确认: %v", ErrPaymentInProgress, err)
	}
}

// chargeOrConfirm 调用网关扣款；扣款报错时向网关确认，响应丢失但已扣款的按成功处理
func (s *paymentService) chargeOrConfirm(ctx context.Context, app *model.Application, record *model.TuitionPayment, cardToken string) (*payment.ChargeResult, error) {
	req := s.chargeRequest(app, record, cardToken)
	res, err := s.gateway.Charge(ctx, req)
	if err == nil {
		return res, nil
	}
	s.logger.Warn("在线扣款失败，向网关确认结果",
		zap.String("application_id", record.ApplicationID),
		zap.String("transaction_reference", record.TransactionReference),
		zap.Error(err),
	)

	confirmed, confirmErr := s.gateway.Status(ctx, req)
	switch {
	case confirmErr == nil:
		return confirmed, nil
	case errors.Is(confirmErr, payment.ErrTransactionNotFound), errors.Is(confirmErr, payment.ErrDeclined):
		return nil, s.fail(ctx, record, err)
	default:
		// 结果未知：保留 PROCESSING，等待同一幂等键重试
		return nil, fmt.Errorf("%w: 扣款结果尚未确认，请使用同一幂等键重试: %v", ErrPaymentInProgress, confirmErr)
	}
}

// fail 将在途扣款记为 FAILED；该幂等键不再可用
func (s *paymentService) fail(ctx context.Context, record *model.TuitionPayment, cause error) error {
	if err := s.repo.Payment.MarkFailed(ctx, record.PaymentID, cause.Error()); err != nil {
		s.logger.Error("记录扣款失败状态失败", zap.String("payment_id", record.PaymentID), zap.Error(err))
	}
	return fmt.Errorf("%w: %v", ErrPaymentFailed, cause)
}

// finishCard 网关已扣款：补记流水与申请状态，随后注册
func (s *paymentService) finishCard(ctx context.Context, record *model.TuitionPayment, res *payment.ChargeResult, callerID string) (*dto.PaymentResult, error) {
	applyCharge(record, res)
	app, err := s.completeCharge(ctx, record, callerID)
	if err != nil {
		s.logger.Error("网关已扣款但记录失败，等待同一幂等键重试",
			zap.String("application_id", record.ApplicationID),
			zap.String("payment_id", record.PaymentID),
			zap.Error(err),
		)
		return nil, err
	}
	s.logRecorded(record)

	result := &dto.PaymentResult{
		Payment:           toPaymentResponse(record),
		ApplicationStatus: string(app.Status),
	}
	switch app.Status {
	case admission.StatusPaymentSubmitted:
		s.enroll(ctx, app.ApplicationID, record.PaymentID, callerID, result)
	case admission.StatusEnrolled:
		s.attachStudent(ctx, app.ApplicationID, result)
	}
	return result, nil
}

// completeCharge 在同一事务中推进申请状态并将流水记为 COMPLETED；重复执行结果不变
func (s *paymentService) completeCharge(ctx context.Context, record *model.TuitionPayment, callerID string) (*model.Application, error) {
	var app *model.Application
	err := retryOnConflict(func() error {
		return runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
			var err error
			if app, err = txRepo.Application.GetByIDForUpdate(ctx, record.ApplicationID); err != nil {
				return err
			}
			switch app.Status {
			case admission.StatusOfferAccepted:
				app.UpdatedBy = &callerID
				if err := txRepo.Application.UpdateStatus(ctx, app, admission.StatusPaymentSubmitted); err != nil {
					return err
				}
			case admission.StatusPaymentSubmitted, admission.StatusEnrolled:
			default:
				s.logger.Error("网关已扣款但申请状态不允许进入缴费环节，需人工处理",
					zap.String("application_id", app.ApplicationID),
					zap.String("status", string(app.Status)),
					zap.String("payment_id", record.PaymentID),
				)
			}

			current, err := txRepo.Payment.GetByID(ctx, record.PaymentID)
			if err != nil {
				return err
			}
			if current.Status != model.PaymentProcessing {
				return nil
			}
			return txRepo.Payment.MarkCharged(ctx, record.PaymentID, record.ProviderTransactionID, record.FXMetadata)
		})
	})
	if err != nil {
		return nil, err
	}
	record.Status = model.PaymentCompleted
	return app, nil
}

func (s *paymentService) chargeRequest(app *model.Application, record *model.TuitionPayment, cardToken string) payment.ChargeRequest {
	req := payment.ChargeRequest{
		OrderID:   orderID(record.IdempotencyKey),
		Amount:    record.Amount,
		Currency:  record.Currency,
		CardToken: cardToken,
		ItemName:  fmt.Sprintf("Tuition %s", record.PaymentPlan),
	}
	if app != nil {
		info := app.PersonalInfo.Data()
		contact := app.ContactDetails.Data()
		req.Customer = payment.Customer{
			FirstName: info.FirstName,
			LastName:  info.LastName,
			Email:     contact.Email,
			Phone:     contact.Phone,
			Country:   contact.Country,
		}
	}
	return req
}

// orderID 由幂等键派生网关订单号，同一幂等键重试时网关侧订单号不变
func orderID(idempotencyKey string) string {
	return uuid.NewSHA1(orderNamespace, []byte(idempotencyKey)).String()
}

func applyCharge(record *model.TuitionPayment, res *payment.ChargeResult) {
	if res == nil {
		return
	}
	if res.Provider != "" {
		record.Provider = res.Provider
	}
	record.ProviderTransactionID = strPtr(res.ProviderTransactionID)
	if len(res.FXMetadata) > 0 {
		record.FXMetadata = res.FXMetadata
	}
}

func (s *paymentService) logRecorded(record *model.TuitionPayment) {
	s.logger.Info("缴费已记录",
		zap.String("application_id", record.ApplicationID),
		zap.String("payment_id", record.PaymentID),
		zap.String("status", string(record.Status)),
		zap.String("amount", record.Amount.StringFixed(2)),
	)
}

// enroll 同步执行注册；失败时记录补偿任务，缴费结果仍为成功
func (s *paymentService) enroll(ctx context.Context, applicationID, paymentID, callerID string, result *dto.PaymentResult) {
	enrolled, err := s.enrollment.Enroll(ctx, applicationID, callerID)
	if err != nil {
		s.logger.Error("缴费后注册失败，转入后台重试",
			zap.String("application_id", applicationID),
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
		s.effects.recordEnrollment(ctx, applicationID, paymentID, err)
		result.Warn(fmt.Sprintf("%s: 注册未完成，将自动重试: %v", ErrSideEffectFailed.Error(), err))
		return
	}
	result.Student = enrolled.Student
	result.ApplicationStatus = enrolled.ApplicationStatus
	for _, w := range enrolled.Warnings {
		result.Warn(w)
	}
}

func (s *paymentService) findByKey(ctx context.Context, key string) (*model.TuitionPayment, error) {
	existing, err := s.repo.Payment.GetByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		s.logger.Error("按幂等键查询缴费失败", zap.Error(err))
		return nil, err
	}
	return existing, nil
}

// replay 同一幂等键的重放：在途扣款先向网关确认；已到账但尚未注册时续做注册
func (s *paymentService) replay(ctx context.Context, existing *model.TuitionPayment, applicationID, cardToken, callerID string) (*dto.PaymentResult, error) {
	if existing.ApplicationID != applicationID {
		return nil, ErrIdempotencyKeyReused
	}
	switch existing.Status {
	case model.PaymentProcessing:
		return s.resume(ctx, existing, cardToken, callerID)
	case model.PaymentFailed:
		return nil, fmt.Errorf("%w: 该幂等键对应的扣款未成功，请使用新的幂等键重新提交", ErrPaymentFailed)
	}

	app, err := loadApplication(ctx, s.repo, s.logger, applicationID, callerID)
	if err != nil {
		return nil, err
	}
	if existing.Status == model.PaymentCompleted && app.Status == admission.StatusOfferAccepted {
		// 流水已到账而申请状态未推进
		if app, err = s.completeCharge(ctx, existing, callerID); err != nil {
			return nil, err
		}
	}

	result := &dto.PaymentResult{
		Payment:           toPaymentResponse(existing),
		ApplicationStatus: string(app.Status),
	}
	result.AlreadyHandled = true
	if existing.Status == model.PaymentCompleted && app.Status == admission.StatusPaymentSubmitted {
		s.enroll(ctx, applicationID, existing.PaymentID, callerID, result)
	} else if app.Status == admission.StatusEnrolled {
		s.attachStudent(ctx, applicationID, result)
	}
	return result, nil
}

// alreadySubmitted 申请已过缴费环节（不同幂等键的重复提交）
func (s *paymentService) alreadySubmitted(ctx context.Context, app *model.Application, callerID string) (*dto.PaymentResult, error) {
	result := &dto.PaymentResult{ApplicationStatus: string(app.Status)}
	result.AlreadyHandled = true

	latest, err := s.repo.Payment.GetCompletedByApplication(ctx, app.ApplicationID)
	switch {
	case err == nil:
		result.Payment = toPaymentResponse(latest)
		if app.Status == admission.StatusPaymentSubmitted {
			// 卡在 PAYMENT_SUBMITTED 的已到账缴费：续做注册
			s.enroll(ctx, app.ApplicationID, latest.PaymentID, callerID, result)
			return result, nil
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// 线下缴费尚待核实
	default:
		return nil, err
	}
	if app.Status == admission.StatusEnrolled {
		s.attachStudent(ctx, app.ApplicationID, result)
	}
	return result, nil
}

func (s *paymentService) attachStudent(ctx context.Context, applicationID string, result *dto.PaymentResult) {
	if st, err := s.repo.Student.GetByApplication(ctx, applicationID); err == nil {
		result.Student = toStudentResponse(st)
	}
}

// lock 同一幂等键的并发请求只放行一个；Redis 不可用时退化为仅依赖唯一索引
func (s *paymentService) lock(ctx context.Context, key string) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}
	lockKey := "payment:" + key
	token, err := s.locker.AcquireLock(ctx, lockKey, s.st.lockTTL)
	if err != nil {
		s.logger.Warn("获取幂等锁失败，仅依赖数据库唯一约束", zap.Error(err))
		return noop, nil
	}
	if token == "" {
		return nil, ErrPaymentInProgress
	}
	return func() {
		// 请求上下文可能已取消，释放锁使用独立的短超时
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.locker.ReleaseLock(releaseCtx, lockKey, token); err != nil {
			s.logger.Warn("释放幂等锁失败", zap.Error(err))
		}
	}, nil
}

func newTransactionReference() string {
	return "TXN-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// ────────────────────── VerifyPayment ──────────────────────

func (s *paymentService) VerifyPayment(ctx context.Context, paymentID, callerID string) (*dto.PaymentResult, error) {
	p, err := s.repo.Payment.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		s.logger.Error("查询缴费失败", zap.String("payment_id", paymentID), zap.Error(err))
		return nil, err
	}

	result := &dto.PaymentResult{}
	if p.Status == model.PaymentCompleted {
		result.AlreadyHandled = true
	} else {
		now := s.st.now()
		if err := s.repo.Payment.MarkVerified(ctx, paymentID, callerID, now); err != nil {
			if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
				s.logger.Error("核实缴费失败", zap.String("payment_id", paymentID), zap.Error(err))
				return nil, err
			}
			// 并发核实：另一工作人员已完成
			result.AlreadyHandled = true
		} else {
			p.Status = model.PaymentCompleted
			p.VerifiedAt = &now
			p.VerifiedBy = &callerID
			s.logger.Info("线下缴费已核实",
				zap.String("payment_id", paymentID),
				zap.String("operator", callerID),
			)
		}
	}
	result.Payment = toPaymentResponse(p)

	app, err := loadApplication(ctx, s.repo, s.logger, p.ApplicationID, "")
	if err != nil {
		return nil, err
	}
	result.ApplicationStatus = string(app.Status)
	switch app.Status {
	case admission.StatusPaymentSubmitted:
		s.enroll(ctx, app.ApplicationID, paymentID, callerID, result)
	case admission.StatusEnrolled:
		s.attachStudent(ctx, app.ApplicationID, result)
	}
	return result, nil
}

// ────────────────────── ListPayments ──────────────────────

func (s *paymentService) ListPayments(ctx context.Context, applicationID, callerID, role string) ([]dto.PaymentResponse, error) {
	owner := callerID
	if isStaff(role) {
		owner = ""
	}
	if _, err := loadApplication(ctx, s.repo, s.logger, applicationID, owner); err != nil {
		return nil, err
	}
	payments, err := s.repo.Payment.ListByApplication(ctx, applicationID)
	if err != nil {
		s.logger.Error("查询缴费记录失败", zap.String("application_id", applicationID), zap.Error(err))
		return nil, err
	}
	result := make([]dto.PaymentResponse, 0, len(payments))
	for i := range payments {
		result = append(result, *toPaymentResponse(&payments[i]))
	}
	return result, nil
}
