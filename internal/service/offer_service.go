package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"admitflow/backend/internal/admission"
	"admitflow/backend/internal/dto"
	"admitflow/backend/internal/gateway"
	"admitflow/backend/internal/model"
	"admitflow/backend/internal/repository"
	"admitflow/backend/internal/tuition"
)

// OfferService 录取通知业务接口
type OfferService interface {
	// IssueOffer 人工签发/重新签发录取通知，必要时将申请快进到 ADMITTED
	IssueOffer(ctx context.Context, applicationID string, req *dto.IssueOfferRequest, callerID string) (*dto.OfferResult, error)
	// AutoIssueOnApproval 审核通过时按学费表自动签发；已有通知时只重新生成通知书
	AutoIssueOnApproval(ctx context.Context, applicationID, callerID string) (*dto.OfferResult, error)
	RespondToOffer(ctx context.Context, applicationID string, req *dto.RespondOfferRequest, callerID string) (*dto.OfferResult, error)
	GetOffer(ctx context.Context, applicationID, callerID, role string) (*dto.OfferResponse, error)
	GetQuote(ctx context.Context, applicationID string, req *dto.QuoteRequest, callerID, role string) (*dto.QuoteResponse, error)
	RegenerateOfferLetter(ctx context.Context, applicationID, callerID string) (*dto.DocumentResult, error)
}

type offerService struct {
	repo    *repository.Repository
	calc    *tuition.Calculator
	effects *sideEffects
	st      settings
	logger  *zap.Logger
}

// NewOfferService 创建 OfferService 实例
func NewOfferService(repo *repository.Repository, calc *tuition.Calculator, effects *sideEffects, st settings, logger *zap.Logger) OfferService {
	return &offerService{repo: repo, calc: calc, effects: effects, st: st, logger: logger}
}

// findOffer 查询申请的录取通知；不存在时返回 nil, nil
func findOffer(ctx context.Context, repo *repository.Repository, logger *zap.Logger, applicationID string) (*model.AdmissionOffer, error) {
	offer, err := repo.Offer.GetByApplication(ctx, applicationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.Error("查询录取通知失败", zap.String("application_id", applicationID), zap.Error(err))
		return nil, err
	}
	return offer, nil
}

// programmeOf 申请所属专业（优先使用预加载结果）
func programmeOf(ctx context.Context, repo *repository.Repository, app *model.Application) (*model.Programme, error) {
	if app.Programme != nil {
		return app.Programme, nil
	}
	programme, err := repo.Programme.GetByID(ctx, app.ProgrammeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProgrammeNotFound
		}
		return nil, err
	}
	app.Programme = programme
	return programme, nil
}

// ────────────────────── IssueOffer ──────────────────────

func (s *offerService) IssueOffer(ctx context.Context, applicationID string, req *dto.IssueOfferRequest, callerID string) (*dto.OfferResult, error) {
	now := s.st.now()
	offerType := model.OfferType(req.OfferType)
	switch {
	case !req.TuitionFee.IsPositive():
		return nil, fmt.Errorf("%w: 学费必须大于 0", ErrInvalidOfferTerms)
	case req.DiscountAmount.IsNegative():
		return nil, fmt.Errorf("%w: 折扣额不能为负", ErrInvalidOfferTerms)
	case !req.PaymentDeadline.After(now):
		return nil, fmt.Errorf("%w: 缴费截止时间必须晚于当前时间", ErrInvalidOfferTerms)
	case offerType != model.OfferTypeDeposit && offerType != model.OfferTypeFull:
		return nil, fmt.Errorf("%w: 未知的通知类型 %s", ErrInvalidOfferTerms, req.OfferType)
	}

	var app *model.Application
	err := retryOnConflict(func() error {
		var err error
		if app, err = loadApplication(ctx, s.repo, s.logger, applicationID, ""); err != nil {
			return err
		}
		if err := admission.ValidateFastForward(app.Status); err != nil {
			return err
		}
		if app.Status == admission.StatusRejected && !req.ReinstateRejected {
			return ErrReinstateNotConfirmed
		}
		if app.Status == admission.StatusOfferAccepted {
			// 在途扣款完成前不能改变通知条款
			if _, err := s.repo.Payment.GetInFlightByApplication(ctx, applicationID); err == nil {
				return ErrPaymentInProgress
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		// 重新签发以当前时间为创建时间，提前缴费窗口随之重新开始
		offer := &model.AdmissionOffer{
			ApplicationID:   applicationID,
			TuitionFee:      req.TuitionFee.Round(2),
			DiscountAmount:  req.DiscountAmount.Round(2),
			Currency:        s.st.currency,
			PaymentDeadline: req.PaymentDeadline.UTC(),
			OfferType:       offerType,
			Status:          model.OfferPending,
		}
		offer.CreatedAt = now
		offer.CreatedBy = &callerID
		offer.UpdatedAt = now
		offer.UpdatedBy = &callerID

		return runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
			if err := txRepo.Offer.Upsert(ctx, offer); err != nil {
				return err
			}
			if app.Status != admission.StatusAdmitted {
				app.UpdatedBy = &callerID
				return txRepo.Application.UpdateStatus(ctx, app, admission.StatusAdmitted)
			}
			return nil
		})
	})
	if err != nil {
		if !isBusinessError(err) {
			s.logger.Error("签发录取通知失败", zap.String("application_id", applicationID), zap.Error(err))
		}
		return nil, err
	}

	offer, err := s.repo.Offer.GetByApplication(ctx, applicationID)
	if err != nil {
		s.logger.Error("查询录取通知失败", zap.String("application_id", applicationID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("录取通知已签发",
		zap.String("application_id", applicationID),
		zap.String("offer_id", offer.OfferID),
		zap.String("tuition_fee", offer.TuitionFee.StringFixed(2)),
		zap.String("operator", callerID),
	)

	result := &dto.OfferResult{ApplicationStatus: string(app.Status)}
	if _, err := s.generateLetter(ctx, app, offer, true); err != nil {
		result.Warn(err.Error())
	}
	if err := s.effects.notify(ctx, gateway.NotifyOfferIssued, app, offerPayload(offer), true); err != nil {
		result.Warn(err.Error())
	}
	result.Offer = toOfferResponse(offer, s.calc)
	return result, nil
}

// ────────────────────── AutoIssueOnApproval ──────────────────────

func (s *offerService) AutoIssueOnApproval(ctx context.Context, applicationID, callerID string) (*dto.OfferResult, error) {
	var (
		app     *model.Application
		created bool
		handled bool
	)
	err := retryOnConflict(func() error {
		var err error
		if app, err = loadApplication(ctx, s.repo, s.logger, applicationID, ""); err != nil {
			return err
		}

		transition := app.Status != admission.StatusAdmitted
		if transition {
			if err := admission.Validate(app.Status, admission.StatusAdmitted); err != nil {
				return err
			}
		}

		existing, err := findOffer(ctx, s.repo, s.logger, applicationID)
		if err != nil {
			return err
		}
		handled = !transition && existing != nil

		var offer *model.AdmissionOffer
		if existing == nil {
			if offer, err = s.computeOffer(ctx, app, callerID); err != nil {
				return err
			}
		}

		return runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
			if transition {
				app.UpdatedBy = &callerID
				if err := txRepo.Application.UpdateStatus(ctx, app, admission.StatusAdmitted); err != nil {
					return err
				}
			}
			if offer != nil {
				// 并发审核时后到者在这里得到 created=false
				created, err = txRepo.Offer.CreateIfAbsent(ctx, offer)
				return err
			}
			return nil
		})
	})
	if err != nil {
		if !isBusinessError(err) {
			s.logger.Error("自动签发录取通知失败", zap.String("application_id", applicationID), zap.Error(err))
		}
		return nil, err
	}

	offer, err := s.repo.Offer.GetByApplication(ctx, applicationID)
	if err != nil {
		s.logger.Error("查询录取通知失败", zap.String("application_id", applicationID), zap.Error(err))
		return nil, err
	}

	result := &dto.OfferResult{ApplicationStatus: string(app.Status)}
	result.AlreadyHandled = handled
	if created {
		s.logger.Info("录取通知已自动签发",
			zap.String("application_id", applicationID),
			zap.String("offer_id", offer.OfferID),
			zap.String("tuition_fee", offer.TuitionFee.StringFixed(2)),
		)
	}

	// 无论通知是否新建都重新尝试生成通知书
	if _, err := s.generateLetter(ctx, app, offer, true); err != nil {
		result.Warn(err.Error())
	}
	if created {
		if err := s.effects.notify(ctx, gateway.NotifyOfferIssued, app, offerPayload(offer), true); err != nil {
			result.Warn(err.Error())
		}
	}
	result.Offer = toOfferResponse(offer, s.calc)
	return result, nil
}

// computeOffer 按专业所属学院与学位层次计算展示学费，截止时间为 now + 答复期限
func (s *offerService) computeOffer(ctx context.Context, app *model.Application, callerID string) (*model.AdmissionOffer, error) {
	programme, err := programmeOf(ctx, s.repo, app)
	if err != nil {
		return nil, err
	}
	base, category, err := s.calc.BaseFee(programme.DegreeLevel, programme.School)
	if err != nil {
		return nil, err
	}
	fee := s.calc.HeadlineFee(base)

	now := s.st.now()
	offer := &model.AdmissionOffer{
		ApplicationID:   app.ApplicationID,
		TuitionFee:      fee.TuitionFee,
		DiscountAmount:  fee.DiscountAmount,
		Currency:        s.st.currency,
		PaymentDeadline: now.AddDate(0, 0, s.st.offerResponseDays),
		OfferType:       model.OfferTypeDeposit,
		Status:          model.OfferPending,
	}
	offer.CreatedAt = now
	offer.CreatedBy = strPtr(callerID)
	offer.UpdatedAt = now
	offer.UpdatedBy = strPtr(callerID)

	s.logger.Debug("按学费表计算录取学费",
		zap.String("application_id", app.ApplicationID),
		zap.String("degree_level", string(programme.DegreeLevel)),
		zap.String("category", string(category)),
		zap.String("base_fee", base.StringFixed(2)),
	)
	return offer, nil
}

// ────────────────────── RespondToOffer ──────────────────────

func (s *offerService) RespondToOffer(ctx context.Context, applicationID string, req *dto.RespondOfferRequest, callerID string) (*dto.OfferResult, error) {
	var (
		offerTarget model.OfferStatus
		appTarget   admission.Status
	)
	switch req.Decision {
	case "ACCEPT":
		offerTarget, appTarget = model.OfferAccepted, admission.StatusOfferAccepted
	case "REJECT":
		offerTarget, appTarget = model.OfferRejected, admission.StatusOfferRejected
	default:
		return nil, fmt.Errorf("%w: 未知的答复 %s", admission.ErrInvalidTransition, req.Decision)
	}

	var (
		app     *model.Application
		offer   *model.AdmissionOffer
		handled bool
	)
	err := retryOnConflict(func() error {
		var err error
		handled = false
		if app, err = loadApplication(ctx, s.repo, s.logger, applicationID, callerID); err != nil {
			return err
		}
		if offer, err = findOffer(ctx, s.repo, s.logger, applicationID); err != nil {
			return err
		}

		// 重复答复视为成功
		if app.Status == appTarget || (appTarget == admission.StatusOfferAccepted && admission.IsPastAdmitted(app.Status)) {
			handled = true
			return nil
		}
		if app.Status != admission.StatusAdmitted {
			return admission.Validate(app.Status, appTarget)
		}
		if offer == nil {
			return ErrOfferNotFound
		}

		now := s.st.now()
		switch offer.Status {
		case model.OfferPending:
			offer.Status = offerTarget
			if offerTarget == model.OfferAccepted {
				offer.AcceptedAt = &now
			} else {
				offer.RejectedAt = &now
			}
			offer.UpdatedBy = &callerID
			app.UpdatedBy = &callerID
			return runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
				if err := txRepo.Offer.Transition(ctx, offer, model.OfferPending); err != nil {
					return err
				}
				return txRepo.Application.UpdateStatus(ctx, app, appTarget)
			})
		case offerTarget:
			// 通知已翻转而申请未翻转：补齐申请状态
			s.logger.Warn("修复半完成的录取答复",
				zap.String("application_id", applicationID),
				zap.String("offer_status", string(offer.Status)),
			)
			app.UpdatedBy = &callerID
			return s.repo.Application.UpdateStatus(ctx, app, appTarget)
		default:
			return fmt.Errorf("%w: 录取通知状态为 %s", admission.ErrInvalidTransition, offer.Status)
		}
	})
	if err != nil {
		if !isBusinessError(err) {
			s.logger.Error("答复录取通知失败", zap.String("application_id", applicationID), zap.Error(err))
		}
		return nil, err
	}

	if !handled {
		s.logger.Info("录取通知已答复",
			zap.String("application_id", applicationID),
			zap.String("decision", req.Decision),
		)
	}

	result := &dto.OfferResult{
		Offer:             toOfferResponse(offer, s.calc),
		ApplicationStatus: string(app.Status),
	}
	result.AlreadyHandled = handled
	return result, nil
}

// ────────────────────── GetOffer / GetQuote ──────────────────────

func (s *offerService) GetOffer(ctx context.Context, applicationID, callerID, role string) (*dto.OfferResponse, error) {
	owner := callerID
	if isStaff(role) {
		owner = ""
	}
	if _, err := loadApplication(ctx, s.repo, s.logger, applicationID, owner); err != nil {
		return nil, err
	}
	offer, err := findOffer(ctx, s.repo, s.logger, applicationID)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, ErrOfferNotFound
	}
	return toOfferResponse(offer, s.calc), nil
}

func (s *offerService) GetQuote(ctx context.Context, applicationID string, req *dto.QuoteRequest, callerID, role string) (*dto.QuoteResponse, error) {
	owner := callerID
	if isStaff(role) {
		owner = ""
	}
	if _, err := loadApplication(ctx, s.repo, s.logger, applicationID, owner); err != nil {
		return nil, err
	}
	offer, err := findOffer(ctx, s.repo, s.logger, applicationID)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, ErrOfferNotFound
	}

	plan := tuition.Plan(req.Plan)
	if offer.OfferType == model.OfferTypeFull && plan == tuition.PlanDeposit {
		return nil, ErrPaymentPlanNotAllowed
	}
	q, err := s.calc.Quote(tuition.QuoteInput{
		TuitionFee:     offer.TuitionFee,
		DiscountAmount: offer.DiscountAmount,
		OfferCreatedAt: offer.CreatedAt,
		Now:            s.st.now(),
		Plan:           plan,
	})
	if err != nil {
		return nil, err
	}

	return &dto.QuoteResponse{
		Plan:              string(q.Plan),
		Amount:            q.Amount.StringFixed(2),
		OriginalFee:       q.OriginalFee.StringFixed(2),
		DiscountApplied:   q.DiscountApplied.StringFixed(2),
		Deposit:           q.Deposit.StringFixed(2),
		Currency:          offer.Currency,
		EarlyWindowOpen:   q.EarlyWindowOpen,
		EarlyWindowEndsAt: formatTime(q.EarlyWindowEndsAt),
	}, nil
}

// ────────────────────── RegenerateOfferLetter ──────────────────────

func (s *offerService) RegenerateOfferLetter(ctx context.Context, applicationID, callerID string) (*dto.DocumentResult, error) {
	app, err := loadApplication(ctx, s.repo, s.logger, applicationID, "")
	if err != nil {
		return nil, err
	}
	offer, err := findOffer(ctx, s.repo, s.logger, applicationID)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, ErrOfferNotFound
	}

	url, err := s.generateLetter(ctx, app, offer, false)
	if err != nil {
		return nil, err
	}

	s.logger.Info("录取通知书已重新生成",
		zap.String("application_id", applicationID),
		zap.String("operator", callerID),
	)
	return &dto.DocumentResult{
		ApplicationID: applicationID,
		Kind:          string(gateway.DocOfferLetter),
		URL:           url,
	}, nil
}

// generateLetter 生成录取通知书并写回通知的 document_url
func (s *offerService) generateLetter(ctx context.Context, app *model.Application, offer *model.AdmissionOffer, record bool) (string, error) {
	programme, err := programmeOf(ctx, s.repo, app)
	if err != nil {
		s.logger.Warn("查询专业失败，通知书缺少专业信息", zap.String("application_id", app.ApplicationID), zap.Error(err))
	}
	url, err := s.effects.requestDocument(ctx, gateway.DocOfferLetter, app.ApplicationID, letterData(app, programme, offer), record)
	if err != nil {
		return "", err
	}
	if err := s.repo.Offer.SetDocumentURL(ctx, offer.OfferID, url); err != nil {
		s.logger.Error("保存录取通知书地址失败", zap.String("offer_id", offer.OfferID), zap.Error(err))
		return "", fmt.Errorf("%w: 保存文档地址失败: %v", ErrSideEffectFailed, err)
	}
	offer.DocumentURL = &url
	return url, nil
}

func offerPayload(offer *model.AdmissionOffer) map[string]interface{} {
	return map[string]interface{}{
		"offer_id":         offer.OfferID,
		"tuition_fee":      offer.TuitionFee.StringFixed(2),
		"currency":         offer.Currency,
		"payment_deadline": offer.PaymentDeadline.Format(dateLayout),
	}
}
