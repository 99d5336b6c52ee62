package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"admitflow/backend/internal/admission"
	"admitflow/backend/internal/dto"
	"admitflow/backend/internal/gateway"
	"admitflow/backend/internal/model"
	"admitflow/backend/internal/repository"
	pkgerrors "admitflow/backend/pkg/errors"
)

// ApplicationService 入学申请业务接口
type ApplicationService interface {
	Create(ctx context.Context, req *dto.CreateApplicationRequest, callerID string) (*dto.ApplicationResponse, error)
	Get(ctx context.Context, id, callerID, role string) (*dto.ApplicationResponse, error)
	List(ctx context.Context, req *dto.ApplicationListRequest, callerID, role string) ([]dto.ApplicationResponse, int64, error)
	UpdateDraft(ctx context.Context, id string, req *dto.UpdateDraftRequest, callerID string) (*dto.ApplicationResponse, error)
	Submit(ctx context.Context, id, callerID string) (*dto.ApplicationActionResult, error)
	ReviewDecision(ctx context.Context, id string, req *dto.ReviewDecisionRequest, callerID string) (*dto.ApplicationActionResult, error)
	ResubmitDocuments(ctx context.Context, id, callerID string) (*dto.ApplicationActionResult, error)
	UpdateInternalNotes(ctx context.Context, id string, req *dto.UpdateNotesRequest, callerID string) (*dto.ApplicationResponse, error)
	Delete(ctx context.Context, id, callerID string) error
}

type applicationService struct {
	repo     *repository.Repository
	offer    OfferService
	effects  *sideEffects
	validate *validator.Validate
	logger   *zap.Logger
}

// NewApplicationService 创建 ApplicationService 实例
func NewApplicationService(repo *repository.Repository, offer OfferService, effects *sideEffects, logger *zap.Logger) ApplicationService {
	return &applicationService{
		repo:     repo,
		offer:    offer,
		effects:  effects,
		validate: validator.New(),
		logger:   logger,
	}
}

// loadApplication 查询申请；ownerID 非空时只允许本人访问，他人的申请视为不存在
func loadApplication(ctx context.Context, repo *repository.Repository, logger *zap.Logger, id, ownerID string) (*model.Application, error) {
	app, err := repo.Application.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		logger.Error("查询申请失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if ownerID != "" && app.ApplicantID != ownerID {
		return nil, ErrApplicationNotFound
	}
	return app, nil
}

// ────────────────────── Create ──────────────────────

func (s *applicationService) Create(ctx context.Context, req *dto.CreateApplicationRequest, callerID string) (*dto.ApplicationResponse, error) {
	programme, err := s.repo.Programme.GetByID(ctx, req.ProgrammeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProgrammeNotFound
		}
		s.logger.Error("查询专业失败", zap.String("programme_id", req.ProgrammeID), zap.Error(err))
		return nil, err
	}

	if _, err := s.repo.Application.GetActive(ctx, callerID, programme.ProgrammeID); err == nil {
		return nil, ErrApplicationExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询进行中申请失败", zap.Error(err))
		return nil, err
	}

	app := &model.Application{
		ApplicantID:        callerID,
		ProgrammeID:        programme.ProgrammeID,
		Status:             admission.StatusDraft,
		RequestedDocuments: []string{},
	}
	app.CreatedBy = &callerID
	app.UpdatedBy = &callerID
	app.Version = 1

	if err := s.repo.Application.Create(ctx, app); err != nil {
		// 并发创建由部分唯一索引兜底
		if repository.IsUniqueViolation(err, "uq_applications_active") {
			return nil, ErrApplicationExists
		}
		s.logger.Error("创建申请失败", zap.Error(err))
		return nil, err
	}
	app.Programme = programme

	s.logger.Info("申请已创建",
		zap.String("application_id", app.ApplicationID),
		zap.String("programme_id", programme.ProgrammeID),
	)
	return toApplicationResponse(app, false), nil
}

// ────────────────────── Get / List ──────────────────────

func (s *applicationService) Get(ctx context.Context, id, callerID, role string) (*dto.ApplicationResponse, error) {
	owner := callerID
	if isStaff(role) {
		owner = ""
	}
	app, err := loadApplication(ctx, s.repo, s.logger, id, owner)
	if err != nil {
		return nil, err
	}
	return toApplicationResponse(app, isStaff(role)), nil
}

func (s *applicationService) List(ctx context.Context, req *dto.ApplicationListRequest, callerID, role string) ([]dto.ApplicationResponse, int64, error) {
	filter := repository.ApplicationFilter{
		ProgrammeID: req.ProgrammeID,
		Offset:      req.GetOffset(),
		Limit:       req.GetPageSize(),
	}
	if req.Status != "" {
		st, err := admission.ParseStatus(req.Status)
		if err != nil {
			return nil, 0, err
		}
		filter.Status = st
	}
	// 非工作人员只能看到自己的申请
	if !isStaff(role) {
		filter.ApplicantID = callerID
	}

	apps, total, err := s.repo.Application.List(ctx, filter)
	if err != nil {
		s.logger.Error("查询申请列表失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.ApplicationResponse, 0, len(apps))
	for i := range apps {
		result = append(result, *toApplicationResponse(&apps[i], isStaff(role)))
	}
	return result, total, nil
}

// ────────────────────── UpdateDraft ──────────────────────

func (s *applicationService) UpdateDraft(ctx context.Context, id string, req *dto.UpdateDraftRequest, callerID string) (*dto.ApplicationResponse, error) {
	app, err := loadApplication(ctx, s.repo, s.logger, id, callerID)
	if err != nil {
		return nil, err
	}
	if app.Status != admission.StatusDraft && app.Status != admission.StatusDocsRequired {
		return nil, ErrApplicationNotEditable
	}

	if req.PersonalInfo != nil {
		app.PersonalInfo = datatypes.NewJSONType(*req.PersonalInfo)
	}
	if req.ContactDetails != nil {
		app.ContactDetails = datatypes.NewJSONType(*req.ContactDetails)
	}
	app.UpdatedBy = &callerID

	if err := s.repo.Application.Update(ctx, app); err != nil {
		s.logger.Error("保存申请草稿失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toApplicationResponse(app, false), nil
}

// ────────────────────── Submit ──────────────────────

func (s *applicationService) Submit(ctx context.Context, id, callerID string) (*dto.ApplicationActionResult, error) {
	app, err := loadApplication(ctx, s.repo, s.logger, id, callerID)
	if err != nil {
		return nil, err
	}

	result := &dto.ApplicationActionResult{}
	if app.Status == admission.StatusSubmitted {
		result.AlreadyHandled = true
		result.Application = toApplicationResponse(app, false)
		return result, nil
	}
	if err := admission.Validate(app.Status, admission.StatusSubmitted); err != nil {
		return nil, err
	}
	if err := s.checkComplete(app); err != nil {
		return nil, err
	}

	now := s.effects.st.now()
	app.Status = admission.StatusSubmitted
	app.SubmittedAt = &now
	app.UpdatedBy = &callerID
	if err := s.repo.Application.Update(ctx, app); err != nil {
		s.logger.Error("提交申请失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	s.logger.Info("申请已提交", zap.String("application_id", id))
	result.Application = toApplicationResponse(app, false)
	return result, nil
}

// checkComplete 提交前校验个人信息与联系方式
func (s *applicationService) checkComplete(app *model.Application) error {
	info := app.PersonalInfo.Data()
	if err := s.validate.Struct(&info); err != nil {
		return fmt.Errorf("%w: personal_info: %s", ErrApplicationIncomplete, fieldNames(err))
	}
	contact := app.ContactDetails.Data()
	if err := s.validate.Struct(&contact); err != nil {
		return fmt.Errorf("%w: contact_details: %s", ErrApplicationIncomplete, fieldNames(err))
	}
	return nil
}

func fieldNames(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		names = append(names, fe.Field())
	}
	return strings.Join(names, ", ")
}

// ────────────────────── ReviewDecision ──────────────────────

func (s *applicationService) ReviewDecision(ctx context.Context, id string, req *dto.ReviewDecisionRequest, callerID string) (*dto.ApplicationActionResult, error) {
	target, err := admission.ParseStatus(req.Status)
	if err != nil || !isReviewTarget(target) {
		return nil, fmt.Errorf("%w: 审核决定不能设置为 %s", admission.ErrInvalidTransition, req.Status)
	}

	// 审核通过且未录入学费：自动签发录取通知
	if target == admission.StatusAdmitted {
		return s.approve(ctx, id, callerID)
	}

	var (
		app    *model.Application
		result *dto.ApplicationActionResult
	)
	err = retryOnConflict(func() error {
		var err error
		app, result, err = s.applyReview(ctx, id, target, req, callerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if result.AlreadyHandled {
		return result, nil
	}

	s.logger.Info("审核决定已生效",
		zap.String("application_id", id),
		zap.String("status", string(target)),
		zap.String("operator", callerID),
	)

	switch target {
	case admission.StatusDocsRequired:
		payload := map[string]interface{}{"requested_documents": []string(app.RequestedDocuments)}
		if app.DocumentRequestNote != nil {
			payload["note"] = *app.DocumentRequestNote
		}
		if err := s.effects.notify(ctx, gateway.NotifyDocumentsRequested, app, payload, true); err != nil {
			result.Warn(err.Error())
		}
	case admission.StatusRejected:
		var payload map[string]interface{}
		if app.RejectionReason != nil {
			payload = map[string]interface{}{"note": *app.RejectionReason}
		}
		if err := s.effects.notify(ctx, gateway.NotifyApplicationRejected, app, payload, true); err != nil {
			result.Warn(err.Error())
		}
	}

	result.Application = toApplicationResponse(app, true)
	return result, nil
}

func isReviewTarget(st admission.Status) bool {
	for _, t := range admission.ReviewTargets() {
		if t == st {
			return true
		}
	}
	return false
}

// applyReview 读取最新申请并写入审核结果；版本冲突时由调用方重试
func (s *applicationService) applyReview(ctx context.Context, id string, target admission.Status, req *dto.ReviewDecisionRequest, callerID string) (*model.Application, *dto.ApplicationActionResult, error) {
	app, err := loadApplication(ctx, s.repo, s.logger, id, "")
	if err != nil {
		return nil, nil, err
	}

	result := &dto.ApplicationActionResult{}
	if app.Status == target {
		result.AlreadyHandled = true
		result.Application = toApplicationResponse(app, true)
		return app, result, nil
	}
	if err := admission.Validate(app.Status, target); err != nil {
		return nil, nil, err
	}

	switch target {
	case admission.StatusDocsRequired:
		if len(req.RequestedDocuments) == 0 {
			return nil, nil, ErrDocumentsRequired
		}
		docs := make([]string, 0, len(req.RequestedDocuments))
		seen := make(map[string]bool, len(req.RequestedDocuments))
		for _, d := range req.RequestedDocuments {
			if !model.DocumentType(d).IsValid() {
				return nil, nil, fmt.Errorf("%w: %s", ErrInvalidDocumentType, d)
			}
			if !seen[d] {
				seen[d] = true
				docs = append(docs, d)
			}
		}
		app.RequestedDocuments = docs
		app.DocumentRequestNote = req.Note
	case admission.StatusRejected:
		app.RejectionReason = req.Note
	}

	app.Status = target
	app.UpdatedBy = &callerID
	if err := s.repo.Application.Update(ctx, app); err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("更新审核状态失败", zap.String("id", id), zap.Error(err))
		}
		return nil, nil, err
	}
	return app, result, nil
}

func (s *applicationService) approve(ctx context.Context, id, callerID string) (*dto.ApplicationActionResult, error) {
	offerResult, err := s.offer.AutoIssueOnApproval(ctx, id, callerID)
	if err != nil {
		return nil, err
	}
	app, err := loadApplication(ctx, s.repo, s.logger, id, "")
	if err != nil {
		return nil, err
	}
	return &dto.ApplicationActionResult{
		Application: toApplicationResponse(app, true),
		Offer:       offerResult.Offer,
		Outcome:     offerResult.Outcome,
	}, nil
}

// ────────────────────── ResubmitDocuments ──────────────────────

func (s *applicationService) ResubmitDocuments(ctx context.Context, id, callerID string) (*dto.ApplicationActionResult, error) {
	app, err := loadApplication(ctx, s.repo, s.logger, id, callerID)
	if err != nil {
		return nil, err
	}

	result := &dto.ApplicationActionResult{}
	if app.Status == admission.StatusUnderReview {
		result.AlreadyHandled = true
		result.Application = toApplicationResponse(app, false)
		return result, nil
	}
	if app.Status != admission.StatusDocsRequired {
		return nil, &admission.TransitionError{From: app.Status, To: admission.StatusUnderReview}
	}

	app.Status = admission.StatusUnderReview
	app.RequestedDocuments = []string{}
	app.DocumentRequestNote = nil
	app.UpdatedBy = &callerID
	if err := s.repo.Application.Update(ctx, app); err != nil {
		s.logger.Error("重新提交材料失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	result.Application = toApplicationResponse(app, false)
	return result, nil
}

// ────────────────────── UpdateInternalNotes ──────────────────────

func (s *applicationService) UpdateInternalNotes(ctx context.Context, id string, req *dto.UpdateNotesRequest, callerID string) (*dto.ApplicationResponse, error) {
	var app *model.Application
	err := retryOnConflict(func() error {
		var err error
		if app, err = loadApplication(ctx, s.repo, s.logger, id, ""); err != nil {
			return err
		}
		app.InternalNotes = strPtr(strings.TrimSpace(req.InternalNotes))
		app.UpdatedBy = &callerID
		return s.repo.Application.Update(ctx, app)
	})
	if err != nil {
		if !errors.Is(err, ErrApplicationNotFound) {
			s.logger.Error("更新内部备注失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}
	return toApplicationResponse(app, true), nil
}

// ────────────────────── Delete ──────────────────────

// Delete 删除申请；缴费流水只追加，已有缴费的申请不能删除
func (s *applicationService) Delete(ctx context.Context, id, callerID string) error {
	payments, err := s.repo.Payment.ListByApplication(ctx, id)
	if err != nil {
		s.logger.Error("查询缴费记录失败", zap.String("id", id), zap.Error(err))
		return err
	}
	if len(payments) > 0 {
		return ErrApplicationHasPayments
	}
	if err := s.repo.Application.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return ErrApplicationNotFound
		case repository.IsForeignKeyViolation(err):
			// 检查之后并发写入了缴费或学籍
			return ErrApplicationHasPayments
		}
		s.logger.Error("删除申请失败", zap.String("id", id), zap.Error(err))
		return err
	}
	s.logger.Info("申请已删除", zap.String("application_id", id), zap.String("operator", callerID))
	return nil
}
