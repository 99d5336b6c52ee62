package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"admitflow/backend/internal/admission"
	"admitflow/backend/internal/dto"
	"admitflow/backend/internal/gateway"
	"admitflow/backend/internal/model"
	"admitflow/backend/internal/repository"
)

// 学号冲突时重新生成的次数上限
const studentIDAttempts = 3

// EnrollmentService 缴费确认后的自动注册
type EnrollmentService interface {
	// Enroll 学籍 upsert → 档案提升 → 通知 PAID → 申请 ENROLLED（最后写入），再尽力生成录取书与确认通知
	Enroll(ctx context.Context, applicationID, callerID string) (*dto.EnrollmentResult, error)
	GetStudent(ctx context.Context, applicationID, callerID, role string) (*dto.StudentResponse, error)
	RegenerateAdmissionLetter(ctx context.Context, applicationID, callerID string) (*dto.DocumentResult, error)
}

type enrollmentService struct {
	repo    *repository.Repository
	effects *sideEffects
	st      settings
	logger  *zap.Logger
}

// NewEnrollmentService 创建 EnrollmentService 实例
func NewEnrollmentService(repo *repository.Repository, effects *sideEffects, st settings, logger *zap.Logger) EnrollmentService {
	return &enrollmentService{repo: repo, effects: effects, st: st, logger: logger}
}

// ────────────────────── Enroll ──────────────────────

func (s *enrollmentService) Enroll(ctx context.Context, applicationID, callerID string) (*dto.EnrollmentResult, error) {
	var (
		app     *model.Application
		student *model.Student
		payment *model.TuitionPayment
	)
	err := retryOnConflict(func() error {
		var err error
		if app, err = loadApplication(ctx, s.repo, s.logger, applicationID, ""); err != nil {
			return err
		}
		if app.Status == admission.StatusEnrolled {
			return ErrAlreadyHandled
		}
		if app.Status != admission.StatusPaymentSubmitted {
			return admission.Validate(app.Status, admission.StatusEnrolled)
		}

		payment, err = s.repo.Payment.GetCompletedByApplication(ctx, applicationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotCompleted
			}
			return err
		}
		student, err = s.enroll(ctx, app, callerID)
		return err
	})

	result := &dto.EnrollmentResult{}
	if errors.Is(err, ErrAlreadyHandled) {
		existing, err := s.repo.Student.GetByApplication(ctx, applicationID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		result.AlreadyHandled = true
		result.Student = toStudentResponse(existing)
		result.ApplicationStatus = string(app.Status)
		return result, nil
	}
	if err != nil {
		if !isBusinessError(err) {
			s.logger.Error("注册失败", zap.String("application_id", applicationID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("申请人已注册为学生",
		zap.String("application_id", applicationID),
		zap.String("student_id", student.StudentID),
	)

	// 以下为派生产物，失败只记补偿任务
	if _, err := s.generateLetter(ctx, app, student, true); err != nil {
		result.Warn(err.Error())
	}
	confirm := map[string]interface{}{
		"amount":                payment.Amount.StringFixed(2),
		"currency":              payment.Currency,
		"transaction_reference": payment.TransactionReference,
		"student_id":            student.StudentID,
		"institutional_email":   student.InstitutionalEmail,
	}
	if err := s.effects.notify(ctx, gateway.NotifyPaymentConfirmation, app, confirm, true); err != nil {
		result.Warn(err.Error())
	}

	result.Student = toStudentResponse(student)
	result.ApplicationStatus = string(app.Status)
	return result, nil
}

// enroll 单事务写入注册的持久状态；生成的学号与他人冲突时换号重试
func (s *enrollmentService) enroll(ctx context.Context, app *model.Application, callerID string) (*model.Student, error) {
	programme, err := programmeOf(ctx, s.repo, app)
	if err != nil {
		return nil, err
	}
	profile, err := s.repo.Profile.GetByID(ctx, app.ApplicantID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	offer, err := s.repo.Offer.GetByApplication(ctx, app.ApplicationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}
	if offer.Status != model.OfferAccepted && offer.Status != model.OfferPaid {
		return nil, fmt.Errorf("%w: 录取通知状态为 %s", admission.ErrInvalidTransition, offer.Status)
	}

	studentID, generated, err := s.resolveStudentID(ctx, app, profile)
	if err != nil {
		return nil, err
	}

	start := s.startDate(programme)
	years := programme.DurationYears
	if years <= 0 {
		years = 3
	}
	contact := app.ContactDetails.Data()
	personalEmail := contact.Email
	if personalEmail == "" && profile != nil {
		personalEmail = profile.Email
	}

	for attempt := 1; ; attempt++ {
		student := &model.Student{
			UserID:                 app.ApplicantID,
			StudentID:              studentID,
			ApplicationID:          app.ApplicationID,
			ProgrammeID:            app.ProgrammeID,
			InstitutionalEmail:     s.institutionalEmail(studentID),
			PersonalEmail:          personalEmail,
			EnrollmentStatus:       model.EnrollmentActive,
			StartDate:              start,
			ExpectedGraduationDate: start.AddDate(years, 0, 0),
		}
		student.CreatedBy = strPtr(callerID)
		student.UpdatedBy = strPtr(callerID)

		err = s.persist(ctx, app, offer, student, profile, callerID)
		if err == nil {
			// upsert 命中已有学籍时学号保持原值，以库中记录为准
			if stored, getErr := s.repo.Student.GetByApplication(ctx, app.ApplicationID); getErr == nil {
				student = stored
			}
			return student, nil
		}
		if generated && attempt < studentIDAttempts && repository.IsUniqueViolation(err, "uq_profiles_student_id") {
			s.logger.Warn("学号冲突，重新生成", zap.String("student_id", studentID))
			studentID = s.generateStudentID()
			continue
		}
		return nil, err
	}
}

// persist 注册事务：申请状态最后写入，中途失败时申请停留在 PAYMENT_SUBMITTED 可重试
func (s *enrollmentService) persist(ctx context.Context, app *model.Application, offer *model.AdmissionOffer, student *model.Student, profile *model.Profile, callerID string) error {
	return runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if err := txRepo.Student.Upsert(ctx, student); err != nil {
			return err
		}

		promoted := &model.Profile{
			UserID:    app.ApplicantID,
			StudentID: &student.StudentID,
		}
		info := app.PersonalInfo.Data()
		promoted.FullName = info.FullName()
		promoted.Email = app.ContactDetails.Data().Email
		if profile != nil {
			promoted.FullName = profile.FullName
			promoted.Email = profile.Email
		}
		promoted.Version = 1
		promoted.UpdatedBy = strPtr(callerID)
		if err := txRepo.Profile.PromoteToStudent(ctx, promoted); err != nil {
			return err
		}

		if offer.Status != model.OfferPaid {
			paid := *offer
			now := s.st.now()
			url := gateway.DocumentURL(s.st.documentBaseURL, gateway.DocAdmissionLetter, app.ApplicationID)
			paid.Status = model.OfferPaid
			paid.PaidAt = &now
			paid.DocumentURL = &url
			paid.UpdatedBy = strPtr(callerID)
			if err := txRepo.Offer.Transition(ctx, &paid, model.OfferAccepted); err != nil {
				return err
			}
		}

		app.UpdatedBy = strPtr(callerID)
		return txRepo.Application.UpdateStatus(ctx, app, admission.StatusEnrolled)
	})
}

// resolveStudentID 优先沿用该用户已有的学号，否则生成新学号
func (s *enrollmentService) resolveStudentID(ctx context.Context, app *model.Application, profile *model.Profile) (string, bool, error) {
	existing, err := s.repo.Student.GetByApplication(ctx, app.ApplicationID)
	if err == nil {
		return existing.StudentID, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, err
	}
	if profile != nil && profile.StudentID != nil && *profile.StudentID != "" {
		return *profile.StudentID, false, nil
	}
	latest, err := s.repo.Student.GetLatestByUser(ctx, app.ApplicantID)
	if err == nil {
		return latest.StudentID, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, err
	}
	return s.generateStudentID(), true, nil
}

// generateStudentID 入学年份 + 6 位随机数，如 2026004211
func (s *enrollmentService) generateStudentID() string {
	return fmt.Sprintf("%d%06d", s.st.now().Year(), rand.Intn(1_000_000))
}

func (s *enrollmentService) institutionalEmail(studentID string) string {
	return "s" + strings.ToLower(studentID) + "@" + s.st.emailDomain
}

func (s *enrollmentService) startDate(programme *model.Programme) time.Time {
	if programme.IntakeStart != nil {
		return programme.IntakeStart.UTC().Truncate(24 * time.Hour)
	}
	return s.st.now().UTC().Truncate(24 * time.Hour)
}

// ────────────────────── GetStudent ──────────────────────

func (s *enrollmentService) GetStudent(ctx context.Context, applicationID, callerID, role string) (*dto.StudentResponse, error) {
	owner := callerID
	if isStaff(role) {
		owner = ""
	}
	if _, err := loadApplication(ctx, s.repo, s.logger, applicationID, owner); err != nil {
		return nil, err
	}
	student, err := s.repo.Student.GetByApplication(ctx, applicationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		s.logger.Error("查询学籍失败", zap.String("application_id", applicationID), zap.Error(err))
		return nil, err
	}
	return toStudentResponse(student), nil
}

// ────────────────────── RegenerateAdmissionLetter ──────────────────────

func (s *enrollmentService) RegenerateAdmissionLetter(ctx context.Context, applicationID, callerID string) (*dto.DocumentResult, error) {
	app, err := loadApplication(ctx, s.repo, s.logger, applicationID, "")
	if err != nil {
		return nil, err
	}
	if app.Status != admission.StatusEnrolled {
		return nil, ErrNotEnrolled
	}
	student, err := s.repo.Student.GetByApplication(ctx, applicationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}

	url, err := s.generateLetter(ctx, app, student, false)
	if err != nil {
		return nil, err
	}

	s.logger.Info("入学通知书已重新生成",
		zap.String("application_id", applicationID),
		zap.String("operator", callerID),
	)
	return &dto.DocumentResult{
		ApplicationID: applicationID,
		Kind:          string(gateway.DocAdmissionLetter),
		URL:           url,
	}, nil
}

func (s *enrollmentService) generateLetter(ctx context.Context, app *model.Application, student *model.Student, record bool) (string, error) {
	programme, err := programmeOf(ctx, s.repo, app)
	if err != nil {
		s.logger.Warn("查询专业失败，入学通知书缺少专业信息", zap.String("application_id", app.ApplicationID), zap.Error(err))
	}
	data := letterData(app, programme, nil)
	data["student_id"] = student.StudentID
	data["institutional_email"] = student.InstitutionalEmail
	data["start_date"] = student.StartDate.Format(dateLayout)
	data["expected_graduation_date"] = student.ExpectedGraduationDate.Format(dateLayout)
	return s.effects.requestDocument(ctx, gateway.DocAdmissionLetter, app.ApplicationID, data, record)
}
