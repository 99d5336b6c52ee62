package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"admitflow/backend/internal/dto"
	"admitflow/backend/internal/gateway"
	"admitflow/backend/internal/model"
	"admitflow/backend/internal/repository"
)

// RetryStats 一轮补偿任务的执行统计
type RetryStats struct {
	Processed int
	Succeeded int
	Failed    int
	Abandoned int
}

// SideEffectService 文档/通知/注册补偿任务
type SideEffectService interface {
	// RetryDue 执行到期的补偿任务，超过最大次数的任务标记为 ABANDONED
	RetryDue(ctx context.Context, limit int) (*RetryStats, error)
	ListByApplication(ctx context.Context, applicationID string) ([]dto.SideEffectJobResponse, error)
}

type sideEffectService struct {
	repo       *repository.Repository
	gw         gateway.Gateway
	offer      OfferService
	enrollment EnrollmentService
	st         settings
	logger     *zap.Logger
}

// NewSideEffectService 创建 SideEffectService 实例
func NewSideEffectService(repo *repository.Repository, gw gateway.Gateway, offer OfferService, enrollment EnrollmentService, st settings, logger *zap.Logger) SideEffectService {
	return &sideEffectService{
		repo:       repo,
		gw:         gw,
		offer:      offer,
		enrollment: enrollment,
		st:         st,
		logger:     logger,
	}
}

// ────────────────────── RetryDue ──────────────────────

func (s *sideEffectService) RetryDue(ctx context.Context, limit int) (*RetryStats, error) {
	if limit <= 0 {
		limit = 50
	}
	jobs, err := s.repo.SideEffectJob.ListDue(ctx, s.st.now(), limit)
	if err != nil {
		s.logger.Error("查询到期补偿任务失败", zap.Error(err))
		return nil, err
	}

	stats := &RetryStats{}
	for i := range jobs {
		if ctx.Err() != nil {
			break
		}
		job := &jobs[i]
		stats.Processed++

		runErr := s.run(ctx, job)
		job.Attempts++
		switch {
		case runErr == nil:
			job.Status = model.SideEffectDone
			job.LastError = ""
			stats.Succeeded++
		case job.Attempts >= s.st.maxAttempts || permanent(runErr):
			job.Status = model.SideEffectAbandoned
			job.LastError = runErr.Error()
			stats.Abandoned++
			s.logger.Warn("补偿任务已放弃",
				zap.String("job_id", job.JobID),
				zap.String("application_id", job.ApplicationID),
				zap.String("name", job.Name),
				zap.Int("attempts", job.Attempts),
				zap.Error(runErr),
			)
		default:
			job.LastError = runErr.Error()
			job.NextAttemptAt = s.st.now().Add(retryDelay(job.Attempts))
			stats.Failed++
		}

		if err := s.repo.SideEffectJob.RecordAttempt(ctx, job); err != nil {
			s.logger.Error("写回补偿任务结果失败", zap.String("job_id", job.JobID), zap.Error(err))
		}
	}

	if stats.Processed > 0 {
		s.logger.Info("补偿任务执行完成",
			zap.Int("processed", stats.Processed),
			zap.Int("succeeded", stats.Succeeded),
			zap.Int("failed", stats.Failed),
			zap.Int("abandoned", stats.Abandoned),
		)
	}
	return stats, nil
}

// run 按任务类别重新执行；文档从当前状态重新生成，不使用任务中保存的旧数据
func (s *sideEffectService) run(ctx context.Context, job *model.SideEffectJob) error {
	switch job.Kind {
	case model.SideEffectDocument:
		switch gateway.DocumentKind(job.Name) {
		case gateway.DocOfferLetter:
			_, err := s.offer.RegenerateOfferLetter(ctx, job.ApplicationID, "")
			return err
		case gateway.DocAdmissionLetter:
			_, err := s.enrollment.RegenerateAdmissionLetter(ctx, job.ApplicationID, "")
			return err
		}
	case model.SideEffectNotification:
		recipient, _ := job.Payload["recipient_id"].(string)
		payload, _ := job.Payload["payload"].(map[string]interface{})
		return s.gw.SendNotification(ctx, gateway.Notification{
			Kind:          gateway.NotificationKind(job.Name),
			ApplicationID: job.ApplicationID,
			RecipientID:   recipient,
			Payload:       payload,
		})
	case model.SideEffectEnrollment:
		_, err := s.enrollment.Enroll(ctx, job.ApplicationID, "")
		return err
	}
	return fmt.Errorf("%w: 未知的补偿任务 %s/%s", errUnknownJob, job.Kind, job.Name)
}

var errUnknownJob = errors.New("无法执行的补偿任务")

// permanent 重试也不会成功的错误（记录已删除、状态已不允许等）
func permanent(err error) bool {
	if errors.Is(err, errUnknownJob) || errors.Is(err, gateway.ErrUnknownNotification) {
		return true
	}
	return isBusinessError(err) && !errors.Is(err, ErrSideEffectFailed)
}

// ────────────────────── ListByApplication ──────────────────────

func (s *sideEffectService) ListByApplication(ctx context.Context, applicationID string) ([]dto.SideEffectJobResponse, error) {
	if _, err := loadApplication(ctx, s.repo, s.logger, applicationID, ""); err != nil {
		return nil, err
	}
	jobs, err := s.repo.SideEffectJob.ListByApplication(ctx, applicationID)
	if err != nil {
		s.logger.Error("查询补偿任务失败", zap.String("application_id", applicationID), zap.Error(err))
		return nil, err
	}
	result := make([]dto.SideEffectJobResponse, 0, len(jobs))
	for i := range jobs {
		result = append(result, toSideEffectJobResponse(&jobs[i]))
	}
	return result, nil
}
