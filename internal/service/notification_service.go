package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"admitflow/backend/internal/dto"
	"admitflow/backend/internal/repository"
)

// NotificationService 站内通知业务接口
type NotificationService interface {
	List(ctx context.Context, req *dto.PaginationRequest, callerID string) ([]dto.NotificationResponse, int64, error)
	MarkRead(ctx context.Context, notificationID, callerID string) error
}

type notificationService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(repo *repository.Repository, logger *zap.Logger) NotificationService {
	return &notificationService{repo: repo, logger: logger}
}

func (s *notificationService) List(ctx context.Context, req *dto.PaginationRequest, callerID string) ([]dto.NotificationResponse, int64, error) {
	list, total, err := s.repo.Notification.ListByUser(ctx, callerID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询通知失败", zap.String("user_id", callerID), zap.Error(err))
		return nil, 0, err
	}
	result := make([]dto.NotificationResponse, 0, len(list))
	for i := range list {
		result = append(result, toNotificationResponse(&list[i]))
	}
	return result, total, nil
}

func (s *notificationService) MarkRead(ctx context.Context, notificationID, callerID string) error {
	if err := s.repo.Notification.MarkRead(ctx, notificationID, callerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		s.logger.Error("标记通知已读失败", zap.String("id", notificationID), zap.Error(err))
		return err
	}
	return nil
}
