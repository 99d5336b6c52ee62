package service

import (
	"errors"

	"admitflow/backend/internal/admission"
)

// ── 录取与注册流程业务错误 ──

var (
	// NotFound：记录不存在或不属于调用方
	ErrApplicationNotFound  = errors.New("申请不存在")
	ErrProgrammeNotFound    = errors.New("专业不存在")
	ErrOfferNotFound        = errors.New("录取通知不存在")
	ErrPaymentNotFound      = errors.New("缴费记录不存在")
	ErrStudentNotFound      = errors.New("学籍记录不存在")
	ErrNotificationNotFound = errors.New("通知不存在")

	ErrApplicationExists      = errors.New("该专业已有进行中的申请")
	ErrApplicationIncomplete  = errors.New("申请信息不完整")
	ErrApplicationNotEditable = errors.New("当前状态不允许修改申请信息")
	ErrApplicationHasPayments = errors.New("申请已有缴费记录，不能删除")
	ErrInvalidDocumentType    = errors.New("无效的材料类型")
	ErrDocumentsRequired      = errors.New("要求补交材料时必须指明材料类型")
	ErrReinstateNotConfirmed  = errors.New("申请已被拒绝，恢复录取需显式确认")
	ErrInvalidOfferTerms      = errors.New("录取通知条款无效")
	ErrNotEnrolled            = errors.New("申请尚未完成注册")

	// AlreadyHandled：幂等短路，调用方按成功处理
	ErrAlreadyHandled = errors.New("请求已处理")

	ErrPaymentFailed          = errors.New("支付失败")
	ErrPaymentAmountMismatch  = errors.New("缴费金额与应缴金额不符")
	ErrPaymentPlanNotAllowed  = errors.New("该录取通知不支持此缴费方式")
	ErrPaymentInProgress      = errors.New("相同请求正在处理中")
	ErrPaymentNotCompleted    = errors.New("缴费尚未确认到账")
	ErrIdempotencyKeyRequired = errors.New("缺少幂等键")
	ErrIdempotencyKeyReused   = errors.New("幂等键已用于其他请求")

	// SideEffectFailed：文档/通知失败，不回滚触发它的状态变更
	ErrSideEffectFailed = errors.New("文档或通知处理失败")

	ErrExportInvalidRange = errors.New("导出时间范围无效")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// businessErrors 可预期的业务错误，不按系统错误记录日志
var businessErrors = []error{
	admission.ErrInvalidTransition,
	ErrApplicationNotFound, ErrProgrammeNotFound, ErrOfferNotFound, ErrPaymentNotFound,
	ErrStudentNotFound, ErrNotificationNotFound,
	ErrApplicationExists, ErrApplicationIncomplete, ErrApplicationNotEditable, ErrApplicationHasPayments,
	ErrInvalidDocumentType, ErrDocumentsRequired, ErrReinstateNotConfirmed, ErrInvalidOfferTerms,
	ErrNotEnrolled, ErrAlreadyHandled,
	ErrPaymentFailed, ErrPaymentAmountMismatch, ErrPaymentPlanNotAllowed, ErrPaymentInProgress,
	ErrPaymentNotCompleted, ErrIdempotencyKeyRequired, ErrIdempotencyKeyReused,
	ErrSideEffectFailed,
}

func isBusinessError(err error) bool {
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
