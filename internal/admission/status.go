// Package admission 定义申请（Application）状态机。
//
// 状态流转：
//
//	DRAFT ─► SUBMITTED ─► UNDER_REVIEW ◄─► DOCS_REQUIRED
//	              │             │                │
//	              └─────────────┴───► ADMITTED ◄─┘      （或 REJECTED）
//	                                     │
//	                        OFFER_ACCEPTED / OFFER_REJECTED
//	                              │
//	                      PAYMENT_SUBMITTED ─► ENROLLED
//
// 另有“快进”：人工签发录取通知时，若干前置状态直接进入 ADMITTED。
// REJECTED、OFFER_REJECTED、ENROLLED 为终态。
package admission

import (
	"errors"
	"fmt"
)

// Status 申请状态，与数据库 applications.status 取值一致
type Status string

const (
	StatusDraft            Status = "DRAFT"
	StatusSubmitted        Status = "SUBMITTED"
	StatusUnderReview      Status = "UNDER_REVIEW"
	StatusDocsRequired     Status = "DOCS_REQUIRED"
	StatusAdmitted         Status = "ADMITTED"
	StatusRejected         Status = "REJECTED"
	StatusOfferAccepted    Status = "OFFER_ACCEPTED"
	StatusOfferRejected    Status = "OFFER_REJECTED"
	StatusPaymentSubmitted Status = "PAYMENT_SUBMITTED"
	StatusEnrolled         Status = "ENROLLED"
)

// ErrInvalidTransition 状态流转不在合法边集合内
var ErrInvalidTransition = errors.New("非法的申请状态流转")

// TransitionError 携带具体的起止状态，errors.Is 可匹配 ErrInvalidTransition
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s → %s", ErrInvalidTransition.Error(), e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// transitions 常规合法边
var transitions = map[Status][]Status{
	StatusDraft:            {StatusSubmitted},
	StatusSubmitted:        {StatusUnderReview, StatusAdmitted, StatusRejected},
	StatusUnderReview:      {StatusDocsRequired, StatusAdmitted, StatusRejected},
	StatusDocsRequired:     {StatusUnderReview, StatusAdmitted, StatusRejected},
	StatusAdmitted:         {StatusOfferAccepted, StatusOfferRejected},
	StatusOfferAccepted:    {StatusPaymentSubmitted},
	StatusPaymentSubmitted: {StatusEnrolled},
}

// fastForwardSources 人工签发录取通知时可直接快进到 ADMITTED 的状态
var fastForwardSources = map[Status]bool{
	StatusDraft:            true,
	StatusSubmitted:        true,
	StatusUnderReview:      true,
	StatusRejected:         true,
	StatusDocsRequired:     true,
	StatusOfferAccepted:    true,
	StatusPaymentSubmitted: true,
}

var terminal = map[Status]bool{
	StatusRejected:      true,
	StatusOfferRejected: true,
	StatusEnrolled:      true,
}

// ParseStatus 将字符串转换为 Status，未知取值返回错误
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusDocsRequired, StatusAdmitted,
		StatusRejected, StatusOfferAccepted, StatusOfferRejected, StatusPaymentSubmitted, StatusEnrolled:
		return st, nil
	}
	return "", fmt.Errorf("未知的申请状态 %q", s)
}

// CanTransition 判断常规流转 from → to 是否合法
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Validate 常规流转校验，不合法时返回 *TransitionError
func Validate(from, to Status) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// CanFastForward 人工签发录取通知时 from 是否可快进到 ADMITTED
func CanFastForward(from Status) bool {
	return fastForwardSources[from]
}

// ValidateFastForward 快进校验；已处于 ADMITTED 视为合法（无需变更）
func ValidateFastForward(from Status) error {
	if from == StatusAdmitted || CanFastForward(from) {
		return nil
	}
	return &TransitionError{From: from, To: StatusAdmitted}
}

// IsTerminal 是否为终态
func IsTerminal(s Status) bool {
	return terminal[s]
}

// IsPastAdmitted 申请人是否已对录取通知作出接受并进入后续流程
func IsPastAdmitted(s Status) bool {
	return s == StatusOfferAccepted || s == StatusPaymentSubmitted || s == StatusEnrolled
}

// ReviewTargets 审核人员可通过审核决定直接设置的目标状态
func ReviewTargets() []Status {
	return []Status{StatusUnderReview, StatusDocsRequired, StatusAdmitted, StatusRejected}
}
