package service

import (
	"time"

	"admitflow/backend/internal/dto"
	"admitflow/backend/internal/model"
	"admitflow/backend/internal/tuition"
)

// ── 模型 → 响应 DTO ──

const dateLayout = "2006-01-02"

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func isStaff(role string) bool {
	return role == string(model.RoleAdmin)
}

func toApplicationResponse(app *model.Application, staff bool) *dto.ApplicationResponse {
	docs := make([]string, 0, len(app.RequestedDocuments))
	docs = append(docs, app.RequestedDocuments...)

	resp := &dto.ApplicationResponse{
		ID:                  app.ApplicationID,
		ApplicantID:         app.ApplicantID,
		ProgrammeID:         app.ProgrammeID,
		Status:              string(app.Status),
		PersonalInfo:        app.PersonalInfo.Data(),
		ContactDetails:      app.ContactDetails.Data(),
		RequestedDocuments:  docs,
		DocumentRequestNote: app.DocumentRequestNote,
		RejectionReason:     app.RejectionReason,
		SubmittedAt:         formatTimePtr(app.SubmittedAt),
		Version:             app.Version,
		CreatedAt:           formatTime(app.CreatedAt),
		UpdatedAt:           formatTime(app.UpdatedAt),
	}
	if staff {
		resp.InternalNotes = app.InternalNotes
	}
	if app.Programme != nil {
		resp.Programme = &dto.ProgrammeBrief{
			ID:          app.Programme.ProgrammeID,
			Name:        app.Programme.Name,
			School:      app.Programme.School,
			DegreeLevel: string(app.Programme.DegreeLevel),
		}
	}
	return resp
}

func toOfferResponse(offer *model.AdmissionOffer, calc *tuition.Calculator) *dto.OfferResponse {
	if offer == nil {
		return nil
	}
	original := offer.OriginalFee()
	return &dto.OfferResponse{
		ID:                 offer.OfferID,
		ApplicationID:      offer.ApplicationID,
		TuitionFee:         offer.TuitionFee.StringFixed(2),
		DiscountAmount:     offer.DiscountAmount.StringFixed(2),
		OriginalFee:        original.StringFixed(2),
		Deposit:            calc.Deposit(original).StringFixed(2),
		Currency:           offer.Currency,
		PaymentDeadline:    formatTime(offer.PaymentDeadline),
		OfferType:          string(offer.OfferType),
		Status:             string(offer.Status),
		EarlyPaymentEndsAt: formatTime(calc.EarlyWindowEndsAt(offer.CreatedAt)),
		AcceptedAt:         formatTimePtr(offer.AcceptedAt),
		RejectedAt:         formatTimePtr(offer.RejectedAt),
		PaidAt:             formatTimePtr(offer.PaidAt),
		DocumentURL:        offer.DocumentURL,
		CreatedAt:          formatTime(offer.CreatedAt),
	}
}

func toPaymentResponse(p *model.TuitionPayment) *dto.PaymentResponse {
	if p == nil {
		return nil
	}
	resp := &dto.PaymentResponse{
		ID:                    p.PaymentID,
		OfferID:               p.OfferID,
		ApplicationID:         p.ApplicationID,
		Amount:                p.Amount.StringFixed(2),
		PaymentPlan:           string(p.PaymentPlan),
		Status:                string(p.Status),
		PaymentMethod:         string(p.PaymentMethod),
		TransactionReference:  p.TransactionReference,
		Provider:              p.Provider,
		ProviderTransactionID: p.ProviderTransactionID,
		Country:               p.Country,
		Currency:              p.Currency,
		FailureReason:         p.FailureReason,
		VerifiedAt:            formatTimePtr(p.VerifiedAt),
		CreatedAt:             formatTime(p.CreatedAt),
	}
	if len(p.FXMetadata) > 0 {
		resp.FXMetadata = map[string]interface{}(p.FXMetadata)
	}
	return resp
}

func toStudentResponse(st *model.Student) *dto.StudentResponse {
	if st == nil {
		return nil
	}
	return &dto.StudentResponse{
		ID:                     st.StudentRecordID,
		StudentID:              st.StudentID,
		UserID:                 st.UserID,
		ApplicationID:          st.ApplicationID,
		ProgrammeID:            st.ProgrammeID,
		InstitutionalEmail:     st.InstitutionalEmail,
		PersonalEmail:          st.PersonalEmail,
		EnrollmentStatus:       string(st.EnrollmentStatus),
		StartDate:              st.StartDate.Format(dateLayout),
		ExpectedGraduationDate: st.ExpectedGraduationDate.Format(dateLayout),
	}
}

func toSideEffectJobResponse(job *model.SideEffectJob) dto.SideEffectJobResponse {
	return dto.SideEffectJobResponse{
		ID:            job.JobID,
		Kind:          string(job.Kind),
		Name:          job.Name,
		Status:        string(job.Status),
		Attempts:      job.Attempts,
		LastError:     job.LastError,
		NextAttemptAt: formatTime(job.NextAttemptAt),
		CreatedAt:     formatTime(job.CreatedAt),
	}
}

func toNotificationResponse(n *model.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:          n.NotificationID,
		Type:        n.Type,
		Title:       n.Title,
		Content:     n.Content,
		IsRead:      n.IsRead,
		RelatedType: n.RelatedType,
		RelatedID:   n.RelatedID,
		CreatedAt:   formatTime(n.CreatedAt),
	}
}
