package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"admitflow/backend/internal/admission"
	"admitflow/backend/internal/gateway"
	"admitflow/backend/internal/model"
	"admitflow/backend/internal/payment"
	"admitflow/backend/internal/repository"
	pkgerrors "admitflow/backend/pkg/errors"
)

// 所有 mock 读取时返回副本，保证 CAS 写入的检查有意义

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

// ── Mock ProgrammeRepository ──

type mockProgrammeRepo struct {
	programmes map[string]*model.Programme
}

func newMockProgrammeRepo() *mockProgrammeRepo {
	return &mockProgrammeRepo{programmes: make(map[string]*model.Programme)}
}

func (m *mockProgrammeRepo) GetByID(_ context.Context, id string) (*model.Programme, error) {
	if p, ok := m.programmes[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock ProfileRepository ──

type mockProfileRepo struct {
	profiles    map[string]*model.Profile
	promoteErr  error
	promoteCall int
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{profiles: make(map[string]*model.Profile)}
}

func (m *mockProfileRepo) GetByID(_ context.Context, userID string) (*model.Profile, error) {
	if p, ok := m.profiles[userID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockProfileRepo) PromoteToStudent(_ context.Context, profile *model.Profile) error {
	m.promoteCall++
	if m.promoteErr != nil {
		return m.promoteErr
	}
	if profile.StudentID != nil {
		for uid, p := range m.profiles {
			if uid != profile.UserID && p.StudentID != nil && *p.StudentID == *profile.StudentID {
				return uniqueViolation("uq_profiles_student_id")
			}
		}
	}

	existing, ok := m.profiles[profile.UserID]
	if !ok {
		cp := *profile
		cp.Role = model.RoleStudent
		m.profiles[profile.UserID] = &cp
		return nil
	}
	if existing.Role == model.RoleApplicant {
		existing.Role = model.RoleStudent
	}
	if existing.StudentID == nil && profile.StudentID != nil {
		id := *profile.StudentID
		existing.StudentID = &id
	}
	existing.Version++
	return nil
}

// ── Mock ApplicationRepository ──

type mockApplicationRepo struct {
	apps map[string]*model.Application
	seq  int
	// statusErr 写入指定目标状态时返回的错误（模拟中途崩溃）
	statusErr map[admission.Status]error
	deleteErr error
}

func newMockApplicationRepo() *mockApplicationRepo {
	return &mockApplicationRepo{
		apps:      make(map[string]*model.Application),
		statusErr: make(map[admission.Status]error),
	}
}

func copyApp(a *model.Application) *model.Application {
	cp := *a
	cp.RequestedDocuments = append([]string(nil), a.RequestedDocuments...)
	cp.Programme = nil
	return &cp
}

func (m *mockApplicationRepo) Create(_ context.Context, app *model.Application) error {
	if app.ApplicationID == "" {
		m.seq++
		app.ApplicationID = fmt.Sprintf("app-%d", m.seq)
	}
	if app.Version == 0 {
		app.Version = 1
	}
	m.apps[app.ApplicationID] = copyApp(app)
	return nil
}

func (m *mockApplicationRepo) GetByID(_ context.Context, id string) (*model.Application, error) {
	if a, ok := m.apps[id]; ok {
		return copyApp(a), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockApplicationRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Application, error) {
	return m.GetByID(ctx, id)
}

func (m *mockApplicationRepo) GetActive(_ context.Context, applicantID, programmeID string) (*model.Application, error) {
	for _, a := range m.apps {
		if a.ApplicantID == applicantID && a.ProgrammeID == programmeID &&
			a.Status != admission.StatusRejected && a.Status != admission.StatusOfferRejected {
			return copyApp(a), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockApplicationRepo) List(_ context.Context, filter repository.ApplicationFilter) ([]model.Application, int64, error) {
	var all []model.Application
	for _, a := range m.apps {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.ProgrammeID != "" && a.ProgrammeID != filter.ProgrammeID {
			continue
		}
		if filter.ApplicantID != "" && a.ApplicantID != filter.ApplicantID {
			continue
		}
		all = append(all, *copyApp(a))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ApplicationID < all[j].ApplicationID })
	total := int64(len(all))
	if filter.Offset >= len(all) {
		return []model.Application{}, total, nil
	}
	end := len(all)
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	return all[filter.Offset:end], total, nil
}

func (m *mockApplicationRepo) Update(_ context.Context, app *model.Application) error {
	stored, ok := m.apps[app.ApplicationID]
	if !ok || stored.Version != app.Version {
		return pkgerrors.ErrOptimisticLock
	}
	app.Version++
	m.apps[app.ApplicationID] = copyApp(app)
	return nil
}

func (m *mockApplicationRepo) UpdateStatus(_ context.Context, app *model.Application, to admission.Status) error {
	if err := m.statusErr[to]; err != nil {
		return err
	}
	stored, ok := m.apps[app.ApplicationID]
	if !ok || stored.Status != app.Status || stored.Version != app.Version {
		return pkgerrors.ErrOptimisticLock
	}
	stored.Status = to
	stored.Version++
	stored.UpdatedBy = app.UpdatedBy
	app.Status = to
	app.Version = stored.Version
	return nil
}

func (m *mockApplicationRepo) Delete(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.apps[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.apps, id)
	return nil
}

// ── Mock OfferRepository ──

type mockOfferRepo struct {
	byApp map[string]*model.AdmissionOffer
	seq   int
	// upserts 记录 Upsert 调用次数
	upserts int
}

func newMockOfferRepo() *mockOfferRepo {
	return &mockOfferRepo{byApp: make(map[string]*model.AdmissionOffer)}
}

func (m *mockOfferRepo) GetByID(_ context.Context, id string) (*model.AdmissionOffer, error) {
	for _, o := range m.byApp {
		if o.OfferID == id {
			cp := *o
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOfferRepo) GetByApplication(_ context.Context, applicationID string) (*model.AdmissionOffer, error) {
	if o, ok := m.byApp[applicationID]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOfferRepo) Upsert(_ context.Context, offer *model.AdmissionOffer) error {
	m.upserts++
	if existing, ok := m.byApp[offer.ApplicationID]; ok {
		offer.OfferID = existing.OfferID
	} else {
		m.seq++
		offer.OfferID = fmt.Sprintf("offer-%d", m.seq)
	}
	cp := *offer
	m.byApp[offer.ApplicationID] = &cp
	return nil
}

func (m *mockOfferRepo) CreateIfAbsent(_ context.Context, offer *model.AdmissionOffer) (bool, error) {
	if _, ok := m.byApp[offer.ApplicationID]; ok {
		return false, nil
	}
	m.seq++
	offer.OfferID = fmt.Sprintf("offer-%d", m.seq)
	cp := *offer
	m.byApp[offer.ApplicationID] = &cp
	return true, nil
}

func (m *mockOfferRepo) Transition(_ context.Context, offer *model.AdmissionOffer, from model.OfferStatus) error {
	stored, ok := m.byApp[offer.ApplicationID]
	if !ok || stored.OfferID != offer.OfferID || stored.Status != from {
		return pkgerrors.ErrOptimisticLock
	}
	stored.Status = offer.Status
	stored.AcceptedAt = offer.AcceptedAt
	stored.RejectedAt = offer.RejectedAt
	stored.PaidAt = offer.PaidAt
	stored.DocumentURL = offer.DocumentURL
	stored.UpdatedBy = offer.UpdatedBy
	return nil
}

func (m *mockOfferRepo) SetDocumentURL(_ context.Context, offerID, url string) error {
	for _, o := range m.byApp {
		if o.OfferID == offerID {
			u := url
			o.DocumentURL = &u
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockOfferRepo) ListByIDs(_ context.Context, ids []string) ([]model.AdmissionOffer, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var result []model.AdmissionOffer
	for _, o := range m.byApp {
		if want[o.OfferID] {
			result = append(result, *o)
		}
	}
	return result, nil
}

// ── Mock PaymentRepository ──

type mockPaymentRepo struct {
	payments   []*model.TuitionPayment
	seq        int
	createErr  error
	chargedErr error
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{}
}

func (m *mockPaymentRepo) Create(_ context.Context, p *model.TuitionPayment) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.payments {
		if existing.IdempotencyKey == p.IdempotencyKey {
			return uniqueViolation("uq_tuition_payments_idempotency")
		}
		if p.Status == model.PaymentProcessing && existing.Status == model.PaymentProcessing &&
			existing.ApplicationID == p.ApplicationID {
			return uniqueViolation("uq_tuition_payments_in_flight")
		}
		if existing.TransactionReference == p.TransactionReference {
			return uniqueViolation("uq_tuition_payments_reference")
		}
	}
	m.seq++
	p.PaymentID = fmt.Sprintf("pay-%d", m.seq)
	cp := *p
	m.payments = append(m.payments, &cp)
	return nil
}

func (m *mockPaymentRepo) GetByID(_ context.Context, id string) (*model.TuitionPayment, error) {
	for _, p := range m.payments {
		if p.PaymentID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPaymentRepo) GetByIdempotencyKey(_ context.Context, key string) (*model.TuitionPayment, error) {
	for _, p := range m.payments {
		if p.IdempotencyKey == key {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPaymentRepo) GetCompletedByApplication(_ context.Context, applicationID string) (*model.TuitionPayment, error) {
	for i := len(m.payments) - 1; i >= 0; i-- {
		p := m.payments[i]
		if p.ApplicationID == applicationID && p.Status == model.PaymentCompleted {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPaymentRepo) ListByApplication(_ context.Context, applicationID string) ([]model.TuitionPayment, error) {
	var result []model.TuitionPayment
	for _, p := range m.payments {
		if p.ApplicationID == applicationID {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockPaymentRepo) ListBetween(_ context.Context, from, to time.Time) ([]model.TuitionPayment, error) {
	var result []model.TuitionPayment
	for _, p := range m.payments {
		if !p.CreatedAt.Before(from) && p.CreatedAt.Before(to) {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockPaymentRepo) GetInFlightByApplication(_ context.Context, applicationID string) (*model.TuitionPayment, error) {
	for _, p := range m.payments {
		if p.ApplicationID == applicationID && p.Status == model.PaymentProcessing {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPaymentRepo) MarkCharged(_ context.Context, paymentID string, providerTransactionID *string, fx datatypes.JSONMap) error {
	if m.chargedErr != nil {
		return m.chargedErr
	}
	p := m.find(paymentID)
	if p == nil || p.Status != model.PaymentProcessing {
		return pkgerrors.ErrOptimisticLock
	}
	p.Status = model.PaymentCompleted
	p.ProviderTransactionID = providerTransactionID
	if len(fx) > 0 {
		p.FXMetadata = fx
	}
	return nil
}

func (m *mockPaymentRepo) MarkFailed(_ context.Context, paymentID, reason string) error {
	p := m.find(paymentID)
	if p == nil || p.Status != model.PaymentProcessing {
		return pkgerrors.ErrOptimisticLock
	}
	p.Status = model.PaymentFailed
	p.FailureReason = &reason
	return nil
}

func (m *mockPaymentRepo) find(paymentID string) *model.TuitionPayment {
	for _, p := range m.payments {
		if p.PaymentID == paymentID {
			return p
		}
	}
	return nil
}

func (m *mockPaymentRepo) byStatus(status model.PaymentStatus) int {
	n := 0
	for _, p := range m.payments {
		if p.Status == status {
			n++
		}
	}
	return n
}

func (m *mockPaymentRepo) MarkVerified(_ context.Context, paymentID, verifiedBy string, at time.Time) error {
	for _, p := range m.payments {
		if p.PaymentID == paymentID {
			if p.Status != model.PaymentPendingReview {
				return pkgerrors.ErrOptimisticLock
			}
			p.Status = model.PaymentCompleted
			p.VerifiedAt = &at
			p.VerifiedBy = &verifiedBy
			return nil
		}
	}
	return pkgerrors.ErrOptimisticLock
}

// ── Mock StudentRepository ──

type mockStudentRepo struct {
	byApp map[string]*model.Student
	seq   int
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{byApp: make(map[string]*model.Student)}
}

func (m *mockStudentRepo) GetByApplication(_ context.Context, applicationID string) (*model.Student, error) {
	if s, ok := m.byApp[applicationID]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudentRepo) GetLatestByUser(_ context.Context, userID string) (*model.Student, error) {
	var latest *model.Student
	for _, s := range m.byApp {
		if s.UserID == userID && (latest == nil || s.CreatedAt.After(latest.CreatedAt)) {
			latest = s
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *mockStudentRepo) Upsert(_ context.Context, s *model.Student) error {
	if existing, ok := m.byApp[s.ApplicationID]; ok {
		existing.ProgrammeID = s.ProgrammeID
		existing.PersonalEmail = s.PersonalEmail
		existing.StartDate = s.StartDate
		existing.ExpectedGraduationDate = s.ExpectedGraduationDate
		existing.UpdatedBy = s.UpdatedBy
		s.StudentRecordID = existing.StudentRecordID
		return nil
	}
	m.seq++
	s.StudentRecordID = fmt.Sprintf("stu-%d", m.seq)
	cp := *s
	m.byApp[s.ApplicationID] = &cp
	return nil
}

func (m *mockStudentRepo) ListBetween(_ context.Context, from, to time.Time) ([]model.Student, error) {
	var result []model.Student
	for _, s := range m.byApp {
		if !s.CreatedAt.Before(from) && s.CreatedAt.Before(to) {
			result = append(result, *s)
		}
	}
	return result, nil
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct {
	list []*model.Notification
	seq  int
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{}
}

func (m *mockNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	m.seq++
	n.NotificationID = fmt.Sprintf("n-%d", m.seq)
	cp := *n
	m.list = append(m.list, &cp)
	return nil
}

func (m *mockNotificationRepo) ListByUser(_ context.Context, userID string, offset, limit int) ([]model.Notification, int64, error) {
	var all []model.Notification
	for i := len(m.list) - 1; i >= 0; i-- {
		if m.list[i].UserID == userID {
			all = append(all, *m.list[i])
		}
	}
	total := int64(len(all))
	if offset >= len(all) {
		return []model.Notification{}, total, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, notificationID, userID string) error {
	for _, n := range m.list {
		if n.NotificationID == notificationID && n.UserID == userID {
			n.IsRead = true
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// ── Mock SideEffectJobRepository ──

type mockSideEffectJobRepo struct {
	jobs []*model.SideEffectJob
	seq  int
}

func newMockSideEffectJobRepo() *mockSideEffectJobRepo {
	return &mockSideEffectJobRepo{}
}

func (m *mockSideEffectJobRepo) Create(_ context.Context, job *model.SideEffectJob) error {
	m.seq++
	job.JobID = fmt.Sprintf("job-%d", m.seq)
	cp := *job
	m.jobs = append(m.jobs, &cp)
	return nil
}

func (m *mockSideEffectJobRepo) ListDue(_ context.Context, now time.Time, limit int) ([]model.SideEffectJob, error) {
	var result []model.SideEffectJob
	for _, j := range m.jobs {
		if j.Status == model.SideEffectPending && !j.NextAttemptAt.After(now) {
			result = append(result, *j)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockSideEffectJobRepo) ListByApplication(_ context.Context, applicationID string) ([]model.SideEffectJob, error) {
	var result []model.SideEffectJob
	for _, j := range m.jobs {
		if j.ApplicationID == applicationID {
			result = append(result, *j)
		}
	}
	return result, nil
}

func (m *mockSideEffectJobRepo) RecordAttempt(_ context.Context, job *model.SideEffectJob) error {
	for _, j := range m.jobs {
		if j.JobID == job.JobID {
			j.Status = job.Status
			j.Attempts = job.Attempts
			j.LastError = job.LastError
			j.NextAttemptAt = job.NextAttemptAt
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockSideEffectJobRepo) ResolvePending(_ context.Context, applicationID string, kind model.SideEffectKind, name string) error {
	for _, j := range m.jobs {
		if j.ApplicationID == applicationID && j.Kind == kind && j.Name == name && j.Status == model.SideEffectPending {
			j.Status = model.SideEffectDone
		}
	}
	return nil
}

func (m *mockSideEffectJobRepo) pending(name string) int {
	n := 0
	for _, j := range m.jobs {
		if j.Name == name && j.Status == model.SideEffectPending {
			n++
		}
	}
	return n
}

// ── Fake 文档/通知网关 ──

type fakeGateway struct {
	docErr    error
	notifyErr error
	docs      []gateway.DocumentRequest
	notes     []gateway.Notification
}

func (g *fakeGateway) RequestDocument(_ context.Context, req gateway.DocumentRequest) (string, error) {
	g.docs = append(g.docs, req)
	if g.docErr != nil {
		return "", g.docErr
	}
	return gateway.DocumentURL("https://docs.test", req.Kind, req.ApplicationID), nil
}

func (g *fakeGateway) SendNotification(_ context.Context, n gateway.Notification) error {
	g.notes = append(g.notes, n)
	return g.notifyErr
}

func (g *fakeGateway) sent(kind gateway.NotificationKind) int {
	n := 0
	for _, note := range g.notes {
		if note.Kind == kind {
			n++
		}
	}
	return n
}

// ── Fake 支付网关 ──

// fakePaymentGateway 与 midtrans 一致：同一订单号只接受一次扣款
type fakePaymentGateway struct {
	err error
	// lostResponse 扣款成功但响应丢失
	lostResponse bool
	statusErr    error
	// onCharge 扣款进行中回调，用于模拟并发请求
	onCharge func()
	charges  []payment.ChargeRequest
	checks   int
	orders   map[string]*payment.ChargeResult
}

func (g *fakePaymentGateway) Name() string { return "fake" }

func (g *fakePaymentGateway) Charge(_ context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	g.charges = append(g.charges, req)
	if g.onCharge != nil {
		hook := g.onCharge
		g.onCharge = nil
		hook()
	}
	if _, dup := g.orders[req.OrderID]; dup {
		return nil, fmt.Errorf("%w: 406 duplicate order id", payment.ErrDeclined)
	}
	if g.err != nil {
		return nil, g.err
	}
	res := &payment.ChargeResult{
		Provider:              "fake",
		ProviderTransactionID: "ptx-" + req.OrderID,
		Status:                "capture",
	}
	if g.orders == nil {
		g.orders = make(map[string]*payment.ChargeResult)
	}
	g.orders[req.OrderID] = res
	if g.lostResponse {
		return nil, errors.New("网关响应超时")
	}
	return res, nil
}

func (g *fakePaymentGateway) Status(_ context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	g.checks++
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	if res, ok := g.orders[req.OrderID]; ok {
		return res, nil
	}
	return nil, payment.ErrTransactionNotFound
}

// ── Fake 幂等锁 ──

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]string)}
}

func (l *fakeLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", nil
	}
	token := "tok-" + key
	l.held[key] = token
	return token, nil
}

func (l *fakeLocker) ReleaseLock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}
