package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"admitflow/backend/internal/model"
)

// ── HTTPDocumentService ──

func TestHTTPDocumentService_Success(t *testing.T) {
	var got DocumentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/documents" || r.Method != http.MethodPost {
			t.Errorf("期望 POST /documents，实际 %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"url":"https://docs.example/app-1/offer.pdf"}`))
	}))
	defer srv.Close()

	svc := NewHTTPDocumentService(srv.URL+"/", nil)
	url, err := svc.Generate(context.Background(), DocumentRequest{
		Kind: DocOfferLetter, ApplicationID: "app-1",
		Data: map[string]interface{}{"full_name": "Ada Lovelace"},
	})
	if err != nil {
		t.Fatalf("Generate 应成功: %v", err)
	}
	if url != "https://docs.example/app-1/offer.pdf" {
		t.Errorf("文档地址不符，实际=%s", url)
	}
	if got.Kind != DocOfferLetter || got.ApplicationID != "app-1" {
		t.Errorf("请求体不符: %+v", got)
	}
}

func TestHTTPDocumentService_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "renderer down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPDocumentService(srv.URL, nil).Generate(context.Background(), DocumentRequest{Kind: DocAdmissionLetter})
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("期望包含 503 的错误，实际: %v", err)
	}
}

func TestHTTPDocumentService_EmptyURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if _, err := NewHTTPDocumentService(srv.URL, nil).Generate(context.Background(), DocumentRequest{}); err == nil {
		t.Error("未返回地址时应报错")
	}
}

// ── boundedGateway ──

type slowDocs struct{ delay time.Duration }

func (s slowDocs) Generate(ctx context.Context, _ DocumentRequest) (string, error) {
	select {
	case <-time.After(s.delay):
		return "late", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type recordingNotifier struct {
	sent []Notification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

func TestGateway_DocumentTimeout(t *testing.T) {
	gw := New(slowDocs{delay: time.Second}, &recordingNotifier{}, 20*time.Millisecond)

	start := time.Now()
	_, err := gw.RequestDocument(context.Background(), DocumentRequest{Kind: DocOfferLetter})
	if !errors.Is(err, ErrGatewayTimeout) {
		t.Fatalf("期望 ErrGatewayTimeout，实际: %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("超时后应立即返回")
	}
}

func TestGateway_NotificationPassThrough(t *testing.T) {
	rec := &recordingNotifier{}
	gw := New(NewStaticDocumentService("https://admit.example"), rec, time.Second)

	if err := gw.SendNotification(context.Background(), Notification{Kind: NotifyOfferIssued, RecipientID: "u1"}); err != nil {
		t.Fatalf("SendNotification 应成功: %v", err)
	}
	if len(rec.sent) != 1 {
		t.Errorf("期望投递 1 条，实际 %d", len(rec.sent))
	}

	rec.err = errors.New("boom")
	if err := gw.SendNotification(context.Background(), Notification{Kind: NotifyOfferIssued}); err == nil || errors.Is(err, ErrGatewayTimeout) {
		t.Errorf("普通错误应原样返回，实际: %v", err)
	}
}

func TestDocumentURL(t *testing.T) {
	got := DocumentURL("https://admit.example/docs/", DocAdmissionLetter, "app-9")
	want := "https://admit.example/docs/applications/app-9/admission-letter.pdf"
	if got != want {
		t.Errorf("期望 %s，实际 %s", want, got)
	}

	url, _ := NewStaticDocumentService("https://admit.example").Generate(context.Background(),
		DocumentRequest{Kind: DocOfferLetter, ApplicationID: "app-9"})
	if url != "https://admit.example/applications/app-9/offer-letter.pdf" {
		t.Errorf("静态文档地址不符: %s", url)
	}
}

// ── InAppNotifier ──

type memNotificationRepo struct {
	rows []model.Notification
}

func (m *memNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	m.rows = append(m.rows, *n)
	return nil
}
func (m *memNotificationRepo) ListByUser(_ context.Context, _ string, _, _ int) ([]model.Notification, int64, error) {
	return m.rows, int64(len(m.rows)), nil
}
func (m *memNotificationRepo) MarkRead(_ context.Context, _, _ string) error { return nil }

func TestInAppNotifier(t *testing.T) {
	repo := &memNotificationRepo{}
	n := NewInAppNotifier(repo, zap.NewNop())

	err := n.Notify(context.Background(), Notification{
		Kind: NotifyDocumentsRequested, ApplicationID: "app-1", RecipientID: "user-1",
		Payload: map[string]interface{}{"note": "请补交护照扫描件"},
	})
	if err != nil {
		t.Fatalf("Notify 应成功: %v", err)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("期望写入 1 条，实际 %d", len(repo.rows))
	}
	row := repo.rows[0]
	if row.UserID != "user-1" || row.Type != string(NotifyDocumentsRequested) {
		t.Errorf("通知字段不符: %+v", row)
	}
	if !strings.Contains(row.Content, "护照") {
		t.Error("备注应附加到通知内容")
	}

	if err := n.Notify(context.Background(), Notification{Kind: "UNKNOWN", RecipientID: "u"}); !errors.Is(err, ErrUnknownNotification) {
		t.Errorf("期望 ErrUnknownNotification，实际: %v", err)
	}
	if err := n.Notify(context.Background(), Notification{Kind: NotifyOfferIssued}); err == nil {
		t.Error("缺少接收人应报错")
	}
}
