package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"admitflow/backend/internal/admission"
	"admitflow/backend/internal/dto"
	"admitflow/backend/internal/gateway"
	"admitflow/backend/internal/model"
)

func issueRequest(env *testEnv) *dto.IssueOfferRequest {
	return &dto.IssueOfferRequest{
		TuitionFee:      decimal.NewFromInt(9000),
		DiscountAmount:  decimal.NewFromInt(1000),
		PaymentDeadline: env.now.AddDate(0, 1, 0),
		OfferType:       string(model.OfferTypeDeposit),
	}
}

// ── IssueOffer 测试 ──

func TestOfferService_IssueOffer_InvalidTerms(t *testing.T) {
	env := setupTestEnv(t)
	env.seedApplication("app-1", admission.StatusUnderReview)

	req := issueRequest(env)
	req.TuitionFee = decimal.Zero
	if _, err := env.svc.Offer.IssueOffer(context.Background(), "app-1", req, testAdmin); !errors.Is(err, ErrInvalidOfferTerms) {
		t.Errorf("学费为 0 期望 ErrInvalidOfferTerms，实际: %v", err)
	}

	req = issueRequest(env)
	req.PaymentDeadline = env.now.Add(-time.Hour)
	if _, err := env.svc.Offer.IssueOffer(context.Background(), "app-1", req, testAdmin); !errors.Is(err, ErrInvalidOfferTerms) {
		t.Errorf("截止时间已过期望 ErrInvalidOfferTerms，实际: %v", err)
	}
	if len(env.offers.byApp) != 0 {
		t.Error("条款无效时不应写入录取通知")
	}
}

func TestOfferService_IssueOffer_FastForward(t *testing.T) {
	env := setupTestEnv(t)
	env.seedApplication("app-1", admission.StatusSubmitted)

	result, err := env.svc.Offer.IssueOffer(context.Background(), "app-1", issueRequest(env), testAdmin)
	if err != nil {
		t.Fatalf("IssueOffer 应成功: %v", err)
	}
	if result.ApplicationStatus != string(admission.StatusAdmitted) {
		t.Errorf("期望ApplicationStatus=ADMITTED，实际=%s", result.ApplicationStatus)
	}
	if result.Offer.TuitionFee != "9000.00" || result.Offer.OriginalFee != "10000.00" {
		t.Errorf("期望学费 9000.00/原价 10000.00，实际 %s/%s", result.Offer.TuitionFee, result.Offer.OriginalFee)
	}
	if result.Offer.Status != string(model.OfferPending) {
		t.Errorf("期望Offer.Status=PENDING，实际=%s", result.Offer.Status)
	}
	if result.Offer.DocumentURL == nil {
		t.Error("应返回录取通知书地址")
	}
	if env.gw.sent(gateway.NotifyOfferIssued) != 1 {
		t.Error("应发送录取通知")
	}
}

func TestOfferService_IssueOffer_FromRejectedNeedsConfirmation(t *testing.T) {
	env := setupTestEnv(t)
	env.seedApplication("app-1", admission.StatusRejected)

	_, err := env.svc.Offer.IssueOffer(context.Background(), "app-1", issueRequest(env), testAdmin)
	if !errors.Is(err, ErrReinstateNotConfirmed) {
		t.Fatalf("期望 ErrReinstateNotConfirmed，实际: %v", err)
	}
	if env.appStatus("app-1") != admission.StatusRejected {
		t.Error("未确认时不应修改申请状态")
	}

	req := issueRequest(env)
	req.ReinstateRejected = true
	if _, err := env.svc.Offer.IssueOffer(context.Background(), "app-1", req, testAdmin); err != nil {
		t.Fatalf("确认恢复后 IssueOffer 应成功: %v", err)
	}
	if env.appStatus("app-1") != admission.StatusAdmitted {
		t.Errorf("期望Status=ADMITTED，实际=%s", env.appStatus("app-1"))
	}
}

func TestOfferService_IssueOffer_NotFromEnrolled(t *testing.T) {
	env := setupTestEnv(t)
	env.seedApplication("app-1", admission.StatusEnrolled)

	_, err := env.svc.Offer.IssueOffer(context.Background(), "app-1", issueRequest(env), testAdmin)
	if !errors.Is(err, admission.ErrInvalidTransition) {
		t.Errorf("期望 ErrInvalidTransition，实际: %v", err)
	}
}

func TestOfferService_IssueOffer_BlockedWhileChargeInFlight(t *testing.T) {
	env := setupTestEnv(t)
	offer := acceptedApplication(env, "app-1", model.OfferTypeDeposit)
	seedInFlight(env, offer, "key-1")

	_, err := env.svc.Offer.IssueOffer(context.Background(), "app-1", issueRequest(env), testAdmin)
	if !errors.Is(err, ErrPaymentInProgress) {
		t.Fatalf("扣款进行中重新签发期望 ErrPaymentInProgress，实际: %v", err)
	}
	if env.appStatus("app-1") != admission.StatusOfferAccepted {
		t.Errorf("申请状态不应改变，实际=%s", env.appStatus("app-1"))
	}
	if !env.offers.byApp["app-1"].TuitionFee.Equal(offer.TuitionFee) {
		t.Error("通知条款不应改变")
	}
}

func TestOfferService_IssueOffer_ReissueRestartsEarlyWindow(t *testing.T) {
	env := setupTestEnv(t)
	env.seedApplication("app-1", admission.StatusAdmitted)
	env.seedOffer("app-1", model.OfferTypeDeposit, model.OfferPending)

	env.advance(20 * 24 * time.Hour)
	quote, err := env.svc.Offer.GetQuote(context.Background(), "app-1", &dto.QuoteRequest{Plan: "FIRST_YEAR"}, testApplicant, string(model.RoleApplicant))
	if err != nil {
		t.Fatalf("GetQuote 应成功: %v", err)
	}
	if quote.EarlyWindowOpen {
		t.Fatal("20 天后提前缴费窗口应已关闭")
	}

	req := issueRequest(env)
	req.TuitionFee = decimal.NewFromInt(7500)
	req.DiscountAmount = decimal.NewFromInt(2500)
	if _, err := env.svc.Offer.IssueOffer(context.Background(), "app-1", req, testAdmin); err != nil {
		t.Fatalf("重新签发应成功: %v", err)
	}
	if env.offers.byApp["app-1"].OfferID != "offer-seed-app-1" {
		t.Error("重新签发应覆盖原通知而不是新建")
	}

	quote, err = env.svc.Offer.GetQuote(context.Background(), "app-1", &dto.QuoteRequest{Plan: "FIRST_YEAR"}, testApplicant, string(model.RoleApplicant))
	if err != nil {
		t.Fatalf("GetQuote 应成功: %v", err)
	}
	if !quote.EarlyWindowOpen || quote.Amount != "7500.00" {
		t.Errorf("重新签发后窗口应重新开始，实际 open=%v amount=%s", quote.EarlyWindowOpen, quote.Amount)
	}
}

// ── RespondToOffer 测试 ──

func TestOfferService_RespondToOffer_AcceptTwice(t *testing.T) {
	env := setupTestEnv(t)
	env.seedApplication("app-1", admission.StatusAdmitted)
	env.seedOffer("app-1", model.OfferTypeDeposit, model.OfferPending)

	first, err := env.svc.Offer.RespondToOffer(context.Background(), "app-1", &dto.RespondOfferRequest{Decision: "ACCEPT"}, testApplicant)
	if err != nil {
		t.Fatalf("RespondToOffer 应成功: %v", err)
	}
	if first.ApplicationStatus != string(admission.StatusOfferAccepted) || first.AlreadyHandled {
		t.Errorf("首次接受期望 OFFER_ACCEPTED，实际=%s", first.ApplicationStatus)
	}
	if env.offers.byApp["app-1"].Status != model.OfferAccepted || env.offers.byApp["app-1"].AcceptedAt == nil {
		t.Error("录取通知应变为 ACCEPTED 并记录接受时间")
	}

	second, err := env.svc.Offer.RespondToOffer(context.Background(), "app-1", &dto.RespondOfferRequest{Decision: "ACCEPT"}, testApplicant)
	if err != nil {
		t.Fatalf("重复接受应成功: %v", err)
	}
	if !second.AlreadyHandled || second.ApplicationStatus != string(admission.StatusOfferAccepted) {
		t.Error("重复接受应标记 AlreadyHandled 且状态不变")
	}
}

func TestOfferService_RespondToOffer_Reject(t *testing.T) {
	env := setupTestEnv(t)
	env.seedApplication("app-1", admission.StatusAdmitted)
	env.seedOffer("app-1", model.OfferTypeDeposit, model.OfferPending)

	result, err := env.svc.Offer.RespondToOffer(context.Background(), "app-1", &dto.RespondOfferRequest{Decision: "REJECT"}, testApplicant)
	if err != nil {
		t.Fatalf("RespondToOffer 应成功: %v", err)
	}
	if result.ApplicationStatus != string(admission.StatusOfferRejected) {
		t.Errorf("期望 OFFER_REJECTED，实际=%s", result.ApplicationStatus)
	}

	// 拒绝后再接受不合法
	_, err = env.svc.Offer.RespondToOffer(context.Background(), "app-1", &dto.RespondOfferRequest{Decision: "ACCEPT"}, testApplicant)
	if !errors.Is(err, admission.ErrInvalidTransition) {
		t.Errorf("期望 ErrInvalidTransition，实际: %v", err)
	}
}

// Scenario：尚未录取时答复录取通知
func TestOfferService_RespondToOffer_BeforeAdmission(t *testing.T) {
	env := setupTestEnv(t)
	env.seedApplication("app-1", admission.StatusSubmitted)

	_, err := env.svc.Offer.RespondToOffer(context.Background(), "app-1", &dto.RespondOfferRequest{Decision: "ACCEPT"}, testApplicant)
	if !errors.Is(err, admission.ErrInvalidTransition) {
		t.Errorf("期望 ErrInvalidTransition，实际: %v", err)
	}
	if env.appStatus("app-1") != admission.StatusSubmitted {
		t.Error("失败时不应修改申请状态")
	}
}

func TestOfferService_RespondToOffer_RepairsHalfApplied(t *testing.T) {
	env := setupTestEnv(t)
	env.seedApplication("app-1", admission.StatusAdmitted)
	env.seedOffer("app-1", model.OfferTypeDeposit, model.OfferAccepted)

	result, err := env.svc.Offer.RespondToOffer(context.Background(), "app-1", &dto.RespondOfferRequest{Decision: "ACCEPT"}, testApplicant)
	if err != nil {
		t.Fatalf("RespondToOffer 应成功: %v", err)
	}
	if result.ApplicationStatus != string(admission.StatusOfferAccepted) {
		t.Errorf("期望补齐为 OFFER_ACCEPTED，实际=%s", result.ApplicationStatus)
	}
}

func TestOfferService_RespondToOffer_OtherApplicant(t *testing.T) {
	env := setupTestEnv(t)
	env.seedApplication("app-1", admission.StatusAdmitted)
	env.seedOffer("app-1", model.OfferTypeDeposit, model.OfferPending)

	_, err := env.svc.Offer.RespondToOffer(context.Background(), "app-1", &dto.RespondOfferRequest{Decision: "ACCEPT"}, "user-2")
	if !errors.Is(err, ErrApplicationNotFound) {
		t.Errorf("期望 ErrApplicationNotFound，实际: %v", err)
	}
}

// ── GetQuote 测试 ──

func TestOfferService_GetQuote_EarlyWindow(t *testing.T) {
	env := setupTestEnv(t)
	env.seedApplication("app-1", admission.StatusOfferAccepted)
	env.seedOffer("app-1", model.OfferTypeDeposit, model.OfferAccepted)

	cases := []struct {
		name   string
		after  time.Duration
		plan   string
		amount string
	}{
		{"窗口内首年学费", 5 * 24 * time.Hour, "FIRST_YEAR", "7500.00"},
		{"窗口内定金", 5 * 24 * time.Hour, "DEPOSIT", "5000.00"},
		{"窗口外首年学费", 20 * 24 * time.Hour, "FIRST_YEAR", "10000.00"},
		{"窗口外定金", 20 * 24 * time.Hour, "DEPOSIT", "5000.00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env.now = testT0.Add(tc.after)
			quote, err := env.svc.Offer.GetQuote(context.Background(), "app-1", &dto.QuoteRequest{Plan: tc.plan}, testApplicant, string(model.RoleApplicant))
			if err != nil {
				t.Fatalf("GetQuote 应成功: %v", err)
			}
			if quote.Amount != tc.amount {
				t.Errorf("期望Amount=%s，实际=%s", tc.amount, quote.Amount)
			}
		})
	}
}

func TestOfferService_GetQuote_FullOfferRejectsDeposit(t *testing.T) {
	env := setupTestEnv(t)
	env.seedApplication("app-1", admission.StatusOfferAccepted)
	env.seedOffer("app-1", model.OfferTypeFull, model.OfferAccepted)

	_, err := env.svc.Offer.GetQuote(context.Background(), "app-1", &dto.QuoteRequest{Plan: "DEPOSIT"}, testApplicant, string(model.RoleApplicant))
	if !errors.Is(err, ErrPaymentPlanNotAllowed) {
		t.Errorf("期望 ErrPaymentPlanNotAllowed，实际: %v", err)
	}
}

func TestOfferService_GetOffer_NotFound(t *testing.T) {
	env := setupTestEnv(t)
	env.seedApplication("app-1", admission.StatusSubmitted)

	_, err := env.svc.Offer.GetOffer(context.Background(), "app-1", testApplicant, string(model.RoleApplicant))
	if !errors.Is(err, ErrOfferNotFound) {
		t.Errorf("期望 ErrOfferNotFound，实际: %v", err)
	}
}

// ── RegenerateOfferLetter 测试 ──

func TestOfferService_RegenerateOfferLetter(t *testing.T) {
	env := setupTestEnv(t)
	env.seedApplication("app-1", admission.StatusAdmitted)
	env.seedOffer("app-1", model.OfferTypeDeposit, model.OfferPending)
	env.gw.docErr = errors.New("渲染服务不可用")

	_, err := env.svc.Offer.RegenerateOfferLetter(context.Background(), "app-1", testAdmin)
	if !errors.Is(err, ErrSideEffectFailed) {
		t.Fatalf("期望 ErrSideEffectFailed，实际: %v", err)
	}
	if len(env.jobs.jobs) != 0 {
		t.Error("手动重新生成失败不应记录补偿任务")
	}

	env.gw.docErr = nil
	doc, err := env.svc.Offer.RegenerateOfferLetter(context.Background(), "app-1", testAdmin)
	if err != nil {
		t.Fatalf("RegenerateOfferLetter 应成功: %v", err)
	}
	want := gateway.DocumentURL("https://docs.test", gateway.DocOfferLetter, "app-1")
	if doc.URL != want {
		t.Errorf("期望URL=%s，实际=%s", want, doc.URL)
	}
	if got := env.offers.byApp["app-1"].DocumentURL; got == nil || *got != want {
		t.Error("应写回录取通知书地址")
	}
}
