package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"admitflow/backend/internal/admission"
	"admitflow/backend/internal/dto"
	"admitflow/backend/internal/gateway"
	"admitflow/backend/internal/model"
)

// ── RetryDue 测试 ──

func TestSideEffectService_RetryDue_NotificationSucceeds(t *testing.T) {
	env := setupTestEnv(t)
	env.seedApplication("app-1", admission.StatusUnderReview)
	env.gw.notifyErr = errors.New("邮件服务不可用")
	if _, err := env.svc.Application.ReviewDecision(context.Background(), "app-1", &dto.ReviewDecisionRequest{Status: "REJECTED"}, testAdmin); err != nil {
		t.Fatalf("ReviewDecision 应成功: %v", err)
	}
	env.gw.notifyErr = nil

	// 未到重试时间
	stats, err := env.svc.SideEffect.RetryDue(context.Background(), 10)
	if err != nil {
		t.Fatalf("RetryDue 应成功: %v", err)
	}
	if stats.Processed != 0 {
		t.Errorf("未到期任务不应执行，实际 processed=%d", stats.Processed)
	}

	env.advance(2 * time.Minute)
	stats, err = env.svc.SideEffect.RetryDue(context.Background(), 10)
	if err != nil {
		t.Fatalf("RetryDue 应成功: %v", err)
	}
	if stats.Processed != 1 || stats.Succeeded != 1 {
		t.Errorf("期望成功 1 个，实际 %+v", *stats)
	}
	job := env.jobs.jobs[0]
	if job.Status != model.SideEffectDone || job.Attempts != 2 {
		t.Errorf("期望 DONE/2，实际 %s/%d", job.Status, job.Attempts)
	}
	last := env.gw.notes[len(env.gw.notes)-1]
	if last.Kind != gateway.NotifyApplicationRejected || last.RecipientID != testApplicant {
		t.Errorf("重发的通知内容错误: %+v", last)
	}
}

func TestSideEffectService_RetryDue_BackoffThenAbandon(t *testing.T) {
	env := setupTestEnv(t)
	env.seedApplication("app-1", admission.StatusUnderReview)
	env.gw.notifyErr = errors.New("邮件服务不可用")
	if _, err := env.svc.Application.ReviewDecision(context.Background(), "app-1", &dto.ReviewDecisionRequest{Status: "REJECTED"}, testAdmin); err != nil {
		t.Fatalf("ReviewDecision 应成功: %v", err)
	}

	env.advance(time.Minute)
	stats, err := env.svc.SideEffect.RetryDue(context.Background(), 10)
	if err != nil {
		t.Fatalf("RetryDue 应成功: %v", err)
	}
	if stats.Failed != 1 {
		t.Errorf("期望失败 1 个，实际 %+v", *stats)
	}
	job := env.jobs.jobs[0]
	if job.Status != model.SideEffectPending || job.Attempts != 2 {
		t.Errorf("期望 PENDING/2，实际 %s/%d", job.Status, job.Attempts)
	}
	if !job.NextAttemptAt.Equal(env.now.Add(2 * time.Minute)) {
		t.Errorf("第 2 次失败后应等待 2 分钟，实际=%s", job.NextAttemptAt)
	}

	env.advance(2 * time.Minute)
	stats, err = env.svc.SideEffect.RetryDue(context.Background(), 10)
	if err != nil {
		t.Fatalf("RetryDue 应成功: %v", err)
	}
	if stats.Abandoned != 1 || env.jobs.jobs[0].Status != model.SideEffectAbandoned {
		t.Errorf("达到最大次数后应放弃，实际 %+v", *stats)
	}
}

func TestSideEffectService_RetryDue_OfferLetter(t *testing.T) {
	env := setupTestEnv(t)
	env.seedApplication("app-1", admission.StatusUnderReview)
	env.gw.docErr = errors.New("渲染服务超时")
	if _, err := env.svc.Application.ReviewDecision(context.Background(), "app-1", &dto.ReviewDecisionRequest{Status: "ADMITTED"}, testAdmin); err != nil {
		t.Fatalf("ReviewDecision 应成功: %v", err)
	}
	if env.offers.byApp["app-1"].DocumentURL != nil {
		t.Fatal("文档失败时不应写入地址")
	}
	env.gw.docErr = nil

	env.advance(time.Minute)
	stats, err := env.svc.SideEffect.RetryDue(context.Background(), 10)
	if err != nil {
		t.Fatalf("RetryDue 应成功: %v", err)
	}
	if stats.Succeeded != 1 {
		t.Errorf("期望成功 1 个，实际 %+v", *stats)
	}
	if env.offers.byApp["app-1"].DocumentURL == nil {
		t.Error("重试成功后应写入录取通知书地址")
	}
	if env.jobs.pending(string(gateway.DocOfferLetter)) != 0 {
		t.Error("补偿任务应已完成")
	}
}

func TestSideEffectService_RetryDue_ResumesEnrollment(t *testing.T) {
	env := setupTestEnv(t)
	offer := acceptedApplication(env, "app-1", model.OfferTypeDeposit)
	env.applications.statusErr[admission.StatusEnrolled] = errors.New("数据库连接中断")
	if _, err := env.svc.Payment.SubmitPayment(context.Background(), "app-1", cardPayment(offer.OfferID, "key-1", "7500"), testApplicant); err != nil {
		t.Fatalf("SubmitPayment 应成功: %v", err)
	}
	delete(env.applications.statusErr, admission.StatusEnrolled)

	env.advance(time.Minute)
	stats, err := env.svc.SideEffect.RetryDue(context.Background(), 10)
	if err != nil {
		t.Fatalf("RetryDue 应成功: %v", err)
	}
	if stats.Succeeded != 1 {
		t.Errorf("期望成功 1 个，实际 %+v", *stats)
	}
	if env.appStatus("app-1") != admission.StatusEnrolled {
		t.Errorf("后台任务应完成注册，实际=%s", env.appStatus("app-1"))
	}
	if len(env.pay.charges) != 1 {
		t.Error("续做注册不应重复扣款")
	}
}

func TestSideEffectService_RetryDue_UnknownJobAbandoned(t *testing.T) {
	env := setupTestEnv(t)
	env.seedApplication("app-1", admission.StatusAdmitted)
	_ = env.jobs.Create(context.Background(), &model.SideEffectJob{
		ApplicationID: "app-1",
		Kind:          model.SideEffectDocument,
		Name:          "TRANSCRIPT_COPY",
		Status:        model.SideEffectPending,
		Attempts:      1,
		NextAttemptAt: env.now,
	})

	stats, err := env.svc.SideEffect.RetryDue(context.Background(), 10)
	if err != nil {
		t.Fatalf("RetryDue 应成功: %v", err)
	}
	if stats.Abandoned != 1 {
		t.Errorf("未知任务应直接放弃，实际 %+v", *stats)
	}
}

// ── ListByApplication 测试 ──

func TestSideEffectService_ListByApplication(t *testing.T) {
	env := setupTestEnv(t)
	env.seedApplication("app-1", admission.StatusUnderReview)
	env.gw.notifyErr = errors.New("邮件服务不可用")
	if _, err := env.svc.Application.ReviewDecision(context.Background(), "app-1", &dto.ReviewDecisionRequest{Status: "REJECTED"}, testAdmin); err != nil {
		t.Fatalf("ReviewDecision 应成功: %v", err)
	}

	jobs, err := env.svc.SideEffect.ListByApplication(context.Background(), "app-1")
	if err != nil {
		t.Fatalf("ListByApplication 应成功: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Name != string(gateway.NotifyApplicationRejected) {
		t.Errorf("期望 1 个 APPLICATION_REJECTED 任务，实际=%v", jobs)
	}

	if _, err := env.svc.SideEffect.ListByApplication(context.Background(), "nonexistent"); !errors.Is(err, ErrApplicationNotFound) {
		t.Errorf("期望 ErrApplicationNotFound，实际: %v", err)
	}
}

func TestRetryDelay(t *testing.T) {
	cases := map[int]time.Duration{
		0:  time.Minute,
		1:  time.Minute,
		2:  2 * time.Minute,
		4:  8 * time.Minute,
		7:  time.Hour,
		20: time.Hour,
	}
	for attempts, want := range cases {
		if got := retryDelay(attempts); got != want {
			t.Errorf("retryDelay(%d) 期望 %s，实际 %s", attempts, want, got)
		}
	}
}
