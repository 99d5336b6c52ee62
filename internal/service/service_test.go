package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"admitflow/backend/config"
	"admitflow/backend/internal/admission"
	"admitflow/backend/internal/model"
	"admitflow/backend/internal/repository"
	"admitflow/backend/internal/tuition"
)

// ── 测试辅助 ──

const (
	testApplicant = "user-1"
	testAdmin     = "admin-1"
	testProgramme = "prog-1"
)

var testT0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	svc *Service

	programmes    *mockProgrammeRepo
	profiles      *mockProfileRepo
	applications  *mockApplicationRepo
	offers        *mockOfferRepo
	payments      *mockPaymentRepo
	students      *mockStudentRepo
	notifications *mockNotificationRepo
	jobs          *mockSideEffectJobRepo

	gw     *fakeGateway
	pay    *fakePaymentGateway
	locker *fakeLocker
	calc   *tuition.Calculator
	now    time.Time
}

func testConfig() *config.Config {
	return &config.Config{
		Admission: config.AdmissionConfig{
			EarlyPaymentWindowDays:      14,
			EarlyPaymentDiscountPercent: "25",
			DepositPercent:              "50",
			OfferResponseDays:           30,
			Currency:                    "EUR",
			InstitutionalEmailDomain:    "student.admitflow.eu",
		},
		Documents: config.DocumentsConfig{PublicBaseURL: "https://admitflow.test/documents"},
		Payment:   config.PaymentConfig{LockTTL: time.Minute},
		Worker:    config.WorkerConfig{MaxAttempts: 3},
	}
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		programmes:    newMockProgrammeRepo(),
		profiles:      newMockProfileRepo(),
		applications:  newMockApplicationRepo(),
		offers:        newMockOfferRepo(),
		payments:      newMockPaymentRepo(),
		students:      newMockStudentRepo(),
		notifications: newMockNotificationRepo(),
		jobs:          newMockSideEffectJobRepo(),
		gw:            &fakeGateway{},
		pay:           &fakePaymentGateway{},
		locker:        newFakeLocker(),
		now:           testT0,
	}
	repo := &repository.Repository{
		Programme:     env.programmes,
		Profile:       env.profiles,
		Application:   env.applications,
		Offer:         env.offers,
		Payment:       env.payments,
		Student:       env.students,
		Notification:  env.notifications,
		SideEffectJob: env.jobs,
	}

	cfg := testConfig()
	calc, err := NewCalculator(&cfg.Admission)
	if err != nil {
		t.Fatalf("构造学费计算器失败: %v", err)
	}
	env.calc = calc
	env.svc = NewService(cfg, repo, Deps{
		Calculator: calc,
		Gateway:    env.gw,
		Payments:   env.pay,
		Locker:     env.locker,
		Clock:      func() time.Time { return env.now },
	}, zap.NewNop())

	env.programmes.programmes[testProgramme] = &model.Programme{
		ProgrammeID:   testProgramme,
		Slug:          "bsc-business",
		Name:          "BSc Business Administration",
		School:        "School of Business",
		DegreeLevel:   tuition.DegreeBachelor,
		DurationYears: 3,
	}
	env.profiles.profiles[testApplicant] = &model.Profile{
		UserID:   testApplicant,
		FullName: "Anna Schmidt",
		Email:    "anna@example.com",
		Role:     model.RoleApplicant,
	}
	return env
}

// advance 拨动测试时钟
func (env *testEnv) advance(d time.Duration) {
	env.now = env.now.Add(d)
}

func completePersonalInfo() model.PersonalInfo {
	return model.PersonalInfo{
		FirstName:      "Anna",
		LastName:       "Schmidt",
		DateOfBirth:    "2004-05-17",
		Nationality:    "DE",
		PassportNumber: "C01X00T47",
	}
}

func completeContactDetails() model.ContactDetails {
	return model.ContactDetails{
		Email:        "anna@example.com",
		Phone:        "+49 30 1234567",
		AddressLine1: "Hauptstraße 1",
		City:         "Berlin",
		PostalCode:   "10115",
		Country:      "DE",
	}
}

// seedApplication 直接写入一份指定状态、信息完整的申请
func (env *testEnv) seedApplication(id string, status admission.Status) *model.Application {
	app := &model.Application{
		ApplicationID:      id,
		ApplicantID:        testApplicant,
		ProgrammeID:        testProgramme,
		Status:             status,
		PersonalInfo:       datatypes.NewJSONType(completePersonalInfo()),
		ContactDetails:     datatypes.NewJSONType(completeContactDetails()),
		RequestedDocuments: []string{},
	}
	app.Version = 1
	env.applications.apps[id] = app
	return app
}

// seedOffer 直接写入录取通知：原价 10000，展示学费 7500
func (env *testEnv) seedOffer(appID string, offerType model.OfferType, status model.OfferStatus) *model.AdmissionOffer {
	env.offers.seq++
	offer := &model.AdmissionOffer{
		OfferID:         "offer-seed-" + appID,
		ApplicationID:   appID,
		TuitionFee:      decimal.NewFromInt(7500),
		DiscountAmount:  decimal.NewFromInt(2500),
		Currency:        "EUR",
		PaymentDeadline: env.now.AddDate(0, 0, 30),
		OfferType:       offerType,
		Status:          status,
	}
	offer.CreatedAt = env.now
	env.offers.byApp[appID] = offer
	return offer
}

func (env *testEnv) appStatus(id string) admission.Status {
	return env.applications.apps[id].Status
}
