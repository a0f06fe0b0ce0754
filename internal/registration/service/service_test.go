package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"onboarding/internal/registration/adapters/mock"
	"onboarding/internal/registration/metrics"
	"onboarding/internal/registration/models"
	"onboarding/internal/registration/ports"
	"onboarding/internal/registration/ports/mocks"
	"onboarding/internal/registration/store"
	dErrors "onboarding/pkg/domain-errors"
	"onboarding/pkg/platform/audit"
	auditmemory "onboarding/pkg/platform/audit/store/memory"
	"onboarding/pkg/platform/audit/publisher"
)

// =============================================================================
// Registration Service Test Suite
// =============================================================================
// The service sequences gateway calls against the session state machine.
// Gateways are gomock doubles so each test pins the exact calls a flow makes.

type fakeScheduler struct {
	mu     sync.Mutex
	tasks  map[uuid.UUID]func()
	delays map[uuid.UUID]time.Duration
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{tasks: map[uuid.UUID]func(){}, delays: map[uuid.UUID]time.Duration{}}
}

func (f *fakeScheduler) Schedule(id uuid.UUID, delay time.Duration, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[id] = fn
	f.delays[id] = delay
}

func (f *fakeScheduler) Cancel(id uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tasks[id]
	delete(f.tasks, id)
	return ok
}

func (f *fakeScheduler) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

func (f *fakeScheduler) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = map[uuid.UUID]func(){}
}

// fire runs the pending task for id as if its timer elapsed.
func (f *fakeScheduler) fire(id uuid.UUID) bool {
	f.mu.Lock()
	fn, ok := f.tasks[id]
	delete(f.tasks, id)
	f.mu.Unlock()
	if ok {
		fn()
	}
	return ok
}

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	otp       *mocks.MockOtpGateway
	oneClick  *mocks.MockOneClickGateway
	store     *store.InMemoryStore
	scheduler *fakeScheduler
	audits    *auditmemory.InMemoryStore
	service   *Service
	now       time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.otp = mocks.NewMockOtpGateway(s.ctrl)
	s.oneClick = mocks.NewMockOneClickGateway(s.ctrl)
	s.now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }
	s.store = store.NewInMemory(time.Hour, store.WithMemoryClock(clock))
	s.scheduler = newFakeScheduler()
	s.audits = auditmemory.NewInMemoryStore()
	s.service = New(s.store, s.otp, s.oneClick,
		WithClock(clock),
		WithScheduler(s.scheduler),
		WithAuditPublisher(publisher.NewPublisher(s.audits)),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
		WithCallbackBaseURL("https://signup.example.com/"),
	)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) actions(id uuid.UUID) []string {
	events, err := s.audits.ListBySession(context.Background(), id.String())
	s.Require().NoError(err)
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Action)
	}
	return out
}

// startStandard creates a standard session and walks it to the OTP step.
func (s *ServiceSuite) startStandard(ctx context.Context) *models.Registration {
	reg, err := s.service.Create(ctx, "standard", "")
	s.Require().NoError(err)
	s.otp.EXPECT().Issue(gomock.Any(), "5551234567").Return(&ports.IssueResult{OTP: "424242"}, nil)
	reg, err = s.service.SubmitPhone(ctx, reg.ID, "(555) 123-4567")
	s.Require().NoError(err)
	s.Require().Equal(models.StepOtp, reg.Step)
	return reg
}

// startForm walks a one_click_form session onto the prefilled form.
func (s *ServiceSuite) startForm(ctx context.Context) *models.Registration {
	s.oneClick.EXPECT().Fetch(gomock.Any(), "ident-1").Return(mock.SampleCredentials(), nil)
	reg, err := s.service.Create(ctx, "one_click_form", "ident-1")
	s.Require().NoError(err)
	s.Require().Equal(models.StepForm, reg.Step)
	return reg
}

func fillPersonal() map[string]string {
	return map[string]string{
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"dob":       "02/03/1990",
		"ssn":       "123456789",
	}
}

// =============================================================================
// Create / Start
// =============================================================================

func (s *ServiceSuite) TestCreate() {
	ctx := context.Background()

	s.Run("unknown flow is rejected", func() {
		_, err := s.service.Create(ctx, "fax", "")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("standard flow lands on the phone step", func() {
		reg, err := s.service.Create(ctx, "", "")
		s.Require().NoError(err)
		s.Equal(models.FlowStandard, reg.Flow)
		s.Equal(models.StepPhone, reg.Step)
		s.False(reg.Busy)
		s.Equal([]string{string(audit.EventSessionCreated)}, s.actions(reg.ID))
	})

	s.Run("standard flow ignores an identifier", func() {
		reg, err := s.service.Create(ctx, "standard", "ident-1")
		s.Require().NoError(err)
		s.Equal(models.StepPhone, reg.Step)
	})

	s.Run("starting twice conflicts", func() {
		reg, err := s.service.Create(ctx, "standard", "")
		s.Require().NoError(err)
		_, err = s.service.Start(ctx, reg.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestStartOneClick() {
	ctx := context.Background()

	s.Run("hosted flow completes from fetched credentials", func() {
		s.oneClick.EXPECT().Fetch(gomock.Any(), "ident-1").Return(mock.SampleCredentials(), nil)
		reg, err := s.service.Create(ctx, "one_click", "ident-1")
		s.Require().NoError(err)
		s.Equal(models.StepSuccess, reg.Step)
		s.Contains(s.actions(reg.ID), string(audit.EventSignupCompleted))
	})

	s.Run("form flow prefills personal fields", func() {
		reg := s.startForm(ctx)
		s.Equal("Sample", reg.Form.Value(models.FieldFirstName))
		s.Equal("123-45-6789", reg.Form.Value(models.FieldSSN))
		s.Len(reg.AddressOptions, 3)
		s.False(reg.Selection.HasSelection())
	})

	s.Run("identity not found falls back to the phone step", func() {
		s.oneClick.EXPECT().Fetch(gomock.Any(), "unknown").
			Return(nil, ports.NewGatewayError("oneclick", "fetch", ports.CategoryNotFound, "", nil))
		reg, err := s.service.Create(ctx, "one_click", "unknown")
		s.Require().NoError(err)
		s.Equal(models.StepPhone, reg.Step)
		s.Equal(NotFoundMessage, reg.LastError)
		s.Require().NotNil(reg.Notice)
		s.Equal(models.SeverityError, reg.Notice.Severity)
		s.Contains(s.actions(reg.ID), string(audit.EventIdentityNotFound))
	})

	s.Run("nil credentials count as not found", func() {
		s.oneClick.EXPECT().Fetch(gomock.Any(), "ident-2").Return(nil, nil)
		reg, err := s.service.Create(ctx, "one_click_form", "ident-2")
		s.Require().NoError(err)
		s.Equal(models.StepPhone, reg.Step)
		s.Nil(reg.Credentials)
	})
}

// =============================================================================
// Standard flow
// =============================================================================

func (s *ServiceSuite) TestStandardFlow() {
	ctx := context.Background()

	s.Run("invalid phone is rejected before any gateway call", func() {
		reg, err := s.service.Create(ctx, "standard", "")
		s.Require().NoError(err)
		_, err = s.service.SubmitPhone(ctx, reg.ID, "12")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("issued OTP is shown as a copyable notice", func() {
		reg := s.startStandard(ctx)
		s.Equal("5551234567", reg.Phone)
		s.False(reg.Busy)
		s.Require().NotNil(reg.Notice)
		s.Equal("OTP code: 424242", reg.Notice.Message)
		s.Equal(models.SeverityInfo, reg.Notice.Severity)
		s.Equal("424242", reg.Notice.Copy)
	})

	s.Run("missing OTP in the response falls back to the default code", func() {
		reg, err := s.service.Create(ctx, "standard", "")
		s.Require().NoError(err)
		s.otp.EXPECT().Issue(gomock.Any(), "5551234567").Return(&ports.IssueResult{}, nil)
		reg, err = s.service.SubmitPhone(ctx, reg.ID, "5551234567")
		s.Require().NoError(err)
		s.Equal(DefaultOTP, reg.Notice.Copy)
	})

	s.Run("issue failure stays on the phone step with the gateway message", func() {
		reg, err := s.service.Create(ctx, "standard", "")
		s.Require().NoError(err)
		s.otp.EXPECT().Issue(gomock.Any(), "5551234567").
			Return(nil, ports.NewGatewayError("otp", "issue", ports.CategoryRejected, "Phone blocked", nil))
		reg, err = s.service.SubmitPhone(ctx, reg.ID, "5551234567")
		s.Require().NoError(err)
		s.Equal(models.StepPhone, reg.Step)
		s.False(reg.Busy)
		s.Equal("Phone blocked", reg.LastError)
	})

	s.Run("transport failure shows the generic message", func() {
		reg, err := s.service.Create(ctx, "standard", "")
		s.Require().NoError(err)
		s.otp.EXPECT().Issue(gomock.Any(), "5551234567").
			Return(nil, ports.NewGatewayError("otp", "issue", ports.CategoryUnavailable, "", context.DeadlineExceeded))
		reg, err = s.service.SubmitPhone(ctx, reg.ID, "5551234567")
		s.Require().NoError(err)
		s.Equal(GenericFailureMessage, reg.LastError)
	})

	s.Run("wrong OTP reports the code and allows a retry", func() {
		reg := s.startStandard(ctx)
		s.otp.EXPECT().Validate(gomock.Any(), "000000", "5551234567").
			Return(ports.NewGatewayError("otp", "validate", ports.CategoryRejected, "Invalid OTP", nil))
		reg, err := s.service.SubmitOtp(ctx, reg.ID, "000000")
		s.Require().NoError(err)
		s.Equal(models.StepOtp, reg.Step)
		s.Equal("Invalid OTP: 000000", reg.LastError)

		s.otp.EXPECT().Validate(gomock.Any(), "424242", "5551234567").Return(nil)
		reg, err = s.service.SubmitOtp(ctx, reg.ID, "424242")
		s.Require().NoError(err)
		s.Equal(models.StepForm, reg.Step)
		s.Empty(reg.LastError)
	})

	s.Run("empty OTP is a validation error", func() {
		reg := s.startStandard(ctx)
		_, err := s.service.SubmitOtp(ctx, reg.ID, "  ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("full journey completes with a new address", func() {
		reg := s.startStandard(ctx)
		s.otp.EXPECT().Validate(gomock.Any(), "424242", "5551234567").Return(nil)
		reg, err := s.service.SubmitOtp(ctx, reg.ID, "424242")
		s.Require().NoError(err)

		addNew := models.AddNewAddressOptionID
		reg, err = s.service.SelectAddress(ctx, reg.ID, &addNew)
		s.Require().NoError(err)
		s.True(reg.Selection.IsAddingNew)

		values := fillPersonal()
		values["addressLine1"] = "1 Main St"
		values["city"] = "Springfield"
		values["state"] = "il"
		values["zip"] = "62701"
		values["country"] = "US"
		reg, err = s.service.SubmitForm(ctx, reg.ID, values)
		s.Require().NoError(err)
		s.Equal(models.StepSuccess, reg.Step)
		s.Equal("IL", reg.Form.Value(models.FieldState))
		s.Equal("1990-02-03", reg.Form.Value(models.FieldDOB))

		s.Equal([]string{
			string(audit.EventSessionCreated),
			string(audit.EventOtpIssued),
			string(audit.EventOtpValidated),
			string(audit.EventAddressSelected),
			string(audit.EventSignupCompleted),
		}, s.actions(reg.ID))
	})
}

func (s *ServiceSuite) TestRetryResendOtp() {
	ctx := context.Background()

	s.Run("resend to the stored phone shows a success notice", func() {
		reg := s.startStandard(ctx)
		s.otp.EXPECT().Issue(gomock.Any(), "5551234567").Return(&ports.IssueResult{OTP: "777777"}, nil)
		reg, err := s.service.RetryResendOtp(ctx, reg.ID, "")
		s.Require().NoError(err)
		s.Equal(models.StepOtp, reg.Step)
		s.False(reg.Busy)
		s.Equal(ResendSuccessMessage, reg.Notice.Message)
		s.Equal(models.SeveritySuccess, reg.Notice.Severity)
		s.Equal("777777", reg.Notice.Copy)
	})

	s.Run("resend failure surfaces the real outcome", func() {
		reg := s.startStandard(ctx)
		s.otp.EXPECT().Issue(gomock.Any(), "5551234567").
			Return(nil, ports.NewGatewayError("otp", "issue", ports.CategoryUnavailable, "", nil))
		reg, err := s.service.RetryResendOtp(ctx, reg.ID, "")
		s.Require().NoError(err)
		s.Equal(models.StepOtp, reg.Step)
		s.Equal(GenericFailureMessage, reg.LastError)
		s.Equal(models.SeverityError, reg.Notice.Severity)
	})

	s.Run("resend outside the OTP step conflicts", func() {
		reg, err := s.service.Create(ctx, "standard", "")
		s.Require().NoError(err)
		_, err = s.service.RetryResendOtp(ctx, reg.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

// =============================================================================
// One-click hand-off
// =============================================================================

func (s *ServiceSuite) TestOneClickHandoff() {
	ctx := context.Background()

	s.Run("hand-off texts the code and schedules the redirect", func() {
		reg, err := s.service.Create(ctx, "one_click", "")
		s.Require().NoError(err)
		s.Require().Equal(models.StepPhone, reg.Step)

		s.oneClick.EXPECT().Post(gomock.Any(), ports.PostRequest{
			Phone:       "5551234567",
			Content:     DefaultContent,
			RedirectURL: "https://signup.example.com" + CallbackPath,
		}).Return(&ports.PostResult{URL: "https://wallet.example.com/x", Code: "4567"}, nil)
		s.otp.EXPECT().SendSms(gomock.Any(), "5551234567", "4567").Return(nil)

		reg, err = s.service.SubmitPhone(ctx, reg.ID, "5551234567")
		s.Require().NoError(err)
		s.Equal(models.StepRedirect, reg.Step)
		s.Equal("https://wallet.example.com/x", reg.RedirectURL)
		s.Require().NotNil(reg.RedirectAt)
		s.Equal(s.now.Add(DefaultRedirectDelay), *reg.RedirectAt)
		s.Equal("4567", reg.Notice.Copy)
		s.Equal(DefaultRedirectDelay, s.scheduler.delays[reg.ID])
		s.Empty(reg.NavigateTo)

		s.True(s.scheduler.fire(reg.ID))
		reg, err = s.service.Get(ctx, reg.ID)
		s.Require().NoError(err)
		s.Equal("https://wallet.example.com/x", reg.NavigateTo)
		s.Contains(s.actions(reg.ID), string(audit.EventRedirectFired))
	})

	s.Run("sms failure keeps the phone step and schedules nothing", func() {
		reg, err := s.service.Create(ctx, "one_click_form", "")
		s.Require().NoError(err)
		s.oneClick.EXPECT().Post(gomock.Any(), gomock.Any()).
			Return(&ports.PostResult{URL: "https://wallet.example.com/y", Code: "4567"}, nil)
		s.otp.EXPECT().SendSms(gomock.Any(), "5551234567", "4567").
			Return(ports.NewGatewayError("otp", "send_sms", ports.CategoryRejected, "SMS refused", nil))

		reg, err = s.service.SubmitPhone(ctx, reg.ID, "5551234567")
		s.Require().NoError(err)
		s.Equal(models.StepPhone, reg.Step)
		s.Equal("SMS refused", reg.LastError)
		s.Zero(s.scheduler.Pending())
	})

	s.Run("reset cancels the pending redirect", func() {
		reg, err := s.service.Create(ctx, "one_click", "")
		s.Require().NoError(err)
		s.oneClick.EXPECT().Post(gomock.Any(), gomock.Any()).
			Return(&ports.PostResult{URL: "https://wallet.example.com/z", Code: "4567"}, nil)
		s.otp.EXPECT().SendSms(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		reg, err = s.service.SubmitPhone(ctx, reg.ID, "5551234567")
		s.Require().NoError(err)

		reg, err = s.service.Reset(ctx, reg.ID)
		s.Require().NoError(err)
		s.Equal(models.StepPhone, reg.Step)
		s.Empty(reg.RedirectURL)
		s.False(s.scheduler.fire(reg.ID))
	})

	s.Run("a late redirect after reset is ignored", func() {
		reg, err := s.service.Create(ctx, "one_click", "")
		s.Require().NoError(err)
		s.oneClick.EXPECT().Post(gomock.Any(), gomock.Any()).
			Return(&ports.PostResult{URL: "https://wallet.example.com/z", Code: "4567"}, nil)
		s.otp.EXPECT().SendSms(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		reg, err = s.service.SubmitPhone(ctx, reg.ID, "5551234567")
		s.Require().NoError(err)

		_, err = s.store.Execute(ctx, reg.ID, func(r *models.Registration) error {
			r.Reset(s.now)
			return nil
		})
		s.Require().NoError(err)
		s.True(s.scheduler.fire(reg.ID))

		reg, err = s.service.Get(ctx, reg.ID)
		s.Require().NoError(err)
		s.Empty(reg.NavigateTo)
		s.NotContains(s.actions(reg.ID), string(audit.EventRedirectFired))
	})
}

// =============================================================================
// Busy gating
// =============================================================================

func (s *ServiceSuite) TestBusyGating() {
	ctx := context.Background()

	s.Run("second submission while a call is in flight conflicts", func() {
		reg, err := s.service.Create(ctx, "standard", "")
		s.Require().NoError(err)

		var inner error
		s.otp.EXPECT().Issue(gomock.Any(), "5551234567").
			DoAndReturn(func(ctx context.Context, phone string) (*ports.IssueResult, error) {
				_, inner = s.service.SubmitPhone(ctx, reg.ID, phone)
				return &ports.IssueResult{OTP: "424242"}, nil
			})

		reg, err = s.service.SubmitPhone(ctx, reg.ID, "5551234567")
		s.Require().NoError(err)
		s.True(dErrors.HasCode(inner, dErrors.CodeConflict))
		s.Equal(models.StepOtp, reg.Step)
	})

	s.Run("reset during a call drops the late result", func() {
		reg, err := s.service.Create(ctx, "standard", "")
		s.Require().NoError(err)

		s.otp.EXPECT().Issue(gomock.Any(), "5551234567").
			DoAndReturn(func(ctx context.Context, _ string) (*ports.IssueResult, error) {
				_, resetErr := s.service.Reset(ctx, reg.ID)
				s.Require().NoError(resetErr)
				return &ports.IssueResult{OTP: "424242"}, nil
			})

		reg, err = s.service.SubmitPhone(ctx, reg.ID, "5551234567")
		s.Require().NoError(err)
		s.Equal(models.StepPhone, reg.Step)
		s.False(reg.Busy)
		s.Nil(reg.Notice)
		s.Empty(reg.Phone)
	})

	s.Run("call begun before a reset cannot settle the resubmitted session", func() {
		reg, err := s.service.Create(ctx, "standard", "")
		s.Require().NoError(err)

		type outcome struct {
			reg *models.Registration
			err error
		}
		firstStarted, releaseFirst := make(chan struct{}), make(chan struct{})
		secondStarted, releaseSecond := make(chan struct{}), make(chan struct{})
		s.otp.EXPECT().Issue(gomock.Any(), "5551111111").
			DoAndReturn(func(context.Context, string) (*ports.IssueResult, error) {
				close(firstStarted)
				<-releaseFirst
				return &ports.IssueResult{OTP: "111111"}, nil
			})
		s.otp.EXPECT().Issue(gomock.Any(), "5552222222").
			DoAndReturn(func(context.Context, string) (*ports.IssueResult, error) {
				close(secondStarted)
				<-releaseSecond
				return &ports.IssueResult{OTP: "222222"}, nil
			})

		first := make(chan outcome, 1)
		go func() {
			r, err := s.service.SubmitPhone(ctx, reg.ID, "5551111111")
			first <- outcome{r, err}
		}()
		<-firstStarted

		_, err = s.service.Reset(ctx, reg.ID)
		s.Require().NoError(err)

		second := make(chan outcome, 1)
		go func() {
			r, err := s.service.SubmitPhone(ctx, reg.ID, "5552222222")
			second <- outcome{r, err}
		}()
		<-secondStarted

		close(releaseFirst)
		late := <-first
		s.Require().NoError(late.err)
		s.Equal(models.StepPhone, late.reg.Step)
		s.True(late.reg.Busy)
		s.Empty(late.reg.Phone)

		close(releaseSecond)
		current := <-second
		s.Require().NoError(current.err)
		s.Equal(models.StepOtp, current.reg.Step)
		s.Equal("5552222222", current.reg.Phone)
		s.False(current.reg.Busy)
		s.Require().NotNil(current.reg.Notice)
		s.Equal("222222", current.reg.Notice.Copy)
	})

	s.Run("cancelled request still clears busy", func() {
		reg, err := s.service.Create(ctx, "standard", "")
		s.Require().NoError(err)
		cctx, cancel := context.WithCancel(ctx)
		s.otp.EXPECT().Issue(gomock.Any(), "5551234567").
			DoAndReturn(func(context.Context, string) (*ports.IssueResult, error) {
				cancel()
				return nil, ports.NewGatewayError("otp", "issue", ports.CategoryTimeout, "", context.Canceled)
			})

		reg, err = s.service.SubmitPhone(cctx, reg.ID, "5551234567")
		s.Require().NoError(err)
		s.False(reg.Busy)
		s.Equal(models.StepPhone, reg.Step)
	})
}

// =============================================================================
// Form editing
// =============================================================================

func (s *ServiceSuite) TestForm() {
	ctx := context.Background()

	s.Run("existing address fills read-only fields", func() {
		reg := s.startForm(ctx)
		option := 2
		reg, err := s.service.SelectAddress(ctx, reg.ID, &option)
		s.Require().NoError(err)
		s.Equal("42 Harbor Way", reg.Form.Value(models.FieldAddressLine1))
		s.False(reg.Form.Entry(models.FieldCity).Editable)

		_, err = s.service.UpdateField(ctx, reg.ID, "city", "Elsewhere")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown option is rejected", func() {
		reg := s.startForm(ctx)
		option := 9
		_, err := s.service.SelectAddress(ctx, reg.ID, &option)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("field update validates and normalizes", func() {
		reg := s.startForm(ctx)
		reg, err := s.service.UpdateField(ctx, reg.ID, "ssn", "000-12-3456")
		s.Require().NoError(err)
		s.NotEmpty(reg.Form.Entry(models.FieldSSN).Error)

		reg, err = s.service.UpdateField(ctx, reg.ID, "ssn", "123456789")
		s.Require().NoError(err)
		s.Empty(reg.Form.Entry(models.FieldSSN).Error)
		s.Equal("123-45-6789", reg.Form.Value(models.FieldSSN))
	})

	s.Run("unknown field is a bad request", func() {
		reg := s.startForm(ctx)
		_, err := s.service.UpdateField(ctx, reg.ID, "nickname", "x")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
		_, err = s.service.SubmitForm(ctx, reg.ID, map[string]string{"nickname": "x"})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("form edits outside the form step conflict", func() {
		reg, err := s.service.Create(ctx, "standard", "")
		s.Require().NoError(err)
		_, err = s.service.UpdateField(ctx, reg.ID, "firstName", "Ada")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("submit without an address selection keeps the form", func() {
		reg := s.startForm(ctx)
		reg, err := s.service.SubmitForm(ctx, reg.ID, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Require().NotNil(reg)
		s.Equal(models.StepForm, reg.Step)
		s.Contains(reg.Form.Errors(), models.FieldAddressLine1)
		s.Contains(s.actions(reg.ID), string(audit.EventFormRejected))
	})

	s.Run("submit ignores values for read-only fields", func() {
		reg := s.startForm(ctx)
		option := 1
		reg, err := s.service.SelectAddress(ctx, reg.ID, &option)
		s.Require().NoError(err)
		reg, err = s.service.SubmitForm(ctx, reg.ID, map[string]string{"city": "Elsewhere"})
		s.Require().NoError(err)
		s.Equal(models.StepSuccess, reg.Step)
		s.Equal("Springfield", reg.Form.Value(models.FieldCity))
	})

	s.Run("clearing the selection makes the form unsubmittable", func() {
		reg := s.startForm(ctx)
		option := 1
		reg, err := s.service.SelectAddress(ctx, reg.ID, &option)
		s.Require().NoError(err)
		reg, err = s.service.SelectAddress(ctx, reg.ID, nil)
		s.Require().NoError(err)
		s.False(reg.Selection.HasSelection())
		_, err = s.service.SubmitForm(ctx, reg.ID, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// Reset and expiry
// =============================================================================

func (s *ServiceSuite) TestReset() {
	ctx := context.Background()

	s.Run("reset from the form clears everything", func() {
		reg := s.startForm(ctx)
		reg, err := s.service.Reset(ctx, reg.ID)
		s.Require().NoError(err)
		s.Equal(models.StepPhone, reg.Step)
		s.Nil(reg.Credentials)
		s.Len(reg.AddressOptions, 1)
		s.Empty(reg.Form.Value(models.FieldFirstName))
		s.Contains(s.actions(reg.ID), string(audit.EventSessionReset))
	})

	s.Run("missing session is not found", func() {
		_, err := s.service.Reset(ctx, uuid.New())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestExpireSessions() {
	ctx := context.Background()
	reg, err := s.service.Create(ctx, "standard", "")
	s.Require().NoError(err)

	s.now = s.now.Add(2 * time.Hour)
	n, err := s.service.ExpireSessions(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	_, err = s.service.Get(ctx, reg.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Contains(s.actions(reg.ID), string(audit.EventSessionExpired))
}
