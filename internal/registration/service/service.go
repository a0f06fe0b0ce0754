// Package service is the registration orchestrator. It owns the session
// state machine and sequences the asynchronous gateway steps of both the
// standard and the one-click signup flows.
//
// Every gateway-backed operation runs in three phases: begin marks the
// session busy, the gateway is called with no lock held, and settle applies
// the outcome. begin and settle are each one compare-and-set on the store.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"onboarding/internal/registration/device"
	"onboarding/internal/registration/metrics"
	"onboarding/internal/registration/models"
	"onboarding/internal/registration/ports"
	"onboarding/internal/registration/redirect"
	"onboarding/internal/registration/validation"
	dErrors "onboarding/pkg/domain-errors"
	"onboarding/pkg/platform/audit"
	"onboarding/pkg/platform/sentinel"
	"onboarding/pkg/requestcontext"
)

const (
	NotFoundMessage       = "We couldn't find your identity. Please try again."
	GenericFailureMessage = "An unexpected error happened"
	ResendSuccessMessage  = "SMS sent successfully"
	DefaultRedirectDelay  = 8 * time.Second
	DefaultOTP            = "111111"
	// CallbackPath is appended to the callback base URL handed to the
	// one-click backend.
	CallbackPath = "/register/1-click/hosted"
)

// DefaultContent is the copy the wallet shows during hand-off.
var DefaultContent = ports.Content{Title: "Signup", Description: "Register to Slooow"}

// errSuperseded aborts a settle whose session was reset or otherwise
// changed while the gateway call was in flight.
var errSuperseded = errors.New("session changed while a gateway call was in flight")

type Store interface {
	Create(ctx context.Context, reg *models.Registration) error
	Get(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	Execute(ctx context.Context, id uuid.UUID, fn func(*models.Registration) error) (*models.Registration, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Expirer is implemented by stores that drop sessions themselves and
// report which ones.
type Expirer interface {
	PurgeExpired(ctx context.Context) ([]uuid.UUID, error)
}

type Scheduler interface {
	Schedule(id uuid.UUID, delay time.Duration, fn func())
	Cancel(id uuid.UUID) bool
	Pending() int
	Stop()
}

type Validator interface {
	ValidateField(name models.FieldName, value string) models.FieldResult
	Apply(entry *models.FieldEntry)
	ValidateForm(form *models.FormState, selection models.AddressSelection) bool
	NormalizePhone(phone string) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates registration sessions.
type Service struct {
	store     Store
	otp       ports.OtpGateway
	oneClick  ports.OneClickGateway
	validator Validator
	scheduler Scheduler

	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	now            func() time.Time

	redirectDelay   time.Duration
	callbackBaseURL string
	defaultOTP      string
	content         ports.Content
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func WithValidator(v Validator) Option {
	return func(s *Service) {
		s.validator = v
	}
}

func WithScheduler(scheduler Scheduler) Option {
	return func(s *Service) {
		s.scheduler = scheduler
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithRedirectDelay sets how long the redirect step waits before the wallet
// navigation fires.
func WithRedirectDelay(d time.Duration) Option {
	return func(s *Service) {
		s.redirectDelay = d
	}
}

// WithCallbackBaseURL makes one-click hand-offs return to
// base + CallbackPath. Empty means the backend's default.
func WithCallbackBaseURL(base string) Option {
	return func(s *Service) {
		s.callbackBaseURL = strings.TrimRight(base, "/")
	}
}

// WithDefaultOTP sets the code shown when the OTP backend does not
// disclose the one it issued.
func WithDefaultOTP(otp string) Option {
	return func(s *Service) {
		s.defaultOTP = otp
	}
}

func WithContent(c ports.Content) Option {
	return func(s *Service) {
		s.content = c
	}
}

// New constructs a Service.
func New(store Store, otp ports.OtpGateway, oneClick ports.OneClickGateway, opts ...Option) *Service {
	s := &Service{
		store:         store,
		otp:           otp,
		oneClick:      oneClick,
		logger:        slog.Default(),
		now:           time.Now,
		redirectDelay: DefaultRedirectDelay,
		defaultOTP:    DefaultOTP,
		content:       DefaultContent,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = validation.New(validation.WithClock(s.now))
	}
	if s.scheduler == nil {
		s.scheduler = redirect.NewScheduler()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("onboarding/registration")
	}
	return s
}

// Get returns the current session view.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	reg, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.storeError(err)
	}
	return reg, nil
}

// Close cancels every pending redirect.
func (s *Service) Close() {
	s.scheduler.Stop()
	s.metrics.SetPendingRedirects(0)
}

// ExpireSessions drops sessions the store reports as expired and cancels
// their redirect timers.
func (s *Service) ExpireSessions(ctx context.Context) (int, error) {
	exp, ok := s.store.(Expirer)
	if !ok {
		return 0, nil
	}
	ids, err := exp.PurgeExpired(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge expired sessions")
	}
	for _, id := range ids {
		s.scheduler.Cancel(id)
		s.logAudit(ctx, audit.EventSessionExpired, id, nil)
	}
	s.metrics.SetPendingRedirects(s.scheduler.Pending())
	return len(ids), nil
}

// RunJanitor expires sessions every interval until ctx is cancelled.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n, err := s.ExpireSessions(ctx); err != nil {
				s.logger.ErrorContext(ctx, "session janitor failed", "error", err)
			} else if n > 0 {
				s.logger.InfoContext(ctx, "expired registration sessions", "count", n)
			}
		}
	}
}

// update applies a synchronous mutation.
func (s *Service) update(ctx context.Context, id uuid.UUID, fn func(r *models.Registration, now time.Time) error) (*models.Registration, error) {
	reg, err := s.store.Execute(ctx, id, func(r *models.Registration) error {
		return fn(r, s.now())
	})
	if err != nil {
		return nil, s.storeError(err)
	}
	return reg, nil
}

// begin marks the session busy for a gateway call expected in step.
func (s *Service) begin(ctx context.Context, id uuid.UUID, step models.Step) (*models.Registration, error) {
	reg, err := s.store.Execute(ctx, id, func(r *models.Registration) error {
		return r.Begin(step, s.now())
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			s.metrics.IncrementBusyRejection()
		}
		return nil, s.storeError(err)
	}
	return reg, nil
}

// settle applies a gateway outcome to the call begun as started. It runs
// detached from request cancellation so an aborted request still clears
// Busy. applied is false when the session was reset or moved on while the
// call was in flight; the current state is returned instead.
func (s *Service) settle(ctx context.Context, started *models.Registration, fn func(r *models.Registration, now time.Time) error) (reg *models.Registration, applied bool, err error) {
	ctx = context.WithoutCancel(ctx)
	id, step := started.ID, started.Step
	reg, err = s.store.Execute(ctx, id, func(r *models.Registration) error {
		if !r.Busy || r.Step != step || r.Attempt != started.Attempt {
			return errSuperseded
		}
		return fn(r, s.now())
	})
	if errors.Is(err, errSuperseded) {
		s.logger.InfoContext(ctx, "dropping gateway result for superseded session",
			"session_id", id,
			"step", step,
			"attempt", started.Attempt,
		)
		current, getErr := s.Get(ctx, id)
		return current, false, getErr
	}
	if err != nil {
		return nil, false, s.storeError(err)
	}
	if reg.Step != step {
		s.metrics.ObserveStep(reg.Step.String())
	}
	return reg, true, nil
}

func (s *Service) storeError(err error) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "registration session not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "registration session was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to access registration session")
	}
}

// logAudit writes the structured audit log line and emits the audit event.
func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, id uuid.UUID, reg *models.Registration, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	ev := audit.Event{
		SessionID: id.String(),
		Action:    string(event),
		Category:  event.Category(),
		Timestamp: requestcontext.Now(ctx),
		RequestID: requestID,
		IP:        requestcontext.ClientIP(ctx),
	}
	if ua := requestcontext.UserAgent(ctx); ua != "" {
		ev.Device = device.ParseUserAgent(ua)
	}
	if reg != nil {
		ev.Flow = string(reg.Flow)
		ev.Step = reg.Step.String()
		attributes = append(attributes, "flow", reg.Flow, "step", reg.Step)
	}
	if reason, ok := extractString(attributes, "reason"); ok {
		ev.Reason = reason
	}
	args := append(attributes, "session_id", id, "event", string(event), "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, ev); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "error", err, "event", string(event))
	}
}

func extractString(attributes []any, key string) (string, bool) {
	for i := 0; i+1 < len(attributes); i += 2 {
		if k, ok := attributes[i].(string); ok && k == key {
			v, ok := attributes[i+1].(string)
			return v, ok
		}
	}
	return "", false
}
