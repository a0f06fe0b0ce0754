package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"onboarding/internal/registration/address"
	"onboarding/internal/registration/models"
	"onboarding/internal/registration/ports"
	dErrors "onboarding/pkg/domain-errors"
	"onboarding/pkg/platform/audit"
)

// Create allocates a session for flow and runs its entry step. identifier
// is the one-click identity handed back by the wallet, if any.
func (s *Service) Create(ctx context.Context, flowName, identifier string) (*models.Registration, error) {
	flow, err := models.ParseFlow(strings.TrimSpace(flowName))
	if err != nil {
		return nil, err
	}
	reg, err := models.NewRegistration(uuid.New(), flow, s.now())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create registration session")
	}
	if err := s.store.Create(ctx, reg); err != nil {
		return nil, s.storeError(err)
	}
	s.metrics.IncrementSessionCreated(string(flow))
	s.logAudit(ctx, audit.EventSessionCreated, reg.ID, reg)

	return s.Start(ctx, reg.ID, identifier)
}

// Start leaves the Loading step. Without an identifier, or in the standard
// flow, it shows the phone step. Otherwise the identity is fetched: hosted
// one-click completes directly, one_click_form shows the prefilled form,
// and any failure falls back to the phone step with a notice.
func (s *Service) Start(ctx context.Context, id uuid.UUID, identifier string) (*models.Registration, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		reg, err := s.update(ctx, id, func(r *models.Registration, now time.Time) error {
			if r.Step != models.StepLoading {
				return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("session already started, step %s", r.Step))
			}
			return r.EnterPhone(now)
		})
		if err == nil {
			s.metrics.ObserveStep(reg.Step.String())
		}
		return reg, err
	}

	started, err := s.begin(ctx, id, models.StepLoading)
	if err != nil {
		return nil, err
	}
	if !started.Flow.UsesOneClickPhone() {
		reg, _, err := s.settle(ctx, started, func(r *models.Registration, now time.Time) error {
			return r.EnterPhone(now)
		})
		return reg, err
	}

	creds, fetchErr := s.fetchCredentials(ctx, id, identifier)

	reg, applied, err := s.settle(ctx, started, func(r *models.Registration, now time.Time) error {
		if fetchErr != nil {
			r.Fail(NotFoundMessage, now)
			return r.EnterPhone(now)
		}
		r.AttachCredentials(creds, now)
		if r.Flow == models.FlowOneClickForm {
			return r.EnterForm(now)
		}
		return r.Complete(now)
	})
	if err != nil || !applied {
		return reg, err
	}

	if fetchErr != nil {
		s.logAudit(ctx, audit.EventIdentityNotFound, id, reg, "reason", string(ports.CategoryOf(fetchErr)))
		return reg, nil
	}
	s.logAudit(ctx, audit.EventIdentityFetched, id, reg)
	if reg.Step == models.StepSuccess {
		s.completed(ctx, reg)
	}
	return reg, nil
}

// SubmitPhone handles the phone step. The standard flow issues an OTP; the
// one-click flows post a wallet hand-off, text its code and schedule the
// redirect.
func (s *Service) SubmitPhone(ctx context.Context, id uuid.UUID, phone string) (*models.Registration, error) {
	normalized, err := s.validator.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	started, err := s.begin(ctx, id, models.StepPhone)
	if err != nil {
		return nil, err
	}
	if started.Flow.UsesOneClickPhone() {
		return s.handOff(ctx, started, normalized)
	}

	otp, issueErr := s.issueOtp(ctx, id, normalized)
	reg, applied, err := s.settle(ctx, started, func(r *models.Registration, now time.Time) error {
		if issueErr != nil {
			r.Fail(ports.UserMessage(issueErr, GenericFailureMessage), now)
			return nil
		}
		if err := r.EnterOtp(normalized, now); err != nil {
			return err
		}
		r.Notify(otpNotice(otp), now)
		return nil
	})
	if err != nil || !applied {
		return reg, err
	}
	if issueErr != nil {
		s.logAudit(ctx, audit.EventOtpIssueFailed, id, reg, "reason", reg.LastError)
		return reg, nil
	}
	s.logAudit(ctx, audit.EventOtpIssued, id, reg)
	return reg, nil
}

func (s *Service) handOff(ctx context.Context, started *models.Registration, phone string) (*models.Registration, error) {
	id := started.ID
	var (
		failure string
		result  *ports.PostResult
	)
	result, err := s.postOneClick(ctx, id, phone)
	if err == nil && result == nil {
		err = ports.NewGatewayError("oneclick", "post", ports.CategoryBadData, "", nil)
	}
	if err != nil {
		failure = ports.UserMessage(err, GenericFailureMessage)
	} else if smsErr := s.sendSms(ctx, id, phone, result.Code); smsErr != nil {
		failure = ports.UserMessage(smsErr, GenericFailureMessage)
	}

	reg, applied, err := s.settle(ctx, started, func(r *models.Registration, now time.Time) error {
		if failure != "" {
			r.Fail(failure, now)
			return nil
		}
		if err := r.EnterRedirect(phone, result.URL, now.Add(s.redirectDelay), now); err != nil {
			return err
		}
		r.Notify(otpNotice(result.Code), now)
		return nil
	})
	if err != nil || !applied {
		return reg, err
	}
	if failure != "" {
		s.logAudit(ctx, audit.EventOneClickHandoffError, id, reg, "reason", failure)
		return reg, nil
	}

	s.scheduler.Schedule(id, s.redirectDelay, func() { s.fireRedirect(id) })
	s.metrics.SetPendingRedirects(s.scheduler.Pending())
	s.logAudit(ctx, audit.EventOneClickHandoff, id, reg)
	return reg, nil
}

// fireRedirect records the navigation once the delay elapsed. A session
// that was reset or expired in the meantime is left alone.
func (s *Service) fireRedirect(id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	defer s.metrics.SetPendingRedirects(s.scheduler.Pending())

	reg, err := s.store.Execute(ctx, id, func(r *models.Registration) error {
		if !r.MarkNavigated(s.now()) {
			return errSuperseded
		}
		return nil
	})
	if err != nil {
		s.logger.InfoContext(ctx, "skipping redirect", "session_id", id, "reason", err.Error())
		return
	}
	s.logAudit(ctx, audit.EventRedirectFired, id, reg)
}

// SubmitOtp validates code against the phone that received it.
func (s *Service) SubmitOtp(ctx context.Context, id uuid.UUID, code string) (*models.Registration, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "OTP code is required")
	}
	started, err := s.begin(ctx, id, models.StepOtp)
	if err != nil {
		return nil, err
	}

	validateErr := s.validateOtp(ctx, id, code, started.Phone)
	reg, applied, err := s.settle(ctx, started, func(r *models.Registration, now time.Time) error {
		if validateErr != nil {
			r.Fail(fmt.Sprintf("%s: %s", ports.UserMessage(validateErr, GenericFailureMessage), code), now)
			return nil
		}
		return r.EnterForm(now)
	})
	if err != nil || !applied {
		return reg, err
	}
	if validateErr != nil {
		s.logAudit(ctx, audit.EventOtpRejected, id, reg, "reason", string(ports.CategoryOf(validateErr)))
		return reg, nil
	}
	s.logAudit(ctx, audit.EventOtpValidated, id, reg)
	return reg, nil
}

// RetryResendOtp issues a fresh code without leaving the OTP step. An empty
// phone resends to the stored one. The notice reflects the real outcome.
func (s *Service) RetryResendOtp(ctx context.Context, id uuid.UUID, phone string) (*models.Registration, error) {
	var normalized string
	if strings.TrimSpace(phone) != "" {
		n, err := s.validator.NormalizePhone(phone)
		if err != nil {
			return nil, err
		}
		normalized = n
	}
	started, err := s.begin(ctx, id, models.StepOtp)
	if err != nil {
		return nil, err
	}
	if normalized == "" {
		normalized = started.Phone
	}

	otp, issueErr := s.issueOtp(ctx, id, normalized)
	reg, applied, err := s.settle(ctx, started, func(r *models.Registration, now time.Time) error {
		if issueErr != nil {
			r.Fail(ports.UserMessage(issueErr, GenericFailureMessage), now)
			return nil
		}
		r.Release(now)
		r.Phone = normalized
		r.Notify(models.Notice{Message: ResendSuccessMessage, Severity: models.SeveritySuccess, Copy: otp}, now)
		return nil
	})
	if err != nil || !applied {
		return reg, err
	}
	if issueErr != nil {
		s.logAudit(ctx, audit.EventOtpIssueFailed, id, reg, "reason", reg.LastError)
		return reg, nil
	}
	s.logAudit(ctx, audit.EventOtpResent, id, reg)
	return reg, nil
}

// SelectAddress applies the address selector. A nil option clears the
// selection.
func (s *Service) SelectAddress(ctx context.Context, id uuid.UUID, option *int) (*models.Registration, error) {
	reg, err := s.update(ctx, id, func(r *models.Registration, now time.Time) error {
		if err := r.CanEditForm(); err != nil {
			return err
		}
		patch, err := address.Select(r.Credentials, option)
		if err != nil {
			return err
		}
		r.Selection = address.Apply(&r.Form, patch, s.validator)
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventAddressSelected, id, reg)
	return reg, nil
}

// UpdateField records a user edit and validates that field. Fields the
// address selector owns are writable only while adding a new address.
func (s *Service) UpdateField(ctx context.Context, id uuid.UUID, field, value string) (*models.Registration, error) {
	name, err := models.ParseFieldName(field)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, id, func(r *models.Registration, now time.Time) error {
		if err := r.CanEditForm(); err != nil {
			return err
		}
		entry := r.Form.Entry(name)
		if !entry.Editable {
			return dErrors.New(dErrors.CodeForbidden, fmt.Sprintf("field %s is not editable", name))
		}
		entry.Value = value
		s.validator.Apply(entry)
		r.UpdatedAt = now
		return nil
	})
}

// SubmitForm merges editable values, validates the whole form and completes
// the signup. On failure the session stays on the form with field errors
// and a validation error is returned alongside it.
func (s *Service) SubmitForm(ctx context.Context, id uuid.UUID, values map[string]string) (*models.Registration, error) {
	updates := make(map[models.FieldName]string, len(values))
	for k, v := range values {
		name, err := models.ParseFieldName(k)
		if err != nil {
			return nil, err
		}
		updates[name] = v
	}

	valid := false
	reg, err := s.update(ctx, id, func(r *models.Registration, now time.Time) error {
		if err := r.CanEditForm(); err != nil {
			return err
		}
		for name, v := range updates {
			if entry := r.Form.Entry(name); entry != nil && entry.Editable {
				entry.Value = v
			}
		}
		valid = s.validator.ValidateForm(&r.Form, r.Selection)
		if !valid {
			r.UpdatedAt = now
			return nil
		}
		return r.Complete(now)
	})
	if err != nil {
		return nil, err
	}
	if !valid {
		s.logAudit(ctx, audit.EventFormRejected, id, reg, "reason", fieldList(reg.Form.Errors()))
		return reg, dErrors.New(dErrors.CodeValidation, "form has invalid fields")
	}
	s.metrics.ObserveStep(reg.Step.String())
	s.completed(ctx, reg)
	return reg, nil
}

// Reset tears the session down to the phone step and cancels a pending
// redirect. It is legal from every step, including while a gateway call is
// in flight; that call's outcome is then dropped.
func (s *Service) Reset(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	if s.scheduler.Cancel(id) {
		s.metrics.SetPendingRedirects(s.scheduler.Pending())
	}
	reg, err := s.update(ctx, id, func(r *models.Registration, now time.Time) error {
		r.Reset(now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveStep(reg.Step.String())
	s.logAudit(ctx, audit.EventSessionReset, id, reg)
	return reg, nil
}

func (s *Service) completed(ctx context.Context, reg *models.Registration) {
	s.metrics.IncrementSignupCompleted(string(reg.Flow))
	s.logAudit(ctx, audit.EventSignupCompleted, reg.ID, reg)
}

func otpNotice(otp string) models.Notice {
	return models.Notice{
		Message:  "OTP code: " + otp,
		Severity: models.SeverityInfo,
		Copy:     otp,
	}
}

func fieldList(errs map[models.FieldName]string) string {
	names := make([]string, 0, len(errs))
	for _, f := range models.FieldOrder {
		if _, ok := errs[f]; ok {
			names = append(names, string(f))
		}
	}
	return strings.Join(names, ",")
}
