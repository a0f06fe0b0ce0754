package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	dErrors "onboarding/pkg/domain-errors"
)

// Severity classifies a transient notice.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notice is a transient, dismissible notification. Copy carries a value the
// client may offer to copy (the issued OTP).
type Notice struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Copy     string   `json:"copy,omitempty"`
}

// Registration is the composite state of one signup attempt: the session,
// the address selection and the form. It is owned by the orchestrator and
// only changed through the transition methods below.
//
// Invariants:
//   - exactly one Step is active
//   - Busy is set while a gateway call is in flight and blocks new submissions
//   - Attempt identifies the in-flight call; Begin and Reset advance it
//   - address fields are editable iff Selection.IsAddingNew
//   - AddressOptions is regenerated whenever Credentials change
type Registration struct {
	ID             uuid.UUID        `json:"id"`
	Flow           Flow             `json:"flow"`
	Step           Step             `json:"step"`
	Phone          string           `json:"phone,omitempty"`
	Busy           bool             `json:"busy"`
	LastError      string           `json:"lastError,omitempty"`
	Notice         *Notice          `json:"notice,omitempty"`
	Credentials    *Credentials     `json:"credentials,omitempty"`
	AddressOptions []AddressOption  `json:"addressOptions"`
	Selection      AddressSelection `json:"selection"`
	Form           FormState        `json:"form"`
	RedirectURL    string           `json:"redirectUrl,omitempty"`
	RedirectAt     *time.Time       `json:"redirectAt,omitempty"`
	NavigateTo     string           `json:"navigateTo,omitempty"`
	Attempt        int64            `json:"attempt"`
	Version        int64            `json:"version"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// NewRegistration creates a session in the Loading step.
func NewRegistration(id uuid.UUID, flow Flow, now time.Time) (*Registration, error) {
	if id == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "registration id cannot be nil")
	}
	if _, err := ParseFlow(string(flow)); err != nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, err.Error())
	}
	r := &Registration{
		ID:        id,
		Flow:      flow,
		Step:      StepLoading,
		CreatedAt: now,
	}
	r.resetState(now)
	return r, nil
}

func (r *Registration) resetState(now time.Time) {
	r.Phone = ""
	r.Busy = false
	r.LastError = ""
	r.Notice = nil
	r.Credentials = nil
	r.AddressOptions = BuildAddressOptions(nil)
	r.Selection = AddressSelection{}
	r.Form = NewFormState()
	r.RedirectURL = ""
	r.RedirectAt = nil
	r.NavigateTo = ""
	r.UpdatedAt = now
}

// BuildAddressOptions derives the selector options from credentials.
func BuildAddressOptions(c *Credentials) []AddressOption {
	options := []AddressOption{{ID: AddNewAddressOptionID, Label: "+ Add New Address"}}
	if c == nil {
		return options
	}
	for i, a := range c.Addresses {
		options = append(options, AddressOption{ID: i + 1, Label: a.Label()})
	}
	return options
}

// CanBegin checks that a user event is legal in the current step and that
// no other gateway call is in flight.
func (r *Registration) CanBegin(expected Step) error {
	if r.Busy {
		return dErrors.New(dErrors.CodeConflict, "a request is already in progress for this session")
	}
	if r.Step != expected {
		return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("operation not allowed in step %s", r.Step))
	}
	return nil
}

// ApplyBegin marks the session busy before a gateway call.
func (r *Registration) ApplyBegin(now time.Time) {
	r.Attempt++
	r.Busy = true
	r.LastError = ""
	r.UpdatedAt = now
}

// Begin validates and applies ApplyBegin in one call.
func (r *Registration) Begin(expected Step, now time.Time) error {
	if err := r.CanBegin(expected); err != nil {
		return err
	}
	r.ApplyBegin(now)
	return nil
}

// Release settles a gateway call that succeeded without moving the step.
func (r *Registration) Release(now time.Time) {
	r.Busy = false
	r.UpdatedAt = now
}

// CanEditForm checks that the form is shown and no gateway call is running.
func (r *Registration) CanEditForm() error {
	if r.Step != StepForm {
		return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("form is not editable in step %s", r.Step))
	}
	if r.Busy {
		return dErrors.New(dErrors.CodeConflict, "a request is already in progress for this session")
	}
	return nil
}

// Fail settles a gateway call that did not succeed: the step stays, the error
// is surfaced as a notice and the session accepts a retry.
func (r *Registration) Fail(message string, now time.Time) {
	r.Busy = false
	r.LastError = message
	r.Notice = &Notice{Message: message, Severity: SeverityError}
	r.UpdatedAt = now
}

// Notify replaces the current notice without touching the step.
func (r *Registration) Notify(n Notice, now time.Time) {
	r.Notice = &n
	r.UpdatedAt = now
}

func (r *Registration) moveTo(next Step, now time.Time) error {
	if !r.Step.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("illegal step transition %s -> %s", r.Step, next))
	}
	r.Step = next
	r.Busy = false
	r.UpdatedAt = now
	return nil
}

// EnterPhone moves a loading session to manual phone entry.
func (r *Registration) EnterPhone(now time.Time) error {
	return r.moveTo(StepPhone, now)
}

// EnterOtp stores the phone that received the code and shows the OTP step.
func (r *Registration) EnterOtp(phone string, now time.Time) error {
	if err := r.moveTo(StepOtp, now); err != nil {
		return err
	}
	r.Phone = phone
	return nil
}

// EnterForm shows the signup form.
func (r *Registration) EnterForm(now time.Time) error {
	return r.moveTo(StepForm, now)
}

// EnterRedirect records the wallet hand-off target and when the client will
// be navigated there.
func (r *Registration) EnterRedirect(phone, url string, at time.Time, now time.Time) error {
	if err := r.moveTo(StepRedirect, now); err != nil {
		return err
	}
	r.Phone = phone
	r.RedirectURL = url
	r.RedirectAt = &at
	return nil
}

// Complete moves the session to its terminal step.
func (r *Registration) Complete(now time.Time) error {
	return r.moveTo(StepSuccess, now)
}

// AttachCredentials stores fetched credentials, regenerates the address
// options and prefills the personal fields.
func (r *Registration) AttachCredentials(c *Credentials, now time.Time) {
	r.Credentials = c
	r.AddressOptions = BuildAddressOptions(c)
	r.Selection = AddressSelection{}
	r.Form = NewFormState()
	r.Form.Prefill(c)
	r.UpdatedAt = now
}

// MarkNavigated records that the scheduled redirect fired. It is a no-op
// once the session left the Redirect step.
func (r *Registration) MarkNavigated(now time.Time) bool {
	if r.Step != StepRedirect || r.RedirectURL == "" {
		return false
	}
	r.NavigateTo = r.RedirectURL
	r.UpdatedAt = now
	return true
}

// Reset tears down session, selection and form and returns to manual phone
// entry, the first interactive step of every flow.
func (r *Registration) Reset(now time.Time) {
	r.Attempt++
	r.resetState(now)
	r.Step = StepPhone
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (r *Registration) Clone() *Registration {
	if r == nil {
		return nil
	}
	out := *r
	if r.Notice != nil {
		n := *r.Notice
		out.Notice = &n
	}
	if r.Credentials != nil {
		c := *r.Credentials
		c.Addresses = append([]Address(nil), r.Credentials.Addresses...)
		out.Credentials = &c
	}
	out.AddressOptions = append([]AddressOption(nil), r.AddressOptions...)
	if r.Selection.SelectedIndex != nil {
		idx := *r.Selection.SelectedIndex
		out.Selection.SelectedIndex = &idx
	}
	out.Form = r.Form.Clone()
	if r.RedirectAt != nil {
		at := *r.RedirectAt
		out.RedirectAt = &at
	}
	return &out
}
