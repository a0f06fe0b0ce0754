// Package validation evaluates the declarative signup form schema.
//
// Every field has one rule in the schema table: a validator tag run through
// go-playground/validator, the messages to show, and an optional normalizer.
// The cross-field address rule is applied on top by ValidateForm.
package validation

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"onboarding/internal/registration/models"
	dErrors "onboarding/pkg/domain-errors"
)

// AddressSelectionMessage is the synthetic error attached to addressLine1
// when the user never chose an address option.
const AddressSelectionMessage = "Please select an address or add a new one"

type rule struct {
	tag       string
	required  string
	invalid   string
	normalize func(raw string) string
}

var schema = map[models.FieldName]rule{
	models.FieldFirstName:    {tag: "required,max=100", required: "First name is required", invalid: "First name is too long"},
	models.FieldMiddleName:   {tag: "omitempty,max=100", invalid: "Middle name is too long"},
	models.FieldLastName:     {tag: "required,max=100", required: "Last name is required", invalid: "Last name is too long"},
	models.FieldDOB:          {tag: "required,dob", required: "Invalid Date of Birth", invalid: "Invalid Date of Birth", normalize: normalizeDOB},
	models.FieldSSN:          {tag: "required,ssn", required: "SSN is required", invalid: "Invalid SSN", normalize: normalizeSSNValue},
	models.FieldAddressLine1: {tag: "required,max=255", required: "Address is required", invalid: "Address is too long"},
	models.FieldAddressLine2: {tag: "omitempty,max=255", invalid: "Address line 2 is too long"},
	models.FieldCity:         {tag: "required,max=100", required: "City is required", invalid: "City is too long"},
	models.FieldState:        {tag: "required,us_state", required: "State is required", invalid: "Invalid state", normalize: strings.ToUpper},
	models.FieldZip:          {tag: "required,zip", required: "ZIP code is required", invalid: "Invalid ZIP code"},
	models.FieldCountry:      {tag: "required,max=100", required: "Country is required", invalid: "Country is too long"},
}

// Engine runs field rules. It is safe for concurrent use once built.
type Engine struct {
	validate *validator.Validate
	now      func() time.Time
}

type Option func(*Engine)

// WithClock overrides the clock used to reject future birth dates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New builds an Engine with the custom tags registered.
func New(opts ...Option) *Engine {
	e := &Engine{validate: validator.New(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	must(e.validate.RegisterValidation("ssn", isValidSSN))
	must(e.validate.RegisterValidation("us_state", isValidState))
	must(e.validate.RegisterValidation("zip", isValidZip))
	must(e.validate.RegisterValidation("phone", isValidPhone))
	must(e.validate.RegisterValidation("dob", e.isValidDOB))
	return e
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func (e *Engine) isValidDOB(fl validator.FieldLevel) bool {
	t, ok := parseDOB(fl.Field().String())
	if !ok {
		return false
	}
	return !t.Before(earliestDOB) && t.Before(e.now())
}

// ValidateField runs one field's rule. The returned Value is the normalized
// form to store when the field passes.
func (e *Engine) ValidateField(name models.FieldName, value string) models.FieldResult {
	r, ok := schema[name]
	if !ok {
		return models.FieldResult{Valid: false, Message: "unknown field"}
	}
	value = strings.TrimSpace(value)
	if r.normalize != nil && value != "" {
		value = r.normalize(value)
	}
	if err := e.validate.Var(value, r.tag); err != nil {
		return models.FieldResult{Valid: false, Message: r.messageFor(err), Value: value}
	}
	return models.FieldResult{Valid: true, Value: value}
}

func (r rule) messageFor(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "required" && r.required != "" {
		return r.required
	}
	return r.invalid
}

// Apply runs the field rule and records the outcome on the entry.
func (e *Engine) Apply(entry *models.FieldEntry) {
	res := e.ValidateField(entry.Name, entry.Value)
	entry.Validated = true
	if res.Valid {
		entry.Value = res.Value
		entry.Error = ""
		return
	}
	entry.Error = res.Message
}

// ValidateForm validates every field and then the cross-field address rule.
// It reports whether the form may be submitted.
func (e *Engine) ValidateForm(form *models.FormState, selection models.AddressSelection) bool {
	for i := range form.Fields {
		e.Apply(&form.Fields[i])
	}
	if !selection.HasSelection() {
		if line1 := form.Entry(models.FieldAddressLine1); line1 != nil {
			line1.Error = AddressSelectionMessage
			line1.Validated = true
		}
	}
	return !form.HasErrors()
}

// NormalizePhone validates a phone number for the phone step.
func (e *Engine) NormalizePhone(phone string) (string, error) {
	if err := e.validate.Var(strings.TrimSpace(phone), "required,phone"); err != nil {
		return "", dErrors.New(dErrors.CodeValidation, "Invalid phone number")
	}
	normalized, _ := normalizePhone(phone)
	return normalized, nil
}

func normalizeDOB(raw string) string {
	if t, ok := parseDOB(raw); ok {
		return t.Format("2006-01-02")
	}
	return raw
}

func normalizeSSNValue(raw string) string {
	if s, ok := normalizeSSN(raw); ok {
		return s
	}
	return raw
}
