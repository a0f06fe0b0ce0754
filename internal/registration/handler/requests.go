package handler

import (
	"strings"

	dErrors "onboarding/pkg/domain-errors"
)

// CreateSessionRequest is the body of POST /register/sessions.
type CreateSessionRequest struct {
	Flow       string `json:"flow"`
	Identifier string `json:"identifier,omitempty"`
}

// Validate implements httputil.Validatable.
func (r *CreateSessionRequest) Validate() error {
	r.Flow = strings.TrimSpace(r.Flow)
	r.Identifier = strings.TrimSpace(r.Identifier)
	if len(r.Identifier) > 256 {
		return dErrors.New(dErrors.CodeValidation, "identifier must be at most 256 characters")
	}
	return nil
}

// PhoneRequest is the body of the phone and resend endpoints.
type PhoneRequest struct {
	Phone string `json:"phone"`
}

func (r *PhoneRequest) Validate() error {
	r.Phone = strings.TrimSpace(r.Phone)
	if len(r.Phone) > 32 {
		return dErrors.New(dErrors.CodeValidation, "phone must be at most 32 characters")
	}
	return nil
}

type OtpRequest struct {
	Code string `json:"code"`
}

func (r *OtpRequest) Validate() error {
	r.Code = strings.TrimSpace(r.Code)
	if r.Code == "" {
		return dErrors.New(dErrors.CodeValidation, "code is required")
	}
	if len(r.Code) > 16 {
		return dErrors.New(dErrors.CodeValidation, "code must be at most 16 characters")
	}
	return nil
}

// AddressRequest selects an address option. A null option clears the
// selection.
type AddressRequest struct {
	Option *int `json:"option"`
}

func (r *AddressRequest) Validate() error {
	if r.Option != nil && *r.Option < 0 {
		return dErrors.New(dErrors.CodeBadRequest, "option must not be negative")
	}
	return nil
}

type FieldRequest struct {
	Value string `json:"value"`
}

func (r *FieldRequest) Validate() error {
	if len(r.Value) > 512 {
		return dErrors.New(dErrors.CodeValidation, "value must be at most 512 characters")
	}
	return nil
}

// FormRequest carries the final values of the editable fields.
type FormRequest struct {
	Values map[string]string `json:"values"`
}

func (r *FormRequest) Validate() error {
	for k, v := range r.Values {
		if len(v) > 512 {
			return dErrors.New(dErrors.CodeValidation, k+" must be at most 512 characters")
		}
	}
	return nil
}
