package handler

import (
	"time"

	"onboarding/internal/registration/models"
)

// SessionResponse is the session view returned after every event.
// Credentials are not echoed; their personal fields already live in Form.
type SessionResponse struct {
	ID             string                  `json:"id"`
	Flow           string                  `json:"flow"`
	Step           string                  `json:"step"`
	Busy           bool                    `json:"busy"`
	Phone          string                  `json:"phone,omitempty"`
	LastError      string                  `json:"lastError,omitempty"`
	Notice         *models.Notice          `json:"notice,omitempty"`
	AddressOptions []models.AddressOption  `json:"addressOptions"`
	Selection      models.AddressSelection `json:"selection"`
	Fields         []models.FieldEntry     `json:"fields"`
	RedirectURL    string                  `json:"redirectUrl,omitempty"`
	RedirectAt     *time.Time              `json:"redirectAt,omitempty"`
	NavigateTo     string                  `json:"navigateTo,omitempty"`
	UpdatedAt      time.Time               `json:"updatedAt"`
}

// FormErrorResponse is returned with 422 when a form submission fails
// validation. The session carries the per-field errors.
type FormErrorResponse struct {
	Error            string           `json:"error"`
	ErrorDescription string           `json:"error_description"`
	Session          *SessionResponse `json:"session"`
}

func toSessionResponse(r *models.Registration) *SessionResponse {
	return &SessionResponse{
		ID:             r.ID.String(),
		Flow:           string(r.Flow),
		Step:           r.Step.String(),
		Busy:           r.Busy,
		Phone:          r.Phone,
		LastError:      r.LastError,
		Notice:         r.Notice,
		AddressOptions: r.AddressOptions,
		Selection:      r.Selection,
		Fields:         r.Form.Fields,
		RedirectURL:    r.RedirectURL,
		RedirectAt:     r.RedirectAt,
		NavigateTo:     r.NavigateTo,
		UpdatedAt:      r.UpdatedAt,
	}
}
