package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose so sinks
// can apply different retention.
type EventCategory string

const (
	// CategoryCompliance covers events with legal significance: a completed
	// signup and identity data handed to the flow.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers failed verification attempts.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine flow progress.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from the signup flow to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string        `json:"id"`
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	// SessionID is the registration session the event belongs to.
	SessionID string `json:"session_id"`
	Action    string `json:"action"`
	Flow      string `json:"flow,omitempty"`
	Step      string `json:"step,omitempty"`
	Reason    string `json:"reason,omitempty"`
	// Device is a display label derived from the User-Agent.
	Device    string `json:"device,omitempty"`
	IP        string `json:"ip,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type AuditEvent string

const (
	EventSessionCreated       AuditEvent = "session_created"
	EventIdentityFetched      AuditEvent = "identity_fetched"
	EventIdentityNotFound     AuditEvent = "identity_not_found"
	EventOtpIssued            AuditEvent = "otp_issued"
	EventOtpIssueFailed       AuditEvent = "otp_issue_failed"
	EventOtpValidated         AuditEvent = "otp_validated"
	EventOtpRejected          AuditEvent = "otp_rejected"
	EventOtpResent            AuditEvent = "otp_resent"
	EventOneClickHandoff      AuditEvent = "oneclick_handoff"
	EventOneClickHandoffError AuditEvent = "oneclick_handoff_failed"
	EventRedirectFired        AuditEvent = "redirect_fired"
	EventAddressSelected      AuditEvent = "address_selected"
	EventFormRejected         AuditEvent = "form_rejected"
	EventSignupCompleted      AuditEvent = "signup_completed"
	EventSessionReset         AuditEvent = "session_reset"
	EventSessionExpired       AuditEvent = "session_expired"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventSignupCompleted: CategoryCompliance,
	EventIdentityFetched: CategoryCompliance,

	EventIdentityNotFound:     CategorySecurity,
	EventOtpRejected:          CategorySecurity,
	EventOtpIssueFailed:       CategorySecurity,
	EventOneClickHandoffError: CategorySecurity,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Lister is implemented by stores that can be queried.
type Lister interface {
	ListBySession(ctx context.Context, sessionID string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
