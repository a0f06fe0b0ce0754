// Package ports declares the backends the registration flow talks to.
// The orchestrator depends only on these interfaces; HTTP and mock adapters
// live under internal/registration/adapters.
package ports

//go:generate mockgen -source=gateways.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"onboarding/internal/registration/models"
)

// OtpGateway issues and checks one-time codes and delivers SMS messages.
type OtpGateway interface {
	// Issue generates a code for phone. OTP may be empty when the backend
	// does not disclose it.
	Issue(ctx context.Context, phone string) (*IssueResult, error)

	// Validate checks code against the challenge issued for phone.
	Validate(ctx context.Context, code, phone string) error

	// SendSms delivers otp to phone.
	SendSms(ctx context.Context, phone, otp string) error
}

// OneClickGateway hands the user off to the wallet and fetches prefetched
// credentials by identifier.
type OneClickGateway interface {
	// Post starts a one-click hand-off for phone and returns the wallet URL
	// with the code to send by SMS.
	Post(ctx context.Context, req PostRequest) (*PostResult, error)

	// Fetch loads credentials for identifier. Unknown identifiers return a
	// GatewayError with CategoryNotFound.
	Fetch(ctx context.Context, identifier string) (*models.Credentials, error)
}

// IssueResult is the outcome of OtpGateway.Issue.
type IssueResult struct {
	OTP string
}

// Content is the copy shown by the wallet during hand-off.
type Content struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// PostRequest starts a one-click hand-off. RedirectURL is optional.
type PostRequest struct {
	Phone       string
	Content     Content
	RedirectURL string
}

// PostResult is the outcome of OneClickGateway.Post.
type PostResult struct {
	URL  string
	Code string
}
