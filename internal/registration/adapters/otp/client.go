// Package otp is the HTTP adapter for the OTP backend.
package otp

import (
	"context"
	"net/http"
	"time"

	"onboarding/internal/registration/adapters/jsonapi"
	"onboarding/internal/registration/ports"
)

const gatewayName = "otp"

// Client implements ports.OtpGateway over HTTP.
type Client struct {
	api *jsonapi.Client
}

// New builds a client for the backend at baseURL.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{api: jsonapi.New(gatewayName, baseURL, apiKey, timeout)}
}

type generateRequest struct {
	Phone string `json:"phone"`
}

type generateResponse struct {
	OTP string `json:"otp,omitempty"`
}

type validateRequest struct {
	OTPCode string `json:"otpCode"`
	Phone   string `json:"phone"`
}

type sendSmsRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

// Issue asks the backend to generate a code and text it to phone.
func (c *Client) Issue(ctx context.Context, phone string) (*ports.IssueResult, error) {
	var out generateResponse
	if err := c.api.Do(ctx, "issue", http.MethodPost, "/otp/generate", generateRequest{Phone: phone}, &out); err != nil {
		return nil, err
	}
	return &ports.IssueResult{OTP: out.OTP}, nil
}

// Validate checks code for phone.
func (c *Client) Validate(ctx context.Context, code, phone string) error {
	return c.api.Do(ctx, "validate", http.MethodPost, "/otp/validate", validateRequest{OTPCode: code, Phone: phone}, nil)
}

// SendSms texts otp to phone.
func (c *Client) SendSms(ctx context.Context, phone, otp string) error {
	return c.api.Do(ctx, "send_sms", http.MethodPost, "/sms/send", sendSmsRequest{Phone: phone, OTP: otp}, nil)
}
