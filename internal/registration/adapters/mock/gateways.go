// Package mock provides in-process gateways with deterministic data and a
// configurable latency to mimic real-world calls in development.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"onboarding/internal/registration/models"
	"onboarding/internal/registration/ports"
)

const (
	// FixedOTP is the code issued to every phone.
	FixedOTP = "111111"
	// BlockedPhone always fails to receive codes.
	BlockedPhone = "5550000000"
	// UnknownIdentity is never found by Fetch.
	UnknownIdentity = "unknown"
)

// OtpGateway issues FixedOTP and accepts it for any phone it was issued to.
type OtpGateway struct {
	Latency time.Duration

	mu     sync.Mutex
	issued map[string]string
	sent   []string
}

func NewOtpGateway(latency time.Duration) *OtpGateway {
	return &OtpGateway{Latency: latency, issued: make(map[string]string)}
}

func (g *OtpGateway) Issue(ctx context.Context, phone string) (*ports.IssueResult, error) {
	if err := wait(ctx, g.Latency); err != nil {
		return nil, ports.NewGatewayError("otp", "issue", ports.CategoryTimeout, "", err)
	}
	if phone == BlockedPhone {
		return nil, ports.NewGatewayError("otp", "issue", ports.CategoryRejected, "Unable to send SMS to this number", nil)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.issued[phone] = FixedOTP
	return &ports.IssueResult{OTP: FixedOTP}, nil
}

func (g *OtpGateway) Validate(ctx context.Context, code, phone string) error {
	if err := wait(ctx, g.Latency); err != nil {
		return ports.NewGatewayError("otp", "validate", ports.CategoryTimeout, "", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if want, ok := g.issued[phone]; !ok || want != code {
		return ports.NewGatewayError("otp", "validate", ports.CategoryRejected, "Invalid OTP", nil)
	}
	delete(g.issued, phone)
	return nil
}

func (g *OtpGateway) SendSms(ctx context.Context, phone, otp string) error {
	if err := wait(ctx, g.Latency); err != nil {
		return ports.NewGatewayError("otp", "send_sms", ports.CategoryTimeout, "", err)
	}
	if phone == BlockedPhone {
		return ports.NewGatewayError("otp", "send_sms", ports.CategoryRejected, "Unable to send SMS to this number", nil)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, phone+":"+otp)
	return nil
}

// Sent returns "phone:otp" for every delivered SMS.
func (g *OtpGateway) Sent() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.sent...)
}

// OneClickGateway hands off to WalletURL and returns sample credentials for
// any identifier except UnknownIdentity.
type OneClickGateway struct {
	Latency   time.Duration
	WalletURL string
}

func NewOneClickGateway(latency time.Duration, walletURL string) *OneClickGateway {
	return &OneClickGateway{Latency: latency, WalletURL: walletURL}
}

func (g *OneClickGateway) Post(ctx context.Context, req ports.PostRequest) (*ports.PostResult, error) {
	if err := wait(ctx, g.Latency); err != nil {
		return nil, ports.NewGatewayError("oneclick", "post", ports.CategoryTimeout, "", err)
	}
	if req.Phone == BlockedPhone {
		return nil, ports.NewGatewayError("oneclick", "post", ports.CategoryRejected, "", nil)
	}
	url := fmt.Sprintf("%s?phone=%s", strings.TrimRight(g.WalletURL, "/"), req.Phone)
	return &ports.PostResult{URL: url, Code: codeFor(req.Phone)}, nil
}

func (g *OneClickGateway) Fetch(ctx context.Context, identifier string) (*models.Credentials, error) {
	if err := wait(ctx, g.Latency); err != nil {
		return nil, ports.NewGatewayError("oneclick", "fetch", ports.CategoryTimeout, "", err)
	}
	if identifier == "" || identifier == UnknownIdentity {
		return nil, ports.NewGatewayError("oneclick", "fetch", ports.CategoryNotFound, "", nil)
	}
	return SampleCredentials(), nil
}

// SampleCredentials is the identity returned by Fetch.
func SampleCredentials() *models.Credentials {
	return &models.Credentials{
		FullName:  models.FullName{FirstName: "Sample", LastName: "Citizen"},
		BirthDate: "1990-02-03",
		SSN:       "123-45-6789",
		Addresses: []models.Address{
			{Line1: "123 Main St", City: "Springfield", State: "IL", ZipCode: "62701", Country: "US"},
			{Line1: "42 Harbor Way", Line2: "Apt 5", City: "Portland", State: "OR", ZipCode: "97201", Country: "US"},
		},
	}
}

// codeFor derives a stable four-digit code from the phone.
func codeFor(phone string) string {
	if len(phone) < 4 {
		return "0000"
	}
	return phone[len(phone)-4:]
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
