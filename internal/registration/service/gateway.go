package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"onboarding/internal/registration/models"
	"onboarding/internal/registration/ports"
)

// call wraps one gateway invocation in a client span and records its
// latency and failure category.
func (s *Service) call(ctx context.Context, gateway, operation string, id uuid.UUID, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "registration."+gateway+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("registration.session_id", id.String()),
			attribute.String("registration.gateway", gateway),
		),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	category := ""
	if err != nil {
		category = string(ports.CategoryOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, category)
		s.logger.WarnContext(ctx, "gateway call failed",
			"gateway", gateway,
			"operation", operation,
			"category", category,
			"session_id", id,
			"error", err,
		)
	}
	s.metrics.ObserveGateway(gateway, operation, start, category)
	return err
}

func (s *Service) issueOtp(ctx context.Context, id uuid.UUID, phone string) (otp string, err error) {
	err = s.call(ctx, "otp", "issue", id, func(ctx context.Context) error {
		res, err := s.otp.Issue(ctx, phone)
		if err != nil {
			return err
		}
		if res != nil {
			otp = res.OTP
		}
		return nil
	})
	if err == nil && otp == "" {
		otp = s.defaultOTP
	}
	return otp, err
}

func (s *Service) validateOtp(ctx context.Context, id uuid.UUID, code, phone string) error {
	return s.call(ctx, "otp", "validate", id, func(ctx context.Context) error {
		return s.otp.Validate(ctx, code, phone)
	})
}

func (s *Service) sendSms(ctx context.Context, id uuid.UUID, phone, otp string) error {
	return s.call(ctx, "otp", "send_sms", id, func(ctx context.Context) error {
		return s.otp.SendSms(ctx, phone, otp)
	})
}

func (s *Service) postOneClick(ctx context.Context, id uuid.UUID, phone string) (res *ports.PostResult, err error) {
	req := ports.PostRequest{Phone: phone, Content: s.content}
	if s.callbackBaseURL != "" {
		req.RedirectURL = s.callbackBaseURL + CallbackPath
	}
	err = s.call(ctx, "oneclick", "post", id, func(ctx context.Context) error {
		res, err = s.oneClick.Post(ctx, req)
		return err
	})
	return res, err
}

func (s *Service) fetchCredentials(ctx context.Context, id uuid.UUID, identifier string) (creds *models.Credentials, err error) {
	err = s.call(ctx, "oneclick", "fetch", id, func(ctx context.Context) error {
		creds, err = s.oneClick.Fetch(ctx, identifier)
		if err == nil && creds == nil {
			return ports.NewGatewayError("oneclick", "fetch", ports.CategoryNotFound, "", nil)
		}
		return err
	})
	return creds, err
}
