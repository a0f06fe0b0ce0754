package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"onboarding/internal/platform/metrics"
	"onboarding/internal/platform/middleware"
	"onboarding/internal/registration/models"
	dErrors "onboarding/pkg/domain-errors"
	"onboarding/pkg/platform/httputil"
	"onboarding/pkg/platform/middleware/metadata"
	"onboarding/pkg/platform/middleware/requesttime"
	"onboarding/pkg/requestcontext"
)

// Service is the registration orchestrator as seen by the transport.
type Service interface {
	Create(ctx context.Context, flow, identifier string) (*models.Registration, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	SubmitPhone(ctx context.Context, id uuid.UUID, phone string) (*models.Registration, error)
	SubmitOtp(ctx context.Context, id uuid.UUID, code string) (*models.Registration, error)
	RetryResendOtp(ctx context.Context, id uuid.UUID, phone string) (*models.Registration, error)
	SelectAddress(ctx context.Context, id uuid.UUID, option *int) (*models.Registration, error)
	UpdateField(ctx context.Context, id uuid.UUID, field, value string) (*models.Registration, error)
	SubmitForm(ctx context.Context, id uuid.UUID, values map[string]string) (*models.Registration, error)
	Reset(ctx context.Context, id uuid.UUID) (*models.Registration, error)
}

// Handler serves the registration session endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

// New creates a registration Handler. timeout bounds each request,
// including the gateway call it may trigger.
func New(service Service, logger *slog.Logger, metrics *metrics.Metrics, timeout time.Duration) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		metrics: metrics,
		timeout: timeout,
	}
}

// Register mounts the registration routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/register/sessions", func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger, h.metrics))
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(h.timeout))
		r.Use(middleware.ContentTypeJSON)
		r.Use(metadata.ClientMetadata)
		r.Use(requesttime.Middleware)
		r.Use(middleware.LatencyMiddleware(h.metrics))

		r.Post("/", h.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Post("/phone", h.handlePhone)
			r.Post("/otp", h.handleOtp)
			r.Post("/otp/resend", h.handleResend)
			r.Post("/address", h.handleAddress)
			r.Patch("/fields/{field}", h.handleField)
			r.Post("/form", h.handleForm)
			r.Post("/reset", h.handleReset)
		})
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[CreateSessionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	reg, err := h.service.Create(ctx, req.Flow, req.Identifier)
	if err != nil {
		h.fail(ctx, w, "create session", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toSessionResponse(reg))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
		return h.service.Get(ctx, id)
	})
}

func (h *Handler) handlePhone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[PhoneRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.withSession(w, r, func(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
		return h.service.SubmitPhone(ctx, id, req.Phone)
	})
}

func (h *Handler) handleOtp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[OtpRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.withSession(w, r, func(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
		return h.service.SubmitOtp(ctx, id, req.Code)
	})
}

func (h *Handler) handleResend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[PhoneRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.withSession(w, r, func(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
		return h.service.RetryResendOtp(ctx, id, req.Phone)
	})
}

func (h *Handler) handleAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[AddressRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.withSession(w, r, func(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
		return h.service.SelectAddress(ctx, id, req.Option)
	})
}

func (h *Handler) handleField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[FieldRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	field := chi.URLParam(r, "field")
	h.withSession(w, r, func(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
		return h.service.UpdateField(ctx, id, field, req.Value)
	})
}

func (h *Handler) handleForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[FormRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	reg, err := h.service.SubmitForm(ctx, id, req.Values)
	if err != nil && reg != nil && dErrors.HasCode(err, dErrors.CodeValidation) {
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, FormErrorResponse{
			Error:            string(dErrors.CodeValidation),
			ErrorDescription: dErrors.MessageOf(err),
			Session:          toSessionResponse(reg),
		})
		return
	}
	if err != nil {
		h.fail(ctx, w, "submit form", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(reg))
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
		return h.service.Reset(ctx, id)
	})
}

// withSession parses the session ID, runs op and writes the resulting view.
func (h *Handler) withSession(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id uuid.UUID) (*models.Registration, error)) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	reg, err := op(ctx, id)
	if err != nil {
		h.fail(ctx, w, r.Method+" "+r.URL.Path, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(reg))
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid session id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"operation", operation,
		"error", err,
	}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "registration request failed", attrs...)
	} else {
		h.logger.WarnContext(ctx, "registration request rejected", attrs...)
	}
	httputil.WriteError(w, err)
}
