package otp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboarding/internal/registration/ports"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/otp/generate", func(w http.ResponseWriter, req *http.Request) {
		var in generateRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&in))
		if in.Phone == "5550000000" {
			_, _ = w.Write([]byte(`{"error":"Phone blocked"}`))
			return
		}
		_, _ = w.Write([]byte(`{"otp":"424242"}`))
	})
	r.Post("/otp/validate", func(w http.ResponseWriter, req *http.Request) {
		var in validateRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&in))
		if in.OTPCode != "424242" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Invalid OTP"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/sms/send", func(w http.ResponseWriter, req *http.Request) {
		var in sendSmsRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&in))
		assert.Equal(t, "9999", in.OTP)
		_, _ = w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient(t *testing.T) {
	srv := newBackend(t)
	c := New(srv.URL, "", time.Second)
	ctx := context.Background()

	t.Run("issue returns the generated code", func(t *testing.T) {
		res, err := c.Issue(ctx, "5551234567")
		require.NoError(t, err)
		assert.Equal(t, "424242", res.OTP)
	})

	t.Run("issue surfaces backend error text", func(t *testing.T) {
		_, err := c.Issue(ctx, "5550000000")
		require.Error(t, err)
		assert.Equal(t, "Phone blocked", ports.UserMessage(err, ""))
	})

	t.Run("validate accepts the right code", func(t *testing.T) {
		require.NoError(t, c.Validate(ctx, "424242", "5551234567"))
	})

	t.Run("validate rejects the wrong code", func(t *testing.T) {
		err := c.Validate(ctx, "000000", "5551234567")
		require.Error(t, err)
		assert.Equal(t, ports.CategoryRejected, ports.CategoryOf(err))
		assert.Equal(t, "Invalid OTP", ports.UserMessage(err, ""))
	})

	t.Run("send sms", func(t *testing.T) {
		require.NoError(t, c.SendSms(ctx, "5551234567", "9999"))
	})
}
