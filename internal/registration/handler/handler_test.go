package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboarding/internal/platform/metrics"
	"onboarding/internal/registration/adapters/mock"
	"onboarding/internal/registration/service"
	"onboarding/internal/registration/store"
	"onboarding/pkg/testutil"
)

// Handler tests drive the real orchestrator over the in-process mock
// gateways so every scenario exercises the full request path.

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(
		store.NewInMemory(time.Hour),
		mock.NewOtpGateway(0),
		mock.NewOneClickGateway(0, "https://wallet.example.com/1-click"),
		service.WithLogger(logger),
		service.WithRedirectDelay(20*time.Millisecond),
	)
	t.Cleanup(svc.Close)

	r := chi.NewRouter()
	New(svc, logger, metrics.New(prometheus.NewRegistry()), 5*time.Second).Register(r)
	return r
}

func create(t *testing.T, router http.Handler, flow, identifier string) *SessionResponse {
	t.Helper()
	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/register/sessions",
		CreateSessionRequest{Flow: flow, Identifier: identifier}))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return testutil.UnmarshalResponse[SessionResponse](t, rr)
}

func post(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, path, body))
}

func field(s *SessionResponse, name string) string {
	for _, f := range s.Fields {
		if string(f.Name) == name {
			return f.Value
		}
	}
	return ""
}

func TestStandardSignup(t *testing.T) {
	router := newRouter(t)

	testutil.Given(t, "a standard session", func(t *testing.T) {
		sess := create(t, router, "standard", "")
		assert.Equal(t, "phone", sess.Step)
		base := "/register/sessions/" + sess.ID

		testutil.When(t, "the phone is submitted", func(t *testing.T) {
			rr := post(t, router, base+"/phone", PhoneRequest{Phone: "(555) 123-4567"})
			testutil.AssertStatus(t, rr, http.StatusOK)
			got := testutil.UnmarshalResponse[SessionResponse](t, rr)

			testutil.Then(t, "the OTP step shows the issued code", func(t *testing.T) {
				assert.Equal(t, "otp", got.Step)
				require.NotNil(t, got.Notice)
				assert.Equal(t, "OTP code: "+mock.FixedOTP, got.Notice.Message)
				assert.Equal(t, mock.FixedOTP, got.Notice.Copy)
			})
		})

		testutil.When(t, "a wrong OTP is submitted", func(t *testing.T) {
			rr := post(t, router, base+"/otp", OtpRequest{Code: "999999"})
			testutil.AssertStatus(t, rr, http.StatusOK)
			got := testutil.UnmarshalResponse[SessionResponse](t, rr)

			testutil.Then(t, "the step stays and the error names the code", func(t *testing.T) {
				assert.Equal(t, "otp", got.Step)
				assert.Equal(t, "Invalid OTP: 999999", got.LastError)
			})
		})

		testutil.When(t, "the right OTP is submitted", func(t *testing.T) {
			rr := post(t, router, base+"/otp", OtpRequest{Code: mock.FixedOTP})
			got := testutil.UnmarshalResponse[SessionResponse](t, rr)
			assert.Equal(t, "form", got.Step)
		})

		testutil.When(t, "the form is submitted without an address", func(t *testing.T) {
			rr := post(t, router, base+"/form", FormRequest{Values: map[string]string{"firstName": "Ada"}})

			testutil.Then(t, "a 422 carries the field errors", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)
				got := testutil.UnmarshalResponse[FormErrorResponse](t, rr)
				assert.Equal(t, "validation_error", got.Error)
				require.NotNil(t, got.Session)
				assert.Equal(t, "form", got.Session.Step)
			})
		})

		testutil.When(t, "a new address is entered and the form submitted", func(t *testing.T) {
			rr := post(t, router, base+"/address", map[string]any{"option": 0})
			testutil.AssertStatus(t, rr, http.StatusOK)

			rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPatch, base+"/fields/state", FieldRequest{Value: "ca"}))
			testutil.AssertStatus(t, rr, http.StatusOK)
			got := testutil.UnmarshalResponse[SessionResponse](t, rr)
			assert.Equal(t, "CA", field(got, "state"))

			rr = post(t, router, base+"/form", FormRequest{Values: map[string]string{
				"firstName":    "Ada",
				"lastName":     "Lovelace",
				"dob":          "1990-02-03",
				"ssn":          "123-45-6789",
				"addressLine1": "1 Infinite Loop",
				"city":         "Cupertino",
				"zip":          "95014",
				"country":      "US",
			}})

			testutil.Then(t, "the signup succeeds", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				got := testutil.UnmarshalResponse[SessionResponse](t, rr)
				assert.Equal(t, "success", got.Step)
			})
		})
	})
}

func TestOneClickFormSignup(t *testing.T) {
	router := newRouter(t)

	testutil.Given(t, "a one-click form session with a known identity", func(t *testing.T) {
		sess := create(t, router, "one_click_form", "wallet-identity")
		base := "/register/sessions/" + sess.ID

		testutil.Then(t, "the form is prefilled", func(t *testing.T) {
			assert.Equal(t, "form", sess.Step)
			assert.Equal(t, "Sample", field(sess, "firstName"))
			assert.Len(t, sess.AddressOptions, 3)
		})

		testutil.When(t, "an existing address is selected", func(t *testing.T) {
			rr := post(t, router, base+"/address", map[string]any{"option": 2})
			got := testutil.UnmarshalResponse[SessionResponse](t, rr)
			assert.Equal(t, "Portland", field(got, "city"))

			testutil.Then(t, "its fields reject edits", func(t *testing.T) {
				rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPatch, base+"/fields/city", FieldRequest{Value: "Salem"}))
				testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
			})
		})

		testutil.When(t, "the form is submitted", func(t *testing.T) {
			rr := post(t, router, base+"/form", FormRequest{})
			testutil.AssertStatus(t, rr, http.StatusOK)
			testutil.AssertJSONContains(t, rr, "step", "success")
		})
	})

	testutil.Given(t, "an unknown identity", func(t *testing.T) {
		sess := create(t, router, "one_click", mock.UnknownIdentity)

		testutil.Then(t, "the session falls back to the phone step", func(t *testing.T) {
			assert.Equal(t, "phone", sess.Step)
			assert.Equal(t, service.NotFoundMessage, sess.LastError)
		})
	})
}

func TestOneClickRedirect(t *testing.T) {
	router := newRouter(t)
	sess := create(t, router, "one_click", "")
	base := "/register/sessions/" + sess.ID

	rr := post(t, router, base+"/phone", PhoneRequest{Phone: "5551234567"})
	testutil.AssertStatus(t, rr, http.StatusOK)
	got := testutil.UnmarshalResponse[SessionResponse](t, rr)
	assert.Equal(t, "redirect", got.Step)
	assert.Equal(t, "https://wallet.example.com/1-click?phone=5551234567", got.RedirectURL)
	require.NotNil(t, got.Notice)
	assert.Equal(t, "4567", got.Notice.Copy)

	assert.Eventually(t, func() bool {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, base))
		view := testutil.UnmarshalResponse[SessionResponse](t, rr)
		return view.NavigateTo == got.RedirectURL
	}, 2*time.Second, 10*time.Millisecond)
}

func TestErrors(t *testing.T) {
	router := newRouter(t)

	t.Run("unknown flow", func(t *testing.T) {
		rr := post(t, router, "/register/sessions", CreateSessionRequest{Flow: "carrier-pigeon"})
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})

	t.Run("malformed session id", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/register/sessions/not-a-uuid"))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})

	t.Run("missing session", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/register/sessions/00000000-0000-4000-8000-000000000000"))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})

	t.Run("step conflict", func(t *testing.T) {
		sess := create(t, router, "standard", "")
		rr := post(t, router, "/register/sessions/"+sess.ID+"/otp", OtpRequest{Code: "111111"})
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
	})

	t.Run("invalid phone", func(t *testing.T) {
		sess := create(t, router, "standard", "")
		rr := post(t, router, "/register/sessions/"+sess.ID+"/phone", PhoneRequest{Phone: "123"})
		testutil.AssertStatusAndError(t, rr, http.StatusUnprocessableEntity, "validation_error")
	})

	t.Run("gateway rejection is a notice, not an HTTP error", func(t *testing.T) {
		sess := create(t, router, "standard", "")
		rr := post(t, router, "/register/sessions/"+sess.ID+"/phone", PhoneRequest{Phone: mock.BlockedPhone})
		testutil.AssertStatus(t, rr, http.StatusOK)
		got := testutil.UnmarshalResponse[SessionResponse](t, rr)
		assert.Equal(t, "phone", got.Step)
		assert.NotEmpty(t, got.LastError)
	})

	t.Run("non-JSON body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/register/sessions", strings.NewReader("flow=standard"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})

	t.Run("request id is echoed", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/register/sessions/not-a-uuid")
		req.Header.Set("X-Request-ID", "req-123")
		rr := testutil.DoRequest(router, req)
		assert.Equal(t, "req-123", rr.Header().Get("X-Request-ID"))
	})
}

func TestReset(t *testing.T) {
	router := newRouter(t)
	sess := create(t, router, "one_click_form", "wallet-identity")

	rr := post(t, router, "/register/sessions/"+sess.ID+"/reset", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	got := testutil.UnmarshalResponse[SessionResponse](t, rr)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, "phone", got.Step)
	assert.Empty(t, field(got, "firstName"))
	assert.Len(t, got.AddressOptions, 1)
}
