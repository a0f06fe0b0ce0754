package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registration flow: step
// transitions, gateway latency and outcome, completions and rejected
// concurrent submissions.
type Metrics struct {
	StepTransitions  *prometheus.CounterVec
	GatewayDuration  *prometheus.HistogramVec
	GatewayFailures  *prometheus.CounterVec
	SignupsCompleted *prometheus.CounterVec
	BusyRejections   prometheus.Counter
	PendingRedirects prometheus.Gauge
	SessionsCreated  *prometheus.CounterVec
}

// New registers the registration metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StepTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_registration_step_transitions_total",
			Help: "Registration sessions entering a step",
		}, []string{"step"}),
		GatewayDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onboarding_gateway_duration_seconds",
			Help:    "Duration of OTP and one-click gateway calls",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"gateway", "operation"}),
		GatewayFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_gateway_failures_total",
			Help: "Failed gateway calls by category",
		}, []string{"gateway", "operation", "category"}),
		SignupsCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_signups_completed_total",
			Help: "Registration sessions that reached success",
		}, []string{"flow"}),
		BusyRejections: f.NewCounter(prometheus.CounterOpts{
			Name: "onboarding_busy_rejections_total",
			Help: "Submissions rejected because a gateway call was in flight",
		}),
		PendingRedirects: f.NewGauge(prometheus.GaugeOpts{
			Name: "onboarding_pending_redirects",
			Help: "Scheduled wallet redirects not yet fired or cancelled",
		}),
		SessionsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_sessions_created_total",
			Help: "Registration sessions created by flow",
		}, []string{"flow"}),
	}
}

func (m *Metrics) ObserveStep(step string) {
	if m == nil {
		return
	}
	m.StepTransitions.WithLabelValues(step).Inc()
}

// ObserveGateway records one gateway call. category is empty on success.
func (m *Metrics) ObserveGateway(gateway, operation string, start time.Time, category string) {
	if m == nil {
		return
	}
	m.GatewayDuration.WithLabelValues(gateway, operation).Observe(time.Since(start).Seconds())
	if category != "" {
		m.GatewayFailures.WithLabelValues(gateway, operation, category).Inc()
	}
}

func (m *Metrics) IncrementSignupCompleted(flow string) {
	if m == nil {
		return
	}
	m.SignupsCompleted.WithLabelValues(flow).Inc()
}

func (m *Metrics) IncrementSessionCreated(flow string) {
	if m == nil {
		return
	}
	m.SessionsCreated.WithLabelValues(flow).Inc()
}

func (m *Metrics) IncrementBusyRejection() {
	if m == nil {
		return
	}
	m.BusyRejections.Inc()
}

func (m *Metrics) SetPendingRedirects(n int) {
	if m == nil {
		return
	}
	m.PendingRedirects.Set(float64(n))
}
