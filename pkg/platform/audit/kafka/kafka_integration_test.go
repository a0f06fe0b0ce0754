//go:build integration

package kafka_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	audit "onboarding/pkg/platform/audit"
	"onboarding/pkg/platform/audit/kafka"
	"onboarding/pkg/platform/audit/store/memory"
	"onboarding/pkg/platform/audit/worker"
	"onboarding/pkg/testutil/containers"
)

type KafkaSuite struct {
	suite.Suite
	brokers []string
}

func TestKafkaSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaSuite))
}

func (s *KafkaSuite) SetupSuite() {
	s.brokers = containers.GetManager().GetKafka(s.T()).Brokers
}

// Events produced by the sink are materialized by the worker in order.
func (s *KafkaSuite) TestSinkToWorkerRoundTrip() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	topic := "audit-" + uuid.NewString()
	s.Require().NoError(kafka.EnsureTopic(ctx, s.brokers, topic, 1, 1))
	s.Require().NoError(kafka.EnsureTopic(ctx, s.brokers, topic, 1, 1), "existing topic is accepted")

	sink, err := kafka.NewSink(s.brokers, topic)
	s.Require().NoError(err)
	defer sink.Close()

	sessionID := uuid.NewString()
	for _, action := range []audit.AuditEvent{audit.EventSessionCreated, audit.EventOtpIssued, audit.EventSignupCompleted} {
		s.Require().NoError(sink.Append(ctx, audit.Event{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Action:    string(action),
			Category:  action.Category(),
			Timestamp: time.Now().UTC(),
		}))
	}

	consumer, err := kafka.NewConsumer(s.brokers, topic, "audit-test-"+uuid.NewString())
	s.Require().NoError(err)
	defer consumer.Close()

	store := memory.NewInMemoryStore()
	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- worker.NewWorker(store, consumer, nil).Run(runCtx) }()

	s.Eventually(func() bool {
		events, _ := store.ListBySession(ctx, sessionID)
		return len(events) == 3
	}, 30*time.Second, 100*time.Millisecond)
	stop()
	s.NoError(<-done)

	events, _ := store.ListBySession(ctx, sessionID)
	s.Equal(string(audit.EventSessionCreated), events[0].Action)
	s.Equal(audit.CategoryCompliance, events[2].Category)
}
