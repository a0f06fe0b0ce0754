// Package kafka publishes audit events to a Kafka topic and consumes them
// back for materialization.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "onboarding/pkg/platform/audit"
	"onboarding/pkg/platform/audit/worker"
)

// Sink implements audit.Store by producing each event synchronously. The
// session ID is the record key so one session's events stay ordered.
type Sink struct {
	client *kgo.Client
	topic  string
}

// NewSink connects a producer for topic.
func NewSink(brokers []string, topic string) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Sink{client: client, topic: topic}, nil
}

func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.SessionID),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "category", Value: []byte(event.Category)},
			{Key: "action", Value: []byte(event.Action)},
		},
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

func (s *Sink) Close() {
	s.client.Close()
}

// EnsureTopic creates topic when it does not exist yet.
func EnsureTopic(ctx context.Context, brokers []string, topic string, partitions int32, replication int16) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return fmt.Errorf("create kafka admin client: %w", err)
	}
	defer client.Close()

	adm := kadm.NewClient(client)
	resps, err := adm.CreateTopics(ctx, partitions, replication, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, r := range resps {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Consumer reads audit events as a member of a consumer group. Offsets are
// committed explicitly after the batch has been stored.
type Consumer struct {
	client *kgo.Client
	logger *slog.Logger
}

type ConsumerOption func(*Consumer)

func WithLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = logger
	}
}

func NewConsumer(brokers []string, topic, group string, opts ...ConsumerOption) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumerGroup(group),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	c := &Consumer{client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Poll blocks until records arrive or ctx ends.
func (c *Consumer) Poll(ctx context.Context) ([]audit.Event, error) {
	fetches := c.client.PollFetches(ctx)
	if fetches.IsClientClosed() {
		return nil, fmt.Errorf("%w: %w", worker.ErrSourceClosed, kgo.ErrClientClosed)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.collect(ctx, fetches)
}

// collect decodes fetched records. Partition errors are logged; they fail
// the poll only when nothing was fetched. Undecodable records are logged
// and skipped so one bad payload cannot wedge the group.
func (c *Consumer) collect(ctx context.Context, fetches kgo.Fetches) ([]audit.Event, error) {
	errs := fetches.Errors()
	for _, fe := range errs {
		c.logger.WarnContext(ctx, "audit fetch error",
			"topic", fe.Topic,
			"partition", fe.Partition,
			"error", fe.Err,
		)
	}
	var events []audit.Event
	fetches.EachRecord(func(r *kgo.Record) {
		var e audit.Event
		if err := json.Unmarshal(r.Value, &e); err != nil {
			c.logger.ErrorContext(ctx, "skipping malformed audit record",
				"topic", r.Topic,
				"partition", r.Partition,
				"offset", r.Offset,
				"error", err,
			)
			return
		}
		events = append(events, e)
	})
	if len(events) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("poll %s[%d]: %w", errs[0].Topic, errs[0].Partition, errs[0].Err)
	}
	return events, nil
}

// Commit marks everything returned by Poll as processed.
func (c *Consumer) Commit(ctx context.Context) error {
	return c.client.CommitUncommittedOffsets(ctx)
}

func (c *Consumer) Close() {
	c.client.Close()
}
