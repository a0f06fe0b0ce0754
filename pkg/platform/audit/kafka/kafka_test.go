package kafka

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

func fetchesOf(partition kgo.FetchPartition) kgo.Fetches {
	return kgo.Fetches{{
		Topics: []kgo.FetchTopic{{
			Topic:      "onboarding.audit",
			Partitions: []kgo.FetchPartition{partition},
		}},
	}}
}

func record(offset int64, value string) *kgo.Record {
	return &kgo.Record{Topic: "onboarding.audit", Partition: 2, Offset: offset, Value: []byte(value)}
}

func TestConsumerCollect(t *testing.T) {
	t.Run("malformed records are logged and skipped", func(t *testing.T) {
		var buf bytes.Buffer
		c := &Consumer{logger: slog.New(slog.NewJSONHandler(&buf, nil))}

		events, err := c.collect(context.Background(), fetchesOf(kgo.FetchPartition{
			Partition: 2,
			Records: []*kgo.Record{
				record(7, `{"session_id":"a","action":"session_created"}`),
				record(8, `not json`),
			},
		}))

		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "session_created", events[0].Action)
		assert.Contains(t, buf.String(), "skipping malformed audit record")
		assert.Contains(t, buf.String(), `"offset":8`)
		assert.Contains(t, buf.String(), `"partition":2`)
	})

	t.Run("partition error without records fails the poll", func(t *testing.T) {
		c := &Consumer{logger: slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))}

		events, err := c.collect(context.Background(), fetchesOf(kgo.FetchPartition{
			Partition: 0,
			Err:       kerr.NotLeaderForPartition,
		}))

		assert.Nil(t, events)
		assert.ErrorIs(t, err, kerr.NotLeaderForPartition)
	})

	t.Run("partition error alongside records keeps the records", func(t *testing.T) {
		var buf bytes.Buffer
		c := &Consumer{logger: slog.New(slog.NewJSONHandler(&buf, nil))}
		fetches := fetchesOf(kgo.FetchPartition{
			Partition: 2,
			Records:   []*kgo.Record{record(1, `{"session_id":"b","action":"otp_issued"}`)},
		})
		fetches[0].Topics[0].Partitions = append(fetches[0].Topics[0].Partitions, kgo.FetchPartition{
			Partition: 0,
			Err:       kerr.NotLeaderForPartition,
		})

		events, err := c.collect(context.Background(), fetches)

		require.NoError(t, err)
		assert.Len(t, events, 1)
		assert.Contains(t, buf.String(), "audit fetch error")
	})
}
