package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"onboarding/internal/registration/models"
	"onboarding/pkg/platform/sentinel"
)

const (
	sessionKeyPrefix = "registration:session:"
	maxWatchRetries  = 5
)

var watchConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "onboarding_session_store_watch_conflicts_total",
	Help: "Optimistic lock conflicts on the Redis session store",
})

// RedisStore keeps sessions as JSON under a sliding TTL. Execute uses
// WATCH/MULTI so a concurrent writer forces a retry.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(id uuid.UUID) string {
	return sessionKeyPrefix + id.String()
}

func (s *RedisStore) Create(ctx context.Context, reg *models.Registration) error {
	payload, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, sessionKey(reg.ID), payload, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return fmt.Errorf("session %s already exists: %w", reg.ID, sentinel.ErrConflict)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	return load(ctx, s.client, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func load(ctx context.Context, c getter, id uuid.UUID) (*models.Registration, error) {
	raw, err := c.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var reg models.Registration
	if err := json.Unmarshal(raw, &reg); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &reg, nil
}

// Execute reads, mutates and writes the session in one optimistic
// transaction, retrying on WATCH conflicts.
func (s *RedisStore) Execute(ctx context.Context, id uuid.UUID, fn func(*models.Registration) error) (*models.Registration, error) {
	key := sessionKey(id)
	var result *models.Registration

	txf := func(tx *redis.Tx) error {
		reg, err := load(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(reg); err != nil {
			return err
		}
		reg.Version++
		payload, err := json.Marshal(reg)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		result = reg
		return nil
	}

	for range maxWatchRetries {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			watchConflicts.Inc()
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("session %s: %w", id, sentinel.ErrConflict)
}

func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.client.Del(ctx, sessionKey(id)).Err()
}
