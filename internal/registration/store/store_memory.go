// Package store persists registration sessions. Both implementations hand
// out clones and apply Execute as a compare-and-set, so concurrent requests
// on one session never observe or overwrite each other's partial state.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"onboarding/internal/registration/models"
	"onboarding/pkg/platform/sentinel"
)

type entry struct {
	reg       *models.Registration
	expiresAt time.Time
}

// InMemoryStore keeps sessions in a map with a sliding TTL.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]entry
	ttl      time.Duration
	now      func() time.Time
}

type MemoryOption func(*InMemoryStore)

// WithMemoryClock overrides the clock used for expiry.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) {
		s.now = now
	}
}

func NewInMemory(ttl time.Duration, opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		sessions: make(map[uuid.UUID]entry),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Create(_ context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[reg.ID]; ok && !s.expired(e) {
		return fmt.Errorf("session %s already exists: %w", reg.ID, sentinel.ErrConflict)
	}
	s.sessions[reg.ID] = entry{reg: reg.Clone(), expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok || s.expired(e) {
		return nil, fmt.Errorf("session %s: %w", id, sentinel.ErrNotFound)
	}
	return e.reg.Clone(), nil
}

// Execute runs fn on a copy of the session under the write lock and stores
// the result when fn succeeds.
func (s *InMemoryStore) Execute(_ context.Context, id uuid.UUID, fn func(*models.Registration) error) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok || s.expired(e) {
		return nil, fmt.Errorf("session %s: %w", id, sentinel.ErrNotFound)
	}
	next := e.reg.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Version = e.reg.Version + 1
	s.sessions[id] = entry{reg: next, expiresAt: s.now().Add(s.ttl)}
	return next.Clone(), nil
}

func (s *InMemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// PurgeExpired drops expired sessions and returns their IDs.
func (s *InMemoryStore) PurgeExpired(_ context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged []uuid.UUID
	for id, e := range s.sessions {
		if s.expired(e) {
			delete(s.sessions, id)
			purged = append(purged, id)
		}
	}
	return purged, nil
}

func (s *InMemoryStore) expired(e entry) bool {
	return s.ttl > 0 && !s.now().Before(e.expiresAt)
}
