// Package publisher fans audit events out to a store, either inline or
// through a bounded buffer drained by a background goroutine.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	audit "onboarding/pkg/platform/audit"
)

// Publisher emits audit events to a store.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	dropped prometheus.Counter
	now     func() time.Time

	buffer  int
	inbox   chan audit.Event
	wg      sync.WaitGroup
	closeMu sync.RWMutex
	closed  bool
}

type Option func(*Publisher)

// WithAsyncBuffer makes Emit non-blocking. Events beyond size are dropped.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.buffer = size
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithDroppedCounter counts events dropped on a full buffer.
func WithDroppedCounter(c prometheus.Counter) Option {
	return func(p *Publisher) {
		p.dropped = c
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer > 0 {
		p.inbox = make(chan audit.Event, p.buffer)
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit stamps the event and hands it to the store.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}

	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		return p.store.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
	default:
		if p.dropped != nil {
			p.dropped.Inc()
		}
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit buffer full, dropping event",
				"action", event.Action,
				"session_id", event.SessionID,
			)
		}
	}
	return nil
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.inbox {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("failed to persist audit event",
				"error", err,
				"action", event.Action,
				"session_id", event.SessionID,
			)
		}
	}
}

// List returns the events of one session when the store supports queries.
func (p *Publisher) List(ctx context.Context, sessionID string) ([]audit.Event, error) {
	if l, ok := p.store.(audit.Lister); ok {
		return l.ListBySession(ctx, sessionID)
	}
	return nil, nil
}

// Close flushes buffered events. Emit after Close writes inline.
func (p *Publisher) Close() {
	if p.inbox == nil {
		return
	}
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return
	}
	p.closed = true
	close(p.inbox)
	p.closeMu.Unlock()
	p.wg.Wait()
}
