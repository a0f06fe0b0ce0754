package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	audit "onboarding/pkg/platform/audit"
)

// ErrSourceClosed is returned by a Source that will never yield again.
var ErrSourceClosed = errors.New("audit source closed")

// Source yields batches of audit events and acknowledges them once stored.
type Source interface {
	Poll(ctx context.Context) ([]audit.Event, error)
	Commit(ctx context.Context) error
}

// Worker materializes events from a Source into a Store. A batch is only
// committed after every event in it was appended. Poll and store failures
// are retried with backoff; only a cancelled context or a closed source
// stops the worker.
type Worker struct {
	store  audit.Store
	source Source
	logger *slog.Logger
	batch  BatchRunner

	minBackoff time.Duration
	maxBackoff time.Duration
}

// BatchRunner wraps the appends of one batch, typically in a transaction.
type BatchRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Option func(*Worker)

// WithBatchRunner makes each batch all-or-nothing.
func WithBatchRunner(run BatchRunner) Option {
	return func(w *Worker) {
		w.batch = run
	}
}

// WithBackoff bounds the wait between retries after a failure.
func WithBackoff(minWait, maxWait time.Duration) Option {
	return func(w *Worker) {
		w.minBackoff = minWait
		w.maxBackoff = maxWait
	}
}

func NewWorker(store audit.Store, source Source, logger *slog.Logger, opts ...Option) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{
		store:      store,
		source:     source,
		logger:     logger,
		minBackoff: 200 * time.Millisecond,
		maxBackoff: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.batch == nil {
		w.batch = func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		}
	}
	return w
}

// Run processes batches until ctx is cancelled or the source closes.
func (w *Worker) Run(ctx context.Context) error {
	retry := w.newBackoff()
	for {
		events, err := w.source.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			if errors.Is(err, ErrSourceClosed) {
				return err
			}
			w.logger.WarnContext(ctx, "failed to poll audit events", "error", err)
			if !w.wait(ctx, retry) {
				return nil
			}
			continue
		}
		retry.Reset()
		if len(events) == 0 {
			continue
		}
		if !w.storeBatch(ctx, events) {
			return nil
		}
		if err := w.source.Commit(ctx); err != nil {
			w.logger.WarnContext(ctx, "failed to commit audit offsets", "error", err)
		}
	}
}

// storeBatch appends one batch, retrying the whole batch until it lands. It
// reports false when ctx ended first; the batch then stays uncommitted.
func (w *Worker) storeBatch(ctx context.Context, events []audit.Event) bool {
	retry := w.newBackoff()
	for {
		err := w.batch(ctx, func(ctx context.Context) error {
			for _, event := range events {
				if err := w.store.Append(ctx, event); err != nil {
					return err
				}
			}
			return nil
		})
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		w.logger.WarnContext(ctx, "failed to store audit batch", "error", err, "events", len(events))
		if !w.wait(ctx, retry) {
			return false
		}
	}
}

func (w *Worker) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.minBackoff
	b.MaxInterval = w.maxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (w *Worker) wait(ctx context.Context, b backoff.BackOff) bool {
	timer := time.NewTimer(b.NextBackOff())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
