// Package redirect runs the delayed wallet navigation of the one-click flow
// as cancellable one-shot timers keyed by session.
package redirect

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type task struct {
	timer *time.Timer
	gen   uint64
}

// Scheduler holds at most one pending task per session. Scheduling again
// replaces the previous task.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[uuid.UUID]task
	gen     uint64
	stopped bool
}

func NewScheduler() *Scheduler {
	return &Scheduler{tasks: make(map[uuid.UUID]task)}
}

// Schedule runs fn after delay unless the task is cancelled first.
func (s *Scheduler) Schedule(id uuid.UUID, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if prev, ok := s.tasks[id]; ok {
		prev.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.tasks[id] = task{
		gen: gen,
		timer: time.AfterFunc(delay, func() {
			if !s.claim(id, gen) {
				return
			}
			fn()
		}),
	}
}

// claim removes the task if it is still the current one for id. A task that
// was cancelled or replaced after its timer fired loses the race here.
func (s *Scheduler) claim(id uuid.UUID, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.gen != gen {
		return false
	}
	delete(s.tasks, id)
	return true
}

// Cancel drops the pending task for id. It reports whether one was pending.
func (s *Scheduler) Cancel(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(s.tasks, id)
	return true
}

// Pending returns the number of scheduled tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop cancels every task and rejects new ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, id)
	}
}
