// Package sched runs deferred fire-and-forget tasks, such as the delayed
// teardown of a settled ticket channel. Tasks carry a cancellation handle;
// cancelling or losing one never corrupts engine state.
package sched

import (
	"sync"
	"time"
)

type Scheduler struct {
	mu      sync.Mutex
	stopped bool
	tasks   map[*Task]struct{}
}

func New() *Scheduler {
	return &Scheduler{tasks: make(map[*Task]struct{})}
}

// Task is a handle to one pending execution.
type Task struct {
	timer *time.Timer
	sched *Scheduler
}

// After schedules fn to run once after d. The returned task can cancel the
// run as long as it has not started.
func (s *Scheduler) After(d time.Duration, fn func()) *Task {
	t := &Task{sched: s}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		// Stopped schedulers accept tasks but never run them.
		t.timer = time.NewTimer(d)
		t.timer.Stop()
		return t
	}

	t.timer = time.AfterFunc(d, func() {
		s.remove(t)
		fn()
	})
	s.tasks[t] = struct{}{}
	return t
}

// Cancel stops the task; it reports false if the task already ran or was
// cancelled before.
func (t *Task) Cancel() bool {
	t.sched.remove(t)
	return t.timer.Stop()
}

// Stop cancels every outstanding task. Used at shutdown; abandoned teardowns
// only leave stale channels behind.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for t := range s.tasks {
		t.timer.Stop()
	}
	s.tasks = make(map[*Task]struct{})
}

func (s *Scheduler) remove(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, t)
}
