package client

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler runs delayed and periodic tasks on a clock. Every task body runs while
// holding the scheduler's exec lock, the same lock the Client takes for its public API,
// so callbacks never interleave with each other or with API calls.
type Scheduler struct {
	clock clockwork.Clock
	exec  sync.Mutex

	tasksMu sync.Mutex
	tasks   map[*Task]struct{}
}

// NewScheduler creates a scheduler on the given clock.
func NewScheduler(clock clockwork.Clock) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		clock: clock,
		tasks: make(map[*Task]struct{}),
	}
}

// Clock returns the scheduler's clock.
func (s *Scheduler) Clock() clockwork.Clock { return s.clock }

// Do runs fn under the exec lock.
func (s *Scheduler) Do(fn func()) {
	s.exec.Lock()
	defer s.exec.Unlock()
	fn()
}

// Every runs fn each interval until the task is cancelled.
func (s *Scheduler) Every(interval time.Duration, fn func()) *Task {
	return s.schedule(interval, true, fn)
}

// After runs fn once after delay.
func (s *Scheduler) After(delay time.Duration, fn func()) *Task {
	return s.schedule(delay, false, fn)
}

// CancelAll cancels every pending task.
func (s *Scheduler) CancelAll() {
	s.tasksMu.Lock()
	tasks := make([]*Task, 0, len(s.tasks))
	for t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.tasksMu.Unlock()

	for _, t := range tasks {
		t.Cancel()
	}
}

// Pending returns the number of live tasks.
func (s *Scheduler) Pending() int {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	return len(s.tasks)
}

func (s *Scheduler) schedule(d time.Duration, repeat bool, fn func()) *Task {
	t := &Task{sched: s, done: make(chan struct{})}
	s.tasksMu.Lock()
	s.tasks[t] = struct{}{}
	s.tasksMu.Unlock()

	go t.run(d, repeat, fn)
	return t
}

func (s *Scheduler) forget(t *Task) {
	s.tasksMu.Lock()
	delete(s.tasks, t)
	s.tasksMu.Unlock()
}

// Task is a cancellation token for a scheduled callback.
type Task struct {
	sched *Scheduler

	mu        sync.Mutex
	cancelled bool
	timer     clockwork.Timer
	done      chan struct{}
}

// Cancel stops the task. A callback that has not started yet will not run.
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	if t.timer != nil {
		t.timer.Stop()
	}
	close(t.done)
	t.mu.Unlock()

	t.sched.forget(t)
}

// Cancelled reports whether Cancel was called.
func (t *Task) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

func (t *Task) arm(d time.Duration) clockwork.Timer {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return nil
	}
	t.timer = t.sched.clock.NewTimer(d)
	return t.timer
}

func (t *Task) run(d time.Duration, repeat bool, fn func()) {
	for {
		timer := t.arm(d)
		if timer == nil {
			return
		}
		select {
		case <-timer.Chan():
		case <-t.done:
			return
		}

		t.sched.exec.Lock()
		if t.Cancelled() {
			t.sched.exec.Unlock()
			return
		}
		if !repeat {
			t.Cancel()
		}
		fn()
		t.sched.exec.Unlock()

		if !repeat {
			return
		}
	}
}
