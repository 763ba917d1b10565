// Package sched provides the single-threaded callback loop every game
// mutation runs on. Timers never run callbacks on their own goroutines;
// they post into the loop, so at most one callback executes at a time.
package sched

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Clock reports the current wall-clock instant.
type Clock interface {
	Now() time.Time
}

// Timer is a handle to a scheduled callback.
type Timer interface {
	Stop()
}

// Scheduler abstracts the host timer primitive.
type Scheduler interface {
	Clock
	// ScheduleOnce runs fn on the loop after d.
	ScheduleOnce(d time.Duration, fn func()) Timer
	// ScheduleRepeating runs fn on the loop every d. The next fire is armed
	// after fn returns, so callback latency accumulates as drift.
	ScheduleRepeating(d time.Duration, fn func()) Timer
	// Post queues fn to run on the loop as soon as possible.
	Post(fn func())
}

// Loop is the real-time Scheduler. Run must be called exactly once.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
	done  chan struct{}
}

// NewLoop creates an idle loop.
func NewLoop() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Now returns the system time.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// Post queues fn. It never blocks, so callbacks may post from the loop.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.done:
		return
	default:
	}

	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run executes queued callbacks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	slog.Debug("scheduler loop started")
	defer close(l.done)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("scheduler loop stopped")
			return ctx.Err()
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()

			fn()
		}
	}
}

// Call posts fn and waits until it has run on the loop. Returns false if
// the loop exited first.
func (l *Loop) Call(fn func()) bool {
	ran := make(chan struct{})
	l.Post(func() {
		fn()
		close(ran)
	})
	select {
	case <-ran:
		return true
	case <-l.done:
		return false
	}
}

type loopTimer struct {
	mu      sync.Mutex
	t       *time.Timer
	stopped atomic.Bool
}

func (t *loopTimer) Stop() {
	t.stopped.Store(true)
	t.mu.Lock()
	if t.t != nil {
		t.t.Stop()
	}
	t.mu.Unlock()
}

func (t *loopTimer) arm(d time.Duration, f func()) {
	t.mu.Lock()
	t.t = time.AfterFunc(d, f)
	t.mu.Unlock()
}

// ScheduleOnce implements Scheduler.
func (l *Loop) ScheduleOnce(d time.Duration, fn func()) Timer {
	lt := &loopTimer{}
	lt.arm(d, func() {
		l.Post(func() {
			if lt.stopped.Load() {
				return
			}
			lt.stopped.Store(true)
			fn()
		})
	})
	return lt
}

// ScheduleRepeating implements Scheduler.
func (l *Loop) ScheduleRepeating(d time.Duration, fn func()) Timer {
	lt := &loopTimer{}
	var fire func()
	fire = func() {
		l.Post(func() {
			if lt.stopped.Load() {
				return
			}
			fn()
			if !lt.stopped.Load() {
				lt.arm(d, fire)
			}
		})
	}
	lt.arm(d, fire)
	return lt
}
