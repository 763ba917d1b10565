package sched

import (
	"sort"
	"time"
)

// Manual is a virtual-time Scheduler for tests. Time only moves through
// Advance; callbacks run synchronously on the caller's goroutine.
// Not safe for concurrent use.
type Manual struct {
	now    time.Time
	seq    uint64
	timers []*manualTimer
	posted []func()
}

type manualTimer struct {
	at      time.Time
	every   time.Duration
	seq     uint64
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() { t.stopped = true }

// NewManual creates a manual scheduler starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the virtual time.
func (m *Manual) Now() time.Time { return m.now }

// Set jumps the virtual clock without firing timers. Used to simulate the
// process being offline.
func (m *Manual) Set(t time.Time) { m.now = t }

// Post queues fn for the next drain.
func (m *Manual) Post(fn func()) { m.posted = append(m.posted, fn) }

// ScheduleOnce implements Scheduler.
func (m *Manual) ScheduleOnce(d time.Duration, fn func()) Timer {
	return m.add(d, 0, fn)
}

// ScheduleRepeating implements Scheduler.
func (m *Manual) ScheduleRepeating(d time.Duration, fn func()) Timer {
	return m.add(d, d, fn)
}

func (m *Manual) add(d, every time.Duration, fn func()) *manualTimer {
	m.seq++
	t := &manualTimer{at: m.now.Add(d), every: every, seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

// Pending returns the number of live timers.
func (m *Manual) Pending() int {
	n := 0
	for _, t := range m.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// Drain runs posted callbacks without moving time.
func (m *Manual) Drain() {
	for len(m.posted) > 0 {
		fn := m.posted[0]
		m.posted = m.posted[1:]
		fn()
	}
}

// Advance moves virtual time forward by d, firing due timers in order.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	m.Drain()
	for {
		t := m.next(target)
		if t == nil {
			break
		}
		if t.at.After(m.now) {
			m.now = t.at
		}
		if t.every > 0 {
			t.fn()
			if !t.stopped {
				m.seq++
				t.at = m.now.Add(t.every)
				t.seq = m.seq
			}
		} else {
			t.stopped = true
			t.fn()
		}
		m.Drain()
	}
	m.now = target
	m.compact()
}

func (m *Manual) next(target time.Time) *manualTimer {
	m.compact()
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].at.Equal(m.timers[j].at) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].at.Before(m.timers[j].at)
	})
	if len(m.timers) == 0 || m.timers[0].at.After(target) {
		return nil
	}
	return m.timers[0]
}

func (m *Manual) compact() {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(m.timers); i++ {
		m.timers[i] = nil
	}
	m.timers = live
}
