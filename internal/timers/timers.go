// Package timers provides the cancellable timer abstraction shared by
// the resend-code cooldown and the reconnect backoff. Both flows own
// their timers and must cancel them on teardown so no callback mutates
// state after its owner is gone.
package timers

import (
	"sort"
	"sync"
	"time"
)

// Timer is a single scheduled callback. Cancel reports whether the
// callback was prevented from running.
type Timer interface {
	Cancel() bool
}

// Scheduler schedules callbacks after a delay.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) Timer
}

// Real schedules on the runtime timer heap.
type Real struct{}

type realTimer struct {
	t *time.Timer
}

func (rt realTimer) Cancel() bool { return rt.t.Stop() }

// Schedule runs fn on its own goroutine after d.
func (Real) Schedule(d time.Duration, fn func()) Timer {
	return realTimer{t: time.AfterFunc(d, fn)}
}

// Manual is a deterministic scheduler for tests. Time only moves when
// Advance is called; due callbacks fire in schedule order on the
// advancing goroutine.
type Manual struct {
	mu      sync.Mutex
	now     time.Duration
	seq     int
	pending []*manualTimer
	delays  []time.Duration
}

type manualTimer struct {
	m         *Manual
	at        time.Duration
	seq       int
	fn        func()
	cancelled bool
	fired     bool
}

// NewManual creates a manual scheduler at time zero.
func NewManual() *Manual {
	return &Manual{}
}

// Schedule records the timer; it fires once Advance moves past its due
// time.
func (m *Manual) Schedule(d time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{m: m, at: m.now + d, seq: m.seq, fn: fn}
	m.seq++
	m.pending = append(m.pending, t)
	m.delays = append(m.delays, d)
	return t
}

func (t *manualTimer) Cancel() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.fired || t.cancelled {
		return false
	}
	t.cancelled = true
	return true
}

// Advance moves the clock forward by d, firing every due timer in due
// order. Callbacks may schedule further timers; those fire too if they
// fall within the advanced window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		t := m.popDue(target)
		if t == nil {
			break
		}
		t.fn()
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
}

func (m *Manual) popDue(target time.Duration) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()

	sort.SliceStable(m.pending, func(i, j int) bool {
		if m.pending[i].at != m.pending[j].at {
			return m.pending[i].at < m.pending[j].at
		}
		return m.pending[i].seq < m.pending[j].seq
	})
	for i, t := range m.pending {
		if t.cancelled {
			continue
		}
		if t.at <= target {
			t.fired = true
			m.now = t.at
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return t
		}
	}
	return nil
}

// Now returns the manual clock's current offset.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of live (not fired, not cancelled) timers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.pending {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// Delays returns every delay ever scheduled, in schedule order,
// including cancelled ones.
func (m *Manual) Delays() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.delays))
	copy(out, m.delays)
	return out
}
