package authgw

import (
	"sync"
	"time"

	"github.com/communitas-app/session_layer/internal/observable"
	"github.com/communitas-app/session_layer/internal/timers"
)

// CooldownState is the state of the resend-code timer machine.
type CooldownState int

const (
	// CooldownIdle means a resend may be requested.
	CooldownIdle CooldownState = iota

	// CooldownActive means a code was just sent; resends are rejected
	// locally until the countdown reaches zero.
	CooldownActive
)

// String returns the string representation of the state.
func (s CooldownState) String() string {
	switch s {
	case CooldownIdle:
		return "idle"
	case CooldownActive:
		return "active"
	default:
		return "unknown"
	}
}

// DefaultCooldown is how long a resend stays blocked after a code is
// sent.
const DefaultCooldown = 120 * time.Second

// Cooldown is the resend-code timer machine, independent of any network
// call: Idle -> Active(duration), ticking down once per second back to
// Idle. Cancel stops the countdown when the owning flow is abandoned so
// no orphaned tick fires afterwards.
type Cooldown struct {
	mu        sync.Mutex
	scheduler timers.Scheduler
	duration  time.Duration
	remaining time.Duration
	timer     timers.Timer
	gen       uint64
	seconds   *observable.Cell[int]
}

// NewCooldown creates an idle cooldown. A zero duration means
// DefaultCooldown.
func NewCooldown(scheduler timers.Scheduler, duration time.Duration) *Cooldown {
	if scheduler == nil {
		scheduler = timers.Real{}
	}
	if duration <= 0 {
		duration = DefaultCooldown
	}
	return &Cooldown{
		scheduler: scheduler,
		duration:  duration,
		seconds:   observable.NewCell(0),
	}
}

// Start moves the machine to Active and begins the countdown. Starting
// while already active restarts it.
func (c *Cooldown) Start() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Cancel()
	}
	c.gen++
	gen := c.gen
	c.remaining = c.duration
	c.timer = c.scheduler.Schedule(time.Second, func() { c.tick(gen) })
	c.mu.Unlock()

	c.seconds.Set(int(c.duration / time.Second))
}

func (c *Cooldown) tick(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.remaining -= time.Second
	if c.remaining < 0 {
		c.remaining = 0
	}
	remaining := c.remaining
	if remaining > 0 {
		c.timer = c.scheduler.Schedule(time.Second, func() { c.tick(gen) })
	} else {
		c.timer = nil
	}
	c.mu.Unlock()

	c.seconds.Set(int(remaining / time.Second))
}

// State returns the current machine state.
func (c *Cooldown) State() CooldownState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remaining > 0 {
		return CooldownActive
	}
	return CooldownIdle
}

// Active reports whether resends are currently blocked.
func (c *Cooldown) Active() bool {
	return c.State() == CooldownActive
}

// Remaining returns the time left on the countdown.
func (c *Cooldown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// SubscribeSeconds registers fn for countdown updates, one per second,
// for the UI's countdown label.
func (c *Cooldown) SubscribeSeconds(fn func(int)) func() {
	return c.seconds.Subscribe(fn)
}

// Cancel stops the countdown and returns the machine to Idle. Safe to
// call in any state; a pending tick never fires after Cancel returns.
func (c *Cooldown) Cancel() {
	c.mu.Lock()
	c.gen++
	if c.timer != nil {
		c.timer.Cancel()
		c.timer = nil
	}
	c.remaining = 0
	c.mu.Unlock()

	c.seconds.Set(0)
}
