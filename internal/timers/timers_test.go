package timers

import (
	"testing"
	"time"
)

func TestManualFiresDueTimersInOrder(t *testing.T) {
	m := NewManual()
	var fired []string
	m.Schedule(3*time.Second, func() { fired = append(fired, "late") })
	m.Schedule(1*time.Second, func() { fired = append(fired, "early") })

	m.Advance(5 * time.Second)

	if len(fired) != 2 || fired[0] != "early" || fired[1] != "late" {
		t.Fatalf("fired = %v, want [early late]", fired)
	}
	if m.Now() != 5*time.Second {
		t.Fatalf("Now() = %v, want 5s", m.Now())
	}
}

func TestManualDoesNotFireFutureTimers(t *testing.T) {
	m := NewManual()
	fired := false
	m.Schedule(10*time.Second, func() { fired = true })

	m.Advance(9 * time.Second)
	if fired {
		t.Fatal("timer fired before its due time")
	}
	if m.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", m.Pending())
	}

	m.Advance(1 * time.Second)
	if !fired {
		t.Fatal("timer did not fire at its due time")
	}
}

func TestManualCancelPreventsFiring(t *testing.T) {
	m := NewManual()
	fired := false
	timer := m.Schedule(time.Second, func() { fired = true })

	if !timer.Cancel() {
		t.Fatal("Cancel() = false on a pending timer")
	}
	if timer.Cancel() {
		t.Fatal("second Cancel() = true")
	}

	m.Advance(time.Minute)
	if fired {
		t.Fatal("cancelled timer fired")
	}
	if m.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0", m.Pending())
	}
}

func TestManualCallbackMaySchedule(t *testing.T) {
	m := NewManual()
	var fired []time.Duration
	m.Schedule(time.Second, func() {
		fired = append(fired, m.Now())
		m.Schedule(2*time.Second, func() {
			fired = append(fired, m.Now())
		})
	})

	// The chained timer is due within the same advance window.
	m.Advance(3 * time.Second)

	if len(fired) != 2 || fired[0] != time.Second || fired[1] != 3*time.Second {
		t.Fatalf("fired at %v, want [1s 3s]", fired)
	}
}

func TestManualRecordsDelays(t *testing.T) {
	m := NewManual()
	m.Schedule(0, func() {})
	m.Schedule(time.Second, func() {})
	timer := m.Schedule(3*time.Second, func() {})
	timer.Cancel()

	delays := m.Delays()
	want := []time.Duration{0, time.Second, 3 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("Delays() = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("Delays()[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestRealSchedulerFires(t *testing.T) {
	done := make(chan struct{})
	Real{}.Schedule(5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("real timer never fired")
	}
}

func TestRealSchedulerCancel(t *testing.T) {
	fired := make(chan struct{}, 1)
	timer := Real{}.Schedule(50*time.Millisecond, func() { fired <- struct{}{} })

	if !timer.Cancel() {
		t.Fatal("Cancel() = false on a pending timer")
	}

	select {
	case <-fired:
		t.Fatal("cancelled timer fired")
	case <-time.After(150 * time.Millisecond):
	}
}
