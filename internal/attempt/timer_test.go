package attempt

import (
	"testing"
	"time"
)

// fakeClock is an adjustable time source for deterministic timer tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newRunningTimer(t *testing.T, duration time.Duration) (*Timer, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	timer := NewTimer(clock.Now)
	if err := timer.Start(clock.now, duration); err != nil {
		t.Fatal(err)
	}
	return timer, clock
}

func TestTimerStartTwice(t *testing.T) {
	timer, clock := newRunningTimer(t, 10*time.Minute)
	if err := timer.Start(clock.now, time.Minute); err != ErrTimerNotIdle {
		t.Fatalf("second Start = %v, want ErrTimerNotIdle", err)
	}
}

func TestTimerTickRemaining(t *testing.T) {
	timer, clock := newRunningTimer(t, 10*time.Minute)

	clock.Advance(3 * time.Minute)
	tick := timer.Tick()
	if tick.State != TimerRunning {
		t.Fatalf("state = %s, want RUNNING", tick.State)
	}
	if tick.RemainingSeconds != 7*60 {
		t.Fatalf("remaining = %d, want %d", tick.RemainingSeconds, 7*60)
	}
	if tick.LowTime {
		t.Fatal("low time warning with 7 minutes left")
	}

	clock.Advance(3 * time.Minute)
	if tick := timer.Tick(); !tick.LowTime {
		t.Fatal("no low time warning with 4 minutes left")
	}
}

func TestTimerExpiresOnce(t *testing.T) {
	timer, clock := newRunningTimer(t, 10*time.Minute)

	clock.Advance(10 * time.Minute)
	first := timer.Tick()
	if first.State != TimerExpired || !first.JustExpired {
		t.Fatalf("first tick after deadline = %+v, want expired transition", first)
	}

	second := timer.Tick()
	if second.JustExpired {
		t.Fatal("expiry reported twice")
	}
	if second.State != TimerExpired {
		t.Fatalf("state = %s, want EXPIRED", second.State)
	}
}

func TestTimerCancelStopsExpiry(t *testing.T) {
	timer, clock := newRunningTimer(t, 10*time.Minute)

	timer.Cancel()
	if timer.State() != TimerCancelled {
		t.Fatalf("state = %s, want CANCELLED", timer.State())
	}

	// A cancelled timer must never fire a forced submission, even past the
	// deadline.
	clock.Advance(time.Hour)
	if tick := timer.Tick(); tick.JustExpired {
		t.Fatal("cancelled timer expired")
	}
}

func TestTimerCancelTerminalNoop(t *testing.T) {
	timer, clock := newRunningTimer(t, time.Minute)

	clock.Advance(2 * time.Minute)
	timer.Tick()
	timer.Cancel()
	if timer.State() != TimerExpired {
		t.Fatalf("cancel changed expired timer to %s", timer.State())
	}

	timer.Cancel()
	if timer.State() != TimerExpired {
		t.Fatal("second cancel changed state")
	}
}
