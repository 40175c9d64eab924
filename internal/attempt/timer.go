package attempt

import (
	"errors"
	"sync"
	"time"
)

// TimerState enumerates countdown timer states. Expired and Cancelled are
// terminal.
type TimerState string

const (
	TimerIdle      TimerState = "IDLE"
	TimerRunning   TimerState = "RUNNING"
	TimerExpired   TimerState = "EXPIRED"
	TimerCancelled TimerState = "CANCELLED"
)

const (
	// TickInterval is the polling cadence while the timer is running.
	TickInterval = time.Second

	// LowTimeThreshold marks when the remaining-time display should switch
	// to a warning state. Display only; scoring is unaffected.
	LowTimeThreshold = 5 * time.Minute
)

// ErrTimerNotIdle is returned when Start is called on a started timer.
var ErrTimerNotIdle = errors.New("timer already started")

// Clock supplies the current time. Injectable so tests never wait on a wall
// clock.
type Clock func() time.Time

// Tick is a snapshot of the countdown at one polling step.
type Tick struct {
	State            TimerState `json:"state"`
	RemainingSeconds int        `json:"remaining_seconds"`
	LowTime          bool       `json:"low_time"`
	// JustExpired is true only on the tick that crossed the deadline. The
	// caller uses it to trigger the forced submission exactly once.
	JustExpired bool `json:"-"`
}

// Timer is the countdown state machine for one attempt.
type Timer struct {
	mu       sync.Mutex
	state    TimerState
	deadline time.Time
	clock    Clock
}

// NewTimer creates an idle timer. A nil clock defaults to time.Now.
func NewTimer(clock Clock) *Timer {
	if clock == nil {
		clock = time.Now
	}
	return &Timer{state: TimerIdle, clock: clock}
}

// Start transitions Idle to Running, recording deadline = start + duration.
func (t *Timer) Start(start time.Time, duration time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TimerIdle {
		return ErrTimerNotIdle
	}
	t.state = TimerRunning
	t.deadline = start.Add(duration)
	return nil
}

// Tick recomputes remaining time. Crossing the deadline transitions Running
// to Expired; only the transitioning call reports JustExpired.
func (t *Timer) Tick() Tick {
	t.mu.Lock()
	defer t.mu.Unlock()

	tick := Tick{State: t.state}
	if t.state != TimerRunning {
		return tick
	}

	remaining := t.deadline.Sub(t.clock())
	if remaining <= 0 {
		t.state = TimerExpired
		tick.State = TimerExpired
		tick.JustExpired = true
		return tick
	}

	tick.RemainingSeconds = int(remaining / time.Second)
	tick.LowTime = remaining < LowTimeThreshold
	return tick
}

// Cancel stops a running timer so it can never fire a forced submission.
// Cancelling an expired or already-cancelled timer is a no-op.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TimerRunning || t.state == TimerIdle {
		t.state = TimerCancelled
	}
}

// State returns the current timer state.
func (t *Timer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Deadline returns the instant the attempt times out.
func (t *Timer) Deadline() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deadline
}
