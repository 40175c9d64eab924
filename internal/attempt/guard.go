package attempt

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/quizdesk/quizdesk-backend/internal/model"
)

// ErrConfirmationRequired is returned when a manual submit finds unanswered
// questions and the caller has not confirmed. The session keeps running.
var ErrConfirmationRequired = errors.New("attempt has unanswered questions, confirmation required")

// ResultSink persists a scored result. Implementations must be safe to
// retry: the guard only latches after a successful save.
type ResultSink interface {
	SaveResult(ctx context.Context, result *model.Result) error
}

// SubmitOptions controls a submission request.
type SubmitOptions struct {
	// Forced marks a timer-expiry submission; it skips the incomplete-attempt
	// confirmation.
	Forced bool
	// ConfirmIncomplete acknowledges submitting with unanswered questions.
	ConfirmIncomplete bool
}

// Guard enforces at-most-once submission per attempt. The first successful
// caller wins; later calls, including the timer racing a manual click, get
// the same result back without a second persist.
type Guard struct {
	mu        sync.Mutex
	submitted bool
	result    *model.Result
	clock     Clock
}

// NewGuard creates a submission guard. A nil clock defaults to time.Now.
func NewGuard(clock Clock) *Guard {
	if clock == nil {
		clock = time.Now
	}
	return &Guard{clock: clock}
}

// Submitted reports whether a result has been produced.
func (g *Guard) Submitted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.submitted
}

// Result returns the persisted result, or nil before submission.
func (g *Guard) Result() *model.Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.result
}

// Submit runs the one-and-only submission path: stop the timer, score the
// session, persist through the sink, then latch. A persist failure leaves
// the guard open so the caller can retry without double-counting.
func (g *Guard) Submit(ctx context.Context, sess *Session, timer *Timer, sink ResultSink, opts SubmitOptions) (*model.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.submitted {
		return g.result, nil
	}

	if !opts.Forced && !sess.IsComplete() && !opts.ConfirmIncomplete {
		return nil, ErrConfirmationRequired
	}

	if timer != nil {
		timer.Cancel()
	}

	result := Score(sess, g.clock())
	if err := sink.SaveResult(ctx, result); err != nil {
		return nil, err
	}

	g.submitted = true
	g.result = result
	sess.finalize(StateSubmitted)
	return result, nil
}
