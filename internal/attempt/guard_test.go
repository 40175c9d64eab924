package attempt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/model"
)

// memorySink records saved results and can be told to fail.
type memorySink struct {
	mu      sync.Mutex
	saved   []*model.Result
	failing bool
}

var errSinkDown = errors.New("store unavailable")

func (s *memorySink) SaveResult(_ context.Context, result *model.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errSinkDown
	}
	s.saved = append(s.saved, result)
	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func guardFixture(t *testing.T) (*Session, *Timer, *Guard, *fakeClock, []Question) {
	t.Helper()
	clock := &fakeClock{now: testStart}
	questions := twoQuestions()
	sess := sessionWith(t, questions, 30*time.Minute)
	timer := NewTimer(clock.Now)
	if err := timer.Start(testStart, 30*time.Minute); err != nil {
		t.Fatal(err)
	}
	return sess, timer, NewGuard(clock.Now), clock, questions
}

func TestSubmitIdempotent(t *testing.T) {
	sess, timer, guard, _, questions := guardFixture(t)
	sink := &memorySink{}

	if err := sess.SelectAnswer(questions[0].ID, 1); err != nil {
		t.Fatal(err)
	}
	if err := sess.SelectAnswer(questions[1].ID, 0); err != nil {
		t.Fatal(err)
	}

	first, err := guard.Submit(context.Background(), sess, timer, sink, SubmitOptions{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := guard.Submit(context.Background(), sess, timer, sink, SubmitOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if first != second {
		t.Fatal("second submit produced a different result")
	}
	if sink.count() != 1 {
		t.Fatalf("persisted %d results, want 1", sink.count())
	}
	if sess.State() != StateSubmitted {
		t.Fatalf("session state = %s, want SUBMITTED", sess.State())
	}
	if timer.State() != TimerCancelled {
		t.Fatalf("timer state = %s, want CANCELLED", timer.State())
	}
}

func TestSubmitIncompleteNeedsConfirmation(t *testing.T) {
	sess, timer, guard, _, questions := guardFixture(t)
	sink := &memorySink{}

	if err := sess.SelectAnswer(questions[0].ID, 1); err != nil {
		t.Fatal(err)
	}

	_, err := guard.Submit(context.Background(), sess, timer, sink, SubmitOptions{})
	if err != ErrConfirmationRequired {
		t.Fatalf("err = %v, want ErrConfirmationRequired", err)
	}
	// Refusal leaves everything running.
	if sess.State() != StateInProgress || timer.State() != TimerRunning {
		t.Fatalf("refusal changed state: session=%s timer=%s", sess.State(), timer.State())
	}
	if sink.count() != 0 {
		t.Fatal("refused submit persisted a result")
	}

	result, err := guard.Submit(context.Background(), sess, timer, sink, SubmitOptions{ConfirmIncomplete: true})
	if err != nil {
		t.Fatal(err)
	}
	if result.Score != 10 || result.MaxScore != 30 || result.Percentage != 33 {
		t.Fatalf("score=%d max=%d pct=%d, want 10/30/33", result.Score, result.MaxScore, result.Percentage)
	}
}

func TestForcedSubmitSkipsConfirmation(t *testing.T) {
	clock := &fakeClock{now: testStart}
	questions := []Question{
		{ID: uuid.New(), Options: []string{"a", "b"}, CorrectIndex: 0, Points: 1},
		{ID: uuid.New(), Options: []string{"a", "b"}, CorrectIndex: 0, Points: 1},
		{ID: uuid.New(), Options: []string{"a", "b"}, CorrectIndex: 0, Points: 1},
	}
	sess := sessionWith(t, questions, time.Minute)
	timer := NewTimer(clock.Now)
	if err := timer.Start(testStart, time.Minute); err != nil {
		t.Fatal(err)
	}
	guard := NewGuard(clock.Now)
	sink := &memorySink{}

	if err := sess.SelectAnswer(questions[0].ID, 0); err != nil {
		t.Fatal(err)
	}

	clock.Advance(2 * time.Minute)
	tick := timer.Tick()
	if !tick.JustExpired {
		t.Fatal("timer did not expire")
	}

	result, err := guard.Submit(context.Background(), sess, timer, sink, SubmitOptions{Forced: true})
	if err != nil {
		t.Fatal(err)
	}
	if result.Score != 1 || result.MaxScore != 3 {
		t.Fatalf("score=%d max=%d, want 1/3", result.Score, result.MaxScore)
	}

	unanswered := 0
	for _, outcome := range result.Answers {
		if outcome.SelectedIndex == model.UnansweredIndex {
			unanswered++
			if outcome.IsCorrect {
				t.Fatal("unanswered question marked correct")
			}
		}
	}
	if unanswered != 2 {
		t.Fatalf("unanswered outcomes = %d, want 2", unanswered)
	}
}

func TestSubmitPersistFailureAllowsRetry(t *testing.T) {
	sess, timer, guard, _, questions := guardFixture(t)
	sink := &memorySink{failing: true}

	if err := sess.SelectAnswer(questions[0].ID, 1); err != nil {
		t.Fatal(err)
	}
	if err := sess.SelectAnswer(questions[1].ID, 0); err != nil {
		t.Fatal(err)
	}

	if _, err := guard.Submit(context.Background(), sess, timer, sink, SubmitOptions{}); !errors.Is(err, errSinkDown) {
		t.Fatalf("err = %v, want sink failure", err)
	}
	if guard.Submitted() {
		t.Fatal("guard latched on failed persist")
	}
	if sess.State() != StateInProgress {
		t.Fatalf("failed persist finalized session: %s", sess.State())
	}

	sink.failing = false
	if _, err := guard.Submit(context.Background(), sess, timer, sink, SubmitOptions{}); err != nil {
		t.Fatal(err)
	}
	if sink.count() != 1 {
		t.Fatalf("persisted %d results after retry, want 1", sink.count())
	}
}

func TestSubmitRaceProducesOneResult(t *testing.T) {
	sess, timer, guard, _, questions := guardFixture(t)
	sink := &memorySink{}

	if err := sess.SelectAnswer(questions[0].ID, 1); err != nil {
		t.Fatal(err)
	}

	// Manual click and timer expiry racing: exactly one persisted result.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		forced := i == 0
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = guard.Submit(context.Background(), sess, timer, sink, SubmitOptions{
				Forced:            forced,
				ConfirmIncomplete: true,
			})
		}()
	}
	wg.Wait()

	if sink.count() != 1 {
		t.Fatalf("persisted %d results, want exactly 1", sink.count())
	}
}
