package attempt

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/model"
)

func TestNewSessionRequiresQuestions(t *testing.T) {
	_, err := NewSession(uuid.New(), 1, 1, nil, time.Minute, testStart)
	if err != ErrNoQuestions {
		t.Fatalf("err = %v, want ErrNoQuestions", err)
	}
}

func TestSessionDeadline(t *testing.T) {
	sess := sessionWith(t, twoQuestions(), 45*time.Minute)
	want := testStart.Add(45 * time.Minute)
	if !sess.Deadline().Equal(want) {
		t.Fatalf("deadline = %v, want %v", sess.Deadline(), want)
	}
}

func TestSelectAnswerValidation(t *testing.T) {
	questions := twoQuestions()
	sess := sessionWith(t, questions, time.Hour)

	if err := sess.SelectAnswer(uuid.New(), 0); err != ErrUnknownQuestion {
		t.Fatalf("err = %v, want ErrUnknownQuestion", err)
	}
	if err := sess.SelectAnswer(questions[0].ID, 3); err != ErrOptionOutOfRange {
		t.Fatalf("err = %v, want ErrOptionOutOfRange", err)
	}
	if err := sess.SelectAnswer(questions[0].ID, -1); err != ErrOptionOutOfRange {
		t.Fatalf("err = %v, want ErrOptionOutOfRange", err)
	}
}

func TestIsComplete(t *testing.T) {
	questions := twoQuestions()
	sess := sessionWith(t, questions, time.Hour)

	if sess.IsComplete() {
		t.Fatal("fresh session reported complete")
	}
	if err := sess.SelectAnswer(questions[0].ID, 0); err != nil {
		t.Fatal(err)
	}
	if sess.IsComplete() {
		t.Fatal("half-answered session reported complete")
	}
	if err := sess.SelectAnswer(questions[1].ID, 1); err != nil {
		t.Fatal(err)
	}
	if !sess.IsComplete() {
		t.Fatal("fully answered session reported incomplete")
	}
}

func TestSelectAfterFinalizeIsNoop(t *testing.T) {
	questions := twoQuestions()
	sess := sessionWith(t, questions, time.Hour)

	if err := sess.SelectAnswer(questions[0].ID, 1); err != nil {
		t.Fatal(err)
	}
	if err := sess.SelectAnswer(questions[1].ID, 0); err != nil {
		t.Fatal(err)
	}

	guard := NewGuard(func() time.Time { return testStart })
	if _, err := guard.Submit(context.Background(), sess, nil, &memorySink{}, SubmitOptions{}); err != nil {
		t.Fatal(err)
	}

	// Stale calls must not crash or mutate the submitted session.
	if err := sess.SelectAnswer(questions[0].ID, 0); err != nil {
		t.Fatalf("stale select errored: %v", err)
	}
	if got := sess.Selections()[questions[0].ID]; got != 1 {
		t.Fatalf("stale select mutated session: %d", got)
	}
}

func TestAbandonIsIdempotentAndFinal(t *testing.T) {
	sess := sessionWith(t, twoQuestions(), time.Hour)

	if !sess.Abandon() {
		t.Fatal("first abandon rejected")
	}
	if sess.Abandon() {
		t.Fatal("second abandon reported a transition")
	}
	if sess.State() != StateAbandoned {
		t.Fatalf("state = %s, want ABANDONED", sess.State())
	}
}

func TestViewHidesCorrectIndex(t *testing.T) {
	questions := twoQuestions()
	sess := sessionWith(t, questions, time.Hour)
	if err := sess.SelectAnswer(questions[1].ID, 1); err != nil {
		t.Fatal(err)
	}

	view := sess.View()
	if len(view) != 2 {
		t.Fatalf("view length = %d, want 2", len(view))
	}
	if view[0].SelectedIndex != model.UnansweredIndex {
		t.Fatalf("unanswered question shows selection %d", view[0].SelectedIndex)
	}
	if view[1].SelectedIndex != 1 {
		t.Fatalf("selection = %d, want 1", view[1].SelectedIndex)
	}
	if view[0].ID != questions[0].ID || view[1].ID != questions[1].ID {
		t.Fatal("view order diverged from presentation order")
	}
}
