package attempt

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/model"
)

var testStart = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// sessionWith builds a session directly from randomized questions so scoring
// tests control the correct indexes exactly.
func sessionWith(t *testing.T, questions []Question, duration time.Duration) *Session {
	t.Helper()
	sess, err := NewSession(uuid.New(), 7, 3, questions, duration, testStart)
	if err != nil {
		t.Fatal(err)
	}
	return sess
}

func twoQuestions() []Question {
	return []Question{
		{ID: uuid.New(), Text: "first", Options: []string{"a", "b", "c"}, CorrectIndex: 1, Points: 10},
		{ID: uuid.New(), Text: "second", Options: []string{"x", "y"}, CorrectIndex: 0, Points: 20},
	}
}

func TestScoreAllCorrect(t *testing.T) {
	questions := twoQuestions()
	sess := sessionWith(t, questions, 30*time.Minute)

	if err := sess.SelectAnswer(questions[0].ID, 1); err != nil {
		t.Fatal(err)
	}
	if err := sess.SelectAnswer(questions[1].ID, 0); err != nil {
		t.Fatal(err)
	}

	result := Score(sess, testStart.Add(12*time.Minute))
	if result.Score != 30 || result.MaxScore != 30 || result.Percentage != 100 {
		t.Fatalf("score=%d max=%d pct=%d, want 30/30/100", result.Score, result.MaxScore, result.Percentage)
	}
	if result.TimeSpentMinutes != 12 {
		t.Fatalf("time spent = %d, want 12", result.TimeSpentMinutes)
	}
}

func TestScorePartiallyAnswered(t *testing.T) {
	questions := twoQuestions()
	sess := sessionWith(t, questions, 30*time.Minute)

	if err := sess.SelectAnswer(questions[0].ID, 1); err != nil {
		t.Fatal(err)
	}

	result := Score(sess, testStart.Add(5*time.Minute))
	if result.Score != 10 || result.MaxScore != 30 || result.Percentage != 33 {
		t.Fatalf("score=%d max=%d pct=%d, want 10/30/33", result.Score, result.MaxScore, result.Percentage)
	}

	second := result.Answers[1]
	if second.QuestionID != questions[1].ID {
		// Outcomes follow presentation order.
		t.Fatalf("outcome order broken: %s", second.QuestionID)
	}
	if second.SelectedIndex != model.UnansweredIndex || second.IsCorrect || second.Points != 0 {
		t.Fatalf("unanswered outcome = %+v", second)
	}
}

func TestScoreWrongAnswerZeroPoints(t *testing.T) {
	questions := twoQuestions()
	sess := sessionWith(t, questions, 30*time.Minute)

	if err := sess.SelectAnswer(questions[0].ID, 0); err != nil {
		t.Fatal(err)
	}
	if err := sess.SelectAnswer(questions[1].ID, 1); err != nil {
		t.Fatal(err)
	}

	result := Score(sess, testStart.Add(time.Minute))
	if result.Score != 0 || result.Percentage != 0 {
		t.Fatalf("score=%d pct=%d, want 0/0", result.Score, result.Percentage)
	}
	for _, outcome := range result.Answers {
		if outcome.IsCorrect || outcome.Points != 0 {
			t.Fatalf("wrong answer scored: %+v", outcome)
		}
	}
}

func TestScoreDeterministic(t *testing.T) {
	questions := twoQuestions()
	sess := sessionWith(t, questions, 30*time.Minute)
	if err := sess.SelectAnswer(questions[0].ID, 1); err != nil {
		t.Fatal(err)
	}

	at := testStart.Add(9 * time.Minute)
	first := Score(sess, at)
	second := Score(sess, at)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("scoring not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestScoreCompletenessInvariant(t *testing.T) {
	questions := []Question{
		{ID: uuid.New(), Options: []string{"a", "b"}, CorrectIndex: 0, Points: 1},
		{ID: uuid.New(), Options: []string{"a", "b"}, CorrectIndex: 1, Points: 5},
		{ID: uuid.New(), Options: []string{"a", "b", "c"}, CorrectIndex: 2, Points: 3},
	}
	sess := sessionWith(t, questions, time.Hour)

	result := Score(sess, testStart)
	if len(result.Answers) != len(questions) {
		t.Fatalf("outcome count = %d, want %d", len(result.Answers), len(questions))
	}

	maxPoints := 0
	for _, q := range questions {
		maxPoints += q.Points
	}
	if result.MaxScore != maxPoints {
		t.Fatalf("max score = %d, want %d", result.MaxScore, maxPoints)
	}
	if result.Percentage < 0 || result.Percentage > 100 {
		t.Fatalf("percentage %d out of bounds", result.Percentage)
	}
}

func TestScoreLastWriteWins(t *testing.T) {
	questions := twoQuestions()
	sess := sessionWith(t, questions, time.Hour)

	if err := sess.SelectAnswer(questions[0].ID, 0); err != nil {
		t.Fatal(err)
	}
	if err := sess.SelectAnswer(questions[0].ID, 1); err != nil {
		t.Fatal(err)
	}

	result := Score(sess, testStart)
	if !result.Answers[0].IsCorrect {
		t.Fatal("re-selection did not override earlier answer")
	}
}
