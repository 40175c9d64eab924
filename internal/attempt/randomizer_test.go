package attempt

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/model"
)

func canonicalQuestion(optionCount, correctIndex, points int) model.Question {
	options := make([]string, optionCount)
	for i := range options {
		options[i] = string(rune('A' + i))
	}
	return model.Question{
		ID:           uuid.New(),
		Text:         "q",
		Options:      options,
		CorrectIndex: correctIndex,
		Points:       points,
	}
}

func TestRandomizeEmptyTest(t *testing.T) {
	r := NewRandomizer(rand.New(rand.NewSource(1)))
	if _, err := r.Randomize(nil); err != ErrNoQuestions {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
}

func TestRandomizeKeepsCorrectOption(t *testing.T) {
	for seed := int64(0); seed < 200; seed++ {
		r := NewRandomizer(rand.New(rand.NewSource(seed)))

		for n := 2; n <= 8; n++ {
			canonical := canonicalQuestion(n, n-1, 1)
			shuffled, err := r.Randomize([]model.Question{canonical})
			if err != nil {
				t.Fatalf("seed %d: %v", seed, err)
			}

			q := shuffled[0]
			if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
				t.Fatalf("seed %d: correct index %d out of range", seed, q.CorrectIndex)
			}
			want := canonical.Options[canonical.CorrectIndex]
			if got := q.Options[q.CorrectIndex]; got != want {
				t.Fatalf("seed %d: correct option %q, want %q", seed, got, want)
			}
		}
	}
}

func TestRandomizeDuplicateOptionText(t *testing.T) {
	// Two identical wrong options must not steal correctness from the real
	// one: the mapping is positional, not text-based.
	canonical := model.Question{
		ID:           uuid.New(),
		Text:         "pick the second 'same'",
		Options:      []string{"same", "same", "other"},
		CorrectIndex: 1,
		Points:       1,
	}

	for seed := int64(0); seed < 100; seed++ {
		r := NewRandomizer(rand.New(rand.NewSource(seed)))
		shuffled, err := r.Randomize([]model.Question{canonical})
		if err != nil {
			t.Fatal(err)
		}
		q := shuffled[0]
		if q.Options[q.CorrectIndex] != "same" {
			t.Fatalf("seed %d: correct index points at %q", seed, q.Options[q.CorrectIndex])
		}
	}
}

func TestRandomizePreservesQuestionSet(t *testing.T) {
	canonical := make([]model.Question, 10)
	for i := range canonical {
		canonical[i] = canonicalQuestion(4, i%4, i+1)
	}

	r := NewRandomizer(rand.New(rand.NewSource(42)))
	shuffled, err := r.Randomize(canonical)
	if err != nil {
		t.Fatal(err)
	}
	if len(shuffled) != len(canonical) {
		t.Fatalf("got %d questions, want %d", len(shuffled), len(canonical))
	}

	seen := make(map[uuid.UUID]bool, len(shuffled))
	for _, q := range shuffled {
		if seen[q.ID] {
			t.Fatalf("question %s appears twice", q.ID)
		}
		seen[q.ID] = true
	}
	for _, q := range canonical {
		if !seen[q.ID] {
			t.Fatalf("question %s missing after shuffle", q.ID)
		}
	}
}

func TestRandomizeDefaultsPoints(t *testing.T) {
	canonical := canonicalQuestion(3, 0, 0)
	r := NewRandomizer(rand.New(rand.NewSource(7)))
	shuffled, err := r.Randomize([]model.Question{canonical})
	if err != nil {
		t.Fatal(err)
	}
	if shuffled[0].Points != 1 {
		t.Fatalf("unset points = %d, want default 1", shuffled[0].Points)
	}
}
