package attempt

import (
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/model"
)

// ErrNoQuestions is returned when a test has no questions; no attempt may be
// started for it.
var ErrNoQuestions = errors.New("test has no questions")

// Question is a per-attempt randomized question. ID is the canonical
// question id; Options and CorrectIndex are in shuffled order. Owned by one
// session and discarded with it.
type Question struct {
	ID           uuid.UUID
	Text         string
	Options      []string
	CorrectIndex int
	Points       int
}

// Randomizer produces a per-attempt presentation order for a test's
// canonical questions. Presentation shuffling only, so math/rand is enough.
type Randomizer struct {
	rng *rand.Rand
}

// NewRandomizer creates a Randomizer. A nil rng gets a time-seeded one.
func NewRandomizer(rng *rand.Rand) *Randomizer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Randomizer{rng: rng}
}

// Randomize shuffles each question's options and then the question order
// itself. The correct answer is tracked positionally through the shuffle, so
// duplicate option texts cannot corrupt the correctness mapping.
func (r *Randomizer) Randomize(canonical []model.Question) ([]Question, error) {
	if len(canonical) == 0 {
		return nil, ErrNoQuestions
	}

	questions := make([]Question, len(canonical))
	for i := range canonical {
		questions[i] = r.shuffleOptions(&canonical[i])
	}

	for i := len(questions) - 1; i > 0; i-- {
		j := r.rng.Intn(i + 1)
		questions[i], questions[j] = questions[j], questions[i]
	}

	return questions, nil
}

type shuffledOption struct {
	text    string
	correct bool
}

func (r *Randomizer) shuffleOptions(q *model.Question) Question {
	opts := make([]shuffledOption, len(q.Options))
	for i, text := range q.Options {
		opts[i] = shuffledOption{text: text, correct: i == q.CorrectIndex}
	}

	for i := len(opts) - 1; i > 0; i-- {
		j := r.rng.Intn(i + 1)
		opts[i], opts[j] = opts[j], opts[i]
	}

	out := Question{
		ID:           q.ID,
		Text:         q.Text,
		Options:      make([]string, len(opts)),
		CorrectIndex: -1,
		Points:       q.Points,
	}
	if out.Points < 1 {
		out.Points = 1
	}
	for i, opt := range opts {
		out.Options[i] = opt.text
		if opt.correct {
			out.CorrectIndex = i
		}
	}
	return out
}
