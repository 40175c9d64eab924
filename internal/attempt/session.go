package attempt

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/model"
)

// State enumerates attempt session states.
type State string

const (
	StateInProgress State = "IN_PROGRESS"
	StateSubmitted  State = "SUBMITTED"
	StateAbandoned  State = "ABANDONED"
)

// Session errors.
var (
	ErrUnknownQuestion  = errors.New("question is not part of this attempt")
	ErrOptionOutOfRange = errors.New("option index out of range")
)

// Session is the single source of truth for one student's in-progress
// attempt: the randomized question list, the selection map keyed by
// canonical question id, and timing data. Safe for concurrent use.
type Session struct {
	mu         sync.Mutex
	testID     uuid.UUID
	studentID  int
	groupID    int
	questions  []Question
	selections map[uuid.UUID]int
	startedAt  time.Time
	deadline   time.Time
	state      State
}

// NewSession starts an attempt over an already-randomized question list.
// The deadline is derived from the start time and the test duration.
func NewSession(testID uuid.UUID, studentID, groupID int, questions []Question, duration time.Duration, startedAt time.Time) (*Session, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	return &Session{
		testID:     testID,
		studentID:  studentID,
		groupID:    groupID,
		questions:  questions,
		selections: make(map[uuid.UUID]int, len(questions)),
		startedAt:  startedAt,
		deadline:   startedAt.Add(duration),
		state:      StateInProgress,
	}, nil
}

// SelectAnswer upserts the selection for a question; last write wins.
// Calls after the session is finalized are silent no-ops.
func (s *Session) SelectAnswer(questionID uuid.UUID, optionIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInProgress {
		return nil
	}

	q := s.question(questionID)
	if q == nil {
		return ErrUnknownQuestion
	}
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return ErrOptionOutOfRange
	}

	s.selections[questionID] = optionIndex
	return nil
}

// IsComplete reports whether every question has a recorded selection.
func (s *Session) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.selections) == len(s.questions)
}

// Selections returns a copy of the selection map.
func (s *Session) Selections() map[uuid.UUID]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]int, len(s.selections))
	for id, idx := range s.selections {
		out[id] = idx
	}
	return out
}

// Questions returns the randomized question list in presentation order.
func (s *Session) Questions() []Question {
	return s.questions
}

func (s *Session) TestID() uuid.UUID    { return s.testID }
func (s *Session) StudentID() int       { return s.studentID }
func (s *Session) GroupID() int         { return s.groupID }
func (s *Session) StartedAt() time.Time { return s.startedAt }
func (s *Session) Deadline() time.Time  { return s.deadline }

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// finalize transitions the session to a terminal state. Returns false if the
// session already reached one.
func (s *Session) finalize(to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return false
	}
	s.state = to
	return true
}

// Abandon marks the session abandoned (student navigated away before
// submitting). Idempotent; has no effect on a submitted session.
func (s *Session) Abandon() bool {
	return s.finalize(StateAbandoned)
}

func (s *Session) question(id uuid.UUID) *Question {
	for i := range s.questions {
		if s.questions[i].ID == id {
			return &s.questions[i]
		}
	}
	return nil
}

// ViewQuestion is the presentation form of one question: shuffled options,
// no correctness data, plus the student's current selection.
type ViewQuestion struct {
	ID            uuid.UUID `json:"id"`
	Text          string    `json:"text"`
	Options       []string  `json:"options"`
	SelectedIndex int       `json:"selected_index"`
}

// View renders the session for the display layer.
func (s *Session) View() []ViewQuestion {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := make([]ViewQuestion, len(s.questions))
	for i, q := range s.questions {
		selected := model.UnansweredIndex
		if idx, ok := s.selections[q.ID]; ok {
			selected = idx
		}
		view[i] = ViewQuestion{
			ID:            q.ID,
			Text:          q.Text,
			Options:       q.Options,
			SelectedIndex: selected,
		}
	}
	return view
}
