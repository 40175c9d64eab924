package model

import (
	"time"

	"github.com/google/uuid"
)

// UnansweredIndex is the sentinel stored when a student left a question blank.
const UnansweredIndex = -1

// AnswerOutcome is the per-question line of a persisted result.
type AnswerOutcome struct {
	QuestionID    uuid.UUID `json:"question_id"`
	SelectedIndex int       `json:"selected_index"`
	IsCorrect     bool      `json:"is_correct"`
	Points        int       `json:"points"`
}

// Result is the persisted, scored outcome of one attempt. Immutable once
// written; at most one per (test, student), enforced by a unique index.
type Result struct {
	ID               uuid.UUID       `json:"id"`
	TestID           uuid.UUID       `json:"test_id"`
	StudentID        int             `json:"student_id"`
	GroupID          int             `json:"group_id"`
	Score            int             `json:"score"`
	MaxScore         int             `json:"max_score"`
	Percentage       int             `json:"percentage"`
	Answers          []AnswerOutcome `json:"answers"`
	TimeSpentMinutes int             `json:"time_spent_minutes"`
	SubmittedAt      time.Time       `json:"submitted_at"`
}
