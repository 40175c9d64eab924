package model

import (
	"time"

	"github.com/google/uuid"
)

// Test represents an authored multiple-choice test.
type Test struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	TeacherID       int       `json:"teacher_id"`
	DurationMinutes int       `json:"duration_minutes"`
	IsActive        bool      `json:"is_active"`
	QuestionCount   int       `json:"question_count,omitempty"`
	GroupIDs        []int     `json:"group_ids,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CreateTestRequest is the payload for creating a new test with its questions.
type CreateTestRequest struct {
	Title           string                  `json:"title" binding:"required,min=3,max=255"`
	Description     string                  `json:"description" binding:"max=2000"`
	DurationMinutes int                     `json:"duration_minutes" binding:"required,min=1,max=480"`
	GroupIDs        []int                   `json:"group_ids" binding:"required,min=1,dive,min=1"`
	Questions       []CreateQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}

// UpdateTestRequest is the payload for updating an existing test. Replacing
// questions invalidates nothing for already-submitted students; their results
// keep the outcomes recorded at submission time.
type UpdateTestRequest struct {
	Title           string                  `json:"title" binding:"omitempty,min=3,max=255"`
	Description     *string                 `json:"description" binding:"omitempty,max=2000"`
	DurationMinutes int                     `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	GroupIDs        []int                   `json:"group_ids" binding:"omitempty,min=1,dive,min=1"`
	Questions       []CreateQuestionRequest `json:"questions" binding:"omitempty,min=1,dive"`
}

// SetTestActiveRequest toggles whether students may start the test.
type SetTestActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// AvailableTest is a test as listed on the student portal.
type AvailableTest struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	DurationMinutes int       `json:"duration_minutes"`
	QuestionCount   int       `json:"question_count"`
	TeacherName     string    `json:"teacher_name"`
}

// TestPayload is the Redis-cached canonical payload used to build attempts.
// It carries correct indexes and must never be sent to students directly.
type TestPayload struct {
	TestID          uuid.UUID  `json:"test_id"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration_minutes"`
	Questions       []Question `json:"questions"`
}
