package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
)

// Narrow data-access contracts for the attempt flow. The pgx repositories
// satisfy these; tests substitute in-memory fakes.

// TestSource provides canonical test data for building attempts.
type TestSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error)
	IsAssignedToGroup(ctx context.Context, testID uuid.UUID, groupID int) (bool, error)
}

// QuestionSource lists a test's canonical questions in authored order.
type QuestionSource interface {
	ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Question, error)
}

// ResultStore persists and looks up scored results.
type ResultStore interface {
	Create(ctx context.Context, res *model.Result) error
	ExistsByTestAndStudent(ctx context.Context, testID uuid.UUID, studentID int) (bool, error)
	GetByTestAndStudent(ctx context.Context, testID uuid.UUID, studentID int) (*model.Result, error)
}

// SelectionStore holds autosaved selections of in-progress attempts.
type SelectionStore interface {
	ListByTestAndStudent(ctx context.Context, testID uuid.UUID, studentID int) ([]repository.Selection, error)
	DeleteByTestAndStudent(ctx context.Context, testID uuid.UUID, studentID int) error
}
