package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
)

// ResultService handles result review for students and teachers.
type ResultService struct {
	resultRepo *repository.ResultRepository
	testRepo   *repository.TestRepository
	statsRepo  *repository.StatsRepository
}

// NewResultService creates a new ResultService.
func NewResultService(resultRepo *repository.ResultRepository, testRepo *repository.TestRepository, statsRepo *repository.StatsRepository) *ResultService {
	return &ResultService{
		resultRepo: resultRepo,
		testRepo:   testRepo,
		statsRepo:  statsRepo,
	}
}

// GetStudentHistory retrieves a student's result history, newest first.
func (s *ResultService) GetStudentHistory(ctx context.Context, studentID int) ([]repository.ResultHistoryRow, error) {
	history, err := s.resultRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	if history == nil {
		history = []repository.ResultHistoryRow{}
	}
	return history, nil
}

// GetStudentResult retrieves one result with its per-question outcomes.
func (s *ResultService) GetStudentResult(ctx context.Context, testID uuid.UUID, studentID int) (*model.Result, error) {
	return s.resultRepo.GetByTestAndStudent(ctx, testID, studentID)
}

// GetTestResults retrieves results of one test for its author, with an
// optional group filter.
func (s *ResultService) GetTestResults(ctx context.Context, teacherID int, testID uuid.UUID, page, perPage int, groupID *int) ([]repository.TestResult, int64, error) {
	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return nil, 0, fmt.Errorf("get test: %w", err)
	}
	if test.TeacherID != teacherID {
		return nil, 0, ErrNotTestAuthor
	}
	return s.resultRepo.ListByTest(ctx, testID, page, perPage, groupID)
}

// GetTestGroupStats retrieves the per-group rollups of one test.
func (s *ResultService) GetTestGroupStats(ctx context.Context, teacherID int, testID uuid.UUID) ([]repository.GroupStat, error) {
	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}
	if test.TeacherID != teacherID {
		return nil, ErrNotTestAuthor
	}
	return s.statsRepo.ListByTest(ctx, testID)
}

// GetTeacherSummary retrieves the teacher dashboard counters.
func (s *ResultService) GetTeacherSummary(ctx context.Context, teacherID int) (*repository.TeacherSummary, error) {
	return s.statsRepo.GetTeacherSummary(ctx, teacherID)
}
