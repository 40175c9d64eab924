package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/config"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Test authoring errors.
var (
	ErrNotTestAuthor       = errors.New("teacher is not the author of this test")
	ErrInvalidCorrectIndex = errors.New("correct index out of options range")
)

// TestWithQuestions is a test plus its full question list, for teacher review.
type TestWithQuestions struct {
	model.Test
	Questions []model.Question `json:"questions"`
}

// TestService handles test authoring business logic.
type TestService struct {
	testRepo     *repository.TestRepository
	questionRepo *repository.QuestionRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(testRepo *repository.TestRepository, questionRepo *repository.QuestionRepository, rdb *redis.Client, log zerolog.Logger) *TestService {
	return &TestService{
		testRepo:     testRepo,
		questionRepo: questionRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "test_service").Logger(),
	}
}

// Create inserts a test with its questions and group assignments. New tests
// start inactive; the teacher activates them when ready.
func (s *TestService) Create(ctx context.Context, teacherID int, req *model.CreateTestRequest) (*model.Test, error) {
	for _, q := range req.Questions {
		if q.CorrectIndex >= len(q.Options) {
			return nil, ErrInvalidCorrectIndex
		}
	}

	test := &model.Test{
		Title:           req.Title,
		Description:     req.Description,
		TeacherID:       teacherID,
		DurationMinutes: req.DurationMinutes,
		IsActive:        false,
	}
	if err := s.testRepo.Create(ctx, test); err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}

	if err := s.createQuestions(ctx, test.ID, req.Questions); err != nil {
		return nil, err
	}

	if err := s.testRepo.ReplaceGroups(ctx, test.ID, req.GroupIDs); err != nil {
		return nil, fmt.Errorf("assign groups: %w", err)
	}
	test.GroupIDs = req.GroupIDs
	test.QuestionCount = len(req.Questions)

	s.log.Info().
		Str("test_id", test.ID.String()).
		Int("teacher_id", teacherID).
		Int("questions", len(req.Questions)).
		Msg("Test created")

	return test, nil
}

// GetWithQuestions retrieves a test and its questions for its author.
func (s *TestService) GetWithQuestions(ctx context.Context, teacherID int, testID uuid.UUID) (*TestWithQuestions, error) {
	test, err := s.authoredTest(ctx, teacherID, testID)
	if err != nil {
		return nil, err
	}

	questions, err := s.questionRepo.ListByTest(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	return &TestWithQuestions{Test: *test, Questions: questions}, nil
}

// ListByTeacher retrieves all tests authored by a teacher.
func (s *TestService) ListByTeacher(ctx context.Context, teacherID int) ([]model.Test, error) {
	return s.testRepo.ListByTeacher(ctx, teacherID)
}

// Update modifies a test. A non-nil Questions slice replaces the question
// set wholesale; existing results keep their recorded outcomes.
func (s *TestService) Update(ctx context.Context, teacherID int, testID uuid.UUID, req *model.UpdateTestRequest) (*model.Test, error) {
	test, err := s.authoredTest(ctx, teacherID, testID)
	if err != nil {
		return nil, err
	}

	if req.Title != "" {
		test.Title = req.Title
	}
	if req.Description != nil {
		test.Description = *req.Description
	}
	if req.DurationMinutes > 0 {
		test.DurationMinutes = req.DurationMinutes
	}

	if err := s.testRepo.Update(ctx, test); err != nil {
		return nil, fmt.Errorf("update test: %w", err)
	}

	if len(req.GroupIDs) > 0 {
		if err := s.testRepo.ReplaceGroups(ctx, testID, req.GroupIDs); err != nil {
			return nil, fmt.Errorf("assign groups: %w", err)
		}
		test.GroupIDs = req.GroupIDs
	}

	if len(req.Questions) > 0 {
		for _, q := range req.Questions {
			if q.CorrectIndex >= len(q.Options) {
				return nil, ErrInvalidCorrectIndex
			}
		}
		if err := s.questionRepo.DeleteByTest(ctx, testID); err != nil {
			return nil, fmt.Errorf("clear questions: %w", err)
		}
		if err := s.createQuestions(ctx, testID, req.Questions); err != nil {
			return nil, err
		}
		test.QuestionCount = len(req.Questions)
	}

	s.invalidatePayload(ctx, testID)
	return test, nil
}

// SetActive toggles the test. Activation pre-caches the canonical payload in
// Redis so attempt starts skip the question query; deactivation drops it.
func (s *TestService) SetActive(ctx context.Context, teacherID int, testID uuid.UUID, active bool) error {
	test, err := s.authoredTest(ctx, teacherID, testID)
	if err != nil {
		return err
	}

	if err := s.testRepo.SetActive(ctx, testID, active); err != nil {
		return fmt.Errorf("set active: %w", err)
	}

	if !active {
		s.invalidatePayload(ctx, testID)
		return nil
	}

	if err := s.cachePayload(ctx, test); err != nil {
		// Cache is an optimization; attempt starts fall back to the database.
		s.log.Warn().Err(err).Str("test_id", testID.String()).Msg("Payload cache failed")
	}
	return nil
}

// Delete removes a test and everything hanging off it.
func (s *TestService) Delete(ctx context.Context, teacherID int, testID uuid.UUID) error {
	if _, err := s.authoredTest(ctx, teacherID, testID); err != nil {
		return err
	}
	if err := s.testRepo.Delete(ctx, testID); err != nil {
		return fmt.Errorf("delete test: %w", err)
	}
	s.invalidatePayload(ctx, testID)
	return nil
}

func (s *TestService) authoredTest(ctx context.Context, teacherID int, testID uuid.UUID) (*model.Test, error) {
	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}
	if test.TeacherID != teacherID {
		return nil, ErrNotTestAuthor
	}
	return test, nil
}

func (s *TestService) createQuestions(ctx context.Context, testID uuid.UUID, reqs []model.CreateQuestionRequest) error {
	for i, qr := range reqs {
		orderNum := qr.OrderNum
		if orderNum == 0 {
			orderNum = i + 1
		}
		points := qr.Points
		if points < 1 {
			points = 1
		}
		q := &model.Question{
			TestID:       testID,
			Text:         qr.Text,
			Options:      qr.Options,
			CorrectIndex: qr.CorrectIndex,
			Points:       points,
			OrderNum:     orderNum,
		}
		if err := s.questionRepo.Create(ctx, q); err != nil {
			return fmt.Errorf("create question %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *TestService) cachePayload(ctx context.Context, test *model.Test) error {
	if s.rdb == nil {
		return nil
	}

	questions, err := s.questionRepo.ListByTest(ctx, test.ID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}

	payload := model.TestPayload{
		TestID:          test.ID,
		Title:           test.Title,
		DurationMinutes: test.DurationMinutes,
		Questions:       questions,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.TestPayloadKey(test.ID.String()), data, 0)
	pipe.Set(ctx, config.CacheKey.TestDurationKey(test.ID.String()), test.DurationMinutes, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}
	return nil
}

func (s *TestService) invalidatePayload(ctx context.Context, testID uuid.UUID) {
	if s.rdb == nil {
		return
	}
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.TestPayloadKey(testID.String()))
	pipe.Del(ctx, config.CacheKey.TestDurationKey(testID.String()))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("test_id", testID.String()).Msg("Payload invalidation failed")
	}
}
