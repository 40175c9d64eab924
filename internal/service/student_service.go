package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
)

// StudentService handles the student portal: dashboard and available tests.
type StudentService struct {
	studentRepo *repository.StudentRepository
	groupRepo   *repository.GroupRepository
	testRepo    *repository.TestRepository
	resultRepo  *repository.ResultRepository
	authService *AuthService
}

// NewStudentService creates a new StudentService.
func NewStudentService(
	studentRepo *repository.StudentRepository,
	groupRepo *repository.GroupRepository,
	testRepo *repository.TestRepository,
	resultRepo *repository.ResultRepository,
	authService *AuthService,
) *StudentService {
	return &StudentService{
		studentRepo: studentRepo,
		groupRepo:   groupRepo,
		testRepo:    testRepo,
		resultRepo:  resultRepo,
		authService: authService,
	}
}

// Login authenticates a student by email or student number and issues a
// session token.
func (s *StudentService) Login(ctx context.Context, req *model.StudentLoginRequest) (*model.StudentLoginResponse, error) {
	student, err := s.lookupByIdentifier(ctx, req.Identifier)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := s.authService.CheckPassword(student.PasswordHash, req.Password); err != nil {
		return nil, err
	}

	token, err := s.authService.GenerateStudentToken(ctx, student.ID, student.GroupID)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	return &model.StudentLoginResponse{Token: token, Student: *student}, nil
}

// lookupByIdentifier resolves the login identifier to a student row.
// Identifiers containing "@" are treated as emails, anything else as a
// student number.
func (s *StudentService) lookupByIdentifier(ctx context.Context, identifier string) (*model.Student, error) {
	if strings.Contains(identifier, "@") {
		return s.studentRepo.GetByEmail(ctx, identifier)
	}
	return s.studentRepo.GetByStudentNumber(ctx, identifier)
}

// GetDashboard builds the student's landing page aggregate.
func (s *StudentService) GetDashboard(ctx context.Context, studentID, groupID int) (*model.StudentDashboard, error) {
	available, err := s.testRepo.ListAvailableForStudent(ctx, studentID, groupID)
	if err != nil {
		return nil, fmt.Errorf("list available tests: %w", err)
	}

	completed, average, err := s.resultRepo.CountAndAverageByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("result stats: %w", err)
	}

	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}

	return &model.StudentDashboard{
		AvailableTests:    len(available),
		CompletedTests:    completed,
		AveragePercentage: average,
		GroupName:         group.Name,
	}, nil
}

// ListAvailableTests retrieves active tests for the student's group that
// have not been taken yet.
func (s *StudentService) ListAvailableTests(ctx context.Context, studentID, groupID int) ([]model.AvailableTest, error) {
	tests, err := s.testRepo.ListAvailableForStudent(ctx, studentID, groupID)
	if err != nil {
		return nil, fmt.Errorf("list available tests: %w", err)
	}
	if tests == nil {
		tests = []model.AvailableTest{}
	}
	return tests, nil
}
