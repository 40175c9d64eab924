package service

import (
	"context"
	"fmt"

	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
)

// TeacherService handles teacher accounts.
type TeacherService struct {
	teacherRepo *repository.TeacherRepository
	authService *AuthService
}

// NewTeacherService creates a new TeacherService.
func NewTeacherService(teacherRepo *repository.TeacherRepository, authService *AuthService) *TeacherService {
	return &TeacherService{teacherRepo: teacherRepo, authService: authService}
}

// Login authenticates a teacher and issues a session token.
func (s *TeacherService) Login(ctx context.Context, req *model.TeacherLoginRequest) (*model.TeacherLoginResponse, error) {
	teacher, err := s.teacherRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := s.authService.CheckPassword(teacher.PasswordHash, req.Password); err != nil {
		return nil, err
	}

	token, err := s.authService.GenerateTeacherToken(teacher.ID)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	return &model.TeacherLoginResponse{Token: token, Teacher: *teacher}, nil
}

// GetByID retrieves a teacher profile.
func (s *TeacherService) GetByID(ctx context.Context, id int) (*model.Teacher, error) {
	return s.teacherRepo.GetByID(ctx, id)
}

// Create registers a teacher account with a hashed password.
func (s *TeacherService) Create(ctx context.Context, email, fullName, password string) (*model.Teacher, error) {
	hash, err := s.authService.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	teacher := &model.Teacher{Email: email, FullName: fullName, PasswordHash: hash}
	if err := s.teacherRepo.Create(ctx, teacher); err != nil {
		return nil, err
	}
	return teacher, nil
}
