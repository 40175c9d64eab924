package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
)

// ErrNotGroupOwner is returned when a teacher touches a group they don't own.
var ErrNotGroupOwner = errors.New("teacher does not own this group")

// ErrGroupInUse is returned when deleting a group that still has students or
// assigned tests.
var ErrGroupInUse = errors.New("group still has students or assigned tests")

// GroupService handles group management business logic.
type GroupService struct {
	groupRepo   *repository.GroupRepository
	studentRepo *repository.StudentRepository
}

// NewGroupService creates a new GroupService.
func NewGroupService(groupRepo *repository.GroupRepository, studentRepo *repository.StudentRepository) *GroupService {
	return &GroupService{groupRepo: groupRepo, studentRepo: studentRepo}
}

// List retrieves the teacher's groups with student counts.
func (s *GroupService) List(ctx context.Context, teacherID int) ([]model.Group, error) {
	groups, err := s.groupRepo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	if groups == nil {
		groups = []model.Group{}
	}
	return groups, nil
}

// Create inserts a new group owned by the teacher.
func (s *GroupService) Create(ctx context.Context, teacherID int, req *model.CreateGroupRequest) (*model.Group, error) {
	group := &model.Group{Name: req.Name, TeacherID: teacherID}
	if err := s.groupRepo.Create(ctx, group); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	return group, nil
}

// Update renames a group after an ownership check.
func (s *GroupService) Update(ctx context.Context, teacherID, groupID int, req *model.UpdateGroupRequest) (*model.Group, error) {
	group, err := s.ownedGroup(ctx, teacherID, groupID)
	if err != nil {
		return nil, err
	}
	group.Name = req.Name
	if err := s.groupRepo.Update(ctx, group); err != nil {
		return nil, fmt.Errorf("update group: %w", err)
	}
	return group, nil
}

// Delete removes a group. Foreign keys block deletion while students or test
// assignments still reference it.
func (s *GroupService) Delete(ctx context.Context, teacherID, groupID int) error {
	if _, err := s.ownedGroup(ctx, teacherID, groupID); err != nil {
		return err
	}
	if err := s.groupRepo.Delete(ctx, groupID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrGroupInUse
		}
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

// ListStudents retrieves the students of an owned group.
func (s *GroupService) ListStudents(ctx context.Context, teacherID, groupID int) ([]model.Student, error) {
	if _, err := s.ownedGroup(ctx, teacherID, groupID); err != nil {
		return nil, err
	}
	students, err := s.studentRepo.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	if students == nil {
		students = []model.Student{}
	}
	return students, nil
}

func (s *GroupService) ownedGroup(ctx context.Context, teacherID, groupID int) (*model.Group, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if group.TeacherID != teacherID {
		return nil, ErrNotGroupOwner
	}
	return group, nil
}
