package model

import "time"

// Group is a set of students taught by one teacher. Tests are assigned to
// groups; a student sees a test when their group is among its targets.
type Group struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	TeacherID    int       `json:"teacher_id"`
	StudentCount int       `json:"student_count,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateGroupRequest is the payload for creating a group.
type CreateGroupRequest struct {
	Name string `json:"name" binding:"required,min=2,max=100"`
}

// UpdateGroupRequest is the payload for renaming a group.
type UpdateGroupRequest struct {
	Name string `json:"name" binding:"required,min=2,max=100"`
}
