package model

import "time"

// Student represents a student account.
type Student struct {
	ID            int       `json:"id"`
	Email         string    `json:"email"`
	StudentNumber string    `json:"student_number"`
	FullName      string    `json:"full_name"`
	PasswordHash  string    `json:"-"`
	GroupID       int       `json:"group_id"`
	Course        int       `json:"course"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StudentLoginRequest is the payload for student authentication.
// Identifier is either the student's email or their student number.
type StudentLoginRequest struct {
	Identifier string `json:"identifier" binding:"required,min=3,max=255"`
	Password   string `json:"password" binding:"required,min=4,max=128"`
}

// StudentLoginResponse is returned after successful student login.
type StudentLoginResponse struct {
	Token   string  `json:"token"`
	Student Student `json:"student"`
}

// StudentDashboard is the aggregate shown on the student's landing page.
type StudentDashboard struct {
	AvailableTests    int    `json:"available_tests"`
	CompletedTests    int    `json:"completed_tests"`
	AveragePercentage int    `json:"average_percentage"`
	GroupName         string `json:"group_name"`
}
