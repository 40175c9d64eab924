package model

import (
	"github.com/google/uuid"
)

// Question is a canonical multiple-choice question as authored by the
// teacher. CorrectIndex points into Options in authored order; OrderNum is
// the canonical display position outside of an attempt.
type Question struct {
	ID           uuid.UUID `json:"id"`
	TestID       uuid.UUID `json:"test_id"`
	Text         string    `json:"text"`
	Options      []string  `json:"options"`
	CorrectIndex int       `json:"correct_index"`
	Points       int       `json:"points"`
	OrderNum     int       `json:"order_num"`
}

// CreateQuestionRequest is the payload for authoring a single question.
type CreateQuestionRequest struct {
	Text         string   `json:"text" binding:"required,min=1,max=2000"`
	Options      []string `json:"options" binding:"required,min=2,max=10,dive,required,max=500"`
	CorrectIndex int      `json:"correct_index" binding:"min=0"`
	Points       int      `json:"points" binding:"omitempty,min=1,max=100"`
	OrderNum     int      `json:"order_num" binding:"min=0"`
}
