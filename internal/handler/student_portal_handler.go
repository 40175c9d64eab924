package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/attempt"
	"github.com/quizdesk/quizdesk-backend/internal/middleware"
	"github.com/quizdesk/quizdesk-backend/internal/response"
	"github.com/quizdesk/quizdesk-backend/internal/service"
	"github.com/quizdesk/quizdesk-backend/internal/validator"
)

// StudentPortalHandler handles student-facing endpoints (dashboard, test taking).
type StudentPortalHandler struct {
	studentService *service.StudentService
	attemptService *service.AttemptService
	resultService  *service.ResultService
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	studentService *service.StudentService,
	attemptService *service.AttemptService,
	resultService *service.ResultService,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		studentService: studentService,
		attemptService: attemptService,
		resultService:  resultService,
	}
}

// GetDashboard godoc
// GET /api/v1/student/dashboard
// Returns the student's landing page aggregate.
func (h *StudentPortalHandler) GetDashboard(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	dashboard, err := h.studentService.GetDashboard(c.Request.Context(), claims.UserID, claims.GroupID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, dashboard)
}

// ListTests godoc
// GET /api/v1/student/tests
// Returns active tests for the student's group that have not been taken yet.
func (h *StudentPortalHandler) ListTests(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	tests, err := h.studentService.ListAvailableTests(c.Request.Context(), claims.UserID, claims.GroupID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"tests": tests})
}

// StartAttempt godoc
// POST /api/v1/student/tests/:test_id/start
// Begins (or rejoins) an attempt and returns the randomized paper.
func (h *StudentPortalHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.attemptService.StartAttempt(c.Request.Context(), testID, claims.UserID, claims.GroupID)
	if err != nil {
		h.failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// GetAttemptState godoc
// GET /api/v1/student/tests/:test_id/attempt
// Returns the current renderable state after a page reload.
func (h *StudentPortalHandler) GetAttemptState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.attemptService.GetAttemptState(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		h.failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// selectAnswerRequest is the payload for recording one selection.
type selectAnswerRequest struct {
	QuestionID    string `json:"question_id" binding:"required,uuid"`
	SelectedIndex int    `json:"selected_index" binding:"min=0"`
}

// RecordSelection godoc
// PUT /api/v1/student/tests/:test_id/attempt/answers
// Upserts the student's selection for one question; last write wins.
func (h *StudentPortalHandler) RecordSelection(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req selectAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.attemptService.RecordSelection(c.Request.Context(), testID, claims.UserID, questionID, req.SelectedIndex); err != nil {
		h.failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// submitRequest is the payload for a manual submission.
type submitRequest struct {
	ConfirmIncomplete bool `json:"confirm_incomplete"`
}

// SubmitAttempt godoc
// POST /api/v1/student/tests/:test_id/attempt/submit
// Runs the single submission path and returns the graded result.
func (h *StudentPortalHandler) SubmitAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req submitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.attemptService.Submit(c.Request.Context(), testID, claims.UserID, attempt.SubmitOptions{
		ConfirmIncomplete: req.ConfirmIncomplete,
	})
	if err != nil {
		h.failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// AbandonAttempt godoc
// DELETE /api/v1/student/tests/:test_id/attempt
// Cancels a live attempt without producing a result.
func (h *StudentPortalHandler) AbandonAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.attemptService.Abandon(c.Request.Context(), testID, claims.UserID); err != nil {
		h.failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// ListResults godoc
// GET /api/v1/student/results
// Returns the student's result history, newest first.
func (h *StudentPortalHandler) ListResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	history, err := h.resultService.GetStudentHistory(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": history})
}

// GetResult godoc
// GET /api/v1/student/results/:test_id
// Returns one result with per-question outcomes.
func (h *StudentPortalHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.resultService.GetStudentResult(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// failAttemptError maps attempt flow errors to response codes.
func (h *StudentPortalHandler) failAttemptError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTestNotAvailable):
		response.Fail(c, http.StatusForbidden, response.ErrTestNotAvailable)
	case errors.Is(err, service.ErrTestNotAssigned):
		response.Fail(c, http.StatusForbidden, response.ErrTestNotAssigned)
	case errors.Is(err, service.ErrAlreadySubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
	case errors.Is(err, service.ErrNoActiveAttempt):
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveAttempt)
	case errors.Is(err, attempt.ErrNoQuestions):
		response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
	case errors.Is(err, attempt.ErrUnknownQuestion):
		response.Fail(c, http.StatusBadRequest, response.ErrUnknownQuestion)
	case errors.Is(err, attempt.ErrOptionOutOfRange):
		response.Fail(c, http.StatusBadRequest, response.ErrOptionOutOfRange)
	case errors.Is(err, attempt.ErrConfirmationRequired):
		response.Fail(c, http.StatusConflict, response.ErrConfirmationRequired)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
