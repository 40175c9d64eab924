package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/middleware"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/response"
	"github.com/quizdesk/quizdesk-backend/internal/service"
	"github.com/quizdesk/quizdesk-backend/internal/validator"
)

// TeacherHandler handles teacher-facing endpoints (groups, tests, results).
type TeacherHandler struct {
	groupService  *service.GroupService
	testService   *service.TestService
	resultService *service.ResultService
}

// NewTeacherHandler creates a new TeacherHandler.
func NewTeacherHandler(
	groupService *service.GroupService,
	testService *service.TestService,
	resultService *service.ResultService,
) *TeacherHandler {
	return &TeacherHandler{
		groupService:  groupService,
		testService:   testService,
		resultService: resultService,
	}
}

// ─── Groups ─────────────────────────────────────────────────────────────────

// ListGroups godoc
// GET /api/v1/teacher/groups
func (h *TeacherHandler) ListGroups(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	groups, err := h.groupService.List(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"groups": groups})
}

// CreateGroup godoc
// POST /api/v1/teacher/groups
func (h *TeacherHandler) CreateGroup(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateGroupRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	group, err := h.groupService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, group)
}

// UpdateGroup godoc
// PUT /api/v1/teacher/groups/:id
func (h *TeacherHandler) UpdateGroup(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	groupID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateGroupRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	group, err := h.groupService.Update(c.Request.Context(), claims.UserID, groupID, &req)
	if err != nil {
		h.failTeacherError(c, err)
		return
	}

	response.Success(c, http.StatusOK, group)
}

// DeleteGroup godoc
// DELETE /api/v1/teacher/groups/:id
func (h *TeacherHandler) DeleteGroup(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	groupID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.groupService.Delete(c.Request.Context(), claims.UserID, groupID); err != nil {
		h.failTeacherError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// ListGroupStudents godoc
// GET /api/v1/teacher/groups/:id/students
func (h *TeacherHandler) ListGroupStudents(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	groupID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	students, err := h.groupService.ListStudents(c.Request.Context(), claims.UserID, groupID)
	if err != nil {
		h.failTeacherError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"students": students})
}

// ─── Tests ──────────────────────────────────────────────────────────────────

// ListTests godoc
// GET /api/v1/teacher/tests
func (h *TeacherHandler) ListTests(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	tests, err := h.testService.ListByTeacher(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if tests == nil {
		tests = []model.Test{}
	}

	response.Success(c, http.StatusOK, gin.H{"tests": tests})
}

// CreateTest godoc
// POST /api/v1/teacher/tests
func (h *TeacherHandler) CreateTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.testService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		h.failTeacherError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, test)
}

// GetTest godoc
// GET /api/v1/teacher/tests/:id
func (h *TeacherHandler) GetTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	test, err := h.testService.GetWithQuestions(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		h.failTeacherError(c, err)
		return
	}

	response.Success(c, http.StatusOK, test)
}

// UpdateTest godoc
// PUT /api/v1/teacher/tests/:id
func (h *TeacherHandler) UpdateTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.testService.Update(c.Request.Context(), claims.UserID, testID, &req)
	if err != nil {
		h.failTeacherError(c, err)
		return
	}

	response.Success(c, http.StatusOK, test)
}

// SetTestActive godoc
// PATCH /api/v1/teacher/tests/:id/active
func (h *TeacherHandler) SetTestActive(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SetTestActiveRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.testService.SetActive(c.Request.Context(), claims.UserID, testID, *req.IsActive); err != nil {
		h.failTeacherError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"is_active": *req.IsActive})
}

// DeleteTest godoc
// DELETE /api/v1/teacher/tests/:id
func (h *TeacherHandler) DeleteTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.testService.Delete(c.Request.Context(), claims.UserID, testID); err != nil {
		h.failTeacherError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// ─── Results ────────────────────────────────────────────────────────────────

// GetTestResults godoc
// GET /api/v1/teacher/tests/:id/results?page=&per_page=&group_id=
func (h *TeacherHandler) GetTestResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "25"))
	if perPage < 1 || perPage > 100 {
		perPage = 25
	}

	var groupID *int
	if raw := c.Query("group_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		groupID = &id
	}

	results, total, err := h.resultService.GetTestResults(c.Request.Context(), claims.UserID, testID, page, perPage, groupID)
	if err != nil {
		h.failTeacherError(c, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: totalPages,
	})
}

// GetTestStats godoc
// GET /api/v1/teacher/tests/:id/stats
// Returns the per-group rollups maintained by the stats worker.
func (h *TeacherHandler) GetTestStats(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	stats, err := h.resultService.GetTestGroupStats(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		h.failTeacherError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}

// GetSummary godoc
// GET /api/v1/teacher/stats
func (h *TeacherHandler) GetSummary(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	summary, err := h.resultService.GetTeacherSummary(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, summary)
}

// failTeacherError maps teacher flow errors to response codes.
func (h *TeacherHandler) failTeacherError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotTestAuthor):
		response.Fail(c, http.StatusForbidden, response.ErrNotTestAuthor)
	case errors.Is(err, service.ErrNotGroupOwner):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrGroupInUse):
		response.Fail(c, http.StatusConflict, response.ErrDependencyExists)
	case errors.Is(err, service.ErrInvalidCorrectIndex):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
