package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	"github.com/noah-isme/campus-attendance-api/internal/service"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
	"github.com/noah-isme/campus-attendance-api/pkg/response"
)

// TeacherCourseHandler manages course assignments.
type TeacherCourseHandler struct {
	service *service.TeacherCourseService
}

// NewTeacherCourseHandler constructs TeacherCourseHandler.
func NewTeacherCourseHandler(svc *service.TeacherCourseService) *TeacherCourseHandler {
	return &TeacherCourseHandler{service: svc}
}

// List godoc
// @Summary List course assignments
// @Description Teachers always see their own assignments. Admins filter by teacher_id or section_id.
// @Tags TeacherCourses
// @Produce json
// @Param teacher_id query string false "Teacher filter"
// @Param section_id query string false "Section filter"
// @Success 200 {object} response.Envelope
// @Router /teacher-courses [get]
func (h *TeacherCourseHandler) List(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	var (
		rows []models.TeacherCourseDetail
		err  error
	)
	switch {
	case claims.Role == models.RoleTeacher:
		rows, err = h.service.ListByTeacher(c.Request.Context(), claims.ProfileID)
	case c.Query("teacher_id") != "":
		rows, err = h.service.ListByTeacher(c.Request.Context(), c.Query("teacher_id"))
	case c.Query("section_id") != "":
		rows, err = h.service.ListBySection(c.Request.Context(), c.Query("section_id"))
	default:
		err = appErrors.Clone(appErrors.ErrValidation, "teacher_id or section_id is required")
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// Get godoc
// @Summary Get course assignment
// @Tags TeacherCourses
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /teacher-courses/{id} [get]
func (h *TeacherCourseHandler) Get(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	var (
		row *models.TeacherCourseDetail
		err error
	)
	if scope := teacherScope(claims); scope != "" {
		row, err = h.service.Owned(c.Request.Context(), c.Param("id"), scope)
	} else {
		row, err = h.service.Get(c.Request.Context(), c.Param("id"))
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, row, nil)
}

// Assign godoc
// @Summary Assign a course to a teacher for a section
// @Tags TeacherCourses
// @Accept json
// @Produce json
// @Param payload body service.AssignCourseRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /teacher-courses [post]
func (h *TeacherCourseHandler) Assign(c *gin.Context) {
	var req service.AssignCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	row, err := h.service.Assign(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, row)
}

// Unassign godoc
// @Summary Remove a course assignment
// @Tags TeacherCourses
// @Param id path string true "Assignment ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /teacher-courses/{id} [delete]
func (h *TeacherCourseHandler) Unassign(c *gin.Context) {
	if err := h.service.Unassign(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
