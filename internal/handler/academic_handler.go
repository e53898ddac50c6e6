package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	"github.com/noah-isme/campus-attendance-api/internal/service"
	"github.com/noah-isme/campus-attendance-api/pkg/response"
)

// AcademicHandler exposes badges, sections and courses.
type AcademicHandler struct {
	badges   *service.BadgeService
	sections *service.SectionService
	courses  *service.CourseService
}

// NewAcademicHandler constructs AcademicHandler.
func NewAcademicHandler(badges *service.BadgeService, sections *service.SectionService, courses *service.CourseService) *AcademicHandler {
	return &AcademicHandler{badges: badges, sections: sections, courses: courses}
}

// ListBadges godoc
// @Summary List degree badges
// @Tags Academic
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /badges [get]
func (h *AcademicHandler) ListBadges(c *gin.Context) {
	badges, err := h.badges.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, badges, nil)
}

// CreateBadge godoc
// @Summary Create degree badge
// @Tags Academic
// @Accept json
// @Produce json
// @Param payload body service.BadgeRequest true "Badge payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /badges [post]
func (h *AcademicHandler) CreateBadge(c *gin.Context) {
	var req service.BadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	badge, err := h.badges.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, badge)
}

// UpdateBadge godoc
// @Summary Update degree badge
// @Tags Academic
// @Accept json
// @Produce json
// @Param id path string true "Badge ID"
// @Param payload body service.BadgeRequest true "Badge payload"
// @Success 200 {object} response.Envelope
// @Router /badges/{id} [put]
func (h *AcademicHandler) UpdateBadge(c *gin.Context) {
	var req service.BadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	badge, err := h.badges.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, badge, nil)
}

// DeleteBadge godoc
// @Summary Delete degree badge
// @Description Fails with 409 while sections still reference the badge.
// @Tags Academic
// @Param id path string true "Badge ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /badges/{id} [delete]
func (h *AcademicHandler) DeleteBadge(c *gin.Context) {
	if err := h.badges.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListSections godoc
// @Summary List sections
// @Tags Academic
// @Produce json
// @Param badge_id query string false "Badge filter"
// @Param semester query int false "Semester filter"
// @Param session query string false "Session filter"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sections [get]
func (h *AcademicHandler) ListSections(c *gin.Context) {
	filter := models.SectionFilter{BadgeID: c.Query("badge_id"), Session: c.Query("session")}
	filter.Semester, _ = strconv.Atoi(c.Query("semester"))
	filter.Page, filter.PageSize = pageParams(c)

	sections, pagination, err := h.sections.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sections, pagination)
}

// GetSection godoc
// @Summary Get section
// @Tags Academic
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /sections/{id} [get]
func (h *AcademicHandler) GetSection(c *gin.Context) {
	section, err := h.sections.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section, nil)
}

// CreateSection godoc
// @Summary Create section
// @Tags Academic
// @Accept json
// @Produce json
// @Param payload body service.SectionRequest true "Section payload"
// @Success 201 {object} response.Envelope
// @Router /sections [post]
func (h *AcademicHandler) CreateSection(c *gin.Context) {
	var req service.SectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	section, err := h.sections.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, section)
}

// UpdateSection godoc
// @Summary Update section
// @Tags Academic
// @Accept json
// @Produce json
// @Param id path string true "Section ID"
// @Param payload body service.SectionRequest true "Section payload"
// @Success 200 {object} response.Envelope
// @Router /sections/{id} [put]
func (h *AcademicHandler) UpdateSection(c *gin.Context) {
	var req service.SectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	section, err := h.sections.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section, nil)
}

// DeleteSection godoc
// @Summary Delete section
// @Tags Academic
// @Param id path string true "Section ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sections/{id} [delete]
func (h *AcademicHandler) DeleteSection(c *gin.Context) {
	if err := h.sections.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListCourses godoc
// @Summary List courses
// @Tags Academic
// @Produce json
// @Param search query string false "Code or title"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *AcademicHandler) ListCourses(c *gin.Context) {
	page, size := pageParams(c)
	courses, pagination, err := h.courses.List(c.Request.Context(), c.Query("search"), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// CreateCourse godoc
// @Summary Create course
// @Tags Academic
// @Accept json
// @Produce json
// @Param payload body service.CourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Router /courses [post]
func (h *AcademicHandler) CreateCourse(c *gin.Context) {
	var req service.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	course, err := h.courses.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// UpdateCourse godoc
// @Summary Update course
// @Tags Academic
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.CourseRequest true "Course payload"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [put]
func (h *AcademicHandler) UpdateCourse(c *gin.Context) {
	var req service.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	course, err := h.courses.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// DeleteCourse godoc
// @Summary Delete course
// @Tags Academic
// @Param id path string true "Course ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id} [delete]
func (h *AcademicHandler) DeleteCourse(c *gin.Context) {
	if err := h.courses.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
