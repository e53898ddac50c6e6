package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-attendance-api/internal/service"
	"github.com/noah-isme/campus-attendance-api/pkg/response"
)

// TimetableHandler manages recurring timetable rules.
type TimetableHandler struct {
	service *service.TimetableService
}

// NewTimetableHandler constructs TimetableHandler.
func NewTimetableHandler(svc *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// List godoc
// @Summary List timetable rules of a course assignment
// @Tags Timetable
// @Produce json
// @Param teacher_course_id query string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /timetable-rules [get]
func (h *TimetableHandler) List(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}
	rules, err := h.service.List(c.Request.Context(), c.Query("teacher_course_id"), teacherScope(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rules, nil)
}

// Create godoc
// @Summary Create a timetable rule
// @Description With generate=true the rule's lectures are created immediately.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body service.TimetableRuleRequest true "Rule payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /timetable-rules [post]
func (h *TimetableHandler) Create(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}
	var req service.TimetableRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	rule, generated, err := h.service.Create(c.Request.Context(), req, teacherScope(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"rule": rule, "generated": generated})
}

// Update godoc
// @Summary Update a timetable rule
// @Description Existing lectures are left untouched; run generate to add new dates.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Param payload body service.TimetableRuleRequest true "Rule payload"
// @Success 200 {object} response.Envelope
// @Router /timetable-rules/{id} [put]
func (h *TimetableHandler) Update(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}
	var req service.TimetableRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	rule, err := h.service.Update(c.Request.Context(), c.Param("id"), req, teacherScope(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rule, nil)
}

// Deactivate godoc
// @Summary Deactivate a timetable rule
// @Tags Timetable
// @Param id path string true "Rule ID"
// @Success 204 {object} response.Envelope
// @Router /timetable-rules/{id} [delete]
func (h *TimetableHandler) Deactivate(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id"), teacherScope(claims)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Generate godoc
// @Summary Generate lectures for a rule
// @Description Idempotent: dates that already have a lecture are skipped.
// @Tags Timetable
// @Produce json
// @Param id path string true "Rule ID"
// @Success 200 {object} response.Envelope
// @Router /timetable-rules/{id}/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}
	result, err := h.service.Generate(c.Request.Context(), c.Param("id"), teacherScope(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
