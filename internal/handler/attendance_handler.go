package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	"github.com/noah-isme/campus-attendance-api/internal/service"
	"github.com/noah-isme/campus-attendance-api/pkg/response"
)

type attendanceService interface {
	Window(ctx context.Context, lectureID, teacherID string) (*service.LectureWindow, error)
	Sheet(ctx context.Context, lectureID, teacherID string) (*service.AttendanceSheet, error)
	Mark(ctx context.Context, lectureID, teacherID, actorUserID string, req models.MarkAttendanceRequest) (*models.MarkAttendanceResult, error)
}

// AttendanceHandler serves lecture attendance endpoints.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(svc attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Window godoc
// @Summary Attendance window of a lecture
// @Description Reports the window status, whether marking is allowed and until when.
// @Tags Attendance
// @Produce json
// @Param id path string true "Lecture ID"
// @Success 200 {object} response.Envelope
// @Router /lectures/{id}/window [get]
func (h *AttendanceHandler) Window(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}
	window, err := h.service.Window(c.Request.Context(), c.Param("id"), teacherScope(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, window, nil)
}

// Sheet godoc
// @Summary Attendance sheet of a lecture
// @Description The section roster with any recorded statuses.
// @Tags Attendance
// @Produce json
// @Param id path string true "Lecture ID"
// @Success 200 {object} response.Envelope
// @Router /lectures/{id}/attendance [get]
func (h *AttendanceHandler) Sheet(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}
	sheet, err := h.service.Sheet(c.Request.Context(), c.Param("id"), teacherScope(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}

// Mark godoc
// @Summary Mark or edit attendance
// @Description Accepted only while the window allows it. Invalid records are reported and skipped.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Lecture ID"
// @Param payload body models.MarkAttendanceRequest true "Attendance records"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /lectures/{id}/attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}
	var req models.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	result, err := h.service.Mark(c.Request.Context(), c.Param("id"), claims.ProfileID, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
