package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	"github.com/noah-isme/campus-attendance-api/internal/service"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
	"github.com/noah-isme/campus-attendance-api/pkg/response"
)

type reportService interface {
	Summary(ctx context.Context, dim models.ReportDimension, filter models.ReportFilter) (*models.ReportSummary, error)
	Defaulters(ctx context.Context, threshold *float64, filter models.ReportFilter) (*models.DefaulterReport, error)
	StudentReport(ctx context.Context, studentID string, filter models.ReportFilter) (*models.StudentReport, error)
	StudentReportForUser(ctx context.Context, userID string, filter models.ReportFilter) (*models.StudentReport, error)
	Export(ctx context.Context, req service.ExportReportRequest, role models.UserRole) (*service.StoredFile, error)
}

// ReportHandler exposes attendance reports.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs handler.
func NewReportHandler(svc reportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Summary godoc
// @Summary Attendance summary
// @Description Groups attendance by student, section, course, teacher, week or month. Teachers only see their own courses.
// @Tags Reports
// @Produce json
// @Param dimension query string true "Grouping dimension"
// @Param section_id query string false "Section filter"
// @Param course_id query string false "Course filter"
// @Param teacher_id query string false "Teacher filter"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /reports/summary [get]
func (h *ReportHandler) Summary(c *gin.Context) {
	filter, ok := reportFilter(c)
	if !ok {
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), models.ReportDimension(c.Query("dimension")), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Defaulters godoc
// @Summary Students below the attendance threshold
// @Tags Reports
// @Produce json
// @Param threshold query number false "Percentage threshold, defaults to the configured value"
// @Param section_id query string false "Section filter"
// @Param course_id query string false "Course filter"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /reports/defaulters [get]
func (h *ReportHandler) Defaulters(c *gin.Context) {
	filter, ok := reportFilter(c)
	if !ok {
		return
	}
	var threshold *float64
	if raw := c.Query("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "threshold must be a number"))
			return
		}
		threshold = &v
	}
	report, err := h.service.Defaulters(c.Request.Context(), threshold, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Student godoc
// @Summary Attendance of one student per course
// @Tags Reports
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /reports/students/{id} [get]
func (h *ReportHandler) Student(c *gin.Context) {
	filter, ok := reportFilter(c)
	if !ok {
		return
	}
	report, err := h.service.StudentReport(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Mine godoc
// @Summary The signed-in student's attendance per course
// @Tags Reports
// @Produce json
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /reports/me [get]
func (h *ReportHandler) Mine(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}
	filter, ok := reportFilter(c)
	if !ok {
		return
	}
	report, err := h.service.StudentReportForUser(c.Request.Context(), claims.UserID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Export godoc
// @Summary Export a report as CSV, XLSX or PDF
// @Description Returns a signed download link. XLSX is limited to administrators.
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body service.ExportReportRequest true "Export request"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /reports/export [post]
func (h *ReportHandler) Export(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}
	var req service.ExportReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	if claims.Role == models.RoleTeacher {
		req.Filter.TeacherID = claims.ProfileID
	}
	stored, err := h.service.Export(c.Request.Context(), req, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, stored)
}

// reportFilter binds the query filter and pins teachers to their own courses.
func reportFilter(c *gin.Context) (models.ReportFilter, bool) {
	claims, ok := currentClaims(c)
	if !ok {
		return models.ReportFilter{}, false
	}
	var filter models.ReportFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid report filter"))
		return filter, false
	}
	if claims.Role == models.RoleTeacher {
		filter.TeacherID = claims.ProfileID
	}
	return filter, true
}
