package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	"github.com/noah-isme/campus-attendance-api/internal/service"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
	"github.com/noah-isme/campus-attendance-api/pkg/response"
)

const csvContentType = "text/csv; charset=utf-8"

type lectureService interface {
	List(ctx context.Context, filter models.LectureFilter) ([]models.LectureDetail, *models.Pagination, error)
	Get(ctx context.Context, id, teacherID string) (*models.LectureDetail, error)
	Create(ctx context.Context, req service.CreateLectureRequest, teacherID string) (*models.LectureDetail, error)
	Reschedule(ctx context.Context, id string, req service.RescheduleLectureRequest, teacherID string) (*models.LectureDetail, error)
	Cancel(ctx context.Context, id, teacherID string) error
	ExportSchedule(ctx context.Context, filter models.LectureFilter) ([]byte, error)
	ScheduleTemplate() ([]byte, error)
	ImportSchedule(ctx context.Context, teacherCourseID, teacherID, filename string, r io.Reader) (*models.ScheduleImportResult, error)
}

// LectureHandler exposes lecture scheduling endpoints.
type LectureHandler struct {
	service  lectureService
	maxBytes int64
	now      func() time.Time
}

// NewLectureHandler constructs LectureHandler.
func NewLectureHandler(svc lectureService, maxUploadBytes int64) *LectureHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUpload
	}
	return &LectureHandler{service: svc, maxBytes: maxUploadBytes, now: time.Now}
}

// List godoc
// @Summary List lectures
// @Description Teachers only see lectures of their own course assignments.
// @Tags Lectures
// @Produce json
// @Param teacher_course_id query string false "Assignment filter"
// @Param section_id query string false "Section filter"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param include_cancelled query bool false "Include cancelled lectures"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /lectures [get]
func (h *LectureHandler) List(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	lectures, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lectures, pagination)
}

// Get godoc
// @Summary Get lecture
// @Tags Lectures
// @Produce json
// @Param id path string true "Lecture ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /lectures/{id} [get]
func (h *LectureHandler) Get(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}
	lecture, err := h.service.Get(c.Request.Context(), c.Param("id"), teacherScope(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lecture, nil)
}

// Create godoc
// @Summary Create an ad hoc lecture
// @Tags Lectures
// @Accept json
// @Produce json
// @Param payload body service.CreateLectureRequest true "Lecture payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /lectures [post]
func (h *LectureHandler) Create(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}
	var req service.CreateLectureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	lecture, err := h.service.Create(c.Request.Context(), req, teacherScope(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lecture)
}

// Reschedule godoc
// @Summary Reschedule a lecture
// @Description Lectures with recorded attendance cannot be moved.
// @Tags Lectures
// @Accept json
// @Produce json
// @Param id path string true "Lecture ID"
// @Param payload body service.RescheduleLectureRequest true "New slot"
// @Success 200 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /lectures/{id} [put]
func (h *LectureHandler) Reschedule(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}
	var req service.RescheduleLectureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	lecture, err := h.service.Reschedule(c.Request.Context(), c.Param("id"), req, teacherScope(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lecture, nil)
}

// Cancel godoc
// @Summary Cancel a lecture
// @Tags Lectures
// @Param id path string true "Lecture ID"
// @Success 204 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /lectures/{id} [delete]
func (h *LectureHandler) Cancel(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}
	if err := h.service.Cancel(c.Request.Context(), c.Param("id"), teacherScope(claims)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export the lecture schedule as CSV
// @Tags Lectures
// @Produce text/csv
// @Param teacher_course_id query string false "Assignment filter"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Success 200 {file} file
// @Router /lectures/export [get]
func (h *LectureHandler) Export(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	body, err := h.service.ExportSchedule(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, "schedule_"+h.now().UTC().Format("20060102")+".csv", csvContentType, body)
}

// Template godoc
// @Summary Download the schedule import template
// @Tags Lectures
// @Produce text/csv
// @Success 200 {file} file
// @Router /lectures/template [get]
func (h *LectureHandler) Template(c *gin.Context) {
	body, err := h.service.ScheduleTemplate()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, "schedule_template.csv", csvContentType, body)
}

// Import godoc
// @Summary Import lectures from a schedule file
// @Tags Lectures
// @Accept multipart/form-data
// @Produce json
// @Param teacher_course_id formData string true "Assignment ID"
// @Param file formData file true "CSV or XLSX file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /lectures/import [post]
func (h *LectureHandler) Import(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}
	name, file, err := uploadedFile(c, h.maxBytes)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	result, err := h.service.ImportSchedule(c.Request.Context(), c.PostForm("teacher_course_id"), teacherScope(claims), name, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

func (h *LectureHandler) filter(c *gin.Context) (models.LectureFilter, bool) {
	claims, ok := currentClaims(c)
	if !ok {
		return models.LectureFilter{}, false
	}
	filter := models.LectureFilter{
		TeacherCourseID: c.Query("teacher_course_id"),
		SectionID:       c.Query("section_id"),
		TeacherID:       teacherScope(claims),
	}
	filter.IncludeCanceled, _ = strconv.ParseBool(c.Query("include_cancelled"))
	filter.Page, filter.PageSize = pageParams(c)

	var err error
	if filter.From, err = dateParam(c, "from"); err != nil {
		response.Error(c, err)
		return filter, false
	}
	if filter.To, err = dateParam(c, "to"); err != nil {
		response.Error(c, err)
		return filter, false
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must not be before from"))
		return filter, false
	}
	if filter.To != nil {
		// to is inclusive; the repository compares with an exclusive bound
		end := filter.To.AddDate(0, 0, 1)
		filter.To = &end
	}
	return filter, true
}
