package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-attendance-api/internal/middleware"
	"github.com/noah-isme/campus-attendance-api/internal/models"
	"github.com/noah-isme/campus-attendance-api/internal/service"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
)

type reportServiceMock struct {
	filters   []models.ReportFilter
	dimension models.ReportDimension
	threshold *float64
	userID    string
	export    service.ExportReportRequest
	role      models.UserRole
	exportErr error
}

func (m *reportServiceMock) Summary(ctx context.Context, dim models.ReportDimension, filter models.ReportFilter) (*models.ReportSummary, error) {
	m.dimension = dim
	m.filters = append(m.filters, filter)
	return &models.ReportSummary{Dimension: dim, Filter: filter}, nil
}

func (m *reportServiceMock) Defaulters(ctx context.Context, threshold *float64, filter models.ReportFilter) (*models.DefaulterReport, error) {
	m.threshold = threshold
	m.filters = append(m.filters, filter)
	return &models.DefaulterReport{Filter: filter}, nil
}

func (m *reportServiceMock) StudentReport(ctx context.Context, studentID string, filter models.ReportFilter) (*models.StudentReport, error) {
	m.filters = append(m.filters, filter)
	return &models.StudentReport{StudentID: studentID}, nil
}

func (m *reportServiceMock) StudentReportForUser(ctx context.Context, userID string, filter models.ReportFilter) (*models.StudentReport, error) {
	m.userID = userID
	return &models.StudentReport{StudentID: "stu-1"}, nil
}

func (m *reportServiceMock) Export(ctx context.Context, req service.ExportReportRequest, role models.UserRole) (*service.StoredFile, error) {
	m.export = req
	m.role = role
	if m.exportErr != nil {
		return nil, m.exportErr
	}
	return &service.StoredFile{ID: "f-1", Filename: "summary.csv", URL: "/api/v1/files/token", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

var (
	adminClaims   = &models.JWTClaims{UserID: "user-admin", Role: models.RoleAdmin}
	teacherClaims = &models.JWTClaims{UserID: "user-teacher", Role: models.RoleTeacher, ProfileID: "teacher-1"}
	studentClaims = &models.JWTClaims{UserID: "user-student", Role: models.RoleStudent, ProfileID: "stu-1"}
)

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestReportHandlerSummaryPinsTeacher(t *testing.T) {
	mockSvc := &reportServiceMock{}
	handler := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/reports/summary?dimension=course&teacher_id=someone-else&from=2024-09-01&to=2024-09-30", nil)
	c.Set(middleware.ContextUserKey, teacherClaims)

	handler.Summary(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.DimensionCourse, mockSvc.dimension)
	require.Len(t, mockSvc.filters, 1)
	filter := mockSvc.filters[0]
	assert.Equal(t, "teacher-1", filter.TeacherID)
	require.NotNil(t, filter.From)
	require.NotNil(t, filter.To)
	assert.Equal(t, "2024-09-01", filter.From.Format("2006-01-02"))
	assert.Equal(t, "2024-09-30", filter.To.Format("2006-01-02"))
}

func TestReportHandlerSummaryAdminFilter(t *testing.T) {
	mockSvc := &reportServiceMock{}
	handler := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/reports/summary?dimension=teacher&teacher_id=teacher-9&section_id=sec-1", nil)
	c.Set(middleware.ContextUserKey, adminClaims)

	handler.Summary(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "teacher-9", mockSvc.filters[0].TeacherID)
	assert.Equal(t, "sec-1", mockSvc.filters[0].SectionID)
}

func TestReportHandlerDefaultersThreshold(t *testing.T) {
	mockSvc := &reportServiceMock{}
	handler := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/reports/defaulters?threshold=60", nil)
	c.Set(middleware.ContextUserKey, adminClaims)
	handler.Defaulters(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.threshold)
	assert.Equal(t, 60.0, *mockSvc.threshold)

	c, w = newGinContext(http.MethodGet, "/reports/defaulters?threshold=high", nil)
	c.Set(middleware.ContextUserKey, adminClaims)
	handler.Defaulters(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(t, w))
}

func TestReportHandlerBadDate(t *testing.T) {
	handler := NewReportHandler(&reportServiceMock{})

	c, w := newGinContext(http.MethodGet, "/reports/summary?dimension=week&from=01/09/2024", nil)
	c.Set(middleware.ContextUserKey, adminClaims)

	handler.Summary(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerMine(t *testing.T) {
	mockSvc := &reportServiceMock{}
	handler := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/reports/me", nil)
	c.Set(middleware.ContextUserKey, studentClaims)

	handler.Mine(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-student", mockSvc.userID)
}

func TestReportHandlerExport(t *testing.T) {
	mockSvc := &reportServiceMock{}
	handler := NewReportHandler(mockSvc)

	payload, _ := json.Marshal(map[string]interface{}{"report": "summary", "format": "pdf", "dimension": "course"})
	c, w := newGinContext(http.MethodPost, "/reports/export", payload)
	c.Set(middleware.ContextUserKey, teacherClaims)

	handler.Export(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "teacher-1", mockSvc.export.Filter.TeacherID)
	assert.Equal(t, models.RoleTeacher, mockSvc.role)
	assert.Contains(t, w.Body.String(), "/api/v1/files/token")

	mockSvc.exportErr = appErrors.Clone(appErrors.ErrForbidden, "spreadsheet exports are available to administrators only")
	payload, _ = json.Marshal(map[string]interface{}{"report": "summary", "format": "xlsx"})
	c, w = newGinContext(http.MethodPost, "/reports/export", payload)
	c.Set(middleware.ContextUserKey, teacherClaims)

	handler.Export(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestReportHandlerRequiresClaims(t *testing.T) {
	handler := NewReportHandler(&reportServiceMock{})

	c, w := newGinContext(http.MethodGet, "/reports/summary?dimension=course", nil)
	handler.Summary(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
