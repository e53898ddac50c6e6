package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-attendance-api/internal/middleware"
	"github.com/noah-isme/campus-attendance-api/internal/models"
	"github.com/noah-isme/campus-attendance-api/internal/service"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
)

type attendanceServiceMock struct {
	teacherID string
	actorID   string
	req       models.MarkAttendanceRequest
	markErr   error
}

func (m *attendanceServiceMock) Window(ctx context.Context, lectureID, teacherID string) (*service.LectureWindow, error) {
	m.teacherID = teacherID
	return &service.LectureWindow{LectureID: lectureID, WindowState: service.WindowState{Status: service.WindowOngoing, CanMark: true}}, nil
}

func (m *attendanceServiceMock) Sheet(ctx context.Context, lectureID, teacherID string) (*service.AttendanceSheet, error) {
	m.teacherID = teacherID
	return &service.AttendanceSheet{Rows: []models.AttendanceSheetRow{{StudentID: "stu-1", FullName: "Ali"}}}, nil
}

func (m *attendanceServiceMock) Mark(ctx context.Context, lectureID, teacherID, actorUserID string, req models.MarkAttendanceRequest) (*models.MarkAttendanceResult, error) {
	m.teacherID = teacherID
	m.actorID = actorUserID
	m.req = req
	if m.markErr != nil {
		return nil, m.markErr
	}
	return &models.MarkAttendanceResult{LectureID: lectureID, Saved: len(req.Records)}, nil
}

func TestAttendanceHandlerMark(t *testing.T) {
	mockSvc := &attendanceServiceMock{}
	handler := NewAttendanceHandler(mockSvc)

	payload, _ := json.Marshal(models.MarkAttendanceRequest{Records: []models.AttendanceMark{
		{StudentID: "0b7f6a2e-3f1d-4c59-9d2b-5a3e7c1f0a11", Status: models.AttendancePresent},
		{StudentID: "2c9e4b1a-7d3f-4e8a-8b6c-1f2d3e4a5b22", Status: models.AttendanceLate},
	}})
	c, w := newGinContext(http.MethodPost, "/lectures/lec-1/attendance", payload)
	c.Params = gin.Params{{Key: "id", Value: "lec-1"}}
	c.Set(middleware.ContextUserKey, teacherClaims)

	handler.Mark(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "teacher-1", mockSvc.teacherID)
	assert.Equal(t, "user-teacher", mockSvc.actorID)
	assert.Len(t, mockSvc.req.Records, 2)
	assert.Contains(t, w.Body.String(), `"saved":2`)
}

func TestAttendanceHandlerMarkErrors(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
		code   string
	}{
		"locked":    {err: appErrors.ErrAttendanceLocked, status: http.StatusLocked, code: "ATTENDANCE_LOCKED"},
		"closed":    {err: appErrors.ErrWindowClosed, status: http.StatusConflict, code: "WINDOW_CLOSED"},
		"expired":   {err: appErrors.ErrExtensionExpired, status: http.StatusLocked, code: "EXTENSION_EXPIRED"},
		"forbidden": {err: appErrors.ErrForbidden, status: http.StatusForbidden, code: appErrors.ErrForbidden.Code},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			handler := NewAttendanceHandler(&attendanceServiceMock{markErr: tc.err})
			payload := []byte(`{"records":[{"student_id":"0b7f6a2e-3f1d-4c59-9d2b-5a3e7c1f0a11","status":"Present"}]}`)
			c, w := newGinContext(http.MethodPost, "/lectures/lec-1/attendance", payload)
			c.Params = gin.Params{{Key: "id", Value: "lec-1"}}
			c.Set(middleware.ContextUserKey, teacherClaims)

			handler.Mark(c)
			require.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, errorCode(t, w))
		})
	}
}

func TestAttendanceHandlerMarkBadJSON(t *testing.T) {
	mockSvc := &attendanceServiceMock{}
	handler := NewAttendanceHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/lectures/lec-1/attendance", []byte(`{"records":`))
	c.Set(middleware.ContextUserKey, teacherClaims)

	handler.Mark(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mockSvc.actorID)
}

func TestAttendanceHandlerWindowScope(t *testing.T) {
	mockSvc := &attendanceServiceMock{}
	handler := NewAttendanceHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/lectures/lec-1/window", nil)
	c.Params = gin.Params{{Key: "id", Value: "lec-1"}}
	c.Set(middleware.ContextUserKey, adminClaims)
	handler.Window(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, mockSvc.teacherID)
	assert.Contains(t, w.Body.String(), `"can_mark":true`)

	c, w = newGinContext(http.MethodGet, "/lectures/lec-1/attendance", nil)
	c.Params = gin.Params{{Key: "id", Value: "lec-1"}}
	c.Set(middleware.ContextUserKey, teacherClaims)
	handler.Sheet(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "teacher-1", mockSvc.teacherID)
}
