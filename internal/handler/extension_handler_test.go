package handler

import (
	"context"
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

type extensionServiceMock struct {
	filter    models.ExtensionFilter
	teacherID string
	actorID   string
	decision  service.DecideExtensionRequest
	err       error
}

func (m *extensionServiceMock) List(ctx context.Context, filter models.ExtensionFilter) ([]models.ExtensionDetail, *models.Pagination, error) {
	m.filter = filter
	return nil, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (m *extensionServiceMock) Get(ctx context.Context, id, teacherID string) (*models.ExtensionDetail, error) {
	m.teacherID = teacherID
	return &models.ExtensionDetail{ExtensionRequest: models.ExtensionRequest{ID: id}}, m.err
}

func (m *extensionServiceMock) Request(ctx context.Context, lectureID, teacherID, actorUserID string, req models.CreateExtensionRequest) (*models.ExtensionDetail, error) {
	m.teacherID, m.actorID = teacherID, actorUserID
	if m.err != nil {
		return nil, m.err
	}
	return &models.ExtensionDetail{ExtensionRequest: models.ExtensionRequest{ID: "ext-1", LectureID: lectureID, Type: req.Type, Status: models.ExtensionPending}}, nil
}

func (m *extensionServiceMock) Decide(ctx context.Context, id, reviewerUserID string, req service.DecideExtensionRequest) (*models.ExtensionDetail, error) {
	m.actorID, m.decision = reviewerUserID, req
	return &models.ExtensionDetail{ExtensionRequest: models.ExtensionRequest{ID: id, Status: models.ExtensionApproved}}, nil
}

func TestExtensionHandlerListScopesTeacher(t *testing.T) {
	mockSvc := &extensionServiceMock{}
	handler := NewExtensionHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/extensions?status=Pending&page=2", nil)
	c.Set(middleware.ContextUserKey, teacherClaims)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "teacher-1", mockSvc.filter.TeacherID)
	require.NotNil(t, mockSvc.filter.Status)
	assert.Equal(t, models.ExtensionPending, *mockSvc.filter.Status)
	assert.Equal(t, 2, mockSvc.filter.Page)
}

func TestExtensionHandlerRequest(t *testing.T) {
	mockSvc := &extensionServiceMock{}
	handler := NewExtensionHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/lectures/lec-1/extensions", []byte(`{"type":"Missed","reason":"Network outage"}`))
	c.Params = gin.Params{{Key: "id", Value: "lec-1"}}
	c.Set(middleware.ContextUserKey, teacherClaims)

	handler.Request(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "teacher-1", mockSvc.teacherID)
	assert.Equal(t, "user-teacher", mockSvc.actorID)
	assert.Contains(t, w.Body.String(), `"status":"Pending"`)
}

func TestExtensionHandlerRequestConflict(t *testing.T) {
	handler := NewExtensionHandler(&extensionServiceMock{err: appErrors.Clone(appErrors.ErrConflict, "an extension request is already pending for this lecture")})

	c, w := newGinContext(http.MethodPost, "/lectures/lec-1/extensions", []byte(`{"type":"Edit","reason":"Marked Ali absent by mistake"}`))
	c.Params = gin.Params{{Key: "id", Value: "lec-1"}}
	c.Set(middleware.ContextUserKey, teacherClaims)

	handler.Request(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, appErrors.ErrConflict.Code, errorCode(t, w))
}

func TestExtensionHandlerDecide(t *testing.T) {
	mockSvc := &extensionServiceMock{}
	handler := NewExtensionHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/extensions/ext-1/decision", []byte(`{"approve":true}`))
	c.Params = gin.Params{{Key: "id", Value: "ext-1"}}
	c.Set(middleware.ContextUserKey, adminClaims)

	handler.Decide(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.decision.Approve)
	assert.Equal(t, "user-admin", mockSvc.actorID)
}
