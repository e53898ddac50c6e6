package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
	"github.com/noah-isme/campus-attendance-api/pkg/logger"
)

type tokenStub map[string]*models.JWTClaims

func (s tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type auditStub struct {
	logs []models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, *log)
	return nil
}

var tokens = tokenStub{
	"admin":   {UserID: "user-admin", Role: models.RoleAdmin},
	"teacher": {UserID: "user-teacher", Role: models.RoleTeacher, ProfileID: "teacher-1"},
	"orphan":  {UserID: "user-orphan", Role: models.RoleTeacher},
	"student": {UserID: "user-student", Role: models.RoleStudent, ProfileID: "stu-1"},
}

func perform(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAndRBAC(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var seenUser interface{}
	r.GET("/teachers-only", JWT(tokens), RequireRoles(models.RoleTeacher), RequireProfile(), func(c *gin.Context) {
		seenUser, _ = c.Get(logger.UserIDKey)
		c.Status(http.StatusOK)
	})
	r.GET("/users/:id", JWT(tokens), RBAC(string(models.RoleAdmin), "SELF"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/teachers-only", "").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/teachers-only", "forged").Code)
	assert.Equal(t, http.StatusForbidden, perform(r, http.MethodGet, "/teachers-only", "student").Code)
	assert.Equal(t, http.StatusForbidden, perform(r, http.MethodGet, "/teachers-only", "orphan").Code)

	w := perform(r, http.MethodGet, "/teachers-only", "teacher")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-teacher", seenUser)

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/users/user-student", "student").Code)
	assert.Equal(t, http.StatusForbidden, perform(r, http.MethodGet, "/users/user-admin", "student").Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/users/user-student", "admin").Code)
}

func TestJWTRejectsMalformedHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", JWT(tokens), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token admin")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	audit := &auditStub{}
	r := gin.New()
	r.DELETE("/sections/:id", JWT(tokens), Audit(audit, nil, "SECTION_DELETE", "sections"), func(c *gin.Context) {
		if c.Param("id") == "busy" {
			c.Status(http.StatusConflict)
			return
		}
		c.Status(http.StatusNoContent)
	})

	perform(r, http.MethodDelete, "/sections/sec-1", "admin")
	perform(r, http.MethodDelete, "/sections/busy", "admin")

	require.Len(t, audit.logs, 1)
	entry := audit.logs[0]
	assert.Equal(t, "SECTION_DELETE", entry.Action)
	assert.Equal(t, "sections", entry.Resource)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "sec-1", *entry.ResourceID)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "user-admin", *entry.UserID)
}
