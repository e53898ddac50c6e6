package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-attendance-api/internal/middleware"
	"github.com/noah-isme/campus-attendance-api/internal/service"
)

func TestHealthAndPrometheus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	h := NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(middleware.Metrics(metrics))
	r.GET("/health", h.Health)
	r.GET("/metrics", h.Prometheus)
	r.GET("/lectures/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/lectures/abc", "/lectures/def", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "metrics")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	scrape := w.Body.String()
	assert.Contains(t, scrape, `path="/lectures/:id"`)
	assert.Contains(t, scrape, `path="unmatched"`)
	assert.False(t, strings.Contains(scrape, `path="/health"`))
}
