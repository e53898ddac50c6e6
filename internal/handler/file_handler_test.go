package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-attendance-api/internal/service"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
)

type fileResolverStub map[string]*service.Download

func (s fileResolverStub) Resolve(token string) (*service.Download, error) {
	if d, ok := s[token]; ok {
		return d, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "download link is invalid")
}

func TestFileHandlerDownload(t *testing.T) {
	handler := NewFileHandler(fileResolverStub{
		"good": {Filename: "defaulters.pdf", ContentType: "application/pdf", Body: []byte("%PDF-1.3")},
	})

	c, w := newGinContext(http.MethodGet, "/files/good", nil)
	c.Params = gin.Params{{Key: "token", Value: "good"}}
	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="defaulters.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.3", w.Body.String())

	c, w = newGinContext(http.MethodGet, "/files/forged", nil)
	c.Params = gin.Params{{Key: "token", Value: "forged"}}
	handler.Download(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
