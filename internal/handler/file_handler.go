package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-attendance-api/internal/service"
	"github.com/noah-isme/campus-attendance-api/pkg/response"
)

type fileResolver interface {
	Resolve(token string) (*service.Download, error)
}

// FileHandler streams stored exports and credential slips.
type FileHandler struct {
	files fileResolver
}

// NewFileHandler constructs FileHandler.
func NewFileHandler(files fileResolver) *FileHandler {
	return &FileHandler{files: files}
}

// Download godoc
// @Summary Download a generated file
// @Description The token is the signed part of a URL returned by an export or credential endpoint.
// @Tags Files
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /files/{token} [get]
func (h *FileHandler) Download(c *gin.Context) {
	file, err := h.files.Resolve(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
