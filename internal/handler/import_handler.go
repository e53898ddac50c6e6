package handler

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
	"github.com/noah-isme/campus-attendance-api/pkg/response"
)

const defaultMaxUpload = 5 << 20

type importService interface {
	Validate(ctx context.Context, opts models.ImportOptions, filename string, r io.Reader) (*models.ImportValidation, error)
	Import(ctx context.Context, opts models.ImportOptions, filename string, r io.Reader, actorID string) (*models.ImportResult, error)
	Create(ctx context.Context, opts models.ImportOptions, rows []models.ImportRow, actorID string) (*models.ImportResult, error)
}

// createImportRequest confirms rows returned by a previous validation. Legacy relaxes the roll
// number format, matching the upload that produced the rows.
type createImportRequest struct {
	Kind   models.ImportKind  `json:"kind" binding:"required"`
	Rows   []models.ImportRow `json:"rows" binding:"required,min=1"`
	Legacy bool               `json:"legacy"`
}

// ImportHandler accepts CSV and XLSX uploads of students and teachers.
type ImportHandler struct {
	service  importService
	maxBytes int64
}

// NewImportHandler constructs ImportHandler. maxBytes <= 0 uses 5 MiB.
func NewImportHandler(svc importService, maxBytes int64) *ImportHandler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUpload
	}
	return &ImportHandler{service: svc, maxBytes: maxBytes}
}

// Validate godoc
// @Summary Validate an import file
// @Description Parses the upload and partitions rows into valid and invalid without writing anything.
// @Tags Imports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX file"
// @Param kind formData string true "students or teachers"
// @Param section_id formData string false "Section for student imports"
// @Param legacy formData bool false "Resolve section per row"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /imports/validate [post]
func (h *ImportHandler) Validate(c *gin.Context) {
	name, file, err := uploadedFile(c, h.maxBytes)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()
	opts := importOptions(c)

	result, err := h.service.Validate(c.Request.Context(), opts, name, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Import godoc
// @Summary Validate and create accounts from a file
// @Description Creates every valid row, emails credentials and returns a slip link. Invalid rows are reported as skipped.
// @Tags Imports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX file"
// @Param kind formData string true "students or teachers"
// @Param section_id formData string false "Section for student imports"
// @Param legacy formData bool false "Resolve section per row"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /imports [post]
func (h *ImportHandler) Import(c *gin.Context) {
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
	opts := importOptions(c)

	result, err := h.service.Import(c.Request.Context(), opts, name, file, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Create godoc
// @Summary Create accounts from validated rows
// @Tags Imports
// @Accept json
// @Produce json
// @Param payload body createImportRequest true "Validated rows"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /imports/create [post]
func (h *ImportHandler) Create(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}
	var req createImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	result, err := h.service.Create(c.Request.Context(), models.ImportOptions{Kind: req.Kind, Legacy: req.Legacy}, req.Rows, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

func importOptions(c *gin.Context) models.ImportOptions {
	legacy, _ := strconv.ParseBool(c.PostForm("legacy"))
	return models.ImportOptions{
		Kind:      models.ImportKind(c.PostForm("kind")),
		SectionID: c.PostForm("section_id"),
		Legacy:    legacy,
	}
}

// uploadedFile opens the multipart "file" field, rejecting uploads over maxBytes.
func uploadedFile(c *gin.Context, maxBytes int64) (string, multipart.File, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+(1<<20))
	header, err := c.FormFile("file")
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required")
	}
	if header.Size > maxBytes {
		return "", nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes", maxBytes))
	}
	file, err := header.Open()
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	return header.Filename, file, nil
}
