package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	"github.com/noah-isme/campus-attendance-api/internal/service"
	"github.com/noah-isme/campus-attendance-api/pkg/response"
)

type extensionService interface {
	List(ctx context.Context, filter models.ExtensionFilter) ([]models.ExtensionDetail, *models.Pagination, error)
	Get(ctx context.Context, id, teacherID string) (*models.ExtensionDetail, error)
	Request(ctx context.Context, lectureID, teacherID, actorUserID string, req models.CreateExtensionRequest) (*models.ExtensionDetail, error)
	Decide(ctx context.Context, id, reviewerUserID string, req service.DecideExtensionRequest) (*models.ExtensionDetail, error)
}

// ExtensionHandler serves attendance extension requests.
type ExtensionHandler struct {
	service extensionService
}

// NewExtensionHandler constructs ExtensionHandler.
func NewExtensionHandler(svc extensionService) *ExtensionHandler {
	return &ExtensionHandler{service: svc}
}

// List godoc
// @Summary List extension requests
// @Description Teachers see their own requests.
// @Tags Extensions
// @Produce json
// @Param status query string false "Pending, Approved or Rejected"
// @Param lecture_id query string false "Lecture filter"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /extensions [get]
func (h *ExtensionHandler) List(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}
	filter := models.ExtensionFilter{TeacherID: teacherScope(claims), LectureID: c.Query("lecture_id")}
	if status := c.Query("status"); status != "" {
		s := models.ExtensionStatus(status)
		filter.Status = &s
	}
	filter.Page, filter.PageSize = pageParams(c)

	rows, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

// Get godoc
// @Summary Get extension request
// @Tags Extensions
// @Produce json
// @Param id path string true "Extension ID"
// @Success 200 {object} response.Envelope
// @Router /extensions/{id} [get]
func (h *ExtensionHandler) Get(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}
	ext, err := h.service.Get(c.Request.Context(), c.Param("id"), teacherScope(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ext, nil)
}

// Request godoc
// @Summary Request an attendance extension
// @Description Missed reopens marking for an unmarked lecture, Edit reopens a locked one.
// @Tags Extensions
// @Accept json
// @Produce json
// @Param id path string true "Lecture ID"
// @Param payload body models.CreateExtensionRequest true "Extension payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /lectures/{id}/extensions [post]
func (h *ExtensionHandler) Request(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}
	var req models.CreateExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	ext, err := h.service.Request(c.Request.Context(), c.Param("id"), claims.ProfileID, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ext)
}

// Decide godoc
// @Summary Approve or reject an extension request
// @Tags Extensions
// @Accept json
// @Produce json
// @Param id path string true "Extension ID"
// @Param payload body service.DecideExtensionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /extensions/{id}/decision [post]
func (h *ExtensionHandler) Decide(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}
	var req service.DecideExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	ext, err := h.service.Decide(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ext, nil)
}
