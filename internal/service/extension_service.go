package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	"github.com/noah-isme/campus-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
)

type extensionRepository interface {
	Create(ctx context.Context, req *models.ExtensionRequest) error
	FindByID(ctx context.Context, id string) (*models.ExtensionDetail, error)
	LatestApproved(ctx context.Context, lectureID string) (*models.ExtensionRequest, error)
	HasPending(ctx context.Context, lectureID string) (bool, error)
	List(ctx context.Context, filter models.ExtensionFilter) ([]models.ExtensionDetail, int, error)
	Decide(ctx context.Context, id string, status models.ExtensionStatus, reviewerID string, at time.Time) error
}

// DecideExtensionRequest is the admin review payload.
type DecideExtensionRequest struct {
	Approve bool `json:"approve"`
}

// ExtensionService lets teachers ask for a reopened attendance window and admins review them.
type ExtensionService struct {
	repo      extensionRepository
	lectures  lectureDetailFinder
	audit     auditRecorder
	rules     WindowRules
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewExtensionService constructs the service. audit may be nil.
func NewExtensionService(repo extensionRepository, lectures lectureDetailFinder, audit auditRecorder, rules WindowRules, validate *validator.Validate, logger *zap.Logger) *ExtensionService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtensionService{repo: repo, lectures: lectures, audit: audit, rules: rules.normalized(), validator: validate, logger: logger, now: time.Now}
}

// List returns extension requests, newest first.
func (s *ExtensionService) List(ctx context.Context, filter models.ExtensionFilter) ([]models.ExtensionDetail, *models.Pagination, error) {
	filter.Page, filter.PageSize = models.Normalize(filter.Page, filter.PageSize)
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, repoError(err, "extension request", "list")
	}
	return rows, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns one request. teacherID restricts to the requester when set.
func (s *ExtensionService) Get(ctx context.Context, id, teacherID string) (*models.ExtensionDetail, error) {
	ext, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "extension request", "load")
	}
	if teacherID != "" && ext.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "extension request belongs to another teacher")
	}
	return ext, nil
}

// Request files a pending extension for a lecture owned by teacherID.
func (s *ExtensionService) Request(ctx context.Context, lectureID, teacherID, actorUserID string, req models.CreateExtensionRequest) (*models.ExtensionDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid extension payload")
	}
	lecture, err := s.lectures.FindDetail(ctx, lectureID)
	if err != nil {
		return nil, repoError(err, "lecture", "load")
	}
	if lecture.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "lecture is not assigned to you")
	}
	if lecture.Cancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "lecture is cancelled")
	}
	if err := s.eligible(ctx, lecture, req.Type); err != nil {
		return nil, err
	}

	pending, err := s.repo.HasPending(ctx, lectureID)
	if err != nil {
		return nil, repoError(err, "extension request", "check")
	}
	if pending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an extension request is already pending for this lecture")
	}

	ext := &models.ExtensionRequest{LectureID: lectureID, TeacherID: teacherID, Type: req.Type, Reason: req.Reason}
	if err := s.repo.Create(ctx, ext); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an extension request is already pending for this lecture")
		}
		return nil, repoError(err, "extension request", "create")
	}
	s.record(ctx, actorUserID, models.AuditActionExtensionRequest, ext)
	s.logger.Info("extension requested",
		zap.String("extension_id", ext.ID), zap.String("lecture_id", lectureID), zap.String("type", string(req.Type)))
	return s.repo.FindByID(ctx, ext.ID)
}

// Decide approves or rejects a pending request. An approval opens the window for the configured TTL.
func (s *ExtensionService) Decide(ctx context.Context, id, reviewerUserID string, req DecideExtensionRequest) (*models.ExtensionDetail, error) {
	ext, err := s.Get(ctx, id, "")
	if err != nil {
		return nil, err
	}
	if ext.Status != models.ExtensionPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "extension request was already "+string(ext.Status))
	}
	status := models.ExtensionRejected
	if req.Approve {
		status = models.ExtensionApproved
	}
	if err := s.repo.Decide(ctx, id, status, reviewerUserID, s.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "extension request was already decided")
		}
		return nil, repoError(err, "extension request", "decide")
	}
	ext.Status = status
	s.record(ctx, reviewerUserID, models.AuditActionExtensionDecision, &ext.ExtensionRequest)
	s.logger.Info("extension decided", zap.String("extension_id", id), zap.String("status", string(status)))
	return s.repo.FindByID(ctx, id)
}

// eligible checks the lecture's window allows the requested kind of extension.
func (s *ExtensionService) eligible(ctx context.Context, lecture *models.LectureDetail, kind models.ExtensionType) error {
	in := WindowInput{Start: lecture.StartsAt, End: lecture.EndsAt, Now: s.now(), HasAttendance: lecture.HasAttendance}
	ext, err := s.repo.LatestApproved(ctx, lecture.ID)
	if err != nil {
		return repoError(err, "extension request", "load")
	}
	in.Extension = ext
	if current := s.rules.Evaluate(in); current.CanMark {
		return appErrors.Clone(appErrors.ErrConflict, "attendance can be marked now; no extension is needed")
	}

	in.Extension = nil
	base := s.rules.Evaluate(in)
	switch kind {
	case models.ExtensionMissed:
		if base.Status != WindowMissed {
			return appErrors.Clone(appErrors.ErrValidation, "a Missed extension needs a lecture whose attendance was missed")
		}
	case models.ExtensionEdit:
		if !lecture.HasAttendance || base.Status != WindowCompleted {
			return appErrors.Clone(appErrors.ErrValidation, "an Edit extension needs recorded attendance with a closed window")
		}
	}
	return nil
}

func (s *ExtensionService) record(ctx context.Context, actorUserID, action string, ext *models.ExtensionRequest) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{
		"lecture_id": ext.LectureID,
		"type":       string(ext.Type),
		"status":     string(ext.Status),
	})
	var actor *string
	if actorUserID != "" {
		actor = &actorUserID
	}
	id := ext.ID
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     actor,
		Action:     action,
		Resource:   "extension_requests",
		ResourceID: &id,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record extension audit log", zap.String("extension_id", id), zap.Error(err))
	}
}
