package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
)

type attendanceRepository interface {
	UpsertBulk(ctx context.Context, records []models.AttendanceRecord) error
	Sheet(ctx context.Context, lectureID string) ([]models.AttendanceSheetRow, error)
}

type lectureDetailFinder interface {
	FindDetail(ctx context.Context, id string) (*models.LectureDetail, error)
}

type approvedExtensionFinder interface {
	LatestApproved(ctx context.Context, lectureID string) (*models.ExtensionRequest, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// LectureWindow is the window verdict for one lecture.
type LectureWindow struct {
	LectureID string    `json:"lecture_id"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	WindowState
}

// AttendanceSheet is a lecture's roster with its current window.
type AttendanceSheet struct {
	Lecture *models.LectureDetail       `json:"lecture"`
	Window  WindowState                 `json:"window"`
	Rows    []models.AttendanceSheetRow `json:"rows"`
}

// AttendanceService evaluates marking windows and records attendance.
type AttendanceService struct {
	repo       attendanceRepository
	lectures   lectureDetailFinder
	extensions approvedExtensionFinder
	audit      auditRecorder
	cache      *CacheService
	metrics    *MetricsService
	rules      WindowRules
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewAttendanceService constructs the attendance service. cache, metrics and audit may be nil.
func NewAttendanceService(repo attendanceRepository, lectures lectureDetailFinder, extensions approvedExtensionFinder, audit auditRecorder, cache *CacheService, metrics *MetricsService, rules WindowRules, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		repo:       repo,
		lectures:   lectures,
		extensions: extensions,
		audit:      audit,
		cache:      cache,
		metrics:    metrics,
		rules:      rules.normalized(),
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// Window returns the marking state of a lecture. teacherID restricts to the owner when set.
func (s *AttendanceService) Window(ctx context.Context, lectureID, teacherID string) (*LectureWindow, error) {
	lecture, err := s.lecture(ctx, lectureID, teacherID)
	if err != nil {
		return nil, err
	}
	state, err := s.evaluate(ctx, lecture)
	if err != nil {
		return nil, err
	}
	return &LectureWindow{LectureID: lecture.ID, StartsAt: lecture.StartsAt, EndsAt: lecture.EndsAt, WindowState: state}, nil
}

// Sheet returns the roster of a lecture with recorded statuses.
func (s *AttendanceService) Sheet(ctx context.Context, lectureID, teacherID string) (*AttendanceSheet, error) {
	lecture, err := s.lecture(ctx, lectureID, teacherID)
	if err != nil {
		return nil, err
	}
	state, err := s.evaluate(ctx, lecture)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.Sheet(ctx, lectureID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance sheet")
	}
	if rows == nil {
		rows = []models.AttendanceSheetRow{}
	}
	return &AttendanceSheet{Lecture: lecture, Window: state, Rows: rows}, nil
}

// Mark records or edits attendance for a lecture owned by teacherID. Rows for students
// outside the lecture's section are reported and skipped; the rest are written together.
func (s *AttendanceService) Mark(ctx context.Context, lectureID, teacherID, actorUserID string, req models.MarkAttendanceRequest) (*models.MarkAttendanceResult, error) {
	if len(req.Records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "records are required")
	}
	lecture, err := s.lecture(ctx, lectureID, teacherID)
	if err != nil {
		return nil, err
	}
	if lecture.Cancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "lecture is cancelled")
	}
	state, err := s.evaluate(ctx, lecture)
	if err != nil {
		return nil, err
	}
	if !state.CanMark {
		s.metrics.RecordAttendanceMark(state.Status, false)
		return nil, windowError(state)
	}

	roster, err := s.repo.Sheet(ctx, lectureID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance sheet")
	}
	enrolled := make(map[string]bool, len(roster))
	for _, row := range roster {
		enrolled[row.StudentID] = true
	}

	result := &models.MarkAttendanceResult{LectureID: lectureID}
	records := make([]models.AttendanceRecord, 0, len(req.Records))
	seen := make(map[string]int, len(req.Records))
	for i, mark := range req.Records {
		n := i + 1
		if err := s.validator.Struct(mark); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("record %d: invalid student_id or status", n))
			continue
		}
		if first, dup := seen[mark.StudentID]; dup {
			result.Errors = append(result.Errors, fmt.Sprintf("record %d: duplicate student (first in record %d)", n, first))
			continue
		}
		seen[mark.StudentID] = n
		if !enrolled[mark.StudentID] {
			result.Errors = append(result.Errors, fmt.Sprintf("record %d: student is not enrolled in this section", n))
			continue
		}
		marker := actorUserID
		records = append(records, models.AttendanceRecord{
			LectureID: lectureID,
			StudentID: mark.StudentID,
			Status:    mark.Status,
			Remarks:   mark.Remarks,
			MarkedBy:  &marker,
		})
	}
	if len(records) == 0 {
		s.metrics.RecordAttendanceMark(state.Status, false)
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "no valid attendance records"), result.Errors)
	}

	if err := s.repo.UpsertBulk(ctx, records); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance")
	}
	result.Saved = len(records)

	s.metrics.RecordAttendanceMark(state.Status, true)
	s.cache.Invalidate(ctx, reportCachePattern())
	s.recordAudit(ctx, actorUserID, lecture, state, result)
	s.logger.Info("attendance marked",
		zap.String("lecture_id", lectureID),
		zap.String("window", string(state.Status)),
		zap.Bool("extension", state.ExtensionActive),
		zap.Int("saved", result.Saved),
		zap.Int("rejected", len(result.Errors)))
	return result, nil
}

func (s *AttendanceService) lecture(ctx context.Context, lectureID, teacherID string) (*models.LectureDetail, error) {
	lecture, err := s.lectures.FindDetail(ctx, lectureID)
	if err != nil {
		return nil, repoError(err, "lecture", "load")
	}
	if teacherID != "" && lecture.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "lecture is not assigned to you")
	}
	return lecture, nil
}

func (s *AttendanceService) evaluate(ctx context.Context, lecture *models.LectureDetail) (WindowState, error) {
	ext, err := s.extensions.LatestApproved(ctx, lecture.ID)
	if err != nil {
		return WindowState{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load extension")
	}
	return s.rules.Evaluate(WindowInput{
		Start:         lecture.StartsAt,
		End:           lecture.EndsAt,
		Now:           s.now(),
		HasAttendance: lecture.HasAttendance,
		Extension:     ext,
	}), nil
}

// windowError maps a closed window to the domain error a client can act on.
func windowError(state WindowState) error {
	switch state.Status {
	case WindowLocked:
		return appErrors.Clone(appErrors.ErrExtensionExpired, state.Message)
	case WindowCompleted:
		return appErrors.Clone(appErrors.ErrAttendanceLocked, state.Message)
	default:
		return appErrors.Clone(appErrors.ErrWindowClosed, state.Message)
	}
}

func (s *AttendanceService) recordAudit(ctx context.Context, actorUserID string, lecture *models.LectureDetail, state WindowState, result *models.MarkAttendanceResult) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"window":    state.Status,
		"extension": state.ExtensionActive,
		"saved":     result.Saved,
		"edited":    lecture.HasAttendance,
	})
	var actor *string
	if actorUserID != "" {
		actor = &actorUserID
	}
	lectureID := lecture.ID
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     actor,
		Action:     models.AuditActionAttendanceMark,
		Resource:   "lectures",
		ResourceID: &lectureID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record attendance audit log", zap.String("lecture_id", lectureID), zap.Error(err))
	}
}
