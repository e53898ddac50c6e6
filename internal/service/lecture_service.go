package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
	"github.com/noah-isme/campus-attendance-api/pkg/export"
	"github.com/noah-isme/campus-attendance-api/pkg/tabular"
)

// Columns of the lecture schedule template. Uploads accept the same headers.
var scheduleHeaders = []string{"date", "start_time", "duration_minutes", "room", "topic"}

var scheduleExportHeaders = []string{"date", "start_time", "end_time", "course", "section", "teacher", "room", "topic", "status"}

type lectureRepository interface {
	List(ctx context.Context, filter models.LectureFilter) ([]models.LectureDetail, int, error)
	FindDetail(ctx context.Context, id string) (*models.LectureDetail, error)
	Create(ctx context.Context, lecture *models.Lecture) error
	BulkCreate(ctx context.Context, lectures []models.Lecture) (int, error)
	Reschedule(ctx context.Context, id string, startsAt, endsAt time.Time, room *string) error
	Cancel(ctx context.Context, id string) error
}

type ruleFinder interface {
	FindByID(ctx context.Context, id string) (*models.TimetableRule, error)
}

// CreateLectureRequest adds a single lecture outside the regular timetable.
type CreateLectureRequest struct {
	TeacherCourseID string  `json:"teacher_course_id" validate:"required"`
	TimetableRuleID *string `json:"timetable_rule_id" validate:"omitempty"`
	Date            string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime       string  `json:"start_time" validate:"required,clock"`
	DurationMinutes int     `json:"duration_minutes" validate:"required,min=15,max=360"`
	Room            *string `json:"room" validate:"omitempty,max=32"`
	Topic           *string `json:"topic" validate:"omitempty,max=255"`
}

// RescheduleLectureRequest moves a lecture. A zero duration keeps the current length.
type RescheduleLectureRequest struct {
	Date            string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime       string  `json:"start_time" validate:"required,clock"`
	DurationMinutes int     `json:"duration_minutes" validate:"omitempty,min=15,max=360"`
	Room            *string `json:"room" validate:"omitempty,max=32"`
}

// LectureService manages concrete lecture occurrences.
type LectureService struct {
	repo        lectureRepository
	rules       ruleFinder
	assignments assignmentOwner
	validator   *validator.Validate
	logger      *zap.Logger
	loc         *time.Location
}

// NewLectureService constructs the service. loc is the campus timezone.
func NewLectureService(repo lectureRepository, rules ruleFinder, assignments assignmentOwner, loc *time.Location, validate *validator.Validate, logger *zap.Logger) *LectureService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &LectureService{repo: repo, rules: rules, assignments: assignments, validator: validate, logger: logger, loc: loc}
}

// List returns lectures for the filter. A non-empty filter.TeacherID limits results to that teacher.
func (s *LectureService) List(ctx context.Context, filter models.LectureFilter) ([]models.LectureDetail, *models.Pagination, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	filter.Page, filter.PageSize = models.Normalize(filter.Page, filter.PageSize)
	lectures, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, repoError(err, "lecture", "list")
	}
	return lectures, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a lecture. teacherID restricts to the owner when set.
func (s *LectureService) Get(ctx context.Context, id, teacherID string) (*models.LectureDetail, error) {
	lecture, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		return nil, repoError(err, "lecture", "load")
	}
	if teacherID != "" && lecture.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "lecture is not assigned to you")
	}
	return lecture, nil
}

// Create adds an ad hoc lecture. When a rule is named the lecture must fall inside its date range.
func (s *LectureService) Create(ctx context.Context, req CreateLectureRequest, teacherID string) (*models.LectureDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lecture payload")
	}
	if _, err := s.assignments.Owned(ctx, req.TeacherCourseID, teacherID); err != nil {
		return nil, err
	}
	start, end, err := s.slot(req.Date, req.StartTime, req.DurationMinutes)
	if err != nil {
		return nil, err
	}

	lecture := &models.Lecture{
		TeacherCourseID: req.TeacherCourseID,
		StartsAt:        start,
		EndsAt:          end,
		Room:            req.Room,
		Topic:           req.Topic,
	}
	if req.TimetableRuleID != nil && *req.TimetableRuleID != "" {
		rule, err := s.rules.FindByID(ctx, *req.TimetableRuleID)
		if err != nil {
			return nil, missingReference(err, "timetable rule")
		}
		if rule.TeacherCourseID != req.TeacherCourseID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "timetable rule belongs to another course")
		}
		if err := s.withinRule(rule, start); err != nil {
			return nil, err
		}
		lecture.TimetableRuleID = &rule.ID
		lecture.Override = true
	}

	if err := s.repo.Create(ctx, lecture); err != nil {
		return nil, repoError(err, "lecture", "create")
	}
	s.logger.Info("lecture created", zap.String("lecture_id", lecture.ID), zap.String("teacher_course_id", lecture.TeacherCourseID))
	return s.Get(ctx, lecture.ID, "")
}

// Reschedule moves a lecture that has no attendance yet.
func (s *LectureService) Reschedule(ctx context.Context, id string, req RescheduleLectureRequest, teacherID string) (*models.LectureDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	lecture, err := s.Get(ctx, id, teacherID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureMutable(lecture); err != nil {
		return nil, err
	}

	minutes := req.DurationMinutes
	if minutes == 0 {
		minutes = int(lecture.EndsAt.Sub(lecture.StartsAt) / time.Minute)
	}
	start, end, err := s.slot(req.Date, req.StartTime, minutes)
	if err != nil {
		return nil, err
	}
	if lecture.TimetableRuleID != nil {
		rule, err := s.rules.FindByID(ctx, *lecture.TimetableRuleID)
		if err != nil {
			return nil, repoError(err, "timetable rule", "load")
		}
		if err := s.withinRule(rule, start); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Reschedule(ctx, id, start, end, req.Room); err != nil {
		return nil, repoError(err, "lecture", "reschedule")
	}
	s.logger.Info("lecture rescheduled", zap.String("lecture_id", id), zap.Time("starts_at", start))
	return s.Get(ctx, id, "")
}

// Cancel flags a lecture as cancelled. Lectures with attendance cannot be cancelled.
func (s *LectureService) Cancel(ctx context.Context, id, teacherID string) error {
	lecture, err := s.Get(ctx, id, teacherID)
	if err != nil {
		return err
	}
	if err := s.ensureMutable(lecture); err != nil {
		return err
	}
	if err := s.repo.Cancel(ctx, id); err != nil {
		return repoError(err, "lecture", "cancel")
	}
	s.logger.Info("lecture cancelled", zap.String("lecture_id", id))
	return nil
}

// ExportSchedule renders the filtered lectures as CSV, following every page.
func (s *LectureService) ExportSchedule(ctx context.Context, filter models.LectureFilter) ([]byte, error) {
	filter.IncludeCanceled = true
	filter.PageSize = 100
	data := export.Dataset{Title: "Lecture schedule", Headers: scheduleExportHeaders}
	for page := 1; ; page++ {
		filter.Page = page
		lectures, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, repoError(err, "lecture", "export")
		}
		for _, l := range lectures {
			data.Rows = append(data.Rows, s.scheduleRow(l))
		}
		if len(lectures) == 0 || page*filter.PageSize >= total {
			break
		}
	}
	content, err := export.Render(data, export.FormatCSV)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render schedule")
	}
	return content, nil
}

// ScheduleTemplate returns the header-only CSV accepted by ImportSchedule.
func (s *LectureService) ScheduleTemplate() ([]byte, error) {
	content, err := export.Render(export.Dataset{Headers: scheduleHeaders}, export.FormatCSV)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render template")
	}
	return content, nil
}

// ImportSchedule creates ad hoc lectures from a filled template. Invalid lines are reported and
// valid ones are created; slots already taken count as duplicates.
func (s *LectureService) ImportSchedule(ctx context.Context, teacherCourseID, teacherID, filename string, r io.Reader) (*models.ScheduleImportResult, error) {
	if _, err := s.assignments.Owned(ctx, teacherCourseID, teacherID); err != nil {
		return nil, err
	}
	table, err := tabular.Read(filename, r)
	if err != nil {
		switch {
		case errors.Is(err, tabular.ErrUnsupportedFormat):
			return nil, appErrors.Clone(appErrors.ErrUnsupportedFile, "upload a .csv or .xlsx file")
		case errors.Is(err, tabular.ErrEmptyFile):
			return nil, appErrors.Clone(appErrors.ErrValidation, "the file is empty")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "the file could not be read")
		}
	}
	present := make(map[string]bool, len(table.Headers))
	for _, h := range table.Headers {
		present[h] = true
	}
	var missing []string
	for _, h := range scheduleHeaders[:3] {
		if !present[h] {
			missing = append(missing, "missing column "+h)
		}
	}
	if len(missing) > 0 {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "the file does not match the schedule template"), missing)
	}

	result := &models.ScheduleImportResult{TeacherCourseID: teacherCourseID, Invalid: []models.ImportRowError{}}
	var lectures []models.Lecture
	seen := map[time.Time]int{}
	for _, row := range table.Rows {
		lecture, problems := s.parseScheduleRow(row, teacherCourseID)
		if len(problems) == 0 {
			if first, dup := seen[lecture.StartsAt]; dup {
				problems = append(problems, fmt.Sprintf("duplicate slot in file (first on line %d)", first))
			} else {
				seen[lecture.StartsAt] = row.Line
			}
		}
		if len(problems) > 0 {
			result.Invalid = append(result.Invalid, models.ImportRowError{Line: row.Line, Errors: problems})
			continue
		}
		lectures = append(lectures, lecture)
	}

	created, err := s.repo.BulkCreate(ctx, lectures)
	if err != nil {
		return nil, repoError(err, "lecture", "import")
	}
	result.Created = created
	result.Duplicates = len(lectures) - created
	s.logger.Info("lecture schedule imported",
		zap.String("teacher_course_id", teacherCourseID),
		zap.Int("created", created),
		zap.Int("invalid", len(result.Invalid)))
	return result, nil
}

func (s *LectureService) parseScheduleRow(row tabular.Row, teacherCourseID string) (models.Lecture, []string) {
	var problems []string
	date := row.Get("date")
	clock := row.Get("start_time")
	rawMinutes := row.Get("duration_minutes")

	if _, err := time.Parse(dateLayout, date); err != nil {
		problems = append(problems, "date must be YYYY-MM-DD")
	}
	if _, err := time.Parse("15:04", clock); err != nil {
		problems = append(problems, "start_time must be HH:MM")
	}
	minutes, err := strconv.Atoi(rawMinutes)
	if err != nil || minutes < 15 || minutes > 360 {
		problems = append(problems, "duration_minutes must be between 15 and 360")
	}
	if len(problems) > 0 {
		return models.Lecture{}, problems
	}

	start, end, _ := s.slot(date, clock, minutes)
	return models.Lecture{
		TeacherCourseID: teacherCourseID,
		StartsAt:        start,
		EndsAt:          end,
		Room:            optional(row.Get("room")),
		Topic:           optional(row.Get("topic")),
	}, nil
}

func (s *LectureService) scheduleRow(l models.LectureDetail) map[string]string {
	start := l.StartsAt.In(s.loc)
	status := "scheduled"
	switch {
	case l.Cancelled:
		status = "cancelled"
	case l.HasAttendance:
		status = "marked"
	}
	row := map[string]string{
		"date":       start.Format(dateLayout),
		"start_time": start.Format("15:04"),
		"end_time":   l.EndsAt.In(s.loc).Format("15:04"),
		"course":     strings.TrimSpace(l.CourseCode + " " + l.CourseTitle),
		"section":    l.SectionName,
		"teacher":    l.TeacherName,
		"status":     status,
	}
	if l.Room != nil {
		row["room"] = *l.Room
	}
	if l.Topic != nil {
		row["topic"] = *l.Topic
	}
	return row
}

// slot turns a local date and HH:MM into a UTC interval.
func (s *LectureService) slot(date, clock string, minutes int) (time.Time, time.Time, error) {
	rule := models.TimetableRule{StartTime: clock}
	day, err := time.ParseInLocation(dateLayout, date, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}
	start, err := rule.StartOn(day, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "start_time must be HH:MM")
	}
	return start.UTC(), start.Add(time.Duration(minutes) * time.Minute).UTC(), nil
}

func (s *LectureService) withinRule(rule *models.TimetableRule, start time.Time) error {
	if !rule.Covers(start.In(s.loc)) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("lecture must fall between %s and %s",
			rule.StartDate.Format(dateLayout), rule.EndDate.Format(dateLayout)))
	}
	return nil
}

func (s *LectureService) ensureMutable(lecture *models.LectureDetail) error {
	if lecture.Cancelled {
		return appErrors.Clone(appErrors.ErrConflict, "lecture is cancelled")
	}
	if lecture.HasAttendance {
		return appErrors.Clone(appErrors.ErrAttendanceLocked, "lecture already has attendance")
	}
	return nil
}
