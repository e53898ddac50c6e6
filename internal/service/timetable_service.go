package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
)

const dateLayout = "2006-01-02"

type timetableRepository interface {
	ListByTeacherCourse(ctx context.Context, teacherCourseID string) ([]models.TimetableRule, error)
	FindByID(ctx context.Context, id string) (*models.TimetableRule, error)
	Create(ctx context.Context, rule *models.TimetableRule) error
	Update(ctx context.Context, rule *models.TimetableRule) error
	Deactivate(ctx context.Context, id string) error
}

type lectureBulkWriter interface {
	BulkCreate(ctx context.Context, lectures []models.Lecture) (int, error)
}

type assignmentOwner interface {
	Owned(ctx context.Context, id, teacherID string) (*models.TeacherCourseDetail, error)
}

// TimetableRuleRequest describes a weekly slot. Days are 0 (Sunday) to 6.
type TimetableRuleRequest struct {
	TeacherCourseID string  `json:"teacher_course_id" validate:"required"`
	DaysOfWeek      []int   `json:"days_of_week" validate:"required,min=1,max=7,dive,min=0,max=6"`
	StartTime       string  `json:"start_time" validate:"required,clock"`
	DurationMinutes int     `json:"duration_minutes" validate:"required,min=15,max=360"`
	StartDate       string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate         string  `json:"end_date" validate:"required,datetime=2006-01-02"`
	Room            *string `json:"room" validate:"omitempty,max=32"`
	Generate        bool    `json:"generate"`
}

// GenerateResult reports how many lectures a rule produced.
type GenerateResult struct {
	RuleID  string `json:"rule_id"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
}

// TimetableService manages recurring rules and materialises their lectures.
type TimetableService struct {
	repo        timetableRepository
	lectures    lectureBulkWriter
	assignments assignmentOwner
	validator   *validator.Validate
	logger      *zap.Logger
	loc         *time.Location
}

// NewTimetableService constructs the service. loc is the campus timezone used for HH:MM start times.
func NewTimetableService(repo timetableRepository, lectures lectureBulkWriter, assignments assignmentOwner, loc *time.Location, validate *validator.Validate, logger *zap.Logger) *TimetableService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &TimetableService{repo: repo, lectures: lectures, assignments: assignments, validator: validate, logger: logger, loc: loc}
}

// List returns the rules of an assignment. teacherID restricts to the owner when set.
func (s *TimetableService) List(ctx context.Context, teacherCourseID, teacherID string) ([]models.TimetableRule, error) {
	if _, err := s.assignments.Owned(ctx, teacherCourseID, teacherID); err != nil {
		return nil, err
	}
	rules, err := s.repo.ListByTeacherCourse(ctx, teacherCourseID)
	if err != nil {
		return nil, repoError(err, "timetable rule", "list")
	}
	return rules, nil
}

// Create stores a rule and optionally generates its lectures straight away.
func (s *TimetableService) Create(ctx context.Context, req TimetableRuleRequest, teacherID string) (*models.TimetableRule, *GenerateResult, error) {
	rule := &models.TimetableRule{Active: true}
	if err := s.apply(ctx, rule, req, teacherID); err != nil {
		return nil, nil, err
	}
	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, nil, repoError(err, "timetable rule", "create")
	}
	if !req.Generate {
		return rule, nil, nil
	}
	result, err := s.generate(ctx, rule)
	if err != nil {
		return rule, nil, err
	}
	return rule, result, nil
}

// Update rewrites a rule. Lectures generated earlier stay as they are.
func (s *TimetableService) Update(ctx context.Context, id string, req TimetableRuleRequest, teacherID string) (*models.TimetableRule, error) {
	rule, err := s.owned(ctx, id, teacherID)
	if err != nil {
		return nil, err
	}
	if req.TeacherCourseID != rule.TeacherCourseID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a rule cannot move to another course")
	}
	if err := s.apply(ctx, rule, req, teacherID); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, rule); err != nil {
		return nil, repoError(err, "timetable rule", "update")
	}
	return rule, nil
}

// Deactivate stops a rule from generating further lectures.
func (s *TimetableService) Deactivate(ctx context.Context, id, teacherID string) error {
	if _, err := s.owned(ctx, id, teacherID); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return repoError(err, "timetable rule", "deactivate")
	}
	return nil
}

// Generate materialises lectures for every matching day of the rule's range. Existing lectures are skipped.
func (s *TimetableService) Generate(ctx context.Context, id, teacherID string) (*GenerateResult, error) {
	rule, err := s.owned(ctx, id, teacherID)
	if err != nil {
		return nil, err
	}
	if !rule.Active {
		return nil, appErrors.Clone(appErrors.ErrConflict, "timetable rule is inactive")
	}
	return s.generate(ctx, rule)
}

func (s *TimetableService) generate(ctx context.Context, rule *models.TimetableRule) (*GenerateResult, error) {
	lectures, err := PlanLectures(*rule, s.loc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable rule")
	}
	created, err := s.lectures.BulkCreate(ctx, lectures)
	if err != nil {
		return nil, repoError(err, "lecture", "generate")
	}
	s.logger.Info("lectures generated",
		zap.String("rule_id", rule.ID), zap.Int("planned", len(lectures)), zap.Int("created", created))
	return &GenerateResult{RuleID: rule.ID, Created: created, Skipped: len(lectures) - created}, nil
}

// PlanLectures lists the lectures a rule produces, one per matching day between its start and end date.
func PlanLectures(rule models.TimetableRule, loc *time.Location) ([]models.Lecture, error) {
	if loc == nil {
		loc = time.UTC
	}
	duration := time.Duration(rule.DurationMinutes) * time.Minute
	ruleID := rule.ID
	var lectures []models.Lecture
	first := time.Date(rule.StartDate.Year(), rule.StartDate.Month(), rule.StartDate.Day(), 0, 0, 0, 0, loc)
	for day := first; rule.Covers(day); day = day.AddDate(0, 0, 1) {
		if !rule.RunsOn(day) {
			continue
		}
		start, err := rule.StartOn(day, loc)
		if err != nil {
			return nil, err
		}
		lectures = append(lectures, models.Lecture{
			TeacherCourseID: rule.TeacherCourseID,
			TimetableRuleID: &ruleID,
			StartsAt:        start.UTC(),
			EndsAt:          start.Add(duration).UTC(),
			Room:            rule.Room,
		})
	}
	return lectures, nil
}

func (s *TimetableService) owned(ctx context.Context, id, teacherID string) (*models.TimetableRule, error) {
	rule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "timetable rule", "load")
	}
	if _, err := s.assignments.Owned(ctx, rule.TeacherCourseID, teacherID); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *TimetableService) apply(ctx context.Context, rule *models.TimetableRule, req TimetableRuleRequest, teacherID string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}
	start, _ := time.Parse(dateLayout, req.StartDate)
	end, _ := time.Parse(dateLayout, req.EndDate)
	if end.Before(start) {
		return appErrors.Clone(appErrors.ErrValidation, "end_date must not be before start_date")
	}
	if end.Sub(start) > 366*24*time.Hour {
		return appErrors.Clone(appErrors.ErrValidation, "a rule may span at most one year")
	}
	if _, err := s.assignments.Owned(ctx, req.TeacherCourseID, teacherID); err != nil {
		return err
	}

	days := make(pq.Int64Array, 0, len(req.DaysOfWeek))
	seen := map[int]bool{}
	for _, d := range req.DaysOfWeek {
		if !seen[d] {
			seen[d] = true
			days = append(days, int64(d))
		}
	}
	rule.TeacherCourseID = req.TeacherCourseID
	rule.DaysOfWeek = days
	rule.StartTime = req.StartTime
	rule.DurationMinutes = req.DurationMinutes
	rule.StartDate = start
	rule.EndDate = end
	rule.Room = req.Room
	return nil
}
