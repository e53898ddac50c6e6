package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
	"github.com/noah-isme/campus-attendance-api/pkg/export"
)

// Report kinds accepted by Export.
const (
	ReportSummary    = "summary"
	ReportDefaulters = "defaulters"
	ReportStudent    = "student"
)

type attendanceFactSource interface {
	ListFacts(ctx context.Context, filter models.ReportFilter) ([]models.AttendanceFact, error)
}

type reportStudentLookup interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
}

// ReportServiceConfig tunes report defaults.
type ReportServiceConfig struct {
	DefaulterThreshold float64
	CacheTTL           time.Duration
	Location           *time.Location
}

// ExportReportRequest selects a report and the file format to render it in.
type ExportReportRequest struct {
	Report    string                 `json:"report" validate:"required,oneof=summary defaulters student"`
	Format    string                 `json:"format" validate:"omitempty,oneof=csv xlsx pdf"`
	Dimension models.ReportDimension `json:"dimension"`
	Threshold *float64               `json:"threshold" validate:"omitempty,min=0,max=100"`
	StudentID string                 `json:"student_id"`
	Filter    models.ReportFilter    `json:"filter"`
}

// ReportService aggregates attendance facts into summaries and exports.
type ReportService struct {
	facts     attendanceFactSource
	students  reportStudentLookup
	cache     *CacheService
	files     fileStore
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ReportServiceConfig
	now       func() time.Time
}

// NewReportService constructs the report service. cache, files and metrics may be nil.
func NewReportService(facts attendanceFactSource, students reportStudentLookup, cache *CacheService, files fileStore, metrics *MetricsService, cfg ReportServiceConfig, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaulterThreshold <= 0 {
		cfg.DefaulterThreshold = GoodThreshold
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &ReportService{
		facts:     facts,
		students:  students,
		cache:     cache,
		files:     files,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Summary groups the filtered facts by dimension.
func (s *ReportService) Summary(ctx context.Context, dim models.ReportDimension, filter models.ReportFilter) (*models.ReportSummary, error) {
	if !dim.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dimension must be one of student, section, course, teacher, week, month")
	}
	if err := checkRange(filter); err != nil {
		return nil, err
	}

	key := reportCacheKey("summary", struct {
		Dimension models.ReportDimension
		Filter    models.ReportFilter
	}{dim, filter})
	var cached models.ReportSummary
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	facts, err := s.loadFacts(ctx, "report_summary", filter)
	if err != nil {
		return nil, err
	}
	groups, err := Aggregate(facts, dim, s.cfg.Location)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid dimension")
	}
	summary := &models.ReportSummary{
		Dimension:   dim,
		Filter:      filter,
		Groups:      groups,
		Overall:     Overall(facts),
		GeneratedAt: s.now().UTC(),
	}
	s.cache.Set(ctx, key, summary, s.cfg.CacheTTL)
	return summary, nil
}

// Defaulters lists students under threshold per course. A nil threshold uses the configured default.
func (s *ReportService) Defaulters(ctx context.Context, threshold *float64, filter models.ReportFilter) (*models.DefaulterReport, error) {
	limit := s.cfg.DefaulterThreshold
	if threshold != nil {
		limit = *threshold
	}
	if limit < 0 || limit > 100 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "threshold must be between 0 and 100")
	}
	if err := checkRange(filter); err != nil {
		return nil, err
	}

	key := reportCacheKey("defaulters", struct {
		Threshold float64
		Filter    models.ReportFilter
	}{limit, filter})
	var cached models.DefaulterReport
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	facts, err := s.loadFacts(ctx, "report_defaulters", filter)
	if err != nil {
		return nil, err
	}
	report := &models.DefaulterReport{Threshold: limit, Filter: filter, Defaulters: Defaulters(facts, limit)}
	s.cache.Set(ctx, key, report, s.cfg.CacheTTL)
	return report, nil
}

// StudentReport returns a student's attendance per course.
func (s *ReportService) StudentReport(ctx context.Context, studentID string, filter models.ReportFilter) (*models.StudentReport, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, repoError(err, "student", "load")
	}
	return s.studentReport(ctx, student, filter)
}

// StudentReportForUser resolves the caller's student profile and reports on it.
func (s *ReportService) StudentReportForUser(ctx context.Context, userID string, filter models.ReportFilter) (*models.StudentReport, error) {
	student, err := s.students.FindByUserID(ctx, userID)
	if err != nil {
		return nil, repoError(err, "student", "load")
	}
	return s.studentReport(ctx, student, filter)
}

func (s *ReportService) studentReport(ctx context.Context, student *models.StudentDetail, filter models.ReportFilter) (*models.StudentReport, error) {
	if err := checkRange(filter); err != nil {
		return nil, err
	}
	filter.StudentID = student.ID

	key := reportCacheKey("student", filter)
	var cached models.StudentReport
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	facts, err := s.loadFacts(ctx, "report_student", filter)
	if err != nil {
		return nil, err
	}
	courses, err := Aggregate(facts, models.DimensionCourse, s.cfg.Location)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build student report")
	}
	report := &models.StudentReport{
		StudentID:   student.ID,
		RollNumber:  student.RollNumber,
		StudentName: student.FullName,
		Courses:     courses,
		Overall:     Overall(facts),
	}
	s.cache.Set(ctx, key, report, s.cfg.CacheTTL)
	return report, nil
}

// Export renders a report and stores it behind a signed download URL. Spreadsheets are
// reserved for administrators.
func (s *ReportService) Export(ctx context.Context, req ExportReportRequest, role models.UserRole) (*StoredFile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export request")
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if format == export.FormatXLSX && role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "spreadsheet exports are available to administrators only")
	}
	if s.files == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "file storage is not configured")
	}

	data, err := s.dataset(ctx, req)
	if err != nil {
		return nil, err
	}
	payload, err := export.Render(data, format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	name := fmt.Sprintf("%s_%s.%s", req.Report, s.now().UTC().Format("20060102_150405"), format)
	stored, err := s.files.Store("reports", name, payload)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordExport(req.Report, string(format))
	s.logger.Info("report exported", zap.String("report", req.Report), zap.String("format", string(format)), zap.Int("rows", len(data.Rows)))
	return stored, nil
}

func (s *ReportService) dataset(ctx context.Context, req ExportReportRequest) (export.Dataset, error) {
	switch req.Report {
	case ReportSummary:
		dim := req.Dimension
		if dim == "" {
			dim = models.DimensionStudent
		}
		summary, err := s.Summary(ctx, dim, req.Filter)
		if err != nil {
			return export.Dataset{}, err
		}
		title := "Attendance summary by " + string(dim)
		return groupDataset(title, string(dim), append(summary.Groups, summary.Overall)), nil
	case ReportDefaulters:
		report, err := s.Defaulters(ctx, req.Threshold, req.Filter)
		if err != nil {
			return export.Dataset{}, err
		}
		return defaulterDataset(report), nil
	default:
		if req.StudentID == "" {
			return export.Dataset{}, appErrors.Clone(appErrors.ErrValidation, "student_id is required for a student report")
		}
		report, err := s.StudentReport(ctx, req.StudentID, req.Filter)
		if err != nil {
			return export.Dataset{}, err
		}
		title := fmt.Sprintf("Attendance of %s (%s)", report.StudentName, report.RollNumber)
		return groupDataset(title, "course", append(report.Courses, report.Overall)), nil
	}
}

func (s *ReportService) loadFacts(ctx context.Context, label string, filter models.ReportFilter) ([]models.AttendanceFact, error) {
	start := time.Now()
	facts, err := s.facts.ListFacts(ctx, filter)
	s.metrics.ObserveDBQuery(label, time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	return facts, nil
}

func checkRange(filter models.ReportFilter) error {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	return nil
}

func groupDataset(title, keyHeader string, groups []models.ReportGroup) export.Dataset {
	headers := []string{keyHeader, "present", "late", "absent", "leave", "excused", "attended", "total", "percentage", "bucket"}
	data := export.Dataset{Title: title, Headers: headers}
	for _, g := range groups {
		data.Rows = append(data.Rows, map[string]string{
			keyHeader:    g.Label,
			"present":    strconv.Itoa(g.Counts.Present),
			"late":       strconv.Itoa(g.Counts.Late),
			"absent":     strconv.Itoa(g.Counts.Absent),
			"leave":      strconv.Itoa(g.Counts.Leave),
			"excused":    strconv.Itoa(g.Counts.Excused),
			"attended":   strconv.Itoa(g.Attended),
			"total":      strconv.Itoa(g.Total),
			"percentage": formatPercent(g.Percentage),
			"bucket":     string(g.Bucket),
		})
	}
	return data
}

func defaulterDataset(report *models.DefaulterReport) export.Dataset {
	data := export.Dataset{
		Title:   fmt.Sprintf("Defaulters below %s%%", formatPercent(report.Threshold)),
		Headers: []string{"roll_number", "student", "section", "course", "attended", "total", "percentage"},
	}
	for _, d := range report.Defaulters {
		data.Rows = append(data.Rows, map[string]string{
			"roll_number": d.RollNumber,
			"student":     d.StudentName,
			"section":     d.SectionName,
			"course":      strings.TrimSpace(d.CourseCode + " " + d.CourseTitle),
			"attended":    strconv.Itoa(d.Attended),
			"total":       strconv.Itoa(d.Total),
			"percentage":  formatPercent(d.Percentage),
		})
	}
	return data
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
