package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
)

type teacherCourseRepository interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]models.TeacherCourseDetail, error)
	ListBySection(ctx context.Context, sectionID string) ([]models.TeacherCourseDetail, error)
	FindByID(ctx context.Context, id string) (*models.TeacherCourseDetail, error)
	Create(ctx context.Context, tc *models.TeacherCourse) error
	Delete(ctx context.Context, id string) error
}

type teacherFinder interface {
	FindByID(ctx context.Context, id string) (*models.TeacherDetail, error)
}

type courseFinder interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// AssignCourseRequest assigns a teacher to teach a course to a section.
type AssignCourseRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
	SectionID string `json:"section_id" validate:"required"`
}

// TeacherCourseService manages teacher assignments.
type TeacherCourseService struct {
	repo      teacherCourseRepository
	teachers  teacherFinder
	courses   courseFinder
	sections  sectionFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherCourseService constructs the service.
func NewTeacherCourseService(repo teacherCourseRepository, teachers teacherFinder, courses courseFinder, sections sectionFinder, validate *validator.Validate, logger *zap.Logger) *TeacherCourseService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherCourseService{repo: repo, teachers: teachers, courses: courses, sections: sections, validator: validate, logger: logger}
}

// ListByTeacher returns the assignments of one teacher.
func (s *TeacherCourseService) ListByTeacher(ctx context.Context, teacherID string) ([]models.TeacherCourseDetail, error) {
	rows, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, repoError(err, "teacher course", "list")
	}
	return rows, nil
}

// ListBySection returns the courses taught to a section.
func (s *TeacherCourseService) ListBySection(ctx context.Context, sectionID string) ([]models.TeacherCourseDetail, error) {
	rows, err := s.repo.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, repoError(err, "teacher course", "list")
	}
	return rows, nil
}

// Get returns an assignment.
func (s *TeacherCourseService) Get(ctx context.Context, id string) (*models.TeacherCourseDetail, error) {
	tc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "teacher course", "load")
	}
	return tc, nil
}

// Owned returns the assignment when it belongs to teacherID. An empty teacherID skips the check.
func (s *TeacherCourseService) Owned(ctx context.Context, id, teacherID string) (*models.TeacherCourseDetail, error) {
	tc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if teacherID != "" && tc.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course is not assigned to you")
	}
	return tc, nil
}

// Assign creates an assignment after checking the teacher, course and section exist.
func (s *TeacherCourseService) Assign(ctx context.Context, req AssignCourseRequest) (*models.TeacherCourseDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if _, err := s.teachers.FindByID(ctx, req.TeacherID); err != nil {
		return nil, missingReference(err, "teacher")
	}
	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		return nil, missingReference(err, "course")
	}
	if _, err := s.sections.FindByID(ctx, req.SectionID); err != nil {
		return nil, missingReference(err, "section")
	}

	tc := &models.TeacherCourse{TeacherID: req.TeacherID, CourseID: req.CourseID, SectionID: req.SectionID}
	if err := s.repo.Create(ctx, tc); err != nil {
		return nil, repoError(err, "teacher course", "create")
	}
	return s.Get(ctx, tc.ID)
}

// Unassign deletes the assignment with its timetable, lectures and attendance.
func (s *TeacherCourseService) Unassign(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return repoError(err, "teacher course", "delete")
	}
	s.logger.Info("teacher course unassigned", zap.String("teacher_course_id", id))
	return nil
}

func missingReference(err error, entity string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrValidation, entity+" does not exist")
	}
	return repoError(err, entity, "load")
}
