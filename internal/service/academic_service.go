package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	"github.com/noah-isme/campus-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
)

// repoError maps repository failures on entity to typed errors.
func repoError(err error, entity, action string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.Clone(appErrors.ErrConflict, entity+" already exists")
	case errors.Is(err, repository.ErrInUse):
		return appErrors.Clone(appErrors.ErrConflict, entity+" is still in use")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to "+action+" "+entity)
	}
}

type badgeRepository interface {
	List(ctx context.Context) ([]models.Badge, error)
	FindByID(ctx context.Context, id string) (*models.Badge, error)
	Create(ctx context.Context, badge *models.Badge) error
	Update(ctx context.Context, badge *models.Badge) error
	Delete(ctx context.Context, id string) error
}

// BadgeRequest creates or updates a badge.
type BadgeRequest struct {
	Code string `json:"code" validate:"required,alphanum,max=16"`
	Name string `json:"name" validate:"required,max=120"`
}

// BadgeService manages degree programme badges.
type BadgeService struct {
	repo      badgeRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBadgeService constructs the service.
func NewBadgeService(repo badgeRepository, validate *validator.Validate, logger *zap.Logger) *BadgeService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BadgeService{repo: repo, validator: validate, logger: logger}
}

func (s *BadgeService) List(ctx context.Context) ([]models.Badge, error) {
	badges, err := s.repo.List(ctx)
	if err != nil {
		return nil, repoError(err, "badge", "list")
	}
	return badges, nil
}

func (s *BadgeService) Get(ctx context.Context, id string) (*models.Badge, error) {
	badge, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "badge", "load")
	}
	return badge, nil
}

func (s *BadgeService) Create(ctx context.Context, req BadgeRequest) (*models.Badge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid badge payload")
	}
	badge := &models.Badge{Code: req.Code, Name: strings.TrimSpace(req.Name)}
	if err := s.repo.Create(ctx, badge); err != nil {
		return nil, repoError(err, "badge", "create")
	}
	return badge, nil
}

func (s *BadgeService) Update(ctx context.Context, id string, req BadgeRequest) (*models.Badge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid badge payload")
	}
	badge, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	badge.Code = req.Code
	badge.Name = strings.TrimSpace(req.Name)
	if err := s.repo.Update(ctx, badge); err != nil {
		return nil, repoError(err, "badge", "update")
	}
	return badge, nil
}

func (s *BadgeService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return repoError(err, "badge", "delete")
	}
	return nil
}

type sectionRepository interface {
	List(ctx context.Context, filter models.SectionFilter) ([]models.Section, int, error)
	FindByID(ctx context.Context, id string) (*models.Section, error)
	Create(ctx context.Context, section *models.Section) error
	Update(ctx context.Context, section *models.Section) error
	Delete(ctx context.Context, id string) error
}

// SectionRequest creates or updates a section.
type SectionRequest struct {
	BadgeID  string `json:"badge_id" validate:"required"`
	Name     string `json:"name" validate:"required,max=32"`
	Semester int    `json:"semester" validate:"required,min=1,max=12"`
	Session  string `json:"session" validate:"required,max=16"`
}

// SectionService manages sections.
type SectionService struct {
	repo      sectionRepository
	badges    badgeRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSectionService constructs the service.
func NewSectionService(repo sectionRepository, badges badgeRepository, validate *validator.Validate, logger *zap.Logger) *SectionService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SectionService{repo: repo, badges: badges, validator: validate, logger: logger}
}

func (s *SectionService) List(ctx context.Context, filter models.SectionFilter) ([]models.Section, *models.Pagination, error) {
	filter.Page, filter.PageSize = models.Normalize(filter.Page, filter.PageSize)
	sections, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, repoError(err, "section", "list")
	}
	return sections, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func (s *SectionService) Get(ctx context.Context, id string) (*models.Section, error) {
	section, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "section", "load")
	}
	return section, nil
}

func (s *SectionService) Create(ctx context.Context, req SectionRequest) (*models.Section, error) {
	section := &models.Section{}
	if err := s.apply(ctx, section, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, section); err != nil {
		return nil, repoError(err, "section", "create")
	}
	return section, nil
}

func (s *SectionService) Update(ctx context.Context, id string, req SectionRequest) (*models.Section, error) {
	section, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, section, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, section); err != nil {
		return nil, repoError(err, "section", "update")
	}
	return section, nil
}

// Delete removes a section. Sections with students or assignments cannot be deleted.
func (s *SectionService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return repoError(err, "section", "delete")
	}
	return nil
}

func (s *SectionService) apply(ctx context.Context, section *models.Section, req SectionRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	badge, err := s.badges.FindByID(ctx, req.BadgeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "badge does not exist")
		}
		return repoError(err, "badge", "load")
	}
	section.BadgeID = badge.ID
	section.BadgeCode = badge.Code
	section.Name = strings.ToUpper(strings.TrimSpace(req.Name))
	section.Semester = req.Semester
	section.Session = strings.TrimSpace(req.Session)
	return nil
}

type courseRepository interface {
	List(ctx context.Context, search string, page, size int) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
}

// CourseRequest creates or updates a course.
type CourseRequest struct {
	Code        string `json:"code" validate:"required,max=16"`
	Title       string `json:"title" validate:"required,max=160"`
	CreditHours int    `json:"credit_hours" validate:"min=0,max=6"`
}

// CourseService manages the course catalogue.
type CourseService struct {
	repo      courseRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs the service.
func NewCourseService(repo courseRepository, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, validator: validate, logger: logger}
}

func (s *CourseService) List(ctx context.Context, search string, page, size int) ([]models.Course, *models.Pagination, error) {
	page, size = models.Normalize(page, size)
	courses, total, err := s.repo.List(ctx, strings.TrimSpace(search), page, size)
	if err != nil {
		return nil, nil, repoError(err, "course", "list")
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "course", "load")
	}
	return course, nil
}

func (s *CourseService) Create(ctx context.Context, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course := &models.Course{Code: req.Code, Title: strings.TrimSpace(req.Title), CreditHours: req.CreditHours}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, repoError(err, "course", "create")
	}
	return course, nil
}

func (s *CourseService) Update(ctx context.Context, id string, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	course.Code = req.Code
	course.Title = strings.TrimSpace(req.Title)
	course.CreditHours = req.CreditHours
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, repoError(err, "course", "update")
	}
	return course, nil
}

func (s *CourseService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return repoError(err, "course", "delete")
	}
	return nil
}
