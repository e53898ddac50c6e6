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

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.TeacherDetail, error)
	ExistingBadgeNumbers(ctx context.Context, badges []string) (map[string]bool, error)
	CreateWithUser(ctx context.Context, user *models.User, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
}

// CreateTeacherRequest holds payload for creating teachers.
type CreateTeacherRequest struct {
	FullName    string  `json:"full_name" validate:"required,max=120"`
	Email       string  `json:"email" validate:"required,email"`
	BadgeNumber string  `json:"badge_number" validate:"required,max=32"`
	Designation *string `json:"designation" validate:"omitempty,max=80"`
	Phone       *string `json:"phone" validate:"omitempty,max=32"`
}

// UpdateTeacherRequest holds payload for updating teachers.
type UpdateTeacherRequest struct {
	FullName    string  `json:"full_name" validate:"required,max=120"`
	BadgeNumber string  `json:"badge_number" validate:"required,max=32"`
	Designation *string `json:"designation" validate:"omitempty,max=80"`
	Phone       *string `json:"phone" validate:"omitempty,max=32"`
}

// TeacherService contains business logic for teachers.
type TeacherService struct {
	repo           teacherRepository
	users          profileUserStore
	credentials    credentialIssuer
	validator      *validator.Validate
	logger         *zap.Logger
	passwordLength int
}

// NewTeacherService creates a new teacher service.
func NewTeacherService(repo teacherRepository, users profileUserStore, credentials credentialIssuer, passwordLength int, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, users: users, credentials: credentials, validator: validate, logger: logger, passwordLength: passwordLength}
}

// List returns paginated teachers.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherDetail, *models.Pagination, error) {
	filter.Page, filter.PageSize = models.Normalize(filter.Page, filter.PageSize)
	teachers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	return teachers, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a teacher by id.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.TeacherDetail, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

// Create inserts the user and profile together and issues credentials.
func (s *TeacherService) Create(ctx context.Context, req CreateTeacherRequest) (*AccountCreated, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	badge := strings.ToUpper(strings.TrimSpace(req.BadgeNumber))

	emails, err := s.users.ExistingEmails(ctx, []string{email})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if emails[email] {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	}
	if err := s.ensureBadgeFree(ctx, badge); err != nil {
		return nil, err
	}

	plain, hash, err := newAccountPassword(s.passwordLength)
	if err != nil {
		return nil, err
	}
	user := &models.User{Email: email, FullName: strings.TrimSpace(req.FullName), Role: models.RoleTeacher, Active: true, PasswordHash: hash}
	teacher := &models.Teacher{BadgeNumber: badge, Designation: req.Designation, Phone: req.Phone}
	if err := s.repo.CreateWithUser(ctx, user, teacher); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email or badge number already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}

	result := &AccountCreated{Profile: &models.TeacherDetail{Teacher: *teacher, FullName: user.FullName, Email: user.Email, Active: true}}
	cred := models.Credential{UserID: user.ID, FullName: user.FullName, Email: user.Email, Role: user.Role, Identifier: badge, Password: plain}
	result.EmailQueued, result.Slip = deliverCredential(s.credentials, cred, s.logger)
	return result, nil
}

// Update changes the profile and the owning user's name.
func (s *TeacherService) Update(ctx context.Context, id string, req UpdateTeacherRequest) (*models.TeacherDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	badge := strings.ToUpper(strings.TrimSpace(req.BadgeNumber))
	if badge != strings.ToUpper(current.BadgeNumber) {
		if err := s.ensureBadgeFree(ctx, badge); err != nil {
			return nil, err
		}
	}

	profile := current.Teacher
	profile.BadgeNumber = badge
	profile.Designation = req.Designation
	profile.Phone = req.Phone
	if err := s.repo.Update(ctx, &profile); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "badge number already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}
	if err := renameUser(ctx, s.users, current.UserID, req.FullName); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *TeacherService) ensureBadgeFree(ctx context.Context, badge string) error {
	taken, err := s.repo.ExistingBadgeNumbers(ctx, []string{badge})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check badge number")
	}
	if taken[badge] {
		return appErrors.Clone(appErrors.ErrConflict, "badge number already exists")
	}
	return nil
}
