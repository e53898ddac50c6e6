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
	"github.com/noah-isme/campus-attendance-api/pkg/password"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	ExistingRollNumbers(ctx context.Context, rolls []string) (map[string]bool, error)
	CreateWithUser(ctx context.Context, user *models.User, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
}

// profileUserStore is the slice of the user repository profile services need.
type profileUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistingEmails(ctx context.Context, emails []string) (map[string]bool, error)
	Update(ctx context.Context, user *models.User) error
}

type sectionFinder interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
}

// CreateStudentRequest holds payload for creating students.
type CreateStudentRequest struct {
	FullName   string  `json:"full_name" validate:"required,max=120"`
	Email      string  `json:"email" validate:"required,email"`
	RollNumber string  `json:"roll_number" validate:"required,roll_number"`
	SectionID  string  `json:"section_id" validate:"required"`
	Phone      *string `json:"phone" validate:"omitempty,max=32"`
}

// UpdateStudentRequest holds payload for updating students.
type UpdateStudentRequest struct {
	FullName   string  `json:"full_name" validate:"required,max=120"`
	RollNumber string  `json:"roll_number" validate:"required"`
	SectionID  string  `json:"section_id" validate:"required"`
	Phone      *string `json:"phone" validate:"omitempty,max=32"`
}

// AccountCreated is returned when a single account is created with generated credentials.
type AccountCreated struct {
	Profile     interface{}                `json:"profile"`
	EmailQueued bool                       `json:"email_queued"`
	Slip        *models.CredentialSlipLink `json:"slip,omitempty"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo           studentRepository
	users          profileUserStore
	sections       sectionFinder
	credentials    credentialIssuer
	validator      *validator.Validate
	logger         *zap.Logger
	passwordLength int
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, users profileUserStore, sections sectionFinder, credentials credentialIssuer, passwordLength int, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		repo:           repo,
		users:          users,
		sections:       sections,
		credentials:    credentials,
		validator:      validate,
		logger:         logger,
		passwordLength: passwordLength,
	}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	filter.Page, filter.PageSize = models.Normalize(filter.Page, filter.PageSize)
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a student by id.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create inserts the user and profile together and issues credentials.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*AccountCreated, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	roll := strings.ToUpper(strings.TrimSpace(req.RollNumber))

	section, err := s.section(ctx, req.SectionID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, email, roll); err != nil {
		return nil, err
	}

	plain, hash, err := newAccountPassword(s.passwordLength)
	if err != nil {
		return nil, err
	}
	user := &models.User{Email: email, FullName: strings.TrimSpace(req.FullName), Role: models.RoleStudent, Active: true, PasswordHash: hash}
	student := &models.Student{SectionID: section.ID, RollNumber: roll, Phone: req.Phone}
	if err := s.repo.CreateWithUser(ctx, user, student); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email or roll number already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	detail := &models.StudentDetail{Student: *student, FullName: user.FullName, Email: user.Email, Active: true, SectionName: section.Label()}
	result := &AccountCreated{Profile: detail}
	cred := models.Credential{UserID: user.ID, FullName: user.FullName, Email: user.Email, Role: user.Role, Identifier: roll, Section: section.Label(), Password: plain}
	result.EmailQueued, result.Slip = deliverCredential(s.credentials, cred, s.logger)
	return result, nil
}

// Update changes the profile and the owning user's name.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.section(ctx, req.SectionID); err != nil {
		return nil, err
	}

	roll := strings.ToUpper(strings.TrimSpace(req.RollNumber))
	if roll != strings.ToUpper(current.RollNumber) {
		taken, err := s.repo.ExistingRollNumbers(ctx, []string{roll})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check roll number")
		}
		if taken[roll] {
			return nil, appErrors.Clone(appErrors.ErrConflict, "roll number already exists")
		}
	}

	profile := current.Student
	profile.RollNumber = roll
	profile.SectionID = req.SectionID
	profile.Phone = req.Phone
	if err := s.repo.Update(ctx, &profile); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "roll number already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	if err := renameUser(ctx, s.users, current.UserID, req.FullName); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *StudentService) section(ctx context.Context, id string) (*models.Section, error) {
	section, err := s.sections.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "section does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	return section, nil
}

func (s *StudentService) ensureUnique(ctx context.Context, email, roll string) error {
	emails, err := s.users.ExistingEmails(ctx, []string{email})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if emails[email] {
		return appErrors.Clone(appErrors.ErrConflict, "email already exists")
	}
	rolls, err := s.repo.ExistingRollNumbers(ctx, []string{roll})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check roll number")
	}
	if rolls[roll] {
		return appErrors.Clone(appErrors.ErrConflict, "roll number already exists")
	}
	return nil
}

func newAccountPassword(length int) (plain, hash string, err error) {
	if length < 8 {
		length = 10
	}
	plain, err = password.Generate(length)
	if err != nil {
		return "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate password")
	}
	hash, err = password.Hash(plain)
	if err != nil {
		return "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	return plain, hash, nil
}

// deliverCredential queues the welcome email and issues a slip. Failures are logged only.
func deliverCredential(issuer credentialIssuer, cred models.Credential, logger *zap.Logger) (bool, *models.CredentialSlipLink) {
	if issuer == nil {
		return false, nil
	}
	queued := issuer.Dispatch([]models.Credential{cred}) == 1
	slip, err := issuer.IssueSlips([]models.Credential{cred})
	if err != nil {
		logger.Warn("credential slip not issued", zap.String("user_id", cred.UserID), zap.Error(err))
	}
	return queued, slip
}

func renameUser(ctx context.Context, users profileUserStore, userID, fullName string) error {
	fullName = strings.TrimSpace(fullName)
	user, err := users.FindByID(ctx, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.FullName == fullName {
		return nil
	}
	user.FullName = fullName
	if err := users.Update(ctx, user); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	return nil
}
