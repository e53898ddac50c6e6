package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	"github.com/noah-isme/campus-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
	"github.com/noah-isme/campus-attendance-api/pkg/password"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Deactivate(ctx context.Context, id string) error
	HardDelete(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateUserRequest creates an administrator. Students and teachers are created with their profile.
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"required,max=120"`
	Password string `json:"password" validate:"required,min=8"`
}

// UpdateUserRequest payload for updating users.
type UpdateUserRequest struct {
	Email    string `json:"email" validate:"omitempty,email"`
	FullName string `json:"full_name" validate:"required,max=120"`
	Active   *bool  `json:"active"`
}

// AuditMeta carries request details recorded on audit entries.
type AuditMeta struct {
	IP        string
	UserAgent string
}

// UserService handles user management workflows.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	filter.Page, filter.PageSize = models.Normalize(filter.Page, filter.PageSize)
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create adds a new administrator account.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest, actorID string, meta AuditMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	passwordHash, err := password.Hash(req.Password)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         models.RoleAdmin,
		Active:       true,
		PasswordHash: passwordHash,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"id": user.ID, "email": user.Email, "role": user.Role})
	s.audit(ctx, actorID, models.AuditActionUserCreate, user.ID, nil, newPayload, meta)
	return user, nil
}

// Update modifies the user attributes. Role is fixed at creation.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest, actorID string, meta AuditMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	oldPayload, _ := json.Marshal(map[string]interface{}{"email": user.Email, "full_name": user.FullName, "active": user.Active})

	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" && email != user.Email {
		if existing, err := s.repo.FindByEmail(ctx, email); err == nil && existing.ID != user.ID {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
		} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
		}
		user.Email = email
	}
	user.FullName = strings.TrimSpace(req.FullName)
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"email": user.Email, "full_name": user.FullName, "active": user.Active})
	s.audit(ctx, actorID, models.AuditActionUserUpdate, user.ID, oldPayload, newPayload, meta)
	return user, nil
}

// Deactivate disables login for the user and revokes their sessions.
func (s *UserService) Deactivate(ctx context.Context, id string, actorID string, meta AuditMeta) error {
	if id == actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot deactivate your own account")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate user")
	}
	oldPayload, _ := json.Marshal(map[string]interface{}{"active": user.Active})
	s.audit(ctx, actorID, models.AuditActionUserDeactivate, user.ID, oldPayload, []byte(`{"active":false}`), meta)
	return nil
}

// Delete removes the user together with their profile, assignments, lectures and attendance.
func (s *UserService) Delete(ctx context.Context, id string, actorID string, meta AuditMeta) error {
	if id == actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot delete your own account")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.HardDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	oldPayload, _ := json.Marshal(map[string]interface{}{"email": user.Email, "role": user.Role})
	s.audit(ctx, actorID, models.AuditActionUserDelete, user.ID, oldPayload, nil, meta)
	s.logger.Info("user deleted", zap.String("user_id", user.ID), zap.String("actor_id", actorID))
	return nil
}

func (s *UserService) audit(ctx context.Context, actorID, action, resourceID string, oldValues, newValues []byte, meta AuditMeta) {
	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     actor,
		Action:     action,
		Resource:   "users",
		ResourceID: &resourceID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record user audit log", zap.String("action", action), zap.Error(err))
	}
}
