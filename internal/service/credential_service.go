package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
	"github.com/noah-isme/campus-attendance-api/pkg/export"
	"github.com/noah-isme/campus-attendance-api/pkg/jobs"
	"github.com/noah-isme/campus-attendance-api/pkg/mailer"
	"github.com/noah-isme/campus-attendance-api/pkg/password"
)

// CredentialEmailJob is the job type for credential emails.
const CredentialEmailJob = "credentials.email"

// CredentialEmailPayload is queued per account. The password only lives in memory.
type CredentialEmailPayload struct {
	Credential models.Credential
}

type credentialUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type studentProfileLookup interface {
	FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
}

type teacherProfileLookup interface {
	FindByUserID(ctx context.Context, userID string) (*models.TeacherDetail, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type fileStore interface {
	Store(kind, name string, payload []byte) (*StoredFile, error)
}

// CredentialConfig configures credential delivery.
type CredentialConfig struct {
	Institution    string
	LoginURL       string
	PasswordLength int
}

// CredentialResendResult is returned after resetting a user's password.
type CredentialResendResult struct {
	UserID      string                     `json:"user_id"`
	EmailQueued bool                       `json:"email_queued"`
	Slip        *models.CredentialSlipLink `json:"slip,omitempty"`
}

// CredentialService delivers freshly issued credentials by email and as printable slips.
type CredentialService struct {
	users    credentialUserRepository
	students studentProfileLookup
	teachers teacherProfileLookup
	queue    jobEnqueuer
	files    fileStore
	logger   *zap.Logger
	cfg      CredentialConfig
	now      func() time.Time
}

// NewCredentialService constructs the service. queue and files may be nil to disable email or slips.
func NewCredentialService(users credentialUserRepository, students studentProfileLookup, teachers teacherProfileLookup, queue jobEnqueuer, files fileStore, cfg CredentialConfig, logger *zap.Logger) *CredentialService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PasswordLength < 8 {
		cfg.PasswordLength = 10
	}
	if cfg.Institution == "" {
		cfg.Institution = "Campus"
	}
	return &CredentialService{
		users:    users,
		students: students,
		teachers: teachers,
		queue:    queue,
		files:    files,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Dispatch queues one email per credential and returns how many were queued.
// A full queue is logged and the remaining credentials stay on the slip only.
func (s *CredentialService) Dispatch(creds []models.Credential) int {
	if s.queue == nil {
		return 0
	}
	queued := 0
	for _, cred := range creds {
		job := jobs.Job{
			ID:      uuid.NewString(),
			Type:    CredentialEmailJob,
			Payload: CredentialEmailPayload{Credential: cred},
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("credential email not queued", zap.String("user_id", cred.UserID), zap.Error(err))
			continue
		}
		queued++
	}
	return queued
}

// IssueSlips renders a PDF with one slip per credential and stores it behind a signed URL.
func (s *CredentialService) IssueSlips(creds []models.Credential) (*models.CredentialSlipLink, error) {
	if s.files == nil || len(creds) == 0 {
		return nil, nil
	}
	slips := make([]export.CredentialSlip, 0, len(creds))
	for _, c := range creds {
		slips = append(slips, export.CredentialSlip{
			FullName:   c.FullName,
			Role:       string(c.Role),
			Identifier: c.Identifier,
			Email:      c.Email,
			Password:   c.Password,
			Section:    c.Section,
		})
	}
	renderer := export.CredentialSlipRenderer{Institution: s.cfg.Institution, LoginURL: s.cfg.LoginURL}
	issuedAt := s.now().UTC()
	payload, err := renderer.Render(slips, issuedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render credential slips")
	}
	stored, err := s.files.Store("credentials", fmt.Sprintf("credentials_%s.pdf", issuedAt.Format("20060102_150405")), payload)
	if err != nil {
		return nil, err
	}
	return &models.CredentialSlipLink{URL: stored.URL, ExpiresAt: stored.ExpiresAt.Format(time.RFC3339)}, nil
}

// Resend resets the user's password, emails the new one and returns a printable slip.
func (s *CredentialService) Resend(ctx context.Context, userID, actorID string) (*CredentialResendResult, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "cannot resend credentials to an inactive account")
	}

	cred := models.Credential{UserID: user.ID, FullName: user.FullName, Email: user.Email, Role: user.Role, Identifier: user.Email}
	switch user.Role {
	case models.RoleStudent:
		if profile, err := s.students.FindByUserID(ctx, user.ID); err == nil {
			cred.Identifier = profile.RollNumber
			cred.Section = profile.SectionName
		}
	case models.RoleTeacher:
		if profile, err := s.teachers.FindByUserID(ctx, user.ID); err == nil {
			cred.Identifier = profile.BadgeNumber
		}
	}

	plain, err := password.Generate(s.cfg.PasswordLength)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate password")
	}
	hash, err := password.Hash(plain)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash, s.now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}
	if err := s.users.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
		s.logger.Warn("failed to revoke sessions after credential reset", zap.String("user_id", user.ID), zap.Error(err))
	}
	cred.Password = plain

	result := &CredentialResendResult{UserID: user.ID, EmailQueued: s.Dispatch([]models.Credential{cred}) == 1}
	slip, err := s.IssueSlips([]models.Credential{cred})
	if err != nil {
		s.logger.Warn("credential slip not issued", zap.String("user_id", user.ID), zap.Error(err))
	}
	result.Slip = slip

	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionCredentialsResend,
		Resource:   "user",
		ResourceID: &user.ID,
		NewValues:  []byte(fmt.Sprintf(`{"email_queued":%t}`, result.EmailQueued)),
	}); err != nil {
		s.logger.Warn("failed to record credential resend audit log", zap.Error(err))
	}
	return result, nil
}

// NewCredentialMailHandler returns the queue handler that renders and sends credential emails.
func NewCredentialMailHandler(sender mailer.Sender, cfg CredentialConfig) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		payload, ok := job.Payload.(CredentialEmailPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
		}
		c := payload.Credential
		msg, err := mailer.CredentialMessage(mailer.CredentialData{
			FullName:    c.FullName,
			Email:       c.Email,
			Role:        string(c.Role),
			Identifier:  c.Identifier,
			Password:    c.Password,
			LoginURL:    cfg.LoginURL,
			Institution: cfg.Institution,
		})
		if err != nil {
			return err
		}
		return sender.Send(ctx, msg)
	}
}
