package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-attendance-api/internal/models"
)

// BadgeRepository persists degree programme badges.
type BadgeRepository struct {
	db *sqlx.DB
}

// NewBadgeRepository constructs the repository.
func NewBadgeRepository(db *sqlx.DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

// List returns every badge ordered by code.
func (r *BadgeRepository) List(ctx context.Context) ([]models.Badge, error) {
	var badges []models.Badge
	if err := r.db.SelectContext(ctx, &badges, `SELECT id, code, name, created_at, updated_at FROM badges ORDER BY code`); err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	return badges, nil
}

// FindByID returns a badge.
func (r *BadgeRepository) FindByID(ctx context.Context, id string) (*models.Badge, error) {
	var badge models.Badge
	if err := r.db.GetContext(ctx, &badge, `SELECT id, code, name, created_at, updated_at FROM badges WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find badge: %w", err)
	}
	return &badge, nil
}

// Create inserts a badge. Codes are stored upper-cased.
func (r *BadgeRepository) Create(ctx context.Context, badge *models.Badge) error {
	if badge.ID == "" {
		badge.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	badge.CreatedAt, badge.UpdatedAt = now, now
	badge.Code = strings.ToUpper(strings.TrimSpace(badge.Code))
	const query = `INSERT INTO badges (id, code, name, created_at, updated_at) VALUES (:id, :code, :name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, badge); err != nil {
		return wrapWrite("create badge", err)
	}
	return nil
}

// Update renames a badge.
func (r *BadgeRepository) Update(ctx context.Context, badge *models.Badge) error {
	badge.UpdatedAt = time.Now().UTC()
	badge.Code = strings.ToUpper(strings.TrimSpace(badge.Code))
	const query = `UPDATE badges SET code = :code, name = :name, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, badge)
	if err != nil {
		return wrapWrite("update badge", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a badge. Sections referencing it block the delete.
func (r *BadgeRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM badges WHERE id = $1`, id)
	if err != nil {
		return wrapWrite("delete badge", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
