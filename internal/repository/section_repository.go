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

const sectionSelect = `SELECT sec.id, sec.badge_id, b.code AS badge_code, sec.name, sec.semester, sec.session, sec.created_at, sec.updated_at
FROM sections sec JOIN badges b ON b.id = sec.badge_id`

// SectionRepository persists student cohorts.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// List returns sections matching the filter.
func (r *SectionRepository) List(ctx context.Context, filter models.SectionFilter) ([]models.Section, int, error) {
	where := []string{"1=1"}
	var args []interface{}
	if filter.BadgeID != "" {
		where = append(where, fmt.Sprintf("sec.badge_id = $%d", len(args)+1))
		args = append(args, filter.BadgeID)
	}
	if filter.Semester > 0 {
		where = append(where, fmt.Sprintf("sec.semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.Session != "" {
		where = append(where, fmt.Sprintf("sec.session = $%d", len(args)+1))
		args = append(args, filter.Session)
	}
	whereClause := " WHERE " + strings.Join(where, " AND ")
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	var sections []models.Section
	query := fmt.Sprintf("%s%s ORDER BY b.code, sec.session, sec.semester, sec.name LIMIT %d OFFSET %d", sectionSelect, whereClause, limit, offset)
	if err := r.db.SelectContext(ctx, &sections, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sections: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM sections sec"+whereClause, args...); err != nil {
		return nil, 0, fmt.Errorf("count sections: %w", err)
	}
	return sections, total, nil
}

// ListAll returns every section; used to resolve legacy import rows.
func (r *SectionRepository) ListAll(ctx context.Context) ([]models.Section, error) {
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, sectionSelect+" ORDER BY b.code, sec.name"); err != nil {
		return nil, fmt.Errorf("list all sections: %w", err)
	}
	return sections, nil
}

// FindByID returns a section with its badge code.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	var section models.Section
	if err := r.db.GetContext(ctx, &section, sectionSelect+" WHERE sec.id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find section: %w", err)
	}
	return &section, nil
}

// Create inserts a section.
func (r *SectionRepository) Create(ctx context.Context, section *models.Section) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	section.CreatedAt, section.UpdatedAt = now, now
	const query = `INSERT INTO sections (id, badge_id, name, semester, session, created_at, updated_at) VALUES (:id, :badge_id, :name, :semester, :session, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return wrapWrite("create section", err)
	}
	return nil
}

// Update changes a section's attributes.
func (r *SectionRepository) Update(ctx context.Context, section *models.Section) error {
	section.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sections SET badge_id = :badge_id, name = :name, semester = :semester, session = :session, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, section)
	if err != nil {
		return wrapWrite("update section", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a section. Enrolled students block the delete.
func (r *SectionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sections WHERE id = $1`, id)
	if err != nil {
		return wrapWrite("delete section", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
