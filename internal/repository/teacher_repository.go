package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/campus-attendance-api/internal/models"
)

const teacherDetailSelect = `SELECT t.id, t.user_id, t.badge_number, t.designation, t.phone, t.created_at, t.updated_at,
u.full_name, u.email, u.active
FROM teachers t
JOIN users u ON u.id = t.user_id`

// TeacherRepository handles persistence for teacher profiles.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs the repository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns teachers with their user joined.
func (r *TeacherRepository) List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherDetail, int, error) {
	where := []string{"1=1"}
	var args []interface{}

	if filter.Active != nil {
		where = append(where, fmt.Sprintf("u.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(LOWER(u.full_name) LIKE $%d OR LOWER(t.badge_number) LIKE $%d OR LOWER(u.email) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	whereClause := " WHERE " + strings.Join(where, " AND ")

	sortColumns := map[string]string{
		"badge_number": "t.badge_number",
		"full_name":    "u.full_name",
		"created_at":   "t.created_at",
	}
	sortBy, ok := sortColumns[filter.SortBy]
	if !ok {
		sortBy = "u.full_name"
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY %s %s LIMIT %d OFFSET %d", teacherDetailSelect, whereClause, sortBy, sortOrder(filter.SortOrder), limit, offset)
	var teachers []models.TeacherDetail
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM teachers t JOIN users u ON u.id = t.user_id"+whereClause, args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}
	return teachers, total, nil
}

// FindByID returns a teacher detail by profile id.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.TeacherDetail, error) {
	var teacher models.TeacherDetail
	if err := r.db.GetContext(ctx, &teacher, teacherDetailSelect+" WHERE t.id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find teacher: %w", err)
	}
	return &teacher, nil
}

// FindByUserID returns the teacher profile owned by a user.
func (r *TeacherRepository) FindByUserID(ctx context.Context, userID string) (*models.TeacherDetail, error) {
	var teacher models.TeacherDetail
	if err := r.db.GetContext(ctx, &teacher, teacherDetailSelect+" WHERE t.user_id = $1", userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find teacher by user: %w", err)
	}
	return &teacher, nil
}

// ExistingBadgeNumbers returns the upper-cased subset of badge numbers already taken.
func (r *TeacherRepository) ExistingBadgeNumbers(ctx context.Context, badges []string) (map[string]bool, error) {
	found := make(map[string]bool)
	upper := make([]string, 0, len(badges))
	for _, b := range badges {
		if b = strings.TrimSpace(b); b != "" {
			upper = append(upper, strings.ToUpper(b))
		}
	}
	if len(upper) == 0 {
		return found, nil
	}
	var rows []string
	const query = `SELECT UPPER(badge_number) FROM teachers WHERE UPPER(badge_number) = ANY($1)`
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(upper)); err != nil {
		return nil, fmt.Errorf("existing badge numbers: %w", err)
	}
	for _, b := range rows {
		found[b] = true
	}
	return found, nil
}

// CreateWithUser inserts the user and the teacher profile in one transaction.
func (r *TeacherRepository) CreateWithUser(ctx context.Context, user *models.User, teacher *models.Teacher) error {
	prepareUser(user)
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	teacher.UserID = user.ID
	teacher.CreatedAt = user.CreatedAt
	teacher.UpdatedAt = user.UpdatedAt

	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, insertUserQuery, user); err != nil {
			return wrapWrite("create teacher user", err)
		}
		const query = `INSERT INTO teachers (id, user_id, badge_number, designation, phone, created_at, updated_at) VALUES (:id, :user_id, :badge_number, :designation, :phone, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, query, teacher); err != nil {
			return wrapWrite("create teacher", err)
		}
		return nil
	})
}

// Update changes the mutable profile fields.
func (r *TeacherRepository) Update(ctx context.Context, teacher *models.Teacher) error {
	teacher.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teachers SET badge_number = :badge_number, designation = :designation, phone = :phone, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, teacher)
	if err != nil {
		return wrapWrite("update teacher", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
