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

const studentDetailSelect = `SELECT s.id, s.user_id, s.section_id, s.roll_number, s.phone, s.created_at, s.updated_at,
u.full_name, u.email, u.active, CONCAT(b.code, '-', sec.name) AS section_name
FROM students s
JOIN users u ON u.id = s.user_id
JOIN sections sec ON sec.id = s.section_id
JOIN badges b ON b.id = sec.badge_id`

// StudentRepository handles persistence for student profiles.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a new repository instance.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students with their user and section joined.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	where := []string{"1=1"}
	var args []interface{}

	if filter.SectionID != "" {
		where = append(where, fmt.Sprintf("s.section_id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.Active != nil {
		where = append(where, fmt.Sprintf("u.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(LOWER(u.full_name) LIKE $%d OR LOWER(s.roll_number) LIKE $%d OR LOWER(u.email) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	whereClause := " WHERE " + strings.Join(where, " AND ")

	sortColumns := map[string]string{
		"roll_number": "s.roll_number",
		"full_name":   "u.full_name",
		"created_at":  "s.created_at",
	}
	sortBy, ok := sortColumns[filter.SortBy]
	if !ok {
		sortBy = "s.roll_number"
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY %s %s LIMIT %d OFFSET %d", studentDetailSelect, whereClause, sortBy, sortOrder(filter.SortOrder), limit, offset)
	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM students s JOIN users u ON u.id = s.user_id" + whereClause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID returns a student detail by profile id.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	var student models.StudentDetail
	if err := r.db.GetContext(ctx, &student, studentDetailSelect+" WHERE s.id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// FindByUserID returns the student profile owned by a user.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	var student models.StudentDetail
	if err := r.db.GetContext(ctx, &student, studentDetailSelect+" WHERE s.user_id = $1", userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by user: %w", err)
	}
	return &student, nil
}

// ListBySection returns the roster of a section ordered by roll number.
func (r *StudentRepository) ListBySection(ctx context.Context, sectionID string) ([]models.StudentDetail, error) {
	var students []models.StudentDetail
	query := studentDetailSelect + " WHERE s.section_id = $1 AND u.active = TRUE ORDER BY s.roll_number"
	if err := r.db.SelectContext(ctx, &students, query, sectionID); err != nil {
		return nil, fmt.Errorf("list section students: %w", err)
	}
	return students, nil
}

// ExistingRollNumbers returns the upper-cased subset of roll numbers already taken.
func (r *StudentRepository) ExistingRollNumbers(ctx context.Context, rolls []string) (map[string]bool, error) {
	found := make(map[string]bool)
	upper := make([]string, 0, len(rolls))
	for _, roll := range rolls {
		if roll = strings.TrimSpace(roll); roll != "" {
			upper = append(upper, strings.ToUpper(roll))
		}
	}
	if len(upper) == 0 {
		return found, nil
	}
	var rows []string
	const query = `SELECT UPPER(roll_number) FROM students WHERE UPPER(roll_number) = ANY($1)`
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(upper)); err != nil {
		return nil, fmt.Errorf("existing roll numbers: %w", err)
	}
	for _, roll := range rows {
		found[roll] = true
	}
	return found, nil
}

// CreateWithUser inserts the user and the student profile in one transaction.
func (r *StudentRepository) CreateWithUser(ctx context.Context, user *models.User, student *models.Student) error {
	prepareUser(user)
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	student.UserID = user.ID
	student.CreatedAt = user.CreatedAt
	student.UpdatedAt = user.UpdatedAt

	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, insertUserQuery, user); err != nil {
			return wrapWrite("create student user", err)
		}
		const query = `INSERT INTO students (id, user_id, section_id, roll_number, phone, created_at, updated_at) VALUES (:id, :user_id, :section_id, :roll_number, :phone, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, query, student); err != nil {
			return wrapWrite("create student", err)
		}
		return nil
	})
}

// Update changes the mutable profile fields.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET section_id = :section_id, roll_number = :roll_number, phone = :phone, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return wrapWrite("update student", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
