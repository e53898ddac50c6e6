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

// CourseRepository persists courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses, optionally filtered by code or title.
func (r *CourseRepository) List(ctx context.Context, search string, page, size int) ([]models.Course, int, error) {
	where := ""
	var args []interface{}
	if search != "" {
		where = " WHERE LOWER(code) LIKE $1 OR LOWER(title) LIKE $1"
		args = append(args, "%"+strings.ToLower(search)+"%")
	}
	limit, offset := pageBounds(page, size)

	var courses []models.Course
	query := fmt.Sprintf("SELECT id, code, title, credit_hours, created_at, updated_at FROM courses%s ORDER BY code LIMIT %d OFFSET %d", where, limit, offset)
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM courses"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID returns a course.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	if err := r.db.GetContext(ctx, &course, `SELECT id, code, title, credit_hours, created_at, updated_at FROM courses WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// Create inserts a course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt, course.UpdatedAt = now, now
	course.Code = strings.ToUpper(strings.TrimSpace(course.Code))
	const query = `INSERT INTO courses (id, code, title, credit_hours, created_at, updated_at) VALUES (:id, :code, :title, :credit_hours, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return wrapWrite("create course", err)
	}
	return nil
}

// Update changes a course.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	course.Code = strings.ToUpper(strings.TrimSpace(course.Code))
	const query = `UPDATE courses SET code = :code, title = :title, credit_hours = :credit_hours, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, course)
	if err != nil {
		return wrapWrite("update course", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a course and, by cascade, its assignments.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return wrapWrite("delete course", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
