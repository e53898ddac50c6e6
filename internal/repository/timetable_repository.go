package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-attendance-api/internal/models"
)

const timetableColumns = `id, teacher_course_id, days_of_week, start_time, duration_minutes, start_date, end_date, room, active, created_at, updated_at`

// TimetableRepository persists recurring timetable rules.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs the repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// ListByTeacherCourse returns rules for an assignment, active ones first.
func (r *TimetableRepository) ListByTeacherCourse(ctx context.Context, teacherCourseID string) ([]models.TimetableRule, error) {
	var rules []models.TimetableRule
	query := "SELECT " + timetableColumns + " FROM timetable_rules WHERE teacher_course_id = $1 ORDER BY active DESC, start_date"
	if err := r.db.SelectContext(ctx, &rules, query, teacherCourseID); err != nil {
		return nil, fmt.Errorf("list timetable rules: %w", err)
	}
	return rules, nil
}

// FindByID returns a rule.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.TimetableRule, error) {
	var rule models.TimetableRule
	if err := r.db.GetContext(ctx, &rule, "SELECT "+timetableColumns+" FROM timetable_rules WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find timetable rule: %w", err)
	}
	return &rule, nil
}

// Create inserts a rule.
func (r *TimetableRepository) Create(ctx context.Context, rule *models.TimetableRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rule.CreatedAt, rule.UpdatedAt = now, now
	const query = `INSERT INTO timetable_rules (` + timetableColumns + `)
VALUES (:id, :teacher_course_id, :days_of_week, :start_time, :duration_minutes, :start_date, :end_date, :room, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rule); err != nil {
		return wrapWrite("create timetable rule", err)
	}
	return nil
}

// Update rewrites a rule's schedule. Already generated lectures are left untouched.
func (r *TimetableRepository) Update(ctx context.Context, rule *models.TimetableRule) error {
	rule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE timetable_rules SET days_of_week = :days_of_week, start_time = :start_time,
duration_minutes = :duration_minutes, start_date = :start_date, end_date = :end_date, room = :room,
active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, rule)
	if err != nil {
		return wrapWrite("update timetable rule", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Deactivate stops a rule from generating further lectures.
func (r *TimetableRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE timetable_rules SET active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate timetable rule: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
