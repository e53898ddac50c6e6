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

const teacherCourseSelect = `SELECT tc.id, tc.teacher_id, tc.course_id, tc.section_id, tc.created_at,
u.full_name AS teacher_name, c.code AS course_code, c.title AS course_title,
CONCAT(b.code, '-', sec.name) AS section_name,
(SELECT COUNT(*) FROM students st WHERE st.section_id = tc.section_id) AS student_count
FROM teacher_courses tc
JOIN teachers t ON t.id = tc.teacher_id
JOIN users u ON u.id = t.user_id
JOIN courses c ON c.id = tc.course_id
JOIN sections sec ON sec.id = tc.section_id
JOIN badges b ON b.id = sec.badge_id`

// TeacherCourseRepository persists teacher x course x section assignments.
type TeacherCourseRepository struct {
	db *sqlx.DB
}

// NewTeacherCourseRepository constructs the repository.
func NewTeacherCourseRepository(db *sqlx.DB) *TeacherCourseRepository {
	return &TeacherCourseRepository{db: db}
}

// ListByTeacher returns a teacher's assignments.
func (r *TeacherCourseRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.TeacherCourseDetail, error) {
	var rows []models.TeacherCourseDetail
	if err := r.db.SelectContext(ctx, &rows, teacherCourseSelect+" WHERE tc.teacher_id = $1 ORDER BY c.code, section_name", teacherID); err != nil {
		return nil, fmt.Errorf("list teacher courses: %w", err)
	}
	return rows, nil
}

// ListBySection returns the assignments of a section, used for student course views.
func (r *TeacherCourseRepository) ListBySection(ctx context.Context, sectionID string) ([]models.TeacherCourseDetail, error) {
	var rows []models.TeacherCourseDetail
	if err := r.db.SelectContext(ctx, &rows, teacherCourseSelect+" WHERE tc.section_id = $1 ORDER BY c.code", sectionID); err != nil {
		return nil, fmt.Errorf("list section courses: %w", err)
	}
	return rows, nil
}

// FindByID returns an assignment with display names.
func (r *TeacherCourseRepository) FindByID(ctx context.Context, id string) (*models.TeacherCourseDetail, error) {
	var row models.TeacherCourseDetail
	if err := r.db.GetContext(ctx, &row, teacherCourseSelect+" WHERE tc.id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find teacher course: %w", err)
	}
	return &row, nil
}

// Create assigns a teacher to a course and section.
func (r *TeacherCourseRepository) Create(ctx context.Context, tc *models.TeacherCourse) error {
	if tc.ID == "" {
		tc.ID = uuid.NewString()
	}
	tc.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO teacher_courses (id, teacher_id, course_id, section_id, created_at) VALUES (:id, :teacher_id, :course_id, :section_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tc); err != nil {
		return wrapWrite("create teacher course", err)
	}
	return nil
}

// Delete removes an assignment together with its schedule and attendance.
func (r *TeacherCourseRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		steps := []string{
			`DELETE FROM attendance_records WHERE lecture_id IN (SELECT id FROM lectures WHERE teacher_course_id = $1)`,
			`DELETE FROM lectures WHERE teacher_course_id = $1`,
			`DELETE FROM timetable_rules WHERE teacher_course_id = $1`,
		}
		for _, q := range steps {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return fmt.Errorf("delete teacher course dependents: %w", err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM teacher_courses WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete teacher course: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}
