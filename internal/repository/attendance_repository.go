package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-attendance-api/internal/models"
)

const upsertAttendanceQuery = `INSERT INTO attendance_records (id, lecture_id, student_id, status, remarks, marked_by, created_at, updated_at)
VALUES (:id, :lecture_id, :student_id, :status, :remarks, :marked_by, :created_at, :updated_at)
ON CONFLICT (student_id, lecture_id) DO UPDATE SET status = EXCLUDED.status, remarks = EXCLUDED.remarks,
marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at`

const attendanceFactSelect = `SELECT ar.id AS record_id, l.id AS lecture_id, l.starts_at, ar.status,
s.id AS student_id, s.roll_number, su.full_name AS student_name,
sec.id AS section_id, CONCAT(b.code, '-', sec.name) AS section_name,
c.id AS course_id, c.code AS course_code, c.title AS course_title,
t.id AS teacher_id, tu.full_name AS teacher_name
FROM attendance_records ar
JOIN lectures l ON l.id = ar.lecture_id
JOIN students s ON s.id = ar.student_id
JOIN users su ON su.id = s.user_id
JOIN teacher_courses tc ON tc.id = l.teacher_course_id
JOIN sections sec ON sec.id = tc.section_id
JOIN badges b ON b.id = sec.badge_id
JOIN courses c ON c.id = tc.course_id
JOIN teachers t ON t.id = tc.teacher_id
JOIN users tu ON tu.id = t.user_id`

// AttendanceRepository persists attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// UpsertBulk writes all records for a lecture in one transaction. Existing
// (student, lecture) rows are updated in place.
func (r *AttendanceRepository) UpsertBulk(ctx context.Context, records []models.AttendanceRecord) error {
	if len(records) == 0 {
		return nil
	}
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		for i := range records {
			if records[i].ID == "" {
				records[i].ID = uuid.NewString()
			}
			records[i].CreatedAt, records[i].UpdatedAt = now, now
			if _, err := tx.NamedExecContext(ctx, upsertAttendanceQuery, &records[i]); err != nil {
				return fmt.Errorf("upsert attendance: %w", err)
			}
		}
		return nil
	})
}

// HasAttendance reports whether any record exists for the lecture.
func (r *AttendanceRepository) HasAttendance(ctx context.Context, lectureID string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM attendance_records WHERE lecture_id = $1)`, lectureID); err != nil {
		return false, fmt.Errorf("check attendance: %w", err)
	}
	return exists, nil
}

// Sheet returns the lecture's roster with any recorded status.
func (r *AttendanceRepository) Sheet(ctx context.Context, lectureID string) ([]models.AttendanceSheetRow, error) {
	const query = `SELECT s.id AS student_id, s.roll_number, u.full_name, ar.status, ar.remarks
FROM lectures l
JOIN teacher_courses tc ON tc.id = l.teacher_course_id
JOIN students s ON s.section_id = tc.section_id
JOIN users u ON u.id = s.user_id
LEFT JOIN attendance_records ar ON ar.lecture_id = l.id AND ar.student_id = s.id
WHERE l.id = $1 AND (u.active = TRUE OR ar.id IS NOT NULL)
ORDER BY s.roll_number`
	var rows []models.AttendanceSheetRow
	if err := r.db.SelectContext(ctx, &rows, query, lectureID); err != nil {
		return nil, fmt.Errorf("attendance sheet: %w", err)
	}
	return rows, nil
}

// ListFacts returns every attendance record matching the filter, flattened for reporting.
// Cancelled lectures are excluded.
func (r *AttendanceRepository) ListFacts(ctx context.Context, filter models.ReportFilter) ([]models.AttendanceFact, error) {
	where := []string{"l.cancelled = FALSE"}
	var args []interface{}
	add := func(clause string, value interface{}) {
		where = append(where, fmt.Sprintf(clause, len(args)+1))
		args = append(args, value)
	}
	if filter.SectionID != "" {
		add("tc.section_id = $%d", filter.SectionID)
	}
	if filter.CourseID != "" {
		add("tc.course_id = $%d", filter.CourseID)
	}
	if filter.TeacherID != "" {
		add("tc.teacher_id = $%d", filter.TeacherID)
	}
	if filter.StudentID != "" {
		add("ar.student_id = $%d", filter.StudentID)
	}
	if filter.From != nil {
		add("l.starts_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("l.starts_at < $%d", filter.To.AddDate(0, 0, 1))
	}

	query := attendanceFactSelect + " WHERE " + strings.Join(where, " AND ") + " ORDER BY l.starts_at, s.roll_number"
	var facts []models.AttendanceFact
	if err := r.db.SelectContext(ctx, &facts, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance facts: %w", err)
	}
	return facts, nil
}
