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

const lectureDetailSelect = `SELECT l.id, l.teacher_course_id, l.timetable_rule_id, l.starts_at, l.ends_at, l.room, l.topic,
l.cancelled, l.override, l.created_at, l.updated_at,
tc.teacher_id, u.full_name AS teacher_name, c.code AS course_code, c.title AS course_title,
tc.section_id, CONCAT(b.code, '-', sec.name) AS section_name,
(SELECT COUNT(*) FROM attendance_records ar WHERE ar.lecture_id = l.id) AS marked_count,
EXISTS (SELECT 1 FROM attendance_records ar WHERE ar.lecture_id = l.id) AS has_attendance
FROM lectures l
JOIN teacher_courses tc ON tc.id = l.teacher_course_id
JOIN teachers t ON t.id = tc.teacher_id
JOIN users u ON u.id = t.user_id
JOIN courses c ON c.id = tc.course_id
JOIN sections sec ON sec.id = tc.section_id
JOIN badges b ON b.id = sec.badge_id`

const insertLectureQuery = `INSERT INTO lectures (id, teacher_course_id, timetable_rule_id, starts_at, ends_at, room, topic, cancelled, override, created_at, updated_at)
VALUES (:id, :teacher_course_id, :timetable_rule_id, :starts_at, :ends_at, :room, :topic, :cancelled, :override, :created_at, :updated_at)`

// LectureRepository persists concrete lecture occurrences.
type LectureRepository struct {
	db *sqlx.DB
}

// NewLectureRepository constructs the repository.
func NewLectureRepository(db *sqlx.DB) *LectureRepository {
	return &LectureRepository{db: db}
}

// List returns lectures matching the filter ordered by start time.
func (r *LectureRepository) List(ctx context.Context, filter models.LectureFilter) ([]models.LectureDetail, int, error) {
	where := []string{"1=1"}
	var args []interface{}
	if filter.TeacherCourseID != "" {
		where = append(where, fmt.Sprintf("l.teacher_course_id = $%d", len(args)+1))
		args = append(args, filter.TeacherCourseID)
	}
	if filter.TeacherID != "" {
		where = append(where, fmt.Sprintf("tc.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.SectionID != "" {
		where = append(where, fmt.Sprintf("tc.section_id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("l.starts_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("l.starts_at < $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	if !filter.IncludeCanceled {
		where = append(where, "l.cancelled = FALSE")
	}
	whereClause := " WHERE " + strings.Join(where, " AND ")
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	var lectures []models.LectureDetail
	query := fmt.Sprintf("%s%s ORDER BY l.starts_at LIMIT %d OFFSET %d", lectureDetailSelect, whereClause, limit, offset)
	if err := r.db.SelectContext(ctx, &lectures, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list lectures: %w", err)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM lectures l JOIN teacher_courses tc ON tc.id = l.teacher_course_id" + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count lectures: %w", err)
	}
	return lectures, total, nil
}

// FindDetail returns a lecture with its context and whether any attendance exists.
func (r *LectureRepository) FindDetail(ctx context.Context, id string) (*models.LectureDetail, error) {
	var lecture models.LectureDetail
	if err := r.db.GetContext(ctx, &lecture, lectureDetailSelect+" WHERE l.id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find lecture: %w", err)
	}
	return &lecture, nil
}

// Create inserts a single lecture.
func (r *LectureRepository) Create(ctx context.Context, lecture *models.Lecture) error {
	prepareLecture(lecture, time.Now().UTC())
	if _, err := r.db.NamedExecContext(ctx, insertLectureQuery, lecture); err != nil {
		return wrapWrite("create lecture", err)
	}
	return nil
}

// BulkCreate inserts lectures in one transaction, skipping any slot already taken
// by the same assignment. It returns how many rows were inserted.
func (r *LectureRepository) BulkCreate(ctx context.Context, lectures []models.Lecture) (int, error) {
	if len(lectures) == 0 {
		return 0, nil
	}
	inserted := 0
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		for i := range lectures {
			prepareLecture(&lectures[i], now)
			res, err := tx.NamedExecContext(ctx, insertLectureQuery+" ON CONFLICT (teacher_course_id, starts_at) DO NOTHING", &lectures[i])
			if err != nil {
				return fmt.Errorf("bulk create lectures: %w", err)
			}
			if affected, _ := res.RowsAffected(); affected > 0 {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Reschedule moves a lecture and marks it as overriding its rule.
func (r *LectureRepository) Reschedule(ctx context.Context, id string, startsAt, endsAt time.Time, room *string) error {
	const query = `UPDATE lectures SET starts_at = $2, ends_at = $3, room = COALESCE($4, room), override = TRUE, updated_at = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, startsAt, endsAt, room, time.Now().UTC())
	if err != nil {
		return wrapWrite("reschedule lecture", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Cancel flags a lecture as cancelled.
func (r *LectureRepository) Cancel(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE lectures SET cancelled = TRUE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("cancel lecture: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func prepareLecture(lecture *models.Lecture, now time.Time) {
	if lecture.ID == "" {
		lecture.ID = uuid.NewString()
	}
	lecture.CreatedAt, lecture.UpdatedAt = now, now
}
