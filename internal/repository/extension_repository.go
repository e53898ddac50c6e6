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

const extensionDetailSelect = `SELECT e.id, e.lecture_id, e.teacher_id, e.type, e.reason, e.status, e.reviewed_by, e.approved_at,
e.created_at, e.updated_at, u.full_name AS teacher_name, c.code AS course_code,
CONCAT(b.code, '-', sec.name) AS section_name, l.starts_at AS lecture_starts_at
FROM extension_requests e
JOIN lectures l ON l.id = e.lecture_id
JOIN teacher_courses tc ON tc.id = l.teacher_course_id
JOIN courses c ON c.id = tc.course_id
JOIN sections sec ON sec.id = tc.section_id
JOIN badges b ON b.id = sec.badge_id
JOIN teachers t ON t.id = e.teacher_id
JOIN users u ON u.id = t.user_id`

// ExtensionRepository persists attendance extension requests.
type ExtensionRepository struct {
	db *sqlx.DB
}

// NewExtensionRepository constructs the repository.
func NewExtensionRepository(db *sqlx.DB) *ExtensionRepository {
	return &ExtensionRepository{db: db}
}

// Create inserts a pending request. A second pending request for the same lecture
// violates the partial unique index and yields ErrDuplicate.
func (r *ExtensionRepository) Create(ctx context.Context, req *models.ExtensionRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.CreatedAt, req.UpdatedAt = now, now
	req.Status = models.ExtensionPending
	const query = `INSERT INTO extension_requests (id, lecture_id, teacher_id, type, reason, status, created_at, updated_at)
VALUES (:id, :lecture_id, :teacher_id, :type, :reason, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return wrapWrite("create extension request", err)
	}
	return nil
}

// FindByID returns a request with lecture context.
func (r *ExtensionRepository) FindByID(ctx context.Context, id string) (*models.ExtensionDetail, error) {
	var detail models.ExtensionDetail
	if err := r.db.GetContext(ctx, &detail, extensionDetailSelect+" WHERE e.id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find extension request: %w", err)
	}
	return &detail, nil
}

// LatestApproved returns the most recently approved request for a lecture, or nil.
func (r *ExtensionRepository) LatestApproved(ctx context.Context, lectureID string) (*models.ExtensionRequest, error) {
	const query = `SELECT id, lecture_id, teacher_id, type, reason, status, reviewed_by, approved_at, created_at, updated_at
FROM extension_requests WHERE lecture_id = $1 AND status = 'Approved' ORDER BY approved_at DESC LIMIT 1`
	var req models.ExtensionRequest
	if err := r.db.GetContext(ctx, &req, query, lectureID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("latest approved extension: %w", err)
	}
	return &req, nil
}

// HasPending reports whether the lecture already has a pending request.
func (r *ExtensionRepository) HasPending(ctx context.Context, lectureID string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM extension_requests WHERE lecture_id = $1 AND status = 'Pending')`, lectureID); err != nil {
		return false, fmt.Errorf("check pending extension: %w", err)
	}
	return exists, nil
}

// List returns requests matching the filter, newest first.
func (r *ExtensionRepository) List(ctx context.Context, filter models.ExtensionFilter) ([]models.ExtensionDetail, int, error) {
	where := []string{"1=1"}
	var args []interface{}
	if filter.Status != nil {
		where = append(where, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.TeacherID != "" {
		where = append(where, fmt.Sprintf("e.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.LectureID != "" {
		where = append(where, fmt.Sprintf("e.lecture_id = $%d", len(args)+1))
		args = append(args, filter.LectureID)
	}
	whereClause := " WHERE " + strings.Join(where, " AND ")
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	var rows []models.ExtensionDetail
	query := fmt.Sprintf("%s%s ORDER BY e.created_at DESC LIMIT %d OFFSET %d", extensionDetailSelect, whereClause, limit, offset)
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list extension requests: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM extension_requests e"+whereClause, args...); err != nil {
		return nil, 0, fmt.Errorf("count extension requests: %w", err)
	}
	return rows, total, nil
}

// Decide records the review outcome of a pending request. It returns sql.ErrNoRows
// when the request does not exist or was already decided.
func (r *ExtensionRepository) Decide(ctx context.Context, id string, status models.ExtensionStatus, reviewerID string, at time.Time) error {
	var approvedAt *time.Time
	if status == models.ExtensionApproved {
		approvedAt = &at
	}
	const query = `UPDATE extension_requests SET status = $2, reviewed_by = $3, approved_at = $4, updated_at = $5
WHERE id = $1 AND status = 'Pending'`
	res, err := r.db.ExecContext(ctx, query, id, status, reviewerID, approvedAt, at)
	if err != nil {
		return fmt.Errorf("decide extension request: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
