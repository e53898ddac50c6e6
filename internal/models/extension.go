package models

import "time"

// ExtensionType distinguishes marking a missed lecture from editing a locked one.
type ExtensionType string

const (
	ExtensionMissed ExtensionType = "Missed"
	ExtensionEdit   ExtensionType = "Edit"
)

// Valid reports whether the type is supported.
func (t ExtensionType) Valid() bool {
	return t == ExtensionMissed || t == ExtensionEdit
}

// ExtensionStatus tracks the review outcome.
type ExtensionStatus string

const (
	ExtensionPending  ExtensionStatus = "Pending"
	ExtensionApproved ExtensionStatus = "Approved"
	ExtensionRejected ExtensionStatus = "Rejected"
)

// ExtensionRequest asks an administrator to reopen a lecture's attendance.
type ExtensionRequest struct {
	ID         string          `db:"id" json:"id"`
	LectureID  string          `db:"lecture_id" json:"lecture_id"`
	TeacherID  string          `db:"teacher_id" json:"teacher_id"`
	Type       ExtensionType   `db:"type" json:"type"`
	Reason     string          `db:"reason" json:"reason"`
	Status     ExtensionStatus `db:"status" json:"status"`
	ReviewedBy *string         `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ApprovedAt *time.Time      `db:"approved_at" json:"approved_at,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// ExtensionDetail adds lecture context for review screens.
type ExtensionDetail struct {
	ExtensionRequest
	TeacherName     string    `db:"teacher_name" json:"teacher_name"`
	CourseCode      string    `db:"course_code" json:"course_code"`
	SectionName     string    `db:"section_name" json:"section_name"`
	LectureStartsAt time.Time `db:"lecture_starts_at" json:"lecture_starts_at"`
}

// CreateExtensionRequest is the teacher payload.
type CreateExtensionRequest struct {
	Type   ExtensionType `json:"type" validate:"required,extension_type"`
	Reason string        `json:"reason" validate:"required,min=5,max=500"`
}

// ExtensionFilter scopes extension listings.
type ExtensionFilter struct {
	Status    *ExtensionStatus
	TeacherID string
	LectureID string
	Page      int
	PageSize  int
}
