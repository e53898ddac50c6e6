package models

import "time"

// AttendanceStatus is the per-student outcome for a lecture.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "Present"
	AttendanceAbsent  AttendanceStatus = "Absent"
	AttendanceLate    AttendanceStatus = "Late"
	AttendanceLeave   AttendanceStatus = "Leave"
	AttendanceExcused AttendanceStatus = "Excused"
)

// AttendanceStatuses lists every valid status in display order.
var AttendanceStatuses = []AttendanceStatus{
	AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceLeave, AttendanceExcused,
}

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	for _, v := range AttendanceStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Attended reports whether the status counts towards the attendance percentage.
func (s AttendanceStatus) Attended() bool {
	return s == AttendancePresent || s == AttendanceLate
}

// AttendanceRecord is one student's attendance for one lecture.
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	LectureID string           `db:"lecture_id" json:"lecture_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Remarks   *string          `db:"remarks" json:"remarks,omitempty"`
	MarkedBy  *string          `db:"marked_by" json:"marked_by,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceSheetRow is a student on a lecture's roster with any recorded status.
type AttendanceSheetRow struct {
	StudentID  string            `db:"student_id" json:"student_id"`
	RollNumber string            `db:"roll_number" json:"roll_number"`
	FullName   string            `db:"full_name" json:"full_name"`
	Status     *AttendanceStatus `db:"status" json:"status,omitempty"`
	Remarks    *string           `db:"remarks" json:"remarks,omitempty"`
}

// AttendanceMark is one entry of a bulk mark request.
type AttendanceMark struct {
	StudentID string           `json:"student_id" validate:"required,uuid"`
	Status    AttendanceStatus `json:"status" validate:"required,attendance_status"`
	Remarks   *string          `json:"remarks,omitempty" validate:"omitempty,max=255"`
}

// MarkAttendanceRequest marks or edits a lecture's attendance.
type MarkAttendanceRequest struct {
	Records []AttendanceMark `json:"records" validate:"required,min=1,dive"`
}

// MarkAttendanceResult reports the outcome of a bulk mark.
type MarkAttendanceResult struct {
	LectureID string   `json:"lecture_id"`
	Saved     int      `json:"saved"`
	Errors    []string `json:"errors,omitempty"`
}
