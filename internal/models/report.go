package models

import "time"

// ReportDimension selects how attendance facts are grouped.
type ReportDimension string

const (
	DimensionStudent ReportDimension = "student"
	DimensionSection ReportDimension = "section"
	DimensionCourse  ReportDimension = "course"
	DimensionTeacher ReportDimension = "teacher"
	DimensionWeek    ReportDimension = "week"
	DimensionMonth   ReportDimension = "month"
)

// Valid reports whether the dimension is supported.
func (d ReportDimension) Valid() bool {
	switch d {
	case DimensionStudent, DimensionSection, DimensionCourse, DimensionTeacher, DimensionWeek, DimensionMonth:
		return true
	default:
		return false
	}
}

// AttendanceBucket is the qualitative label attached to a percentage.
type AttendanceBucket string

const (
	BucketGood     AttendanceBucket = "Good"
	BucketWarning  AttendanceBucket = "Warning"
	BucketCritical AttendanceBucket = "Critical"
)

// AttendanceFact is one attendance record flattened with its lecture context.
type AttendanceFact struct {
	RecordID    string           `db:"record_id"`
	LectureID   string           `db:"lecture_id"`
	StartsAt    time.Time        `db:"starts_at"`
	Status      AttendanceStatus `db:"status"`
	StudentID   string           `db:"student_id"`
	RollNumber  string           `db:"roll_number"`
	StudentName string           `db:"student_name"`
	SectionID   string           `db:"section_id"`
	SectionName string           `db:"section_name"`
	CourseID    string           `db:"course_id"`
	CourseCode  string           `db:"course_code"`
	CourseTitle string           `db:"course_title"`
	TeacherID   string           `db:"teacher_id"`
	TeacherName string           `db:"teacher_name"`
}

// ReportFilter narrows the facts feeding a report.
type ReportFilter struct {
	SectionID string     `form:"section_id" json:"section_id,omitempty"`
	CourseID  string     `form:"course_id" json:"course_id,omitempty"`
	TeacherID string     `form:"teacher_id" json:"teacher_id,omitempty"`
	StudentID string     `form:"student_id" json:"student_id,omitempty"`
	From      *time.Time `form:"from" time_format:"2006-01-02" json:"from,omitempty"`
	To        *time.Time `form:"to" time_format:"2006-01-02" json:"to,omitempty"`
}

// StatusCounts tallies records per status.
type StatusCounts struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Late    int `json:"late"`
	Leave   int `json:"leave"`
	Excused int `json:"excused"`
}

// ReportGroup is one aggregated row of a summary report.
type ReportGroup struct {
	Key        string           `json:"key"`
	Label      string           `json:"label"`
	Attended   int              `json:"attended"`
	Total      int              `json:"total"`
	Percentage float64          `json:"percentage"`
	Bucket     AttendanceBucket `json:"bucket"`
	Counts     StatusCounts     `json:"counts"`
}

// ReportSummary is the result of grouping facts by one dimension.
type ReportSummary struct {
	Dimension   ReportDimension `json:"dimension"`
	Filter      ReportFilter    `json:"filter"`
	Groups      []ReportGroup   `json:"groups"`
	Overall     ReportGroup     `json:"overall"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Defaulter is a student whose attendance in a course is below the threshold.
type Defaulter struct {
	StudentID   string  `json:"student_id"`
	RollNumber  string  `json:"roll_number"`
	StudentName string  `json:"student_name"`
	SectionName string  `json:"section_name"`
	CourseCode  string  `json:"course_code"`
	CourseTitle string  `json:"course_title"`
	Attended    int     `json:"attended"`
	Total       int     `json:"total"`
	Percentage  float64 `json:"percentage"`
}

// DefaulterReport lists defaulters for a threshold.
type DefaulterReport struct {
	Threshold  float64      `json:"threshold"`
	Filter     ReportFilter `json:"filter"`
	Defaulters []Defaulter  `json:"defaulters"`
}

// StudentReport is a student's attendance per course.
type StudentReport struct {
	StudentID   string        `json:"student_id"`
	RollNumber  string        `json:"roll_number"`
	StudentName string        `json:"student_name"`
	Courses     []ReportGroup `json:"courses"`
	Overall     ReportGroup   `json:"overall"`
}
