package models

import (
	"fmt"
	"time"
)

// Badge is a degree programme designation such as BSCS.
type Badge struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Section is a cohort of students within a badge, semester and session.
type Section struct {
	ID        string    `db:"id" json:"id"`
	BadgeID   string    `db:"badge_id" json:"badge_id"`
	BadgeCode string    `db:"badge_code" json:"badge_code,omitempty"`
	Name      string    `db:"name" json:"name"`
	Semester  int       `db:"semester" json:"semester"`
	Session   string    `db:"session" json:"session"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Label renders the section the way it appears on reports, e.g. BSCS-A (S3, 2023-2027).
func (s Section) Label() string {
	label := s.Name
	if s.BadgeCode != "" {
		label = s.BadgeCode + "-" + s.Name
	}
	if s.Session != "" {
		label += fmt.Sprintf(" (S%d, %s)", s.Semester, s.Session)
	}
	return label
}

// SectionFilter scopes section listings.
type SectionFilter struct {
	BadgeID  string
	Semester int
	Session  string
	Page     int
	PageSize int
}

// Course is a subject taught to sections.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Title       string    `db:"title" json:"title"`
	CreditHours int       `db:"credit_hours" json:"credit_hours"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherCourse assigns a teacher to teach a course to a section.
type TeacherCourse struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	SectionID string    `db:"section_id" json:"section_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TeacherCourseDetail joins display names onto an assignment.
type TeacherCourseDetail struct {
	TeacherCourse
	TeacherName  string `db:"teacher_name" json:"teacher_name"`
	CourseCode   string `db:"course_code" json:"course_code"`
	CourseTitle  string `db:"course_title" json:"course_title"`
	SectionName  string `db:"section_name" json:"section_name"`
	StudentCount int    `db:"student_count" json:"student_count"`
}
