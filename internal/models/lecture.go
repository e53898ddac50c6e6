package models

import "time"

// Lecture is one concrete class occurrence.
type Lecture struct {
	ID              string    `db:"id" json:"id"`
	TeacherCourseID string    `db:"teacher_course_id" json:"teacher_course_id"`
	TimetableRuleID *string   `db:"timetable_rule_id" json:"timetable_rule_id,omitempty"`
	StartsAt        time.Time `db:"starts_at" json:"starts_at"`
	EndsAt          time.Time `db:"ends_at" json:"ends_at"`
	Room            *string   `db:"room" json:"room,omitempty"`
	Topic           *string   `db:"topic" json:"topic,omitempty"`
	Cancelled       bool      `db:"cancelled" json:"cancelled"`
	Override        bool      `db:"override" json:"override"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// LectureDetail joins course, section and teacher names plus the marked count.
type LectureDetail struct {
	Lecture
	TeacherID     string `db:"teacher_id" json:"teacher_id"`
	TeacherName   string `db:"teacher_name" json:"teacher_name"`
	CourseCode    string `db:"course_code" json:"course_code"`
	CourseTitle   string `db:"course_title" json:"course_title"`
	SectionID     string `db:"section_id" json:"section_id"`
	SectionName   string `db:"section_name" json:"section_name"`
	MarkedCount   int    `db:"marked_count" json:"marked_count"`
	HasAttendance bool   `db:"has_attendance" json:"has_attendance"`
}

// LectureFilter scopes lecture listings.
type LectureFilter struct {
	TeacherCourseID string
	TeacherID       string
	SectionID       string
	From            *time.Time
	To              *time.Time
	IncludeCanceled bool
	Page            int
	PageSize        int
}

// ScheduleImportResult summarises an uploaded lecture schedule.
type ScheduleImportResult struct {
	TeacherCourseID string           `json:"teacher_course_id"`
	Created         int              `json:"created"`
	Duplicates      int              `json:"duplicates"`
	Invalid         []ImportRowError `json:"invalid"`
}
