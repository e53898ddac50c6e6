package models

import (
	"fmt"
	"time"

	"github.com/lib/pq"
)

// TimetableRule is a recurring weekly slot bounded by a date range.
type TimetableRule struct {
	ID              string        `db:"id" json:"id"`
	TeacherCourseID string        `db:"teacher_course_id" json:"teacher_course_id"`
	DaysOfWeek      pq.Int64Array `db:"days_of_week" json:"days_of_week" swaggertype:"array,integer"`
	StartTime       string        `db:"start_time" json:"start_time"`
	DurationMinutes int           `db:"duration_minutes" json:"duration_minutes"`
	StartDate       time.Time     `db:"start_date" json:"start_date"`
	EndDate         time.Time     `db:"end_date" json:"end_date"`
	Room            *string       `db:"room" json:"room,omitempty"`
	Active          bool          `db:"active" json:"active"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// Covers reports whether day falls within the rule's active date range, compared by calendar date.
func (r TimetableRule) Covers(day time.Time) bool {
	d := dateOnly(day)
	return !d.Before(dateOnly(r.StartDate)) && !d.After(dateOnly(r.EndDate))
}

// RunsOn reports whether the rule recurs on the weekday of day.
func (r TimetableRule) RunsOn(day time.Time) bool {
	wd := int64(day.Weekday())
	for _, d := range r.DaysOfWeek {
		if d == wd {
			return true
		}
	}
	return false
}

// StartOn combines day with the rule's HH:MM start in loc.
func (r TimetableRule) StartOn(day time.Time, loc *time.Location) (time.Time, error) {
	clock, err := time.Parse("15:04", r.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start time %q: %w", r.StartTime, err)
	}
	if loc == nil {
		loc = time.Local
	}
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc), nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
