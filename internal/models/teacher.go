package models

import "time"

// Teacher is the profile attached to a TEACHER user.
type Teacher struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	BadgeNumber string    `db:"badge_number" json:"badge_number"`
	Designation *string   `db:"designation" json:"designation,omitempty"`
	Phone       *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherDetail joins the user onto the profile.
type TeacherDetail struct {
	Teacher
	FullName string `db:"full_name" json:"full_name"`
	Email    string `db:"email" json:"email"`
	Active   bool   `db:"active" json:"active"`
}

// TeacherFilter defines query parameters for listing teachers.
type TeacherFilter struct {
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
