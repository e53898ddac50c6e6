package models

import "time"

// Student is the profile attached to a STUDENT user.
type Student struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	SectionID  string    `db:"section_id" json:"section_id"`
	RollNumber string    `db:"roll_number" json:"roll_number"`
	Phone      *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// StudentDetail joins the user and section onto the profile.
type StudentDetail struct {
	Student
	FullName    string `db:"full_name" json:"full_name"`
	Email       string `db:"email" json:"email"`
	Active      bool   `db:"active" json:"active"`
	SectionName string `db:"section_name" json:"section_name"`
}

// StudentFilter defines query parameters for listing students.
type StudentFilter struct {
	SectionID string
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
