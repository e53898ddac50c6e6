package models

// ImportKind selects the profile created for each imported row.
type ImportKind string

const (
	ImportStudents ImportKind = "students"
	ImportTeachers ImportKind = "teachers"
)

// ImportOptions controls validation of an upload.
type ImportOptions struct {
	Kind ImportKind
	// SectionID is required for student imports unless Legacy is set.
	SectionID string
	// Legacy resolves the section per row and skips roll number format checks.
	Legacy bool
}

// ImportRow is a validated row ready for creation.
type ImportRow struct {
	Line        int     `json:"line"`
	FullName    string  `json:"full_name"`
	Email       string  `json:"email"`
	RollNumber  string  `json:"roll_number,omitempty"`
	SectionID   string  `json:"section_id,omitempty"`
	BadgeNumber string  `json:"badge_number,omitempty"`
	Designation *string `json:"designation,omitempty"`
	Phone       *string `json:"phone,omitempty"`
}

// Identifier is the roll number for students and the badge number for teachers.
func (r ImportRow) Identifier() string {
	if r.RollNumber != "" {
		return r.RollNumber
	}
	return r.BadgeNumber
}

// ImportRowError lists every problem found on one line.
type ImportRowError struct {
	Line   int      `json:"line"`
	Email  string   `json:"email,omitempty"`
	Errors []string `json:"errors"`
}

// ImportValidation partitions an upload into valid and rejected rows.
type ImportValidation struct {
	Kind    ImportKind       `json:"kind"`
	Valid   []ImportRow      `json:"valid"`
	Invalid []ImportRowError `json:"invalid"`
}

// Credential is a freshly issued login. Password never leaves the server in JSON.
type Credential struct {
	UserID     string   `json:"user_id"`
	FullName   string   `json:"full_name"`
	Email      string   `json:"email"`
	Role       UserRole `json:"role"`
	Identifier string   `json:"identifier"`
	Section    string   `json:"section,omitempty"`
	Password   string   `json:"-"`
}

// CredentialSlipLink points at a stored PDF of credential slips.
type CredentialSlipLink struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at"`
}

// ImportResult summarises a bulk creation run.
type ImportResult struct {
	Kind         ImportKind          `json:"kind"`
	Created      []Credential        `json:"created"`
	Skipped      []ImportRowError    `json:"skipped"`
	EmailsQueued int                 `json:"emails_queued"`
	Slips        *CredentialSlipLink `json:"slips,omitempty"`
}
