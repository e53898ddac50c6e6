package models

import "time"

// Audit actions recorded by services and the audit middleware.
const (
	AuditActionLogin             = "LOGIN"
	AuditActionLogout            = "LOGOUT"
	AuditActionPasswordChange    = "PASSWORD_CHANGE"
	AuditActionPasswordRehash    = "PASSWORD_REHASH"
	AuditActionUserCreate        = "USER_CREATE"
	AuditActionUserUpdate        = "USER_UPDATE"
	AuditActionUserDeactivate    = "USER_DEACTIVATE"
	AuditActionUserDelete        = "USER_DELETE"
	AuditActionCredentialsResend = "CREDENTIALS_RESEND"
	AuditActionBulkImport        = "BULK_IMPORT"
	AuditActionAttendanceMark    = "ATTENDANCE_MARK"
	AuditActionExtensionRequest  = "EXTENSION_REQUEST"
	AuditActionExtensionDecision = "EXTENSION_DECISION"
	AuditActionCatalogCreate     = "CATALOG_CREATE"
	AuditActionCatalogUpdate     = "CATALOG_UPDATE"
	AuditActionCatalogDelete     = "CATALOG_DELETE"
	AuditActionCourseAssign      = "COURSE_ASSIGN"
	AuditActionCourseUnassign    = "COURSE_UNASSIGN"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
