package models

import "time"

// AuditAction names a recorded staff action.
type AuditAction string

const (
	AuditActionLogin        AuditAction = "LOGIN"
	AuditActionNoticeCreate AuditAction = "NOTICE_CREATE"
	AuditActionNoticeUpdate AuditAction = "NOTICE_UPDATE"
	AuditActionNoticeDelete AuditAction = "NOTICE_DELETE"
)

// Audited resource kinds.
const (
	AuditResourceAuth   = "auth"
	AuditResourceNotice = "notice"
)

// AuditLog is one row of audit_logs. OldValues and NewValues hold JSON snapshots
// of the notice before and after the change; either may be empty.
type AuditLog struct {
	ID         string      `db:"id" json:"id"`
	UserID     *string     `db:"user_id" json:"user_id,omitempty"`
	Action     AuditAction `db:"action" json:"action"`
	Resource   string      `db:"resource" json:"resource"`
	ResourceID *string     `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte      `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte      `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string      `db:"ip_address" json:"ip_address"`
	UserAgent  string      `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}
