package models

import "time"

// AuditEntry is one immutable record of a mutating or access action anywhere
// in the system. Timestamp is always server-assigned. Rows are never updated;
// the only deletion path is the audit retention purge.
type AuditEntry struct {
	LogID     int       `gorm:"primaryKey;column:log_id" json:"id"`
	Timestamp time.Time `gorm:"column:timestamp;index" json:"timestamp"`
	UserID    *int      `gorm:"column:user_id;index" json:"user_id,omitempty"`
	Username  *string   `gorm:"column:username" json:"username,omitempty"`
	Action    string    `gorm:"column:action;index" json:"action"`
	Table     string    `gorm:"column:table_name" json:"table_name"`
	RecordID  string    `gorm:"column:record_id;index" json:"record_id"`
	IPAddress string    `gorm:"column:ip_address" json:"ip_address"`
	RequestID string    `gorm:"column:request_id" json:"request_id"`
	// NewValues holds the opaque details payload as a JSON string:
	// {"meta":{"method","path","status","durationMs"},"body":{...}}.
	// Readers must parse it defensively.
	NewValues string `gorm:"column:new_values;type:text" json:"new_values"`
}

// TableName specifies the table name for AuditEntry.
func (AuditEntry) TableName() string {
	return "audit_logs"
}
