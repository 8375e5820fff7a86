package services

import (
	"encoding/json"
	"time"

	"intel-review-api/models"

	"gorm.io/gorm"
)

// Actor identifies who performs an action. A zero UserID marks a system
// action; the audit row then carries NULL user columns.
type Actor struct {
	UserID    int
	Username  string
	RoleID    int
	IPAddress string
	RequestID string
}

// SystemActor is used for purge sweeps and other actions with no user behind them.
func SystemActor() Actor {
	return Actor{}
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.RoleID == models.RoleAdmin
}

// AuditMeta is the request-level portion of an audit details payload.
type AuditMeta struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	Status     int    `json:"status"`
	DurationMs int64  `json:"durationMs"`
}

// AuditDetails is stored verbatim on the entry as a JSON string. The
// recorder never inspects Body.
type AuditDetails struct {
	Meta AuditMeta              `json:"meta"`
	Body map[string]interface{} `json:"body,omitempty"`
}

// AuditRecorder appends immutable audit entries. Every mutating action in
// the system goes through Record, inside the same transaction as the
// mutation itself, so the two commit or roll back together.
type AuditRecorder struct {
	db *gorm.DB
}

func NewAuditRecorder(db *gorm.DB) *AuditRecorder {
	return &AuditRecorder{db: db}
}

// Record appends one audit entry. tx may be the caller's open transaction;
// nil falls back to the recorder's own connection (used for access logging,
// where there is no paired mutation). The timestamp is always assigned here,
// never taken from the caller.
func (r *AuditRecorder) Record(tx *gorm.DB, actor Actor, action, table, recordID string, details AuditDetails) (*models.AuditEntry, error) {
	db := tx
	if db == nil {
		db = r.db
	}

	payload, err := json.Marshal(details)
	if err != nil {
		return nil, &PersistenceError{Op: "marshal audit details", Err: err}
	}

	entry := models.AuditEntry{
		Timestamp: time.Now().UTC(),
		Action:    action,
		Table:     table,
		RecordID:  recordID,
		IPAddress: actor.IPAddress,
		RequestID: actor.RequestID,
		NewValues: string(payload),
	}
	if actor.UserID != 0 {
		uid := actor.UserID
		entry.UserID = &uid
	}
	if actor.Username != "" {
		name := actor.Username
		entry.Username = &name
	}

	if err := db.Create(&entry).Error; err != nil {
		return nil, &PersistenceError{Op: "write audit entry", Err: err}
	}
	return &entry, nil
}
