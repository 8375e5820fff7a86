package models

import "time"

// Review actions. One ReviewRecord is appended per status transition; the
// ordered rows for a report form its corrections trail.
const (
	ReviewActionApproved    = "approved"
	ReviewActionRejected    = "rejected"
	ReviewActionResubmitted = "resubmitted"
)

// ReviewRecord is one immutable decision event in a report's corrections
// trail. Rows are never updated or deleted.
type ReviewRecord struct {
	ReviewID   int       `gorm:"primaryKey;column:review_id" json:"id"`
	ReportID   int       `gorm:"column:report_id" json:"report_id"`
	ReviewerID int       `gorm:"column:reviewer_id" json:"reviewer_id"`
	Action     string    `gorm:"column:action" json:"action"`
	Comments   *string   `gorm:"column:comments" json:"comments"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`

	Reviewer *User `gorm:"foreignKey:ReviewerID" json:"reviewer,omitempty"`
}

// TableName specifies the table name for ReviewRecord.
func (ReviewRecord) TableName() string {
	return "review_records"
}
