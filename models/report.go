package models

import "time"

// Report status values. Status never holds anything outside this set;
// transitions go through services.ApprovalService only.
const (
	ReportStatusPending  = "pending"
	ReportStatusApproved = "approved"
	ReportStatusRejected = "rejected"
)

// Classification labels assigned at submission time.
const (
	ClassificationSensitive      = "Sensitive"
	ClassificationNarcoticsOnly  = "Narcotics Only"
	ClassificationClassified     = "Classified"
	ClassificationLawEnforcement = "Law Enforcement Only"
)

// DefaultRetentionDays is the retention window applied to new reports (5 years).
const DefaultRetentionDays = 1825

// IntelReport represents an intelligence report subject to review and retention.
type IntelReport struct {
	ReportID         int        `gorm:"primaryKey;column:report_id" json:"report_id"`
	IntelNumber      string     `gorm:"column:intel_number;unique" json:"intel_number"`
	Classification   string     `gorm:"column:classification" json:"classification"`
	Status           string     `gorm:"column:status" json:"status"`
	AgentID          int        `gorm:"column:agent_id" json:"agent_id"`
	Subject          string     `gorm:"column:subject" json:"subject"`
	CriminalActivity string     `gorm:"column:criminal_activity" json:"criminal_activity"`
	Summary          string     `gorm:"column:summary" json:"summary"`
	SubmittedAt      time.Time  `gorm:"column:submitted_at" json:"submitted_at"`
	ReviewedAt       *time.Time `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
	ReviewedBy       *int       `gorm:"column:reviewed_by" json:"reviewed_by,omitempty"`
	Corrected        bool       `gorm:"column:corrected" json:"corrected"`
	RetentionDays    int        `gorm:"column:retention_days" json:"retention_days"`
	ExpiresAt        time.Time  `gorm:"column:expires_at" json:"expires_at"`
	// Version guards concurrent status transitions; every update bumps it.
	Version  int        `gorm:"column:version" json:"-"`
	CreateAt time.Time  `gorm:"column:create_at" json:"create_at"`
	UpdateAt time.Time  `gorm:"column:update_at" json:"update_at"`
	DeleteAt *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`

	// Relations
	Agent    *User          `gorm:"foreignKey:AgentID" json:"agent,omitempty"`
	Reviewer *User          `gorm:"foreignKey:ReviewedBy" json:"reviewer,omitempty"`
	Subjects []Subject      `gorm:"foreignKey:ReportID" json:"subjects,omitempty"`
	Orgs     []Organization `gorm:"foreignKey:ReportID" json:"organizations,omitempty"`
	Sources  []Source       `gorm:"foreignKey:ReportID" json:"sources,omitempty"`
}

// Subject is a person of interest attached to a report.
type Subject struct {
	SubjectID   int     `gorm:"primaryKey;column:subject_id" json:"subject_id"`
	ReportID    int     `gorm:"column:report_id" json:"report_id"`
	FirstName   string  `gorm:"column:first_name" json:"first_name"`
	LastName    string  `gorm:"column:last_name" json:"last_name"`
	Alias       *string `gorm:"column:alias" json:"alias,omitempty"`
	DateOfBirth *string `gorm:"column:date_of_birth" json:"date_of_birth,omitempty"`
	Address     *string `gorm:"column:address" json:"address,omitempty"`
}

// Organization is a business or group named in a report.
type Organization struct {
	OrgID    int     `gorm:"primaryKey;column:org_id" json:"org_id"`
	ReportID int     `gorm:"column:report_id" json:"report_id"`
	Name     string  `gorm:"column:name" json:"name"`
	OrgType  *string `gorm:"column:org_type" json:"org_type,omitempty"`
	Address  *string `gorm:"column:address" json:"address,omitempty"`
}

// Source describes where the intelligence came from and how reliable it is.
type Source struct {
	SourceID    int     `gorm:"primaryKey;column:source_id" json:"source_id"`
	ReportID    int     `gorm:"column:report_id" json:"report_id"`
	SourceType  string  `gorm:"column:source_type" json:"source_type"`
	Reliability *string `gorm:"column:reliability" json:"reliability,omitempty"`
	Details     *string `gorm:"column:details" json:"details,omitempty"`
}

// TableName overrides
func (IntelReport) TableName() string {
	return "intel_reports"
}

func (Subject) TableName() string {
	return "report_subjects"
}

func (Organization) TableName() string {
	return "report_organizations"
}

func (Source) TableName() string {
	return "report_sources"
}

// ValidStatus reports whether s is one of the three report statuses.
func ValidStatus(s string) bool {
	switch s {
	case ReportStatusPending, ReportStatusApproved, ReportStatusRejected:
		return true
	}
	return false
}
