package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"intel-review-api/models"

	"gorm.io/gorm"
)

// ReportStore is the persistence layer for intel reports and their attached
// subjects, organizations and sources. It holds no review rules; status
// fields are mutated only through ApprovalService and expiry only through
// RetentionService.
type ReportStore struct {
	db    *gorm.DB
	audit *AuditRecorder
}

func NewReportStore(db *gorm.DB, audit *AuditRecorder) *ReportStore {
	return &ReportStore{db: db, audit: audit}
}

// List returns reports filtered by status ("all" or empty returns everything),
// newest submissions first.
func (s *ReportStore) List(status string) ([]models.IntelReport, error) {
	query := s.db.Preload("Agent").Preload("Reviewer").
		Where("delete_at IS NULL")

	status = strings.TrimSpace(strings.ToLower(status))
	if status != "" && status != "all" {
		if !models.ValidStatus(status) {
			return nil, &ValidationError{Message: fmt.Sprintf("invalid status filter %q", status)}
		}
		query = query.Where("status = ?", status)
	}

	var reports []models.IntelReport
	if err := query.Order("submitted_at DESC").Find(&reports).Error; err != nil {
		return nil, &PersistenceError{Op: "list reports", Err: err}
	}
	return reports, nil
}

// Get loads one report with its sub-records.
func (s *ReportStore) Get(reportID int) (*models.IntelReport, error) {
	var report models.IntelReport
	err := s.db.Preload("Agent").Preload("Reviewer").
		Preload("Subjects").Preload("Orgs").Preload("Sources").
		Where("report_id = ? AND delete_at IS NULL", reportID).
		First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "intel report", ID: strconv.Itoa(reportID)}
		}
		return nil, &PersistenceError{Op: "load report", Err: err}
	}
	return &report, nil
}

// Reviews returns the corrections trail for a report, oldest first.
func (s *ReportStore) Reviews(reportID int) ([]models.ReviewRecord, error) {
	if _, err := s.Get(reportID); err != nil {
		return nil, err
	}
	var reviews []models.ReviewRecord
	err := s.db.Preload("Reviewer").
		Where("report_id = ?", reportID).
		Order("created_at ASC, review_id ASC").
		Find(&reviews).Error
	if err != nil {
		return nil, &PersistenceError{Op: "list reviews", Err: err}
	}
	return reviews, nil
}

// Create persists a new report as pending and computes its expiry from the
// submission date and retention window. The insert and its audit entry share
// one transaction.
func (s *ReportStore) Create(report *models.IntelReport, actor Actor) error {
	if strings.TrimSpace(report.IntelNumber) == "" {
		return &ValidationError{Message: "intel_number is required"}
	}

	now := time.Now().UTC()
	report.Status = models.ReportStatusPending
	report.Corrected = false
	report.Version = 1
	if report.AgentID == 0 {
		report.AgentID = actor.UserID
	}
	if report.SubmittedAt.IsZero() {
		report.SubmittedAt = now
	}
	if report.RetentionDays <= 0 {
		report.RetentionDays = models.DefaultRetentionDays
	}
	report.ExpiresAt = ComputeExpiry(report.SubmittedAt, report.RetentionDays)
	report.CreateAt = now
	report.UpdateAt = now

	tx := s.db.Begin()
	if tx.Error != nil {
		return &PersistenceError{Op: "begin transaction", Err: tx.Error}
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := tx.Create(report).Error; err != nil {
		tx.Rollback()
		return &PersistenceError{Op: "create report", Err: err}
	}

	details := AuditDetails{Body: map[string]interface{}{
		"intel_number":   report.IntelNumber,
		"classification": report.Classification,
	}}
	if _, err := s.audit.Record(tx, actor, "CREATE_REPORT", models.IntelReport{}.TableName(),
		strconv.Itoa(report.ReportID), details); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return &PersistenceError{Op: "commit report", Err: err}
	}
	return nil
}

// Delete removes a report explicitly (admin action, distinct from the purge
// sweep). The delete is version-checked so it cannot race a transition.
func (s *ReportStore) Delete(reportID int, actor Actor) error {
	if !actor.IsAdmin() {
		return &AuthorizationError{Message: "admin role required to delete a report"}
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return &PersistenceError{Op: "begin transaction", Err: tx.Error}
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var report models.IntelReport
	if err := tx.Where("report_id = ? AND delete_at IS NULL", reportID).First(&report).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Resource: "intel report", ID: strconv.Itoa(reportID)}
		}
		return &PersistenceError{Op: "load report", Err: err}
	}

	res := tx.Where("report_id = ? AND version = ?", report.ReportID, report.Version).
		Delete(&models.IntelReport{})
	if res.Error != nil {
		tx.Rollback()
		return &PersistenceError{Op: "delete report", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return &ConflictError{Message: fmt.Sprintf(
			"report %s was modified concurrently; re-read its state before retrying", report.IntelNumber)}
	}

	details := AuditDetails{Body: map[string]interface{}{
		"intel_number": report.IntelNumber,
		"status":       report.Status,
	}}
	if _, err := s.audit.Record(tx, actor, "DELETE_REPORT", models.IntelReport{}.TableName(),
		strconv.Itoa(report.ReportID), details); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return &PersistenceError{Op: "commit delete", Err: err}
	}
	return nil
}
