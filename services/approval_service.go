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

// ApprovalService enforces the review state machine on intel reports:
// pending -> approved | rejected, rejected -> pending (resubmit). Every
// transition appends exactly one ReviewRecord and one audit entry in the
// same transaction as the status update. Transitions on the same report are
// serialized by the report's version column; the loser of a race gets a
// ConflictError and must re-read before deciding again.
type ApprovalService struct {
	db    *gorm.DB
	audit *AuditRecorder
}

func NewApprovalService(db *gorm.DB, audit *AuditRecorder) *ApprovalService {
	return &ApprovalService{db: db, audit: audit}
}

// canReview reports whether the actor holds a role allowed to decide
// pending reports. Agents submit and resubmit; they never approve or
// reject, not even their own reports.
func canReview(actor Actor) bool {
	return actor.RoleID == models.RoleAnalyst || actor.RoleID == models.RoleAdmin
}

// Approve moves a pending report to approved. Comments are optional.
// Only analysts and admins may approve.
func (s *ApprovalService) Approve(reportID int, reviewer Actor, comments string) (*models.IntelReport, error) {
	if !canReview(reviewer) {
		return nil, &AuthorizationError{Message: "analyst or admin role required to approve a report"}
	}
	return s.transition(reportID, reviewer, transitionSpec{
		action:       models.ReviewActionApproved,
		target:       models.ReportStatusApproved,
		sourceStatus: models.ReportStatusPending,
		comments:     comments,
		auditAction:  "APPROVE_REPORT",
	})
}

// Reject moves a pending report to rejected. Comments are required so the
// author knows what to correct. Only analysts and admins may reject.
func (s *ApprovalService) Reject(reportID int, reviewer Actor, comments string) (*models.IntelReport, error) {
	if !canReview(reviewer) {
		return nil, &AuthorizationError{Message: "analyst or admin role required to reject a report"}
	}
	if strings.TrimSpace(comments) == "" {
		return nil, &ValidationError{Message: "comments are required when rejecting a report"}
	}
	return s.transition(reportID, reviewer, transitionSpec{
		action:       models.ReviewActionRejected,
		target:       models.ReportStatusRejected,
		sourceStatus: models.ReportStatusPending,
		comments:     comments,
		auditAction:  "REJECT_REPORT",
	})
}

// Resubmit returns a rejected report to pending and marks it corrected.
// Only the owning agent or an admin may resubmit.
func (s *ApprovalService) Resubmit(reportID int, actor Actor) (*models.IntelReport, error) {
	return s.transition(reportID, actor, transitionSpec{
		action:       models.ReviewActionResubmitted,
		target:       models.ReportStatusPending,
		sourceStatus: models.ReportStatusRejected,
		setCorrected: true,
		auditAction:  "RESUBMIT_REPORT",
		guard: func(r *models.IntelReport) error {
			if actor.UserID != r.AgentID && !actor.IsAdmin() {
				return &AuthorizationError{Message: "only the owning agent or an admin can resubmit a report"}
			}
			return nil
		},
	})
}

// AdminOverride moves a report to any status from any status, bypassing the
// normal graph. It exists so administrators can correct mis-reviews; it is
// still recorded like every other transition.
func (s *ApprovalService) AdminOverride(reportID int, admin Actor, newStatus, comments string) (*models.IntelReport, error) {
	if !admin.IsAdmin() {
		return nil, &AuthorizationError{Message: "admin role required for status override"}
	}
	if !models.ValidStatus(newStatus) {
		return nil, &ValidationError{Message: fmt.Sprintf("invalid status %q", newStatus)}
	}
	return s.transition(reportID, admin, transitionSpec{
		action:      reviewActionFor(newStatus),
		target:      newStatus,
		anySource:   true,
		comments:    comments,
		auditAction: "OVERRIDE_STATUS",
		// Overriding back to pending re-opens the report the same way a
		// resubmission does.
		setCorrected: newStatus == models.ReportStatusPending,
	})
}

type transitionSpec struct {
	action       string
	target       string
	sourceStatus string
	anySource    bool
	setCorrected bool
	comments     string
	auditAction  string
	guard        func(r *models.IntelReport) error
}

func reviewActionFor(status string) string {
	switch status {
	case models.ReportStatusApproved:
		return models.ReviewActionApproved
	case models.ReportStatusRejected:
		return models.ReviewActionRejected
	default:
		return models.ReviewActionResubmitted
	}
}

func (s *ApprovalService) transition(reportID int, actor Actor, spec transitionSpec) (*models.IntelReport, error) {
	now := time.Now().UTC()

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, &PersistenceError{Op: "begin transaction", Err: tx.Error}
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
			return nil, &NotFoundError{Resource: "intel report", ID: strconv.Itoa(reportID)}
		}
		return nil, &PersistenceError{Op: "load report", Err: err}
	}

	if spec.guard != nil {
		if err := spec.guard(&report); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if !spec.anySource && report.Status != spec.sourceStatus {
		tx.Rollback()
		return nil, &ValidationError{Message: fmt.Sprintf(
			"%s is only legal from status %q; report %s is %q",
			spec.action, spec.sourceStatus, report.IntelNumber, report.Status)}
	}

	updates := map[string]interface{}{
		"status":      spec.target,
		"reviewed_at": now,
		"reviewed_by": actor.UserID,
		"version":     report.Version + 1,
		"update_at":   now,
	}
	if spec.setCorrected {
		updates["corrected"] = true
	}

	res := tx.Model(&models.IntelReport{}).
		Where("report_id = ? AND version = ?", report.ReportID, report.Version).
		Updates(updates)
	if res.Error != nil {
		tx.Rollback()
		return nil, &PersistenceError{Op: "update report status", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		// Someone else transitioned the report between our read and write.
		tx.Rollback()
		return nil, &ConflictError{Message: fmt.Sprintf(
			"report %s was modified concurrently; re-read its state before retrying", report.IntelNumber)}
	}

	review := models.ReviewRecord{
		ReportID:   report.ReportID,
		ReviewerID: actor.UserID,
		Action:     spec.action,
		CreatedAt:  now,
	}
	if c := strings.TrimSpace(spec.comments); c != "" {
		review.Comments = &c
	}
	if err := tx.Create(&review).Error; err != nil {
		tx.Rollback()
		return nil, &PersistenceError{Op: "append review record", Err: err}
	}

	details := AuditDetails{Body: map[string]interface{}{
		"status":     spec.target,
		"old_status": report.Status,
	}}
	if review.Comments != nil {
		details.Body["comments"] = *review.Comments
	}
	if _, err := s.audit.Record(tx, actor, spec.auditAction, models.IntelReport{}.TableName(),
		strconv.Itoa(report.ReportID), details); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, &PersistenceError{Op: "commit transition", Err: err}
	}

	report.Status = spec.target
	report.ReviewedAt = &now
	reviewer := actor.UserID
	report.ReviewedBy = &reviewer
	report.Version++
	report.UpdateAt = now
	if spec.setCorrected {
		report.Corrected = true
	}
	return &report, nil
}
