package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"intel-review-api/models"

	"gorm.io/gorm"
)

// RetentionBucket classifies how close a record is to its expiry date.
type RetentionBucket string

const (
	BucketNormal   RetentionBucket = "normal"
	BucketWarning  RetentionBucket = "warning"
	BucketCritical RetentionBucket = "critical"
	BucketExpired  RetentionBucket = "expired"
)

// RetentionPolicy is a value describing the retention windows in force.
type RetentionPolicy struct {
	DefaultRetentionDays int
	// AuditRetentionDays governs how long audit entries themselves are kept.
	AuditRetentionDays int
}

// DefaultRetentionPolicy reads the audit window from AUDIT_RETENTION_DAYS
// (default one year); report retention defaults to five years.
func DefaultRetentionPolicy() RetentionPolicy {
	auditDays, _ := strconv.Atoi(os.Getenv("AUDIT_RETENTION_DAYS"))
	if auditDays <= 0 {
		auditDays = 365
	}
	return RetentionPolicy{
		DefaultRetentionDays: models.DefaultRetentionDays,
		AuditRetentionDays:   auditDays,
	}
}

// ComputeExpiry derives the expiry date from an anchor (submission or
// publish date, or the moment of an extension) and a retention window.
func ComputeExpiry(anchor time.Time, retentionDays int) time.Time {
	return anchor.AddDate(0, 0, retentionDays)
}

// DaysUntilExpiration counts whole calendar days (UTC) from now to the
// expiry date. Negative means the record is past its date.
func DaysUntilExpiration(expiresAt, now time.Time) int {
	expiry := dateOf(expiresAt)
	today := dateOf(now)
	return int(expiry.Sub(today).Hours() / 24)
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Classify buckets a record by urgency: expired (<0 days), critical (0-7),
// warning (8-30), normal (>30).
func Classify(expiresAt, now time.Time) RetentionBucket {
	days := DaysUntilExpiration(expiresAt, now)
	switch {
	case days < 0:
		return BucketExpired
	case days <= 7:
		return BucketCritical
	case days <= 30:
		return BucketWarning
	default:
		return BucketNormal
	}
}

// PurgeResult reports how far a sweep got. FailedIDs lists records that
// could not be purged (as table/id) without aborting the rest of the sweep.
type PurgeResult struct {
	PurgedCount int      `json:"purgedCount"`
	FailedIDs   []string `json:"failedIds"`
}

// BulkExtendResult reports a bulk extension outcome per record.
type BulkExtendResult struct {
	ExtendedIDs []int `json:"extended_ids"`
	FailedIDs   []int `json:"failed_ids"`
}

// RetentionService computes expiry, applies extensions and runs purge
// sweeps over posts, intel reports and the audit trail itself.
type RetentionService struct {
	db     *gorm.DB
	audit  *AuditRecorder
	policy RetentionPolicy

	// purgeMu is the single-flight guard: a sweep never runs concurrently
	// with itself.
	purgeMu sync.Mutex
}

func NewRetentionService(db *gorm.DB, audit *AuditRecorder, policy RetentionPolicy) *RetentionService {
	return &RetentionService{db: db, audit: audit, policy: policy}
}

// Policy returns the retention windows in force.
func (s *RetentionService) Policy() RetentionPolicy {
	return s.policy
}

// ExtendOne resets a post's retention window to days counted from now. The
// update and its audit entry share one transaction.
func (s *RetentionService) ExtendOne(postID int, days int, actor Actor) (*models.Post, error) {
	if days <= 0 {
		return nil, &ValidationError{Message: "retention days must be a positive number"}
	}

	now := time.Now().UTC()
	expires := ComputeExpiry(now, days)

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

	var post models.Post
	if err := tx.Where("post_id = ? AND delete_at IS NULL", postID).First(&post).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "post", ID: strconv.Itoa(postID)}
		}
		return nil, &PersistenceError{Op: "load post", Err: err}
	}

	if err := tx.Model(&models.Post{}).
		Where("post_id = ?", post.PostID).
		Updates(map[string]interface{}{
			"retention_days": days,
			"expires_at":     expires,
			"update_at":      now,
		}).Error; err != nil {
		tx.Rollback()
		return nil, &PersistenceError{Op: "extend retention", Err: err}
	}

	details := AuditDetails{Body: map[string]interface{}{
		"retention_days": days,
		"expires_at":     expires.Format(time.RFC3339),
		"old_expires_at": post.ExpiresAt.Format(time.RFC3339),
	}}
	if _, err := s.audit.Record(tx, actor, "EXTEND_RETENTION", models.Post{}.TableName(),
		strconv.Itoa(post.PostID), details); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, &PersistenceError{Op: "commit extension", Err: err}
	}

	post.RetentionDays = days
	post.ExpiresAt = expires
	post.UpdateAt = now
	return &post, nil
}

// ExtendBulk extends each id in its own transaction; one failing id is
// reported, not silently skipped, and does not abort the rest. The batch is
// cancellable between records.
func (s *RetentionService) ExtendBulk(ctx context.Context, ids []int, days int, actor Actor) (BulkExtendResult, error) {
	if days <= 0 {
		return BulkExtendResult{}, &ValidationError{Message: "retention days must be a positive number"}
	}
	if len(ids) == 0 {
		return BulkExtendResult{}, &ValidationError{Message: "at least one post id is required"}
	}

	var result BulkExtendResult
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if _, err := s.ExtendOne(id, days, actor); err != nil {
			result.FailedIDs = append(result.FailedIDs, id)
			continue
		}
		result.ExtendedIDs = append(result.ExtendedIDs, id)
	}
	return result, nil
}

// Purge deletes every post and report classified as expired at now, plus
// audit entries older than the audit retention window. Each post/report
// delete runs in its own transaction and emits one audit entry per deleted
// record; the audit-trail sweep emits a single summary entry (one row per
// purged audit row would feed the trail it is trimming). Report deletes are
// version-checked, so a transition that wins the race keeps its record for
// this pass. A second sweep over an unchanged store purges nothing.
func (s *RetentionService) Purge(ctx context.Context, now time.Time, actor Actor) (PurgeResult, error) {
	if !s.purgeMu.TryLock() {
		return PurgeResult{}, &ConflictError{Message: "a purge sweep is already running"}
	}
	defer s.purgeMu.Unlock()

	result := PurgeResult{FailedIDs: []string{}}

	var posts []models.Post
	if err := s.db.Where("delete_at IS NULL AND expires_at < ?", dateOf(now)).Find(&posts).Error; err != nil {
		return result, &PersistenceError{Op: "list expired posts", Err: err}
	}
	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if Classify(post.ExpiresAt, now) != BucketExpired {
			continue
		}
		purged, err := s.purgePost(post, actor)
		if err != nil {
			result.FailedIDs = append(result.FailedIDs, fmt.Sprintf("posts/%d", post.PostID))
			continue
		}
		if purged {
			result.PurgedCount++
		}
	}

	var reports []models.IntelReport
	if err := s.db.Where("delete_at IS NULL AND expires_at < ?", dateOf(now)).Find(&reports).Error; err != nil {
		return result, &PersistenceError{Op: "list expired reports", Err: err}
	}
	for _, report := range reports {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if Classify(report.ExpiresAt, now) != BucketExpired {
			continue
		}
		purged, err := s.purgeReport(report, actor)
		if err != nil {
			result.FailedIDs = append(result.FailedIDs, fmt.Sprintf("intel_reports/%d", report.ReportID))
			continue
		}
		if purged {
			result.PurgedCount++
		}
	}

	auditPurged, err := s.purgeAuditTrail(now, actor)
	if err != nil {
		return result, err
	}
	result.PurgedCount += auditPurged

	return result, nil
}

// purgePost returns false without error when another sweep already removed
// the row; the delete counts only when it actually touched a row.
func (s *RetentionService) purgePost(post models.Post, actor Actor) (bool, error) {
	tx := s.db.Begin()
	if tx.Error != nil {
		return false, &PersistenceError{Op: "begin transaction", Err: tx.Error}
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	res := tx.Where("post_id = ?", post.PostID).Delete(&models.Post{})
	if res.Error != nil {
		tx.Rollback()
		return false, &PersistenceError{Op: "purge post", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return false, nil
	}

	details := AuditDetails{Body: map[string]interface{}{
		"title":      post.Title,
		"expires_at": post.ExpiresAt.Format(time.RFC3339),
	}}
	if _, err := s.audit.Record(tx, actor, "PURGE_RECORD", models.Post{}.TableName(),
		strconv.Itoa(post.PostID), details); err != nil {
		tx.Rollback()
		return false, err
	}

	if err := tx.Commit().Error; err != nil {
		return false, &PersistenceError{Op: "commit purge", Err: err}
	}
	return true, nil
}

// purgeReport returns false without error when the record's version moved
// between the sweep's read and the delete; the record is no longer eligible
// on this pass.
func (s *RetentionService) purgeReport(report models.IntelReport, actor Actor) (bool, error) {
	tx := s.db.Begin()
	if tx.Error != nil {
		return false, &PersistenceError{Op: "begin transaction", Err: tx.Error}
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	res := tx.Where("report_id = ? AND version = ?", report.ReportID, report.Version).
		Delete(&models.IntelReport{})
	if res.Error != nil {
		tx.Rollback()
		return false, &PersistenceError{Op: "purge report", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return false, nil
	}

	details := AuditDetails{Body: map[string]interface{}{
		"intel_number": report.IntelNumber,
		"expires_at":   report.ExpiresAt.Format(time.RFC3339),
	}}
	if _, err := s.audit.Record(tx, actor, "PURGE_RECORD", models.IntelReport{}.TableName(),
		strconv.Itoa(report.ReportID), details); err != nil {
		tx.Rollback()
		return false, err
	}

	if err := tx.Commit().Error; err != nil {
		return false, &PersistenceError{Op: "commit purge", Err: err}
	}
	return true, nil
}

func (s *RetentionService) purgeAuditTrail(now time.Time, actor Actor) (int, error) {
	cutoff := now.UTC().AddDate(0, 0, -s.policy.AuditRetentionDays)

	tx := s.db.Begin()
	if tx.Error != nil {
		return 0, &PersistenceError{Op: "begin transaction", Err: tx.Error}
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	res := tx.Where("timestamp < ?", cutoff).Delete(&models.AuditEntry{})
	if res.Error != nil {
		tx.Rollback()
		return 0, &PersistenceError{Op: "purge audit trail", Err: res.Error}
	}
	purged := int(res.RowsAffected)
	if purged == 0 {
		tx.Rollback()
		return 0, nil
	}

	details := AuditDetails{Body: map[string]interface{}{
		"purged_count": purged,
		"cutoff":       cutoff.Format(time.RFC3339),
	}}
	if _, err := s.audit.Record(tx, actor, "PURGE_AUDIT_TRAIL", models.AuditEntry{}.TableName(),
		"summary", details); err != nil {
		tx.Rollback()
		return 0, err
	}

	if err := tx.Commit().Error; err != nil {
		return 0, &PersistenceError{Op: "commit audit purge", Err: err}
	}
	return purged, nil
}

// Buckets groups all live posts by urgency for the retention dashboard.
func (s *RetentionService) Buckets(now time.Time) (map[RetentionBucket][]models.Post, error) {
	var posts []models.Post
	if err := s.db.Where("delete_at IS NULL").Order("expires_at ASC").Find(&posts).Error; err != nil {
		return nil, &PersistenceError{Op: "list posts", Err: err}
	}

	buckets := map[RetentionBucket][]models.Post{
		BucketNormal:   {},
		BucketWarning:  {},
		BucketCritical: {},
		BucketExpired:  {},
	}
	for _, post := range posts {
		bucket := Classify(post.ExpiresAt, now)
		buckets[bucket] = append(buckets[bucket], post)
	}
	return buckets, nil
}
