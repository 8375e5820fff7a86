package controllers

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"intel-review-api/config"
	"intel-review-api/middleware"
	"intel-review-api/models"
	"intel-review-api/services"
	"intel-review-api/utils"

	"github.com/gin-gonic/gin"
)

func reportStore() *services.ReportStore {
	return services.NewReportStore(config.DB, services.NewAuditRecorder(config.DB))
}

func approvalService() *services.ApprovalService {
	return services.NewApprovalService(config.DB, services.NewAuditRecorder(config.DB))
}

// GetIntelReports lists reports, optionally filtered by status
// (pending|approved|rejected|all).
func GetIntelReports(c *gin.Context) {
	reports, err := reportStore().List(c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// GetIntelReport returns one report with its subjects, organizations and
// sources. Viewing a report is itself recorded on the trail.
func GetIntelReport(c *gin.Context) {
	reportID, err := strconv.Atoi(c.Param("id"))
	if err != nil || reportID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report ID"})
		return
	}

	report, storeErr := reportStore().Get(reportID)
	if storeErr != nil {
		respondError(c, storeErr)
		return
	}

	c.Set(middleware.CtxAuditAction, "VIEW")
	c.Set(middleware.CtxAuditRecord, strconv.Itoa(report.ReportID))

	c.JSON(http.StatusOK, gin.H{
		"report":        report,
		"subjects":      report.Subjects,
		"organizations": report.Orgs,
		"sources":       report.Sources,
	})
}

type createReportRequest struct {
	IntelNumber      string `json:"intel_number" binding:"required"`
	Classification   string `json:"classification" binding:"required"`
	Subject          string `json:"subject"`
	CriminalActivity string `json:"criminal_activity"`
	Summary          string `json:"summary"`
	RetentionDays    int    `json:"retention_days"`
}

// CreateIntelReport submits a new report as pending.
func CreateIntelReport(c *gin.Context) {
	var req createReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	intelNumber := utils.SanitizeInput(req.IntelNumber)
	if !utils.ValidateIntelNumber(intelNumber) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "intel_number must look like IR-2026-0007"})
		return
	}

	actor := middleware.ActorFromContext(c)
	report := models.IntelReport{
		IntelNumber:      intelNumber,
		Classification:   req.Classification,
		AgentID:          actor.UserID,
		Subject:          utils.SanitizeInput(req.Subject),
		CriminalActivity: utils.SanitizeInput(req.CriminalActivity),
		Summary:          utils.SanitizeInput(req.Summary),
		RetentionDays:    req.RetentionDays,
	}

	if err := reportStore().Create(&report, actor); err != nil {
		respondError(c, err)
		return
	}
	c.Set(middleware.CtxAuditRecorded, true)

	c.JSON(http.StatusCreated, gin.H{"report": report})
}

type statusUpdateRequest struct {
	Status   string `json:"status" binding:"required"`
	Comments string `json:"comments"`
	// Override requests the privileged any-state transition; admin only.
	Override bool `json:"override"`
}

// UpdateReportStatus applies one state-machine transition: approved and
// rejected from pending, pending (resubmit) from rejected, or an explicit
// admin override from any state. A 409 means another reviewer got there
// first; the caller must re-read before deciding again.
func UpdateReportStatus(c *gin.Context) {
	reportID, err := strconv.Atoi(c.Param("id"))
	if err != nil || reportID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report ID"})
		return
	}

	var req statusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	actor := middleware.ActorFromContext(c)
	svc := approvalService()
	target := strings.ToLower(strings.TrimSpace(req.Status))

	var (
		report   *models.IntelReport
		trErr    error
		rejected bool
	)
	switch {
	case req.Override:
		report, trErr = svc.AdminOverride(reportID, actor, target, req.Comments)
	case target == models.ReportStatusApproved:
		report, trErr = svc.Approve(reportID, actor, req.Comments)
	case target == models.ReportStatusRejected:
		report, trErr = svc.Reject(reportID, actor, req.Comments)
		rejected = trErr == nil
	case target == models.ReportStatusPending:
		report, trErr = svc.Resubmit(reportID, actor)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid status %q", req.Status)})
		return
	}
	if trErr != nil {
		respondError(c, trErr)
		return
	}
	c.Set(middleware.CtxAuditRecorded, true)

	if rejected {
		notifyRejection(report, req.Comments)
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}

// notifyRejection emails the owning agent after a rejection has committed.
// Delivery failures are logged, never surfaced.
func notifyRejection(report *models.IntelReport, comments string) {
	var author models.User
	if err := config.DB.Where("user_id = ?", report.AgentID).First(&author).Error; err != nil {
		log.Printf("Warning: cannot load author for rejection notice on %s: %v", report.IntelNumber, err)
		return
	}
	subject := fmt.Sprintf("Intel report %s was rejected", report.IntelNumber)
	body := fmt.Sprintf("<p>Your report <b>%s</b> was rejected.</p><p>Reviewer comments: %s</p><p>Correct the report and resubmit it for review.</p>",
		report.IntelNumber, comments)
	if err := config.SendMail([]string{author.Email}, subject, body); err != nil {
		log.Printf("Warning: rejection notice for %s not sent: %v", report.IntelNumber, err)
	}
}

type reviewResponse struct {
	ID           int     `json:"id"`
	ReviewerName string  `json:"reviewer_name"`
	Action       string  `json:"action"`
	Comments     *string `json:"comments"`
	CreatedAt    string  `json:"created_at"`
}

// GetReportReviews returns the report's corrections trail, oldest first.
func GetReportReviews(c *gin.Context) {
	reportID, err := strconv.Atoi(c.Param("id"))
	if err != nil || reportID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report ID"})
		return
	}

	reviews, storeErr := reportStore().Reviews(reportID)
	if storeErr != nil {
		respondError(c, storeErr)
		return
	}

	out := make([]reviewResponse, 0, len(reviews))
	for _, review := range reviews {
		name := ""
		if review.Reviewer != nil {
			name = review.Reviewer.FullName
			if name == "" {
				name = review.Reviewer.Username
			}
		}
		out = append(out, reviewResponse{
			ID:           review.ReviewID,
			ReviewerName: name,
			Action:       review.Action,
			Comments:     review.Comments,
			CreatedAt:    review.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{"reviews": out})
}

// DeleteIntelReport removes a report by explicit admin action.
func DeleteIntelReport(c *gin.Context) {
	reportID, err := strconv.Atoi(c.Param("id"))
	if err != nil || reportID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report ID"})
		return
	}

	if err := reportStore().Delete(reportID, middleware.ActorFromContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Set(middleware.CtxAuditRecorded, true)

	c.JSON(http.StatusOK, gin.H{"message": "Report deleted"})
}
