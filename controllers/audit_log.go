package controllers

import (
	"net/http"
	"strconv"
	"time"

	"intel-review-api/config"
	"intel-review-api/services"

	"github.com/gin-gonic/gin"
)

func auditQuery() *services.AuditQueryService {
	return services.NewAuditQueryService(config.DB)
}

func auditFilterFromQuery(c *gin.Context) services.AuditFilter {
	return services.AuditFilter{
		SearchText: c.Query("search"),
		Action:     c.Query("action"),
		Username:   c.Query("username"),
	}
}

// GetAuditLog returns one page of the audit trail, newest first. Optional
// search/action/username filters narrow the query itself, so the page and
// the total both describe the filtered trail.
func GetAuditLog(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, total, err := auditQuery().ListFiltered(auditFilterFromQuery(c), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"auditEntries": entries,
		"total":        total,
		"page":         page,
		"limit":        limit,
	})
}

// ExportAuditLog streams the filtered trail as a CSV attachment named
// audit_log_<date>_<time>.csv. Rows go straight from the database cursor to
// the response, so the export has no row cap.
func ExportAuditLog(c *gin.Context) {
	filename := services.ExportFileName(time.Now())
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)

	exporter := services.NewCSVExporter(c.Writer)
	if err := exporter.WriteHeader(); err != nil {
		_ = c.Error(err)
		return
	}
	if err := auditQuery().StreamFiltered(auditFilterFromQuery(c), exporter.WriteEntry); err != nil {
		// Headers are already written; nothing left but to note the error.
		_ = c.Error(err)
		return
	}
	if err := exporter.Flush(); err != nil {
		_ = c.Error(err)
	}
}
