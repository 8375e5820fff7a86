package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"intel-review-api/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys controllers use to steer the audit middleware.
const (
	// CtxAuditRecorded is set when the handler's service already wrote the
	// entry inside its own transaction; the middleware then stays silent so
	// the action is not recorded twice.
	CtxAuditRecorded = "auditRecorded"
	// CtxAuditAction opts a request into a specific action verb (e.g. a GET
	// recording VIEW, or the login handler recording LOGIN).
	CtxAuditAction = "auditAction"
	CtxAuditTable  = "auditTable"
	CtxAuditRecord = "auditRecordID"
)

// ActorFromContext materializes the acting identity the core services
// consume. Missing auth context yields a system actor.
func ActorFromContext(c *gin.Context) services.Actor {
	return services.Actor{
		UserID:    c.GetInt("userID"),
		Username:  c.GetString("username"),
		RoleID:    c.GetInt("roleID"),
		IPAddress: c.ClientIP(),
		RequestID: c.GetString("requestID"),
	}
}

// AuditTrail records an audit entry for every mutating request whose handler
// did not already record one transactionally, and for reads that opt in via
// CtxAuditAction. The details payload carries request meta (method, path,
// status, duration) and the parsed JSON body for mutations.
func AuditTrail(recorder *services.AuditRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Set("requestID", uuid.NewString())

		var body map[string]interface{}
		if c.Request.Method != http.MethodGet && c.Request.Body != nil &&
			strings.Contains(c.GetHeader("Content-Type"), "application/json") {
			raw, err := io.ReadAll(c.Request.Body)
			if err == nil {
				c.Request.Body = io.NopCloser(bytes.NewReader(raw))
				if json.Unmarshal(raw, &body) == nil {
					delete(body, "password")
				}
			}
		}

		c.Next()

		if c.GetBool(CtxAuditRecorded) {
			return
		}

		action := c.GetString(CtxAuditAction)
		if action == "" {
			switch c.Request.Method {
			case http.MethodGet, http.MethodOptions, http.MethodHead:
				// Reads are only recorded when the handler opts in.
				return
			case http.MethodPost:
				action = "CREATE"
			case http.MethodPut, http.MethodPatch:
				action = "UPDATE"
			case http.MethodDelete:
				action = "DELETE"
			default:
				action = c.Request.Method
			}
			if table := tableFromPath(c.FullPath()); table != "" {
				action = action + "_" + strings.ToUpper(table)
			}
		}

		table := c.GetString(CtxAuditTable)
		if table == "" {
			table = tableFromPath(c.FullPath())
		}
		recordID := c.GetString(CtxAuditRecord)
		if recordID == "" {
			recordID = c.Param("id")
		}

		details := services.AuditDetails{
			Meta: services.AuditMeta{
				Method:     c.Request.Method,
				Path:       c.Request.URL.Path,
				Status:     c.Writer.Status(),
				DurationMs: time.Since(start).Milliseconds(),
			},
			Body: body,
		}

		if _, err := recorder.Record(nil, ActorFromContext(c), action, table, recordID, details); err != nil {
			log.Printf("Warning: failed to record audit entry for %s %s: %v",
				c.Request.Method, c.Request.URL.Path, err)
		}
	}
}

// tableFromPath maps the first meaningful route segment to its table name.
func tableFromPath(fullPath string) string {
	path := strings.TrimPrefix(fullPath, "/api/v1")
	for _, segment := range strings.Split(path, "/") {
		switch segment {
		case "", "api", "v1":
			continue
		case "intel-reports":
			return "intel_reports"
		case "posts":
			return "posts"
		case "audit-log":
			return "audit_logs"
		case "login", "profile":
			return "users"
		case "data":
			return ""
		default:
			return segment
		}
	}
	return ""
}
