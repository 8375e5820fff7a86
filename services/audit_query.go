package services

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"intel-review-api/models"

	"gorm.io/gorm"
)

// AuditQueryService is the read side of the audit trail: filtering,
// pagination and CSV export. It never writes.
type AuditQueryService struct {
	db *gorm.DB
}

func NewAuditQueryService(db *gorm.DB) *AuditQueryService {
	return &AuditQueryService{db: db}
}

// AuditFilter holds the optional filters; all provided fields are ANDed.
type AuditFilter struct {
	SearchText string
	Action     string
	Username   string
}

// List returns one page of the trail, newest first, plus the total row count.
func (s *AuditQueryService) List(page, limit int) ([]models.AuditEntry, int64, error) {
	return s.ListFiltered(AuditFilter{}, page, limit)
}

// ListFiltered applies the filter in the query itself and paginates the
// matching rows, newest first. The returned total counts matching rows, not
// the whole trail, so the pager reflects what the filter actually found.
func (s *AuditQueryService) ListFiltered(filter AuditFilter, page, limit int) ([]models.AuditEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	var total int64
	if err := s.filtered(filter).Count(&total).Error; err != nil {
		return nil, 0, &PersistenceError{Op: "count audit entries", Err: err}
	}

	var entries []models.AuditEntry
	err := s.filtered(filter).Order("timestamp DESC, log_id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, 0, &PersistenceError{Op: "list audit entries", Err: err}
	}
	return entries, total, nil
}

// StreamFiltered walks every matching row newest first, calling fn once per
// entry, without loading the whole trail into memory. An error from fn stops
// the walk and is returned as-is.
func (s *AuditQueryService) StreamFiltered(filter AuditFilter, fn func(models.AuditEntry) error) error {
	rows, err := s.filtered(filter).Order("timestamp DESC, log_id DESC").Rows()
	if err != nil {
		return &PersistenceError{Op: "stream audit entries", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var entry models.AuditEntry
		if err := s.db.ScanRows(rows, &entry); err != nil {
			return &PersistenceError{Op: "scan audit entry", Err: err}
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return &PersistenceError{Op: "stream audit entries", Err: err}
	}
	return nil
}

// filtered builds the WHERE clause matching FilterEntries' semantics:
// case-insensitive substring, all provided fields ANDed.
func (s *AuditQueryService) filtered(filter AuditFilter) *gorm.DB {
	query := s.db.Model(&models.AuditEntry{})
	if action := strings.ToLower(strings.TrimSpace(filter.Action)); action != "" {
		query = query.Where("LOWER(action) LIKE ?", "%"+action+"%")
	}
	if username := strings.ToLower(strings.TrimSpace(filter.Username)); username != "" {
		query = query.Where("LOWER(COALESCE(username, '')) LIKE ?", "%"+username+"%")
	}
	if search := strings.ToLower(strings.TrimSpace(filter.SearchText)); search != "" {
		like := "%" + search + "%"
		query = query.Where(
			"LOWER(COALESCE(username, '')) LIKE ? OR LOWER(action) LIKE ? OR LOWER(table_name) LIKE ? OR LOWER(ip_address) LIKE ? OR LOWER(new_values) LIKE ?",
			like, like, like, like, like)
	}
	return query
}

// FilterEntries returns the subsequence of entries matching the filter,
// preserving input order. Matching is case-insensitive substring over
// username, action, table name, IP address and the raw details payload.
func FilterEntries(entries []models.AuditEntry, filter AuditFilter) []models.AuditEntry {
	search := strings.ToLower(strings.TrimSpace(filter.SearchText))
	action := strings.ToLower(strings.TrimSpace(filter.Action))
	username := strings.ToLower(strings.TrimSpace(filter.Username))

	var out []models.AuditEntry
	for _, entry := range entries {
		name := ""
		if entry.Username != nil {
			name = strings.ToLower(*entry.Username)
		}
		if action != "" && !strings.Contains(strings.ToLower(entry.Action), action) {
			continue
		}
		if username != "" && !strings.Contains(name, username) {
			continue
		}
		if search != "" {
			haystacks := []string{
				name,
				strings.ToLower(entry.Action),
				strings.ToLower(entry.Table),
				strings.ToLower(entry.IPAddress),
				strings.ToLower(entry.NewValues),
			}
			matched := false
			for _, h := range haystacks {
				if strings.Contains(h, search) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		out = append(out, entry)
	}
	return out
}

// PaginateEntries slices one 1-indexed page out of entries without reordering.
func PaginateEntries(entries []models.AuditEntry, page, pageSize int) []models.AuditEntry {
	if page < 1 || pageSize < 1 {
		return nil
	}
	start := (page - 1) * pageSize
	if start >= len(entries) {
		return nil
	}
	end := start + pageSize
	if end > len(entries) {
		end = len(entries)
	}
	return entries[start:end]
}

// csvHeader is the fixed export column order.
var csvHeader = []string{"Timestamp", "User", "Action", "Table", "Record ID", "IP Address", "Details"}

// CSVExporter writes audit entries as RFC 4180 CSV, one row at a time, so
// an export can stream straight from the database to the response.
type CSVExporter struct {
	cw *csv.Writer
}

func NewCSVExporter(w io.Writer) *CSVExporter {
	return &CSVExporter{cw: csv.NewWriter(w)}
}

func (e *CSVExporter) WriteHeader() error {
	return e.cw.Write(csvHeader)
}

// WriteEntry appends one data row. The Details column is a summary
// synthesized from the entry's meta and body payload.
func (e *CSVExporter) WriteEntry(entry models.AuditEntry) error {
	user := ""
	if entry.Username != nil {
		user = *entry.Username
	}
	return e.cw.Write([]string{
		entry.Timestamp.UTC().Format(time.RFC3339),
		user,
		entry.Action,
		entry.Table,
		entry.RecordID,
		entry.IPAddress,
		summarizeDetails(entry.NewValues),
	})
}

func (e *CSVExporter) Flush() error {
	e.cw.Flush()
	return e.cw.Error()
}

// ExportCSV writes entries in input order: one header row plus one data row
// per entry.
func ExportCSV(w io.Writer, entries []models.AuditEntry) error {
	exporter := NewCSVExporter(w)
	if err := exporter.WriteHeader(); err != nil {
		return err
	}
	for _, entry := range entries {
		if err := exporter.WriteEntry(entry); err != nil {
			return err
		}
	}
	return exporter.Flush()
}

// ExportFileName builds the conventional attachment name,
// audit_log_<ISO date>_<time>.csv.
func ExportFileName(now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("audit_log_%s_%s.csv", now.Format("2006-01-02"), now.Format("15-04-05"))
}

// summarizeDetails parses the stored payload defensively; anything that is
// not the expected {meta,body} shape is passed through raw.
func summarizeDetails(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	var payload struct {
		Meta map[string]interface{} `json:"meta"`
		Body map[string]interface{} `json:"body"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return raw
	}
	if len(payload.Meta) == 0 && len(payload.Body) == 0 {
		return raw
	}

	var parts []string
	if len(payload.Meta) > 0 {
		method, _ := payload.Meta["method"].(string)
		path, _ := payload.Meta["path"].(string)
		segment := strings.TrimSpace(method + " " + path)
		if status, ok := payload.Meta["status"].(float64); ok {
			segment = strings.TrimSpace(segment + " " + strconv.Itoa(int(status)))
		}
		if dur, ok := payload.Meta["durationMs"].(float64); ok {
			segment = strings.TrimSpace(segment + fmt.Sprintf(" %dms", int64(dur)))
		}
		if segment != "" {
			parts = append(parts, segment)
		}
	}
	if len(payload.Body) > 0 {
		keys := make([]string, 0, len(payload.Body))
		for k := range payload.Body {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts = append(parts, "body: "+strings.Join(keys, ", "))
	}
	return strings.Join(parts, " | ")
}
