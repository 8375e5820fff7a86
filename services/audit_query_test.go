package services

import (
	"bytes"
	"database/sql/driver"
	"regexp"
	"strings"
	"testing"
	"time"

	"intel-review-api/models"
)

func strPtr(s string) *string { return &s }

func sampleEntries() []models.AuditEntry {
	base := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)
	return []models.AuditEntry{
		{
			LogID: 3, Timestamp: base.Add(2 * time.Hour), Username: strPtr("chief"),
			Action: "OVERRIDE_STATUS", Table: "intel_reports", RecordID: "7",
			IPAddress: "10.0.0.2",
			NewValues: `{"meta":{"method":"POST","path":"/api/v1/intel-reports/7/status","status":200,"durationMs":18},"body":{"status":"rejected"}}`,
		},
		{
			LogID: 2, Timestamp: base.Add(time.Hour), Username: strPtr("analyst.lee"),
			Action: "APPROVE_REPORT", Table: "intel_reports", RecordID: "5",
			IPAddress: "10.0.0.7",
			NewValues: `{"meta":{"method":"POST","path":"/api/v1/intel-reports/5/status","status":200,"durationMs":12},"body":{"status":"approved"}}`,
		},
		{
			LogID: 1, Timestamp: base, Username: strPtr("agent.cho"),
			Action: "CREATE_REPORT", Table: "intel_reports", RecordID: "5",
			IPAddress: "10.0.0.9",
			NewValues: `{"meta":{"method":"POST","path":"/api/v1/intel-reports","status":201,"durationMs":35},"body":{"intel_number":"IR-2026-0005"}}`,
		},
	}
}

func TestFilterEntriesIsCaseInsensitiveAndAnded(t *testing.T) {
	entries := sampleEntries()

	got := FilterEntries(entries, AuditFilter{Action: "approve"})
	if len(got) != 1 || got[0].LogID != 2 {
		t.Fatalf("action filter: expected entry 2, got %+v", got)
	}

	got = FilterEntries(entries, AuditFilter{SearchText: "INTEL-REPORTS", Username: "LEE"})
	if len(got) != 1 || got[0].LogID != 2 {
		t.Fatalf("ANDed filters: expected entry 2, got %+v", got)
	}

	// Search text also matches inside the raw details payload.
	got = FilterEntries(entries, AuditFilter{SearchText: "ir-2026-0005"})
	if len(got) != 1 || got[0].LogID != 1 {
		t.Fatalf("details search: expected entry 1, got %+v", got)
	}

	got = FilterEntries(entries, AuditFilter{Username: "lee", Action: "override"})
	if len(got) != 0 {
		t.Fatalf("conflicting filters should match nothing, got %+v", got)
	}
}

func TestFilterEntriesPreservesOrder(t *testing.T) {
	entries := sampleEntries()
	got := FilterEntries(entries, AuditFilter{SearchText: "intel_reports"})
	if len(got) != 3 {
		t.Fatalf("expected all 3 entries, got %d", len(got))
	}
	for i, want := range []int{3, 2, 1} {
		if got[i].LogID != want {
			t.Fatalf("order changed at %d: got %d want %d", i, got[i].LogID, want)
		}
	}
}

func TestPaginateEntries(t *testing.T) {
	entries := sampleEntries()

	page := PaginateEntries(entries, 1, 2)
	if len(page) != 2 || page[0].LogID != 3 || page[1].LogID != 2 {
		t.Fatalf("page 1 wrong: %+v", page)
	}

	page = PaginateEntries(entries, 2, 2)
	if len(page) != 1 || page[0].LogID != 1 {
		t.Fatalf("page 2 wrong: %+v", page)
	}

	if page = PaginateEntries(entries, 3, 2); page != nil {
		t.Fatalf("page past the end should be empty, got %+v", page)
	}
	if page = PaginateEntries(entries, 0, 2); page != nil {
		t.Fatalf("pages are 1-indexed, got %+v", page)
	}
}

func TestExportCSVRowCountAndHeader(t *testing.T) {
	entries := sampleEntries()

	var buf bytes.Buffer
	if err := ExportCSV(&buf, entries); err != nil {
		t.Fatalf("ExportCSV returned error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != len(entries)+1 {
		t.Fatalf("expected %d lines, got %d", len(entries)+1, len(lines))
	}
	if lines[0] != "Timestamp,User,Action,Table,Record ID,IP Address,Details" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
}

func TestExportCSVDoublesQuotes(t *testing.T) {
	entries := []models.AuditEntry{{
		LogID: 1, Timestamp: time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC),
		Username: strPtr("chief"), Action: "UPDATE", Table: "posts", RecordID: "3",
		IPAddress: "10.0.0.2",
		NewValues: `note "classified" material`,
	}}

	var buf bytes.Buffer
	if err := ExportCSV(&buf, entries); err != nil {
		t.Fatalf("ExportCSV returned error: %v", err)
	}
	if !strings.Contains(buf.String(), `"note ""classified"" material"`) {
		t.Fatalf("quotes not doubled per RFC 4180: %q", buf.String())
	}
}

func TestSummarizeDetails(t *testing.T) {
	raw := `{"meta":{"method":"POST","path":"/api/v1/posts/3/retention","status":200,"durationMs":9},"body":{"days":730,"reason":"case reopened"}}`
	got := summarizeDetails(raw)
	want := "POST /api/v1/posts/3/retention 200 9ms | body: days, reason"
	if got != want {
		t.Fatalf("summary mismatch:\n got %q\nwant %q", got, want)
	}

	// Payloads that are not the expected shape pass through raw.
	if got := summarizeDetails("plain text"); got != "plain text" {
		t.Fatalf("expected raw passthrough, got %q", got)
	}
	if got := summarizeDetails(""); got != "" {
		t.Fatalf("expected empty summary, got %q", got)
	}
}

func TestExportFileName(t *testing.T) {
	now := time.Date(2026, 8, 31, 9, 5, 7, 0, time.UTC)
	if got := ExportFileName(now); got != "audit_log_2026-08-31_09-05-07.csv" {
		t.Fatalf("unexpected file name %q", got)
	}
}

var auditColumns = []string{
	"log_id", "timestamp", "username", "action", "table_name",
	"record_id", "ip_address", "new_values",
}

func auditRow(logID int64, ts time.Time, username, action string) []driver.Value {
	return []driver.Value{logID, ts, username, action, "intel_reports", "7", "10.0.0.2", "{}"}
}

func TestListFilteredAppliesFilterInQuery(t *testing.T) {
	base := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)

	// Both the count and the page carry the filter, so the total reflects
	// matching rows only and page 2 pages over the filtered set.
	steps := []*queryStep{
		{kind: kindQuery,
			pattern: regexp.MustCompile(`SELECT count\(\*\) FROM .audit_logs. WHERE LOWER\(action\) LIKE \?`),
			args:    []driver.Value{"%approve%"},
			columns: []string{"count(*)"},
			rows:    [][]driver.Value{{int64(27)}}},
		{kind: kindQuery,
			pattern: regexp.MustCompile(`SELECT \* FROM .audit_logs. WHERE LOWER\(action\) LIKE \? ORDER BY timestamp DESC, log_id DESC LIMIT 25 OFFSET 25`),
			args:    []driver.Value{"%approve%"},
			columns: auditColumns,
			rows: [][]driver.Value{
				auditRow(2, base.Add(time.Hour), "analyst.lee", "APPROVE_REPORT"),
				auditRow(1, base, "analyst.park", "APPROVE_REPORT"),
			}},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()
	svc := NewAuditQueryService(db)

	entries, total, err := svc.ListFiltered(AuditFilter{Action: "Approve"}, 2, 25)
	if err != nil {
		t.Fatalf("ListFiltered returned error: %v", err)
	}
	if total != 27 {
		t.Fatalf("expected filtered total 27, got %d", total)
	}
	if len(entries) != 2 || entries[0].LogID != 2 {
		t.Fatalf("expected the scripted page, got %+v", entries)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStreamFilteredWalksMatchesNewestFirst(t *testing.T) {
	base := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)

	steps := []*queryStep{
		{kind: kindQuery,
			pattern: regexp.MustCompile(`SELECT \* FROM .audit_logs. WHERE LOWER\(COALESCE\(username, ''\)\) LIKE \? OR LOWER\(action\) LIKE \? OR LOWER\(table_name\) LIKE \? OR LOWER\(ip_address\) LIKE \? OR LOWER\(new_values\) LIKE \? ORDER BY timestamp DESC, log_id DESC`),
			columns: auditColumns,
			rows: [][]driver.Value{
				auditRow(2, base.Add(time.Hour), "analyst.lee", "APPROVE_REPORT"),
				auditRow(1, base, "agent.cho", "CREATE_REPORT"),
			}},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()
	svc := NewAuditQueryService(db)

	var actions []string
	err := svc.StreamFiltered(AuditFilter{SearchText: "report"}, func(entry models.AuditEntry) error {
		actions = append(actions, entry.Action)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamFiltered returned error: %v", err)
	}
	if len(actions) != 2 || actions[0] != "APPROVE_REPORT" || actions[1] != "CREATE_REPORT" {
		t.Fatalf("expected every scripted row newest first, got %v", actions)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
