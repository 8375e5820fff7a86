package services

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"intel-review-api/models"
)

func newReportStore(t *testing.T, steps []*queryStep) (*ReportStore, *scriptedDB, func()) {
	t.Helper()
	db, state, cleanup := newScriptedGormDB(t, steps)
	return NewReportStore(db, NewAuditRecorder(db)), state, cleanup
}

func TestCreateReportDefaultsAndExpiry(t *testing.T) {
	steps := []*queryStep{
		{kind: kindExec, pattern: regexp.MustCompile(`INSERT INTO .intel_reports.`),
			result: scriptedResult{lastInsertID: 5, rowsAffected: 1}},
		{kind: kindExec, pattern: auditInsertPattern,
			result: scriptedResult{lastInsertID: 1, rowsAffected: 1}},
	}
	store, state, cleanup := newReportStore(t, steps)
	defer cleanup()

	report := models.IntelReport{
		IntelNumber:    "IR-2026-0005",
		Classification: models.ClassificationClassified,
	}
	actor := Actor{UserID: 42, Username: "agent.cho", RoleID: models.RoleAgent}
	if err := store.Create(&report, actor); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if report.ReportID != 5 {
		t.Fatalf("expected assigned id 5, got %d", report.ReportID)
	}
	if report.Status != models.ReportStatusPending {
		t.Fatalf("new reports start pending, got %q", report.Status)
	}
	if report.AgentID != 42 {
		t.Fatalf("expected agent 42, got %d", report.AgentID)
	}
	if report.RetentionDays != models.DefaultRetentionDays {
		t.Fatalf("expected default retention, got %d", report.RetentionDays)
	}
	wantExpiry := report.SubmittedAt.AddDate(0, 0, models.DefaultRetentionDays)
	if !report.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expiry not derived from submission date: got %v want %v", report.ExpiresAt, wantExpiry)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateReportRequiresIntelNumber(t *testing.T) {
	store, _, cleanup := newReportStore(t, nil)
	defer cleanup()

	err := store.Create(&models.IntelReport{}, Actor{UserID: 42})
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCreateReportHonorsExplicitRetention(t *testing.T) {
	steps := []*queryStep{
		{kind: kindExec, pattern: regexp.MustCompile(`INSERT INTO .intel_reports.`),
			result: scriptedResult{lastInsertID: 6, rowsAffected: 1}},
		{kind: kindExec, pattern: auditInsertPattern,
			result: scriptedResult{lastInsertID: 1, rowsAffected: 1}},
	}
	store, state, cleanup := newReportStore(t, steps)
	defer cleanup()

	submitted := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	report := models.IntelReport{
		IntelNumber:    "IR-2026-0006",
		Classification: models.ClassificationNarcoticsOnly,
		SubmittedAt:    submitted,
		RetentionDays:  365,
	}
	if err := store.Create(&report, Actor{UserID: 42}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if !report.ExpiresAt.Equal(submitted.AddDate(0, 0, 365)) {
		t.Fatalf("expiry should anchor at the given submission date, got %v", report.ExpiresAt)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListRejectsInvalidStatusFilter(t *testing.T) {
	store, _, cleanup := newReportStore(t, nil)
	defer cleanup()

	_, err := store.List("archived")
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestDeleteRequiresAdmin(t *testing.T) {
	store, _, cleanup := newReportStore(t, nil)
	defer cleanup()

	err := store.Delete(7, Actor{UserID: 9, RoleID: models.RoleAnalyst})
	var authz *AuthorizationError
	if !errors.As(err, &authz) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
}
