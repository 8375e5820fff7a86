package controllers

import "testing"

func TestRetentionServiceIsShared(t *testing.T) {
	// The purge single-flight guard lives on the service instance, so every
	// request must be handed the same one.
	if retentionService() != retentionService() {
		t.Fatal("expected every request to share one retention service instance")
	}
}
