package evidence

import (
	"strings"
	"testing"

	"github.com/corehq/warden/internal/models"
)

func baseEvidence() *models.AuditEvidence {
	return &models.AuditEvidence{
		SchemaVersion:   models.EvidenceSchemaVersion,
		GeneratedAtUTC:  "2026-03-01T12:00:00Z",
		ExecutedChecks:  []string{"a", "b"},
		Counts:          models.EvidenceCounts{ExecutedChecks: 2},
		FindingsSummary: models.FindingsSummary{},
		Passed:          true,
	}
}

func hasTranslation(result *DiffResult, substr string) bool {
	for _, t := range result.Translations {
		if strings.Contains(t, substr) {
			return true
		}
	}
	return false
}

func TestDiffIdenticalArtifacts(t *testing.T) {
	result, err := Diff(baseEvidence(), baseEvidence())
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if result.HasChanges {
		t.Errorf("identical artifacts report changes: %v", result.Translations)
	}
}

func TestDiffIgnoresTimestampChurn(t *testing.T) {
	after := baseEvidence()
	after.GeneratedAtUTC = "2026-03-02T09:30:00Z"

	result, err := Diff(baseEvidence(), after)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if result.HasChanges {
		t.Errorf("timestamp-only diff reports changes: %v", result.Translations)
	}
	if len(result.Patches) == 0 {
		t.Error("raw patches should still record the timestamp replacement")
	}
}

func TestDiffVerdictRegression(t *testing.T) {
	after := baseEvidence()
	after.Passed = false
	after.FindingsSummary.Errors = 3

	result, err := Diff(baseEvidence(), after)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !result.HasChanges {
		t.Fatal("regression reported no changes")
	}
	if !hasTranslation(result, "regressed from pass to fail") {
		t.Errorf("missing regression translation: %v", result.Translations)
	}
	if !hasTranslation(result, "Error finding count changed") {
		t.Errorf("missing error-count translation: %v", result.Translations)
	}
}

func TestDiffVerdictImprovement(t *testing.T) {
	before := baseEvidence()
	before.Passed = false

	result, err := Diff(before, baseEvidence())
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !hasTranslation(result, "improved from fail to pass") {
		t.Errorf("missing improvement translation: %v", result.Translations)
	}
}

func TestDiffIncompleteRun(t *testing.T) {
	after := baseEvidence()
	after.Passed = false
	after.Incomplete = true

	result, err := Diff(baseEvidence(), after)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !hasTranslation(result, "incomplete") {
		t.Errorf("missing incomplete translation: %v", result.Translations)
	}
}

func TestDiffExecutedCheckRemoved(t *testing.T) {
	after := baseEvidence()
	after.ExecutedChecks = []string{"a"}
	after.Counts.ExecutedChecks = 1

	result, err := Diff(baseEvidence(), after)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !hasTranslation(result, "no longer ran") {
		t.Errorf("missing removed-check translation: %v", result.Translations)
	}
	if !hasTranslation(result, "Executed check count changed") {
		t.Errorf("missing count translation: %v", result.Translations)
	}
}

func TestGetSeverity(t *testing.T) {
	cases := []struct {
		translation string
		want        SeverityLevel
	}{
		{"⚠️  CRITICAL: Audit verdict regressed from pass to fail.", SeverityCritical},
		{"⚠️  CRITICAL: A previously executed check no longer ran.", SeverityCritical},
		{"Audit verdict improved from fail to pass.", SeveritySafe},
		{"New check executed.", SeveritySafe},
		{"Error finding count changed.", SeverityModerate},
	}
	for _, tc := range cases {
		if got := GetSeverity(tc.translation); got != tc.want {
			t.Errorf("GetSeverity(%q) = %d, want %d", tc.translation, got, tc.want)
		}
	}
}
