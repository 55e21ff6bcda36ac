// Package evidence builds, persists and compares audit evidence
// artifacts.
package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/corehq/warden/internal/audit"
	"github.com/corehq/warden/internal/models"
)

// DefaultPath is where the audit command writes its artifact.
const DefaultPath = ".warden/evidence.json"

// Store persists evidence artifacts.
type Store struct{}

func NewStore() *Store {
	return &Store{}
}

// Build assembles the artifact for one finished run. Executed check ids
// are emitted sorted so artifacts from identical runs are identical.
func (s *Store) Build(result *audit.Result, findings []models.Finding, now time.Time) *models.AuditEvidence {
	executed := make([]string, len(result.ExecutedRuleIDs))
	copy(executed, result.ExecutedRuleIDs)
	sort.Strings(executed)

	summary := audit.Summarize(findings)

	return &models.AuditEvidence{
		SchemaVersion:   models.EvidenceSchemaVersion,
		GeneratedAtUTC:  now.UTC().Format(time.RFC3339),
		ExecutedChecks:  executed,
		Counts:          models.EvidenceCounts{ExecutedChecks: len(executed)},
		FindingsSummary: summary,
		Passed:          audit.Passed(findings) && !result.Incomplete,
		Incomplete:      result.Incomplete,
	}
}

// Save writes the artifact. Artifacts are written once per run and
// never rewritten in place.
func (s *Store) Save(evidence *models.AuditEvidence, path string) error {
	data, err := json.MarshalIndent(evidence, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal evidence: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write evidence: %w", err)
	}

	return nil
}

// Load reads an artifact. Unknown fields are ignored so newer schema
// versions stay readable.
func (s *Store) Load(path string) (*models.AuditEvidence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read evidence: %w", err)
	}

	var evidence models.AuditEvidence
	if err := json.Unmarshal(data, &evidence); err != nil {
		return nil, fmt.Errorf("failed to parse evidence: %w", err)
	}

	// Backward compatibility: artifacts written before the schema field
	// existed are treated as the initial version.
	if evidence.SchemaVersion == "" {
		evidence.SchemaVersion = models.EvidenceSchemaVersion
	}

	return &evidence, nil
}

func (s *Store) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CoverageReport compares the declared blocking rules against what an
// evidence artifact proves was executed.
type CoverageReport struct {
	DeclaredErrorRules []string `json:"declared_error_rules"`
	ExecutedChecks     []string `json:"executed_checks"`
	Uncovered          []string `json:"uncovered"`
}

// Covered reports whether every declared blocking rule was executed.
func (r *CoverageReport) Covered() bool {
	return len(r.Uncovered) == 0
}

// Coverage computes the gap between declared error-enforcement rules
// and the executed checks recorded in the artifact. Rules skipped at
// extraction time count as declared: a rule that never ran because its
// engine was unknown is still an uncovered declaration.
func Coverage(ctx context.Context, rules []models.ExecutableRule, skippedIDs []string, evidence *models.AuditEvidence) *CoverageReport {
	declared := make([]string, 0, len(rules))
	for _, r := range rules {
		if r.Enforcement == models.EnforcementError {
			declared = append(declared, r.ID)
		}
	}
	declared = append(declared, skippedIDs...)
	sort.Strings(declared)

	executed := make(map[string]struct{}, len(evidence.ExecutedChecks))
	for _, id := range evidence.ExecutedChecks {
		executed[id] = struct{}{}
	}

	var uncovered []string
	for _, id := range declared {
		if _, ok := executed[id]; !ok {
			uncovered = append(uncovered, id)
		}
	}

	return &CoverageReport{
		DeclaredErrorRules: declared,
		ExecutedChecks:     evidence.ExecutedChecks,
		Uncovered:          uncovered,
	}
}
