package cli

import (
	"strings"
	"testing"

	"github.com/corehq/warden/internal/models"
)

func lintableRule(id, engine string, params map[string]any) models.ExecutableRule {
	r := models.ExecutableRule{
		PolicyRule: models.PolicyRule{
			ID:          id,
			Statement:   "test rule",
			Authority:   models.AuthorityPolicy,
			Enforcement: models.EnforcementError,
			Engine:      engine,
			Params:      params,
		},
	}
	r.ApplyDefaults()
	return r
}

func TestLintRule_BadRegex(t *testing.T) {
	r := lintableRule("txt.bad-regex", "textual-pattern", map[string]any{"pattern": `(`})

	problems := lintRule(r)
	if len(problems) != 1 {
		t.Fatalf("expected 1 problem, got %v", problems)
	}
	if !strings.HasPrefix(problems[0], "txt.bad-regex:") {
		t.Errorf("problem should name the rule, got %q", problems[0])
	}
	if !strings.Contains(problems[0], "error parsing regexp") {
		t.Errorf("problem should carry the regex error, got %q", problems[0])
	}
}

func TestLintRule_BadPredicate(t *testing.T) {
	r := lintableRule("ps.bad-predicate", "process-state", map[string]any{"predicate": "state.age_days <"})

	problems := lintRule(r)
	if len(problems) != 1 {
		t.Fatalf("expected 1 problem, got %v", problems)
	}
	if !strings.Contains(problems[0], "CEL compile error") {
		t.Errorf("expected a CEL compile problem, got %q", problems[0])
	}
}

func TestLintRule_BadGlobs(t *testing.T) {
	r := lintableRule("txt.bad-globs", "textual-pattern", map[string]any{"pattern": "x"})
	r.Scope = []string{"src/[", "src/**"}
	r.Exclusions = []string{"vendor/["}

	problems := lintRule(r)
	if len(problems) != 2 {
		t.Fatalf("expected 2 problems, got %v", problems)
	}
	if !strings.Contains(problems[0], `invalid scope pattern "src/["`) {
		t.Errorf("unexpected scope problem: %q", problems[0])
	}
	if !strings.Contains(problems[1], `invalid exclusion pattern "vendor/["`) {
		t.Errorf("unexpected exclusion problem: %q", problems[1])
	}
}

func TestLintRule_Clean(t *testing.T) {
	r := lintableRule("ps.clean", "process-state", map[string]any{"predicate": "state.line_count < 500"})
	r.Scope = []string{"**/*.py"}

	if problems := lintRule(r); len(problems) != 0 {
		t.Fatalf("expected no problems, got %v", problems)
	}
}

func TestLintGovernance_BadTierAndApproval(t *testing.T) {
	gov := &models.GovernancePolicy{
		PathRisk: []models.RiskRule{
			{Pattern: "src/**", Tier: "severe"},
		},
		ApprovalTable: map[string]string{
			"standard": "rubber-stamp",
		},
	}

	problems := lintGovernance("test-policy", gov)
	if len(problems) != 2 {
		t.Fatalf("expected 2 problems, got %v", problems)
	}
}
