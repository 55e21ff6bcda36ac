package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/corehq/warden/internal/models"
)

const goodPolicy = `
name: team-rules
version: "2"
authority: constitution
rules:
  - id: style.no_print
    statement: No print debugging
    engine: textual-pattern
    enforcement: warning
    params:
      pattern: 'print\('
  - id: deps.no_eval
    statement: Never call eval
    engine: structural-pattern
    scope: ["**/*.py"]
`

func writePolicy(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write policy: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writePolicy(t, t.TempDir(), "rules.yaml", goodPolicy)

	doc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if doc.Name != "team-rules" {
		t.Errorf("expected name team-rules, got %q", doc.Name)
	}
	if len(doc.Rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(doc.Rules))
	}

	// Document authority cascades to rules that declare none.
	if doc.Rules[0].Authority != models.AuthorityConstitution {
		t.Errorf("expected cascaded constitution authority, got %q", doc.Rules[0].Authority)
	}
	// Declared enforcement survives, absent enforcement defaults to error.
	if doc.Rules[0].Enforcement != models.EnforcementWarning {
		t.Errorf("expected warning enforcement, got %q", doc.Rules[0].Enforcement)
	}
	if doc.Rules[1].Enforcement != models.EnforcementError {
		t.Errorf("expected default error enforcement, got %q", doc.Rules[1].Enforcement)
	}
	if doc.Rules[0].SourcePolicyID != "team-rules" {
		t.Errorf("expected source policy id, got %q", doc.Rules[0].SourcePolicyID)
	}
}

func TestLoadFile_NameDefaultsToFilename(t *testing.T) {
	path := writePolicy(t, t.TempDir(), "backend.yaml", `
rules:
  - id: a.b
    statement: x
    engine: textual-pattern
`)
	doc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if doc.Name != "backend" {
		t.Errorf("expected name from filename, got %q", doc.Name)
	}
}

func TestLoadFile_RejectsDuplicateIDs(t *testing.T) {
	path := writePolicy(t, t.TempDir(), "dup.yaml", `
rules:
  - id: a.b
    statement: x
    engine: textual-pattern
  - id: a.b
    statement: y
    engine: textual-pattern
`)
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected duplicate rule id to be rejected")
	}
}

func TestLoadFile_RejectsInvalidRule(t *testing.T) {
	path := writePolicy(t, t.TempDir(), "bad.yaml", `
rules:
  - id: a.b
    statement: x
`)
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected rule without engine to be rejected")
	}
}

func TestLoadDir_ContainsBrokenDocuments(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "good.yaml", goodPolicy)
	writePolicy(t, dir, "broken.yaml", "rules: [")
	writePolicy(t, dir, "ignored.txt", "not a policy")

	result, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}

	if len(result.Documents) != 1 {
		t.Errorf("expected 1 good document, got %d", len(result.Documents))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 load error, got %d", len(result.Errors))
	}
	if result.Errors[0].Path == "" {
		t.Error("load error should name the broken file")
	}
}

func TestLoadDir_GovernanceOnlyDocument(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "gov.yaml", `
name: gov
governance:
  forbidden_paths:
    - ".intent/**"
`)
	result, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if len(result.Documents) != 1 {
		t.Fatalf("expected governance-only document to load, got %d docs", len(result.Documents))
	}
	if result.Documents[0].Governance == nil {
		t.Fatal("governance block missing")
	}
}
