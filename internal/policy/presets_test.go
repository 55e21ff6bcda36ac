package policy

import (
	"testing"

	"github.com/corehq/warden/internal/models"
)

func TestGetPreset_Constitution(t *testing.T) {
	doc := GetPreset("constitution")
	if doc == nil {
		t.Fatal("constitution preset should exist")
	}
	if doc.Authority != models.AuthorityConstitution {
		t.Errorf("expected constitution authority, got %q", doc.Authority)
	}
	if len(doc.Rules) == 0 {
		t.Fatal("constitution preset has no rules")
	}
	for _, r := range doc.Rules {
		if err := r.Validate(); err != nil {
			t.Errorf("preset rule invalid: %v", err)
		}
	}
	if doc.Governance == nil {
		t.Error("constitution preset should declare governance")
	}
}

func TestGetPreset_Baseline(t *testing.T) {
	doc := GetPreset("baseline")
	if doc == nil {
		t.Fatal("baseline preset should exist")
	}
	for _, r := range doc.Rules {
		if r.Authority != models.AuthorityPolicy {
			t.Errorf("baseline rule %s: expected policy authority, got %q", r.ID, r.Authority)
		}
	}
}

func TestGetPreset_Unknown(t *testing.T) {
	if GetPreset("nonexistent") != nil {
		t.Error("unknown preset should return nil")
	}
}

func TestGetPreset_Cached(t *testing.T) {
	first := GetPreset("constitution")
	second := GetPreset("constitution")
	if first != second {
		t.Error("expected cached preset instance")
	}
}

func TestListPresetNames(t *testing.T) {
	names := ListPresetNames()
	found := map[string]bool{}
	for _, n := range names {
		found[n] = true
	}
	if !found["constitution"] || !found["baseline"] {
		t.Errorf("expected constitution and baseline presets, got %v", names)
	}
}
