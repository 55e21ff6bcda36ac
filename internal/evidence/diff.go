package evidence

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wI2L/jsondiff"

	"github.com/corehq/warden/internal/models"
)

// DiffResult is the comparison of two evidence artifacts.
type DiffResult struct {
	HasChanges   bool
	Patches      jsondiff.Patch
	Translations []string
}

// Diff compares two artifacts and describes what moved between runs.
func Diff(before, after *models.AuditEvidence) (*DiffResult, error) {
	beforeJSON, err := json.Marshal(before)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal baseline evidence: %w", err)
	}

	afterJSON, err := json.Marshal(after)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal current evidence: %w", err)
	}

	patches, err := jsondiff.CompareJSON(beforeJSON, afterJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to compute evidence diff: %w", err)
	}

	result := &DiffResult{Patches: patches}
	result.Translations = translate(patches, before, after)
	result.HasChanges = len(result.Translations) > 0
	return result, nil
}

// translate patches plus verdict transitions to english
func translate(patches jsondiff.Patch, before, after *models.AuditEvidence) []string {
	var translations []string
	seen := make(map[string]bool)

	add := func(t string) {
		if t != "" && !seen[t] {
			seen[t] = true
			translations = append(translations, t)
		}
	}

	if before.Passed && !after.Passed {
		add("⚠️  CRITICAL: Audit verdict regressed from pass to fail.")
	}
	if !before.Passed && after.Passed {
		add("Audit verdict improved from fail to pass.")
	}
	if !before.Incomplete && after.Incomplete {
		add("⚠️  CRITICAL: Run is marked incomplete; partial results are not a clean pass.")
	}

	for _, op := range patches {
		add(translateOperation(op))
	}

	return translations
}

func translateOperation(op jsondiff.Operation) string {
	path := strings.ToLower(op.Path)

	switch op.Type {
	case jsondiff.OperationAdd:
		if strings.Contains(path, "/executed_checks") {
			return "New check executed."
		}
	case jsondiff.OperationRemove:
		if strings.Contains(path, "/executed_checks") {
			return "⚠️  CRITICAL: A previously executed check no longer ran."
		}
	case jsondiff.OperationReplace:
		switch {
		case strings.Contains(path, "/findings_summary/errors"):
			return "Error finding count changed."
		case strings.Contains(path, "/findings_summary/warnings"):
			return "Warning finding count changed."
		case strings.Contains(path, "/findings_summary/info"):
			return "Info finding count changed."
		case strings.Contains(path, "/counts/executed_checks"):
			return "Executed check count changed."
		case strings.Contains(path, "/executed_checks"):
			return "Executed check set changed."
		case strings.Contains(path, "/schema_version"):
			return "Evidence schema version changed."
		}
	}
	return ""
}

// SeverityLevel 0=safe, 1=mod, 2=crit
type SeverityLevel int

const (
	SeveritySafe SeverityLevel = iota
	SeverityModerate
	SeverityCritical
)

// GetSeverity classifies one translation for display.
func GetSeverity(translation string) SeverityLevel {
	lowerMsg := strings.ToLower(translation)

	if strings.Contains(translation, "⚠️") ||
		strings.Contains(translation, "CRITICAL") ||
		strings.Contains(lowerMsg, "no longer ran") {
		return SeverityCritical
	}

	if strings.Contains(lowerMsg, "improved") ||
		strings.Contains(lowerMsg, "new check executed") {
		return SeveritySafe
	}

	return SeverityModerate
}
