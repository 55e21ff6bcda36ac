package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/corehq/warden/internal/models"
)

const (
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
	colorReset  = "\033[0m"
)

// AuditOutput is the audit command's report structure.
type AuditOutput struct {
	RepoPath     string                 `json:"repo"`
	Policies     []string               `json:"policies"`
	Strict       bool                   `json:"strict"`
	FilesScanned int                    `json:"files_scanned"`
	Executed     []string               `json:"executed_checks"`
	Summary      models.FindingsSummary `json:"summary"`
	Findings     []models.Finding       `json:"findings"`
	AutoIgnored  []models.AutoIgnored   `json:"auto_ignored,omitempty"`
	Skipped      []SkippedOutputItem    `json:"skipped_rules,omitempty"`
	Incomplete   bool                   `json:"incomplete,omitempty"`
	EvidencePath string                 `json:"evidence,omitempty"`
	Outcome      string                 `json:"outcome"` // "PASS" or "FAIL"
}

// SkippedOutputItem detail
type SkippedOutputItem struct {
	RuleID string `json:"rule_id"`
	Engine string `json:"engine"`
	Reason string `json:"reason"`
}

// FormatJSONOutput for CI
func FormatJSONOutput(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// FormatAuditText human readable
func FormatAuditText(result *AuditOutput) string {
	var sb strings.Builder

	policyName := strings.Join(result.Policies, ",")
	if result.Outcome == "PASS" {
		sb.WriteString(fmt.Sprintf("%swarden audit: PASS%s (policy=%s, strict=%t)\n",
			colorGreen, colorReset, policyName, result.Strict))
	} else {
		sb.WriteString(fmt.Sprintf("%swarden audit: FAIL%s (policy=%s, strict=%t)\n",
			colorRed, colorReset, policyName, result.Strict))
	}
	sb.WriteString(fmt.Sprintf("Repo: %s (%d files, %d checks executed)\n",
		result.RepoPath, result.FilesScanned, len(result.Executed)))
	if result.Incomplete {
		sb.WriteString(fmt.Sprintf("%sRun incomplete: timed out before all checks finished%s\n",
			colorYellow, colorReset))
	}
	sb.WriteString("\n")

	groups := groupFindingsBySeverity(result.Findings)

	if len(groups[models.SeverityError]) > 0 {
		sb.WriteString(fmt.Sprintf("%sERROR (%d)%s\n", colorRed, len(groups[models.SeverityError]), colorReset))
		for _, f := range groups[models.SeverityError] {
			formatFinding(&sb, f)
		}
		sb.WriteString("\n")
	}
	if len(groups[models.SeverityWarning]) > 0 {
		sb.WriteString(fmt.Sprintf("%sWARNING (%d)%s\n", colorYellow, len(groups[models.SeverityWarning]), colorReset))
		for _, f := range groups[models.SeverityWarning] {
			formatFinding(&sb, f)
		}
		sb.WriteString("\n")
	}
	if len(groups[models.SeverityInfo]) > 0 {
		sb.WriteString(fmt.Sprintf("%sINFO (%d)%s\n", colorGray, len(groups[models.SeverityInfo]), colorReset))
		for _, f := range groups[models.SeverityInfo] {
			formatFinding(&sb, f)
		}
		sb.WriteString("\n")
	}

	if len(result.AutoIgnored) > 0 {
		sb.WriteString(fmt.Sprintf("Auto-ignored (%d)\n", len(result.AutoIgnored)))
		for _, a := range result.AutoIgnored {
			sb.WriteString(fmt.Sprintf("  %s: %s is a %s\n", a.OriginalRuleID, a.Symbol, a.EntryPointType))
		}
		sb.WriteString("\n")
	}

	if len(result.Skipped) > 0 {
		sb.WriteString(fmt.Sprintf("%sSkipped rules (%d)%s\n", colorYellow, len(result.Skipped), colorReset))
		for _, s := range result.Skipped {
			sb.WriteString(fmt.Sprintf("  %s: %s (engine %q)\n", s.RuleID, s.Reason, s.Engine))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("Summary: %d error(s), %d warning(s), %d info\n",
		result.Summary.Errors, result.Summary.Warnings, result.Summary.Info))
	return sb.String()
}

func groupFindingsBySeverity(findings []models.Finding) map[models.Severity][]models.Finding {
	groups := make(map[models.Severity][]models.Finding)
	for _, f := range findings {
		groups[f.Severity] = append(groups[f.Severity], f)
	}
	return groups
}

func formatFinding(sb *strings.Builder, f models.Finding) {
	location := f.FilePath
	if f.LineNumber > 0 {
		location = fmt.Sprintf("%s:%d", f.FilePath, f.LineNumber)
	}
	if location == "" {
		location = "(repository)"
	}
	sb.WriteString(fmt.Sprintf("  [%s] %s: %s\n", f.CheckID, location, f.Message))
}
