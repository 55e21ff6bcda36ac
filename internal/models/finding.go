package models

// Severity of a finding
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// severityRank orders severities for threshold comparisons
func severityRank(s Severity) int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as threshold.
func (s Severity) AtLeast(threshold Severity) bool {
	return severityRank(s) >= severityRank(threshold)
}

// CheckIDEngineFailure is the reserved check id for findings produced
// when an engine fails during evaluation instead of returning violations.
const CheckIDEngineFailure = "engine.failure"

// Context keys recording downgrade provenance on a Finding.
const (
	ContextDowngradedTo   = "downgraded_to"
	ContextOriginalRuleID = "original_rule_id"
	ContextAutoIgnored    = "auto_ignored"
	ContextEntryPointType = "entry_point_type"
)

// Finding one reported violation of one rule against one scope unit
type Finding struct {
	CheckID    string         `json:"check_id"`
	Severity   Severity       `json:"severity"`
	Message    string         `json:"message"`
	FilePath   string         `json:"file_path,omitempty"`
	LineNumber int            `json:"line_number,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
}

// ContextValue returns a context entry, or nil when absent.
func (f *Finding) ContextValue(key string) any {
	if f.Context == nil {
		return nil
	}
	return f.Context[key]
}

// AutoIgnored records one entry-point based severity downgrade.
// Appended by the post-processor so the audit trail stays complete.
type AutoIgnored struct {
	OriginalRuleID string `json:"original_rule_id"`
	EntryPointType string `json:"entry_point_type"`
	Justification  string `json:"justification,omitempty"`
	FilePath       string `json:"file_path,omitempty"`
	Symbol         string `json:"symbol,omitempty"`
}

// DefaultEntryPointTypes recognized as framework-invoked symbols.
var DefaultEntryPointTypes = []string{
	"command_handler",
	"route_handler",
	"lifecycle_hook",
	"cli_entry",
	"scheduled_task",
	"signal_handler",
	"test_fixture",
}

// EntryPointAllowList set of entry-point classifications that suppress
// false "unused symbol" findings. Consulted, never mutated.
type EntryPointAllowList map[string]struct{}

// NewEntryPointAllowList builds an allowlist from classification names.
// Empty input yields the default list.
func NewEntryPointAllowList(types []string) EntryPointAllowList {
	if len(types) == 0 {
		types = DefaultEntryPointTypes
	}
	list := make(EntryPointAllowList, len(types))
	for _, t := range types {
		list[t] = struct{}{}
	}
	return list
}

// Contains reports whether the classification is allowlisted.
func (l EntryPointAllowList) Contains(entryPointType string) bool {
	_, ok := l[entryPointType]
	return ok
}
