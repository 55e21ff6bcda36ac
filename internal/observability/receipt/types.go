// Package receipt provides stable evidence artifacts for audit/compliance.
package receipt

// ReceiptSchemaVersion current
const ReceiptSchemaVersion = "1.0"

// Receipt structure
type Receipt struct {
	SchemaVersion string             `json:"schema_version"`
	OpID          string             `json:"op_id"`
	TsStart       string             `json:"ts_start"`
	TsEnd         string             `json:"ts_end"`
	Command       string             `json:"command"`
	Args          []string           `json:"args"`
	ArgsRedacted  bool               `json:"args_redacted,omitempty"` // SEC-06: true if any args were sanitized
	Result        Result             `json:"result"`
	Evidence      *EvidenceRef       `json:"evidence,omitempty"`
	Audit         *AuditSummary      `json:"audit,omitempty"`
	Coverage      *CoverageSummary   `json:"coverage,omitempty"`
	Governance    *GovernanceSummary `json:"governance,omitempty"`
}

// Result status
type Result struct {
	Status string `json:"status"` // "success" or "fail"
	Error  string `json:"error,omitempty"`
}

// EvidenceRef detail
type EvidenceRef struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256,omitempty"`
}

// AuditSummary detail
type AuditSummary struct {
	RulesExecuted int    `json:"rules_executed"`
	FilesScanned  int    `json:"files_scanned"`
	Errors        int    `json:"errors"`
	Warnings      int    `json:"warnings"`
	Info          int    `json:"info"`
	Incomplete    bool   `json:"incomplete,omitempty"`
	Verdict       string `json:"verdict"` // pass|fail|incomplete
}

// CoverageSummary detail
type CoverageSummary struct {
	DeclaredErrorRules int      `json:"declared_error_rules"`
	ExecutedChecks     int      `json:"executed_checks"`
	Uncovered          []string `json:"uncovered,omitempty"`
}

// GovernanceSummary detail
type GovernanceSummary struct {
	Action       string `json:"action"`
	TargetPath   string `json:"target_path"`
	Allowed      bool   `json:"allowed"`
	RiskTier     string `json:"risk_tier,omitempty"`
	ApprovalType string `json:"approval_type,omitempty"`
	Rationale    string `json:"rationale,omitempty"`
}
