package models

// EvidenceSchemaVersion current
const EvidenceSchemaVersion = "1.0"

// FindingsSummary counts by severity after post-processing
type FindingsSummary struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Info     int `json:"info"`
}

// EvidenceCounts summary block
type EvidenceCounts struct {
	ExecutedChecks int `json:"executed_checks"`
}

// AuditEvidence persisted record of one audit run. Written once;
// immutable; unknown fields must be ignored when reading older or newer
// schema versions.
type AuditEvidence struct {
	SchemaVersion   string          `json:"schema_version"`
	GeneratedAtUTC  string          `json:"generated_at_utc"`
	ExecutedChecks  []string        `json:"executed_checks"`
	Counts          EvidenceCounts  `json:"counts"`
	FindingsSummary FindingsSummary `json:"findings_summary"`
	Passed          bool            `json:"passed"`

	// Incomplete marks runs abandoned by a run-level timeout. Partial
	// results are never treated as a clean pass.
	Incomplete bool `json:"incomplete,omitempty"`
}
