package models

import (
	"fmt"
	"strings"
)

// RiskTier ordered classification of an action's danger
type RiskTier int

const (
	RiskRoutine  RiskTier = 1
	RiskStandard RiskTier = 3
	RiskElevated RiskTier = 7
	RiskCritical RiskTier = 10
)

// String for logs and decision output
func (t RiskTier) String() string {
	switch t {
	case RiskRoutine:
		return "ROUTINE"
	case RiskStandard:
		return "STANDARD"
	case RiskElevated:
		return "ELEVATED"
	case RiskCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("RISK(%d)", int(t))
	}
}

// ParseRiskTier from a policy-declared name
func ParseRiskTier(s string) (RiskTier, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ROUTINE":
		return RiskRoutine, nil
	case "STANDARD":
		return RiskStandard, nil
	case "ELEVATED":
		return RiskElevated, nil
	case "CRITICAL":
		return RiskCritical, nil
	default:
		return 0, fmt.Errorf("unknown risk tier %q", s)
	}
}

// ApprovalType required human-involvement level for an action
type ApprovalType string

const (
	ApprovalAutonomous        ApprovalType = "AUTONOMOUS"
	ApprovalValidationOnly    ApprovalType = "VALIDATION_ONLY"
	ApprovalHumanConfirmation ApprovalType = "HUMAN_CONFIRMATION"
	ApprovalHumanReview       ApprovalType = "HUMAN_REVIEW"
)

// approvalStrictness orders approval types; higher is stricter.
func approvalStrictness(a ApprovalType) int {
	switch a {
	case ApprovalAutonomous:
		return 0
	case ApprovalValidationOnly:
		return 1
	case ApprovalHumanConfirmation:
		return 2
	case ApprovalHumanReview:
		return 3
	default:
		return 3 // unknown types are treated as strictest
	}
}

// StricterThan reports whether a requires more human involvement than b.
func (a ApprovalType) StricterThan(b ApprovalType) bool {
	return approvalStrictness(a) > approvalStrictness(b)
}

// ActionRequest one proposed mutating action to be gated
type ActionRequest struct {
	TargetPath string         `json:"target_path"`
	ActionName string         `json:"action_name"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// GovernanceDecision computed fresh per action request; logged, never
// persisted as mutable state.
type GovernanceDecision struct {
	Allowed      bool         `json:"allowed"`
	RiskTier     RiskTier     `json:"risk_tier"`
	RiskTierName string       `json:"risk_tier_name"`
	ApprovalType ApprovalType `json:"approval_type,omitempty"`
	Rationale    string       `json:"rationale"`
	Violations   []string     `json:"violations,omitempty"`
}

// RiskRule maps a path or action pattern to a risk tier.
type RiskRule struct {
	Pattern string `yaml:"pattern"`
	Tier    string `yaml:"tier"`
}

// EvidenceRequirement names metadata keys an action pattern must carry.
type EvidenceRequirement struct {
	Action string   `yaml:"action"`
	Keys   []string `yaml:"keys"`
}

// GovernancePolicy declarative action-gating configuration.
// All matching is pattern-based; nothing here is hardcoded behavior.
type GovernancePolicy struct {
	ForbiddenPaths   []string              `yaml:"forbidden_paths,omitempty"`
	AllowedActions   []string              `yaml:"allowed_actions,omitempty"`
	RequiredEvidence []EvidenceRequirement `yaml:"required_evidence,omitempty"`
	PathRisk         []RiskRule            `yaml:"path_risk,omitempty"`
	ActionRisk       []RiskRule            `yaml:"action_risk,omitempty"`

	// ApprovalTable maps risk tier names to approval types.
	ApprovalTable map[string]string `yaml:"approval_table,omitempty"`
}
