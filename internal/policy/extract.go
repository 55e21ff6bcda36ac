package policy

import (
	"github.com/corehq/warden/internal/models"
	"github.com/corehq/warden/internal/observability/logging"
)

// EngineSet answers which engine ids exist and their input shape.
// Satisfied by gates.Registry; decoupled here so extraction stays
// independent of orchestration.
type EngineSet interface {
	Known(engine string) bool
	IsContextLevel(engine string) bool
}

// SkippedRule records a declaration that could not become executable.
// Skipped rules surface as coverage gaps, never fatal errors.
type SkippedRule struct {
	RuleID      string
	Engine      string
	Reason      string
	Enforcement models.Enforcement
}

// Extraction is the executable rule set for one run plus its gaps.
type Extraction struct {
	Rules   []models.ExecutableRule
	Skipped []SkippedRule
}

// Extract walks all loaded policy declarations and produces the
// executable rule set in declaration order. A rule referencing an
// unregistered engine is logged and skipped. Context-levelness is
// inferred purely from the engine identifier so engines can be swapped
// without touching orchestration.
func Extract(docs []models.PolicyDocument, engines EngineSet, log logging.Logger) *Extraction {
	out := &Extraction{}
	order := 0
	for _, doc := range docs {
		for _, rule := range doc.Rules {
			if !engines.Known(rule.Engine) {
				log.Warn("policy", "skipping rule with unknown engine",
					"rule_id", rule.ID, "engine", rule.Engine)
				out.Skipped = append(out.Skipped, SkippedRule{
					RuleID:      rule.ID,
					Engine:      rule.Engine,
					Reason:      "unknown engine",
					Enforcement: rule.Enforcement,
				})
				continue
			}
			out.Rules = append(out.Rules, models.ExecutableRule{
				PolicyRule:     rule,
				IsContextLevel: engines.IsContextLevel(rule.Engine),
				DeclOrder:      order,
			})
			order++
		}
	}
	return out
}

// SkippedErrorRuleIDs lists skipped rules that declared blocking
// enforcement. These are coverage gaps.
func (e *Extraction) SkippedErrorRuleIDs() []string {
	var ids []string
	for _, s := range e.Skipped {
		if s.Enforcement == models.EnforcementError {
			ids = append(ids, s.RuleID)
		}
	}
	return ids
}

// MergedGovernance returns the first governance block across documents.
// Later documents never override an earlier block; governance policy is
// declared in exactly one place.
func MergedGovernance(docs []models.PolicyDocument) *models.GovernancePolicy {
	for _, doc := range docs {
		if doc.Governance != nil {
			return doc.Governance
		}
	}
	return nil
}

// EntryPointTypes returns the declared entry-point allowlist, falling
// back to the defaults when no document declares one.
func EntryPointTypes(docs []models.PolicyDocument) []string {
	for _, doc := range docs {
		if len(doc.EntryPoints) > 0 {
			return doc.EntryPoints
		}
	}
	return models.DefaultEntryPointTypes
}
