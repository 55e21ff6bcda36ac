package governance

import (
	"path/filepath"

	"github.com/corehq/warden/internal/models"
)

// riskTierOrder walks tiers from least to most severe.
var riskTierOrder = []models.RiskTier{
	models.RiskRoutine,
	models.RiskStandard,
	models.RiskElevated,
	models.RiskCritical,
}

// scoreRisk classifies one action from the policy's path and action
// sensitivity tables. The highest matching tier wins; nothing matching
// scores ROUTINE.
func (v *Validator) scoreRisk(req models.ActionRequest) models.RiskTier {
	tier := models.RiskRoutine

	path := filepath.ToSlash(req.TargetPath)
	for _, rule := range v.policy.PathRisk {
		if !v.match(rule.Pattern, path) {
			continue
		}
		if t, err := models.ParseRiskTier(rule.Tier); err == nil && t > tier {
			tier = t
		}
	}

	for _, rule := range v.policy.ActionRisk {
		if !v.match(rule.Pattern, req.ActionName) {
			continue
		}
		if t, err := models.ParseRiskTier(rule.Tier); err == nil && t > tier {
			tier = t
		}
	}

	return tier
}

// approvalFor derives the approval type from the policy-declared table.
// A tier with no declared mapping inherits the next stricter declared
// one; with no mapping at all the strictest type applies. The result is
// never less strict than a mapping declared for a lower tier.
func (v *Validator) approvalFor(tier models.RiskTier) models.ApprovalType {
	resolved := models.ApprovalHumanReview
	found := false

	for _, t := range riskTierOrder {
		if t < tier {
			continue
		}
		if name, ok := v.policy.ApprovalTable[t.String()]; ok {
			resolved = models.ApprovalType(name)
			found = true
			break
		}
	}
	if !found {
		return models.ApprovalHumanReview
	}

	// Monotonicity: a higher tier never gets a laxer approval than one
	// declared below it.
	for _, t := range riskTierOrder {
		if t >= tier {
			break
		}
		if name, ok := v.policy.ApprovalTable[t.String()]; ok {
			if lower := models.ApprovalType(name); lower.StricterThan(resolved) {
				resolved = lower
			}
		}
	}

	return resolved
}
