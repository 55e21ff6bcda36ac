// Package governance gates proposed agent actions against declarative
// policy: forbidden paths, allowed actions, required evidence and a
// risk-to-approval mapping.
package governance

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/corehq/warden/internal/models"
	"github.com/corehq/warden/internal/observability/logging"
)

// PolicyViolation is returned when the validator denies an action. It
// is meant to propagate to the action's caller unmodified.
type PolicyViolation struct {
	Action   models.ActionRequest
	Decision *models.GovernanceDecision
}

func (e *PolicyViolation) Error() string {
	return fmt.Sprintf("action %q on %q denied: %s",
		e.Action.ActionName, e.Action.TargetPath, e.Decision.Rationale)
}

// Validator answers, per proposed action, whether it may proceed and
// under what approval regime. It holds no mutable state; every call
// computes a fresh decision.
type Validator struct {
	policy *models.GovernancePolicy
	log    logging.Logger
}

func NewValidator(policy *models.GovernancePolicy, log logging.Logger) *Validator {
	return &Validator{policy: policy, log: log}
}

// Validate gates one action. Denials return both the decision and a
// *PolicyViolation; the decision is always non-nil so callers can log
// the rationale either way.
func (v *Validator) Validate(ctx context.Context, req models.ActionRequest) (*models.GovernanceDecision, error) {
	tier := v.scoreRisk(req)

	decision := &models.GovernanceDecision{
		RiskTier:     tier,
		RiskTierName: tier.String(),
	}

	// Forbidden paths deny immediately, independent of risk scoring.
	if pattern := v.matchForbiddenPath(req.TargetPath); pattern != "" {
		return v.deny(ctx, req, decision,
			fmt.Sprintf("target path matches forbidden pattern %q", pattern))
	}

	if len(v.policy.AllowedActions) > 0 && !v.matchAction(req.ActionName) {
		return v.deny(ctx, req, decision,
			fmt.Sprintf("action %q matches no allowed-action pattern", req.ActionName))
	}

	if missing, requirement := v.missingEvidence(req); len(missing) > 0 {
		return v.deny(ctx, req, decision,
			fmt.Sprintf("required evidence keys %v missing for action pattern %q", missing, requirement))
	}

	decision.Allowed = true
	decision.ApprovalType = v.approvalFor(tier)
	decision.Rationale = fmt.Sprintf("action permitted at %s risk, approval %s",
		decision.RiskTierName, decision.ApprovalType)

	v.log.Info("governance", "action allowed",
		"action", req.ActionName,
		"target_path", req.TargetPath,
		"risk_tier", decision.RiskTierName,
		"approval_type", string(decision.ApprovalType))

	return decision, nil
}

func (v *Validator) deny(ctx context.Context, req models.ActionRequest, decision *models.GovernanceDecision, rationale string) (*models.GovernanceDecision, error) {
	decision.Allowed = false
	decision.Rationale = rationale
	decision.Violations = append(decision.Violations, rationale)

	v.log.Warn("governance", "action denied",
		"action", req.ActionName,
		"target_path", req.TargetPath,
		"rationale", rationale)

	return decision, &PolicyViolation{Action: req, Decision: decision}
}

// matchForbiddenPath returns the first forbidden pattern the target
// path matches, or "".
func (v *Validator) matchForbiddenPath(targetPath string) string {
	path := filepath.ToSlash(targetPath)
	for _, pattern := range v.policy.ForbiddenPaths {
		if v.match(pattern, path) {
			return pattern
		}
	}
	return ""
}

func (v *Validator) matchAction(action string) bool {
	for _, pattern := range v.policy.AllowedActions {
		if v.match(pattern, action) {
			return true
		}
	}
	return false
}

// missingEvidence returns the metadata keys required for this action
// but absent from the request, plus the requirement's action pattern.
func (v *Validator) missingEvidence(req models.ActionRequest) ([]string, string) {
	for _, requirement := range v.policy.RequiredEvidence {
		if !v.match(requirement.Action, req.ActionName) {
			continue
		}
		var missing []string
		for _, key := range requirement.Keys {
			if _, ok := req.Metadata[key]; !ok {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			return missing, requirement.Action
		}
	}
	return nil, ""
}

// match wraps doublestar; an invalid pattern never matches.
func (v *Validator) match(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	if err != nil {
		v.log.Warn("governance", "invalid policy pattern", "pattern", pattern)
		return false
	}
	return ok
}
