package audit

import (
	"context"

	"github.com/corehq/warden/internal/knowledge"
	"github.com/corehq/warden/internal/models"
)

// DefaultDeadSymbolRuleIDs is the explicitly named set of rules whose
// findings are eligible for entry-point reconciliation.
var DefaultDeadSymbolRuleIDs = []string{
	"architecture.no_dead_exports",
}

// PostProcessor applies entry-point based severity downgrades and the
// relaxed-mode handling of advisory rules. It is a pure transform over
// the finding list: idempotent, and it never removes a finding.
type PostProcessor struct {
	index     knowledge.Index
	allowList models.EntryPointAllowList

	// deadSymbolRules is the set of rule ids subject to entry-point
	// reconciliation.
	deadSymbolRules map[string]struct{}

	// downgradeTo is the target severity for reconciled findings.
	downgradeTo models.Severity

	// strict enforces policy-tier rules at their declared severity.
	// When false, policy-tier error findings are advisory (warnings).
	strict bool

	// authority maps rule id to its tier; constitution-tier findings
	// are never downgraded by any configuration.
	authority map[string]models.AuthorityTier
}

// PostProcessorOption configures a PostProcessor.
type PostProcessorOption func(*PostProcessor)

// WithDeadSymbolRules overrides the reconciled rule id set.
func WithDeadSymbolRules(ids []string) PostProcessorOption {
	return func(p *PostProcessor) {
		p.deadSymbolRules = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			p.deadSymbolRules[id] = struct{}{}
		}
	}
}

// WithDowngradeTarget overrides the reconciled severity (default info).
func WithDowngradeTarget(s models.Severity) PostProcessorOption {
	return func(p *PostProcessor) { p.downgradeTo = s }
}

// WithStrict enables strict mode.
func WithStrict(strict bool) PostProcessorOption {
	return func(p *PostProcessor) { p.strict = strict }
}

// NewPostProcessor builds a post-processor for one rule set.
func NewPostProcessor(rules []models.ExecutableRule, index knowledge.Index, allowList models.EntryPointAllowList, opts ...PostProcessorOption) *PostProcessor {
	p := &PostProcessor{
		index:       index,
		allowList:   allowList,
		downgradeTo: models.SeverityInfo,
		authority:   make(map[string]models.AuthorityTier, len(rules)),
	}
	for _, r := range rules {
		p.authority[r.ID] = r.Authority
	}
	WithDeadSymbolRules(DefaultDeadSymbolRuleIDs)(p)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process relabels findings and returns the auto-ignored trail. The
// input slice is not mutated.
func (p *PostProcessor) Process(ctx context.Context, findings []models.Finding) ([]models.Finding, []models.AutoIgnored, error) {
	out := make([]models.Finding, len(findings))
	var ignored []models.AutoIgnored

	for i, f := range findings {
		processed, record := p.processOne(ctx, f)
		out[i] = processed
		if record != nil {
			ignored = append(ignored, *record)
		}
	}
	return out, ignored, nil
}

func (p *PostProcessor) processOne(ctx context.Context, f models.Finding) (models.Finding, *models.AutoIgnored) {
	// Already reconciled on a previous pass: keep as-is and re-emit the
	// matching record so a second run yields identical output.
	if ignored, _ := f.ContextValue(models.ContextAutoIgnored).(bool); ignored {
		return f, recordFromContext(f)
	}

	// Constitution-tier findings are never suppressed or downgraded.
	if p.authority[f.CheckID] == models.AuthorityConstitution {
		return f, nil
	}

	if record := p.reconcileEntryPoint(ctx, &f); record != nil {
		return f, record
	}

	// Relaxed mode: policy-tier error findings are advisory.
	if !p.strict && f.Severity == models.SeverityError {
		f = cloneFinding(f)
		f.Context[models.ContextDowngradedTo] = string(models.SeverityWarning)
		f.Context[models.ContextOriginalRuleID] = f.CheckID
		f.Severity = models.SeverityWarning
	}
	return f, nil
}

// reconcileEntryPoint downgrades a dead-symbol finding whose symbol is
// classified as a recognized entry point.
func (p *PostProcessor) reconcileEntryPoint(ctx context.Context, f *models.Finding) *models.AutoIgnored {
	if p.index == nil {
		return nil
	}
	if _, eligible := p.deadSymbolRules[f.CheckID]; !eligible {
		return nil
	}
	symbol, _ := f.ContextValue("symbol").(string)
	if symbol == "" {
		return nil
	}

	rec, err := p.index.SymbolByKey(ctx, symbol)
	if err != nil || rec.EntryPointType == "" {
		return nil
	}
	if !p.allowList.Contains(rec.EntryPointType) {
		return nil
	}

	originalID := f.CheckID
	*f = cloneFinding(*f)
	f.Severity = p.downgradeTo
	f.Context[models.ContextDowngradedTo] = string(p.downgradeTo)
	f.Context[models.ContextOriginalRuleID] = originalID
	f.Context[models.ContextAutoIgnored] = true
	f.Context[models.ContextEntryPointType] = rec.EntryPointType
	if rec.EntryPointJustification != "" {
		f.Context["justification"] = rec.EntryPointJustification
	}

	return &models.AutoIgnored{
		OriginalRuleID: originalID,
		EntryPointType: rec.EntryPointType,
		Justification:  rec.EntryPointJustification,
		FilePath:       f.FilePath,
		Symbol:         symbol,
	}
}

// recordFromContext rebuilds the auto-ignored record of an already
// reconciled finding from its provenance keys.
func recordFromContext(f models.Finding) *models.AutoIgnored {
	originalID, _ := f.ContextValue(models.ContextOriginalRuleID).(string)
	entryPoint, _ := f.ContextValue(models.ContextEntryPointType).(string)
	justification, _ := f.ContextValue("justification").(string)
	symbol, _ := f.ContextValue("symbol").(string)
	return &models.AutoIgnored{
		OriginalRuleID: originalID,
		EntryPointType: entryPoint,
		Justification:  justification,
		FilePath:       f.FilePath,
		Symbol:         symbol,
	}
}

// cloneFinding copies a finding with a writable context map.
func cloneFinding(f models.Finding) models.Finding {
	ctx := make(map[string]any, len(f.Context)+4)
	for k, v := range f.Context {
		ctx[k] = v
	}
	f.Context = ctx
	return f
}

// Summarize counts findings by severity.
func Summarize(findings []models.Finding) models.FindingsSummary {
	var s models.FindingsSummary
	for _, f := range findings {
		switch f.Severity {
		case models.SeverityError:
			s.Errors++
		case models.SeverityWarning:
			s.Warnings++
		default:
			s.Info++
		}
	}
	return s
}

// Passed reports the run verdict: no error-severity finding remains
// after post-processing.
func Passed(findings []models.Finding) bool {
	for _, f := range findings {
		if f.Severity == models.SeverityError {
			return false
		}
	}
	return true
}
