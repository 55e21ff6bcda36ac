// Package audit runs the executable rule set against a repository and
// post-processes the resulting findings.
package audit

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/corehq/warden/internal/gates"
	"github.com/corehq/warden/internal/models"
	"github.com/corehq/warden/internal/observability/logging"
	"github.com/corehq/warden/internal/scanner"
)

// Orchestrator dispatches rules to engines and accumulates findings.
// The rule set and registry are read-only for the run's duration.
type Orchestrator struct {
	rules    []models.ExecutableRule
	registry *gates.Registry
	repo     *scanner.Repo
	repoCtx  *gates.RepoContext
	log      logging.Logger

	// MaxWorkers bounds the file-scoped evaluation pool. Zero means
	// one worker per CPU.
	MaxWorkers int
}

// Result of one audit run, before post-processing.
type Result struct {
	Findings []models.Finding

	// ExecutedRuleIDs contains every rule id that was dispatched,
	// including rules whose scope matched nothing and judged rules
	// answered by a stub.
	ExecutedRuleIDs []string

	// Incomplete marks a run abandoned by the run-level timeout.
	Incomplete bool

	FilesScanned int
}

// New builds an orchestrator for one run.
func New(rules []models.ExecutableRule, registry *gates.Registry, repo *scanner.Repo, repoCtx *gates.RepoContext, log logging.Logger) *Orchestrator {
	if log == nil {
		log = logging.From(context.Background())
	}
	return &Orchestrator{
		rules:    rules,
		registry: registry,
		repo:     repo,
		repoCtx:  repoCtx,
		log:      log,
	}
}

// evaluation is one rule×scope dispatch unit.
type evaluation struct {
	rule models.ExecutableRule
	file string // empty for context-level rules
}

// Run executes every rule. File-scoped rule×file evaluations run on a
// bounded worker pool; context-level rules run sequentially after them.
// A failure inside one evaluation produces a single engine-failure
// finding and never aborts the run. On context cancellation the
// accumulated findings are kept and the result is marked incomplete.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	executed := make(map[string]struct{}, len(o.rules))
	var mu sync.Mutex
	var findings []models.Finding

	appendFindings := func(batch []models.Finding) {
		mu.Lock()
		findings = append(findings, batch...)
		mu.Unlock()
	}

	var fileEvals []evaluation
	var contextEvals []evaluation

	for _, rule := range o.rules {
		// A rule is marked executed as soon as it is scheduled: scopes
		// matching zero files and stubbed judges are not coverage gaps.
		executed[rule.ID] = struct{}{}

		if rule.IsContextLevel {
			contextEvals = append(contextEvals, evaluation{rule: rule})
			continue
		}

		matched, err := o.repo.Match(rule.Scope, rule.Exclusions)
		if err != nil {
			appendFindings([]models.Finding{engineFailure(rule.ID, "", err)})
			continue
		}
		for _, file := range matched {
			fileEvals = append(fileEvals, evaluation{rule: rule, file: file})
		}
	}

	workers := o.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	// File-scoped evaluations are independent; fan out bounded.
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(workers)
	for _, ev := range fileEvals {
		grp.Go(func() error {
			if grpCtx.Err() != nil {
				return grpCtx.Err()
			}
			appendFindings(o.evaluateFile(grpCtx, ev))
			return nil
		})
	}
	incomplete := false
	if err := grp.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			incomplete = true
		} else {
			return nil, err
		}
	}

	// Context-level rules run sequentially relative to each other.
	for _, ev := range contextEvals {
		if ctx.Err() != nil {
			incomplete = true
			break
		}
		appendFindings(o.evaluateContext(ctx, ev))
	}

	result := &Result{
		Findings:        Canonicalize(findings, o.rules),
		ExecutedRuleIDs: sortedKeys(executed),
		Incomplete:      incomplete,
		FilesScanned:    len(o.repo.Files),
	}
	return result, nil
}

// evaluateFile runs one file-scoped rule against one file, containing
// any failure to a single diagnostic finding.
func (o *Orchestrator) evaluateFile(ctx context.Context, ev evaluation) []models.Finding {
	gate, err := o.registry.Lookup(ev.rule.Engine)
	if err != nil {
		return []models.Finding{engineFailure(ev.rule.ID, ev.file, err)}
	}

	src, err := o.repo.Parse(ctx, ev.file)
	if err != nil {
		return []models.Finding{engineFailure(ev.rule.ID, ev.file, err)}
	}

	violations, err := gate.Evaluate(ctx, gates.Target{File: src, RepoRoot: o.repo.Root}, ev.rule.Params)
	if err != nil {
		o.log.Warn("audit", "rule evaluation failed",
			"rule_id", ev.rule.ID, "file", ev.file, "error", err.Error())
		return []models.Finding{engineFailure(ev.rule.ID, ev.file, err)}
	}
	return toFindings(ev.rule, violations)
}

// evaluateContext runs one context-level rule exactly once.
func (o *Orchestrator) evaluateContext(ctx context.Context, ev evaluation) []models.Finding {
	gate, err := o.registry.Lookup(ev.rule.Engine)
	if err != nil {
		return []models.Finding{engineFailure(ev.rule.ID, "", err)}
	}

	violations, err := gate.Evaluate(ctx, gates.Target{Repo: o.repoCtx, RepoRoot: o.repo.Root}, ev.rule.Params)
	if err != nil {
		o.log.Warn("audit", "context rule evaluation failed",
			"rule_id", ev.rule.ID, "error", err.Error())
		return []models.Finding{engineFailure(ev.rule.ID, "", err)}
	}
	return toFindings(ev.rule, violations)
}

// toFindings converts raw violations into findings carrying the rule's
// declared severity.
func toFindings(rule models.ExecutableRule, violations []gates.Violation) []models.Finding {
	severity := models.SeverityError
	if rule.Enforcement == models.EnforcementWarning {
		severity = models.SeverityWarning
	}

	findings := make([]models.Finding, 0, len(violations))
	for _, v := range violations {
		findings = append(findings, models.Finding{
			CheckID:    rule.ID,
			Severity:   severity,
			Message:    v.Message,
			FilePath:   v.FilePath,
			LineNumber: v.Line,
			Context:    v.Context,
		})
	}
	return findings
}

// engineFailure is the reserved low-severity diagnostic finding for a
// contained per-evaluation failure.
func engineFailure(ruleID, file string, err error) models.Finding {
	msg := fmt.Sprintf("rule %q failed", ruleID)
	if file != "" {
		msg = fmt.Sprintf("rule %q failed on %s", ruleID, file)
	}
	return models.Finding{
		CheckID:  models.CheckIDEngineFailure,
		Severity: models.SeverityInfo,
		Message:  fmt.Sprintf("%s: %v", msg, err),
		FilePath: file,
		Context:  map[string]any{"failed_rule_id": ruleID},
	}
}

// Canonicalize orders findings by rule declaration order, then file
// path, then line number, so output is reproducible across runs
// regardless of evaluation parallelism. Engine-failure findings sort
// with their failed rule.
func Canonicalize(findings []models.Finding, rules []models.ExecutableRule) []models.Finding {
	declOrder := make(map[string]int, len(rules))
	for _, r := range rules {
		declOrder[r.ID] = r.DeclOrder
	}

	orderOf := func(f models.Finding) int {
		id := f.CheckID
		if id == models.CheckIDEngineFailure {
			if failed, ok := f.Context["failed_rule_id"].(string); ok {
				id = failed
			}
		}
		if ord, ok := declOrder[id]; ok {
			return ord
		}
		return len(rules) // unknown ids sort last
	}

	sort.SliceStable(findings, func(i, j int) bool {
		oi, oj := orderOf(findings[i]), orderOf(findings[j])
		if oi != oj {
			return oi < oj
		}
		if findings[i].FilePath != findings[j].FilePath {
			return findings[i].FilePath < findings[j].FilePath
		}
		if findings[i].LineNumber != findings[j].LineNumber {
			return findings[i].LineNumber < findings[j].LineNumber
		}
		return findings[i].Message < findings[j].Message
	})
	return findings
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
