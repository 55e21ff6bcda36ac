package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/corehq/warden/internal/audit"
	"github.com/corehq/warden/internal/evidence"
	"github.com/corehq/warden/internal/gates"
	"github.com/corehq/warden/internal/judge"
	"github.com/corehq/warden/internal/knowledge"
	"github.com/corehq/warden/internal/models"
	"github.com/corehq/warden/internal/observability"
	"github.com/corehq/warden/internal/observability/logging"
	otelobs "github.com/corehq/warden/internal/observability/otel"
	"github.com/corehq/warden/internal/observability/receipt"
	"github.com/corehq/warden/internal/parser"
	"github.com/corehq/warden/internal/policy"
	"github.com/corehq/warden/internal/scanner"
)

// auditCmd runs the full rule set against a source tree
var auditCmd = &cobra.Command{
	Use:   "audit [path]",
	Short: "Audit a source tree against policy",
	Long: `Loads policy, extracts the executable rule set, scans the tree and
reports findings. Evidence for the run is written for later coverage
cross-referencing.

Exit codes: 0 pass, 1 error findings remain, 2 internal error.

Examples:
  # Audit the current tree with the constitution preset
  warden audit

  # Audit with a policy directory and strict enforcement
  warden audit --policy ./policies --strict ./src

  # Get JSON output for CI
  warden audit --format=json`,
	Args:         cobra.MaximumNArgs(1),
	RunE:         runAudit,
	SilenceUsage: true,
}

var (
	auditPolicyFlag   []string
	auditStrictFlag   bool
	auditFormatFlag   string
	auditEvidenceFlag string
	auditWorkersFlag  int
	auditTimeoutFlag  time.Duration
	auditIndexFlag    string
	auditJudgeFlag    string
)

func init() {
	auditCmd.Flags().StringSliceVar(&auditPolicyFlag, "policy", []string{"constitution"}, "Policies to apply: preset name, YAML file, or directory (repeatable)")
	auditCmd.Flags().BoolVar(&auditStrictFlag, "strict", false, "Enforce policy-tier rules at declared severity")
	auditCmd.Flags().StringVar(&auditFormatFlag, "format", "text", "Output format: text or json")
	auditCmd.Flags().StringVar(&auditEvidenceFlag, "evidence", evidence.DefaultPath, "Path for the audit evidence artifact")
	auditCmd.Flags().IntVar(&auditWorkersFlag, "workers", 0, "Worker pool size for file-scoped checks (0 = one per CPU)")
	auditCmd.Flags().DurationVarP(&auditTimeoutFlag, "timeout", "t", 0, "Run-level timeout (0 = none)")
	auditCmd.Flags().StringVar(&auditIndexFlag, "index", "", "Path to a knowledge index database")
	auditCmd.Flags().StringVar(&auditJudgeFlag, "judge-model", "", "Chat model for judged rules (requires OPENAI_API_KEY; empty = stub)")
}

// GetAuditCmd export
func GetAuditCmd() *cobra.Command {
	return auditCmd
}

func runAudit(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "warden audit", os.Args[1:])
	var receiptOpts []receipt.Option

	defer func() {
		_ = sess.Finish(err, receiptOpts...)
	}()

	log := logging.From(ctx)
	start := time.Now()

	repoPath := "."
	if len(args) > 0 {
		repoPath = args[0]
	}

	if h := otelobs.From(ctx); h != nil {
		var span trace.Span
		ctx, span = h.Tracer.Start(ctx, "warden.audit",
			trace.WithAttributes(
				attribute.String("warden.op_id", observability.OpID(ctx)),
				attribute.String("warden.command", "audit"),
				attribute.String("warden.repo", repoPath),
			))
		defer func() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed")
			} else {
				span.SetStatus(codes.Ok, "success")
			}
			span.End()
		}()
	}

	log.Event(ctx, "audit.start", map[string]any{"repo": repoPath})

	var resultStatus string
	defer func() {
		log.Event(ctx, "audit.complete", map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      resultStatus,
		})
	}()

	if auditFormatFlag != "text" && auditFormatFlag != "json" {
		resultStatus = "fail"
		return fmt.Errorf("invalid format: %s (use text or json)", auditFormatFlag)
	}

	// Load policy
	docs, loadErrs, err := loadPolicies(auditPolicyFlag)
	if err != nil {
		resultStatus = "fail"
		return err
	}
	for _, le := range loadErrs {
		log.Warn("policy", "policy document rejected", "path", le.Path, "error", le.Err.Error())
	}
	if len(docs) == 0 {
		resultStatus = "fail"
		return fmt.Errorf("no usable policy documents loaded")
	}

	// Build collaborators
	deps, cleanup, err := buildGateDeps(log)
	if err != nil {
		resultStatus = "fail"
		return err
	}
	defer cleanup()

	registry, err := gates.NewRegistry(deps)
	if err != nil {
		resultStatus = "fail"
		return err
	}

	extraction := policy.Extract(docs, registry, log)
	if len(extraction.Rules) == 0 {
		resultStatus = "fail"
		return fmt.Errorf("policy declares no executable rules")
	}

	// Scan the tree
	repo, err := scanner.Walk(repoPath, parser.NewRegistry())
	if err != nil {
		resultStatus = "fail"
		return fmt.Errorf("scan failed: %w", err)
	}

	if auditTimeoutFlag > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, auditTimeoutFlag)
		defer cancel()
	}

	orchestrator := audit.New(extraction.Rules, registry, repo, &gates.RepoContext{
		Root:       repo.Root,
		Files:      repo.Files,
		Index:      deps.Index,
		Similarity: deps.Similarity,
	}, log)
	orchestrator.MaxWorkers = auditWorkersFlag

	result, err := orchestrator.Run(ctx)
	if err != nil {
		resultStatus = "fail"
		return fmt.Errorf("audit failed: %w", err)
	}

	// Post-process
	allowList := models.NewEntryPointAllowList(policy.EntryPointTypes(docs))
	post := audit.NewPostProcessor(extraction.Rules, deps.Index, allowList,
		audit.WithStrict(auditStrictFlag))
	findings, autoIgnored, err := post.Process(ctx, audit.Canonicalize(result.Findings, extraction.Rules))
	if err != nil {
		resultStatus = "fail"
		return fmt.Errorf("post-processing failed: %w", err)
	}

	// Persist evidence
	store := evidence.NewStore()
	artifact := store.Build(result, findings, time.Now())
	if dir := filepath.Dir(auditEvidenceFlag); dir != "" && dir != "." {
		if mkErr := os.MkdirAll(dir, 0755); mkErr != nil {
			resultStatus = "fail"
			return fmt.Errorf("failed to create evidence directory: %w", mkErr)
		}
	}
	if err = store.Save(artifact, auditEvidenceFlag); err != nil {
		resultStatus = "fail"
		return err
	}

	output := buildAuditOutput(repoPath, result, findings, autoIgnored, extraction.Skipped, artifact)

	if auditFormatFlag == "json" {
		jsonOutput, jsonErr := FormatJSONOutput(output)
		if jsonErr != nil {
			resultStatus = "fail"
			return fmt.Errorf("failed to format JSON output: %w", jsonErr)
		}
		fmt.Println(string(jsonOutput))
	} else {
		fmt.Print(FormatAuditText(output))
	}

	receiptOpts = append(receiptOpts,
		receipt.WithEvidence(auditEvidenceFlag),
		receipt.WithAudit(receipt.AuditSummary{
			RulesExecuted: len(result.ExecutedRuleIDs),
			FilesScanned:  result.FilesScanned,
			Errors:        output.Summary.Errors,
			Warnings:      output.Summary.Warnings,
			Info:          output.Summary.Info,
			Incomplete:    result.Incomplete,
			Verdict:       verdict(artifact),
		}))

	if output.Outcome == "FAIL" {
		resultStatus = "fail"
		if result.Incomplete {
			return &exitError{code: 1, msg: "audit incomplete: run timed out before all checks finished"}
		}
		return &exitError{code: 1, msg: fmt.Sprintf("audit failed: %d error finding(s)", output.Summary.Errors)}
	}

	resultStatus = "success"
	return nil
}

// buildGateDeps wires the knowledge index and judged-reasoning
// collaborators from flags. Absent flags mean safe defaults.
func buildGateDeps(log logging.Logger) (gates.Deps, func(), error) {
	deps := gates.Deps{}
	cleanup := func() {}

	if auditIndexFlag != "" {
		idx, err := knowledge.OpenSQLite(auditIndexFlag)
		if err != nil {
			return deps, cleanup, fmt.Errorf("failed to open knowledge index: %w", err)
		}
		deps.Index = idx
		cleanup = func() { _ = idx.Close() }
	}

	if auditJudgeFlag != "" {
		j, err := judge.NewOpenAIJudge(judge.OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:   auditJudgeFlag,
		})
		if err != nil {
			return deps, cleanup, err
		}
		deps.Judge = j
	} else {
		log.Debug("judge", "no judge model configured, judged rules answered by stub")
	}

	return deps, cleanup, nil
}

func buildAuditOutput(repoPath string, result *audit.Result, findings []models.Finding, autoIgnored []models.AutoIgnored, skipped []policy.SkippedRule, artifact *models.AuditEvidence) *AuditOutput {
	output := &AuditOutput{
		RepoPath:     repoPath,
		Policies:     auditPolicyFlag,
		Strict:       auditStrictFlag,
		FilesScanned: result.FilesScanned,
		Executed:     artifact.ExecutedChecks,
		Summary:      artifact.FindingsSummary,
		Findings:     findings,
		AutoIgnored:  autoIgnored,
		Incomplete:   result.Incomplete,
		EvidencePath: auditEvidenceFlag,
		Outcome:      "PASS",
	}
	for _, s := range skipped {
		output.Skipped = append(output.Skipped, SkippedOutputItem{
			RuleID: s.RuleID,
			Engine: s.Engine,
			Reason: s.Reason,
		})
	}
	if !artifact.Passed {
		output.Outcome = "FAIL"
	}
	return output
}

func verdict(artifact *models.AuditEvidence) string {
	switch {
	case artifact.Incomplete:
		return "incomplete"
	case artifact.Passed:
		return "pass"
	default:
		return "fail"
	}
}
