package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/corehq/warden/internal/evidence"
	"github.com/corehq/warden/internal/gates"
	"github.com/corehq/warden/internal/observability"
	"github.com/corehq/warden/internal/observability/logging"
	otelobs "github.com/corehq/warden/internal/observability/otel"
	"github.com/corehq/warden/internal/observability/receipt"
	"github.com/corehq/warden/internal/policy"
)

// coverageCmd cross-references declared rules against evidence
var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Check that every declared blocking rule actually executed",
	Long: `Diffs the policy's error-enforcement rules against the executed-check
set recorded in an audit evidence artifact. A rule that exists on paper
but never ran is an uncovered rule and fails the check.

Exit codes: 0 covered, 1 uncovered rules found.

Example:
  warden coverage --policy ./policies --evidence .warden/evidence.json`,
	RunE:         runCoverage,
	SilenceUsage: true,
}

var (
	coveragePolicyFlag   []string
	coverageEvidenceFlag string
	coverageFormatFlag   string
)

func init() {
	coverageCmd.Flags().StringSliceVar(&coveragePolicyFlag, "policy", []string{"constitution"}, "Policies to check: preset name, YAML file, or directory (repeatable)")
	coverageCmd.Flags().StringVar(&coverageEvidenceFlag, "evidence", evidence.DefaultPath, "Path to the audit evidence artifact")
	coverageCmd.Flags().StringVar(&coverageFormatFlag, "format", "text", "Output format: text or json")
}

// GetCoverageCmd export
func GetCoverageCmd() *cobra.Command {
	return coverageCmd
}

func runCoverage(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "warden coverage", os.Args[1:])
	var receiptOpts []receipt.Option

	defer func() {
		_ = sess.Finish(err, receiptOpts...)
	}()

	log := logging.From(ctx)
	start := time.Now()

	if h := otelobs.From(ctx); h != nil {
		var span trace.Span
		ctx, span = h.Tracer.Start(ctx, "warden.coverage",
			trace.WithAttributes(
				attribute.String("warden.op_id", observability.OpID(ctx)),
				attribute.String("warden.command", "coverage"),
				attribute.String("warden.evidence", coverageEvidenceFlag),
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

	log.Event(ctx, "coverage.start", nil)

	var resultStatus string
	defer func() {
		log.Event(ctx, "coverage.complete", map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      resultStatus,
		})
	}()

	docs, loadErrs, err := loadPolicies(coveragePolicyFlag)
	if err != nil {
		resultStatus = "fail"
		return err
	}
	for _, le := range loadErrs {
		log.Warn("policy", "policy document rejected", "path", le.Path, "error", le.Err.Error())
	}

	registry, err := gates.NewRegistry(gates.Deps{})
	if err != nil {
		resultStatus = "fail"
		return err
	}
	extraction := policy.Extract(docs, registry, log)

	store := evidence.NewStore()
	if !store.Exists(coverageEvidenceFlag) {
		resultStatus = "fail"
		return fmt.Errorf("evidence not found: %s (run 'warden audit' first)", coverageEvidenceFlag)
	}
	artifact, err := store.Load(coverageEvidenceFlag)
	if err != nil {
		resultStatus = "fail"
		return err
	}

	report := evidence.Coverage(ctx, extraction.Rules, extraction.SkippedErrorRuleIDs(), artifact)

	receiptOpts = append(receiptOpts,
		receipt.WithEvidence(coverageEvidenceFlag),
		receipt.WithCoverage(receipt.CoverageSummary{
			DeclaredErrorRules: len(report.DeclaredErrorRules),
			ExecutedChecks:     len(report.ExecutedChecks),
			Uncovered:          report.Uncovered,
		}))

	if coverageFormatFlag == "json" {
		jsonOutput, jsonErr := FormatJSONOutput(report)
		if jsonErr != nil {
			resultStatus = "fail"
			return fmt.Errorf("failed to format JSON output: %w", jsonErr)
		}
		fmt.Println(string(jsonOutput))
	} else {
		printCoverageText(report, artifact.Incomplete)
	}

	if !report.Covered() {
		resultStatus = "fail"
		return &exitError{code: 1, msg: fmt.Sprintf("coverage gap: %d declared rule(s) never executed", len(report.Uncovered))}
	}

	resultStatus = "success"
	return nil
}

func printCoverageText(report *evidence.CoverageReport, incomplete bool) {
	if report.Covered() {
		fmt.Printf("%swarden coverage: PASS%s (%d blocking rules, all executed)\n",
			colorGreen, colorReset, len(report.DeclaredErrorRules))
	} else {
		fmt.Printf("%swarden coverage: FAIL%s (%d of %d blocking rules never executed)\n",
			colorRed, colorReset, len(report.Uncovered), len(report.DeclaredErrorRules))
		for _, id := range report.Uncovered {
			fmt.Printf("  uncovered: %s\n", id)
		}
	}
	if incomplete {
		fmt.Printf("%sNote: evidence is from an incomplete run%s\n", colorYellow, colorReset)
	}
}
