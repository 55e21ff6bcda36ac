package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/corehq/warden/internal/governance"
	"github.com/corehq/warden/internal/models"
	"github.com/corehq/warden/internal/observability"
	"github.com/corehq/warden/internal/observability/logging"
	otelobs "github.com/corehq/warden/internal/observability/otel"
	"github.com/corehq/warden/internal/observability/receipt"
	"github.com/corehq/warden/internal/policy"
)

// validateCmd gates one proposed action against governance policy
var validateCmd = &cobra.Command{
	Use:   "validate --action <name> --target <path>",
	Short: "Validate a proposed action against governance policy",
	Long: `Checks one proposed action against the policy's forbidden paths,
allowed actions and evidence requirements, then scores its risk tier
and required approval type.

Exit codes: 0 allowed, 1 denied.

Examples:
  # Ask whether an agent may edit a file
  warden validate --action write_file --target src/api/handlers.py

  # Supply evidence metadata required by policy
  warden validate --action deploy --target ./svc --meta ticket=OPS-1331`,
	RunE:         runValidate,
	SilenceUsage: true,
}

var (
	validatePolicyFlag []string
	validateActionFlag string
	validateTargetFlag string
	validateMetaFlag   []string
	validateFormatFlag string
)

func init() {
	validateCmd.Flags().StringSliceVar(&validatePolicyFlag, "policy", []string{"constitution"}, "Policies to apply: preset name, YAML file, or directory (repeatable)")
	validateCmd.Flags().StringVar(&validateActionFlag, "action", "", "Action name to validate")
	validateCmd.Flags().StringVar(&validateTargetFlag, "target", "", "Target path of the action")
	validateCmd.Flags().StringArrayVar(&validateMetaFlag, "meta", nil, "Evidence metadata as key=value (repeatable)")
	validateCmd.Flags().StringVar(&validateFormatFlag, "format", "text", "Output format: text or json")
	_ = validateCmd.MarkFlagRequired("action")
	_ = validateCmd.MarkFlagRequired("target")
}

// GetValidateCmd export
func GetValidateCmd() *cobra.Command {
	return validateCmd
}

func runValidate(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "warden validate", os.Args[1:])
	var receiptOpts []receipt.Option

	defer func() {
		_ = sess.Finish(err, receiptOpts...)
	}()

	log := logging.From(ctx)
	start := time.Now()

	if h := otelobs.From(ctx); h != nil {
		var span trace.Span
		ctx, span = h.Tracer.Start(ctx, "warden.validate",
			trace.WithAttributes(
				attribute.String("warden.op_id", observability.OpID(ctx)),
				attribute.String("warden.command", "validate"),
				attribute.String("warden.action", validateActionFlag),
				attribute.String("warden.target", validateTargetFlag),
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

	log.Event(ctx, "validate.start", map[string]any{
		"action": validateActionFlag,
		"target": validateTargetFlag,
	})

	var resultStatus string
	defer func() {
		log.Event(ctx, "validate.complete", map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      resultStatus,
		})
	}()

	docs, loadErrs, err := loadPolicies(validatePolicyFlag)
	if err != nil {
		resultStatus = "fail"
		return err
	}
	for _, le := range loadErrs {
		log.Warn("policy", "policy document rejected", "path", le.Path, "error", le.Err.Error())
	}

	gov := policy.MergedGovernance(docs)
	if gov == nil {
		resultStatus = "fail"
		return fmt.Errorf("loaded policy declares no governance block")
	}

	metadata, err := parseMeta(validateMetaFlag)
	if err != nil {
		resultStatus = "fail"
		return err
	}

	request := models.ActionRequest{
		TargetPath: validateTargetFlag,
		ActionName: validateActionFlag,
		Metadata:   metadata,
	}

	validator := governance.NewValidator(gov, log)
	decision, validateErr := validator.Validate(ctx, request)

	receiptOpts = append(receiptOpts, receipt.WithGovernance(receipt.GovernanceSummary{
		Action:       request.ActionName,
		TargetPath:   request.TargetPath,
		Allowed:      decision.Allowed,
		RiskTier:     decision.RiskTierName,
		ApprovalType: string(decision.ApprovalType),
		Rationale:    decision.Rationale,
	}))

	if validateFormatFlag == "json" {
		jsonOutput, jsonErr := FormatJSONOutput(decision)
		if jsonErr != nil {
			resultStatus = "fail"
			return fmt.Errorf("failed to format JSON output: %w", jsonErr)
		}
		fmt.Println(string(jsonOutput))
	} else {
		printDecisionText(decision)
	}

	var violation *governance.PolicyViolation
	if errors.As(validateErr, &violation) {
		resultStatus = "fail"
		return &exitError{code: 1, msg: violation.Error()}
	}
	if validateErr != nil {
		resultStatus = "fail"
		return validateErr
	}

	resultStatus = "success"
	return nil
}

// parseMeta turns key=value pairs into evidence metadata.
func parseMeta(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	metadata := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --meta value %q (expected key=value)", pair)
		}
		metadata[key] = value
	}
	return metadata, nil
}

func printDecisionText(decision *models.GovernanceDecision) {
	if decision.Allowed {
		fmt.Printf("%swarden validate: ALLOW%s (risk=%s, approval=%s)\n",
			colorGreen, colorReset, decision.RiskTierName, decision.ApprovalType)
	} else {
		fmt.Printf("%swarden validate: DENY%s (risk=%s)\n",
			colorRed, colorReset, decision.RiskTierName)
	}
	fmt.Printf("Rationale: %s\n", decision.Rationale)
}
