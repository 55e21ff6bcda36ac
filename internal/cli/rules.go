package cli

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/corehq/warden/internal/gates"
	"github.com/corehq/warden/internal/models"
	"github.com/corehq/warden/internal/observability/logging"
	"github.com/corehq/warden/internal/policy"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and lint policy rule sets",
}

// rulesListCmd prints the executable rule set
var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the executable rules a policy declares",
	Long: `Loads policy and prints every rule that would run, with its
authority tier, enforcement level and engine.

Example:
  warden rules list --policy ./policies`,
	RunE:         runRulesList,
	SilenceUsage: true,
}

// rulesLintCmd validates policy documents without running them
var rulesLintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate policy documents without auditing anything",
	Long: `Parses policy documents and reports malformed documents, references
to unknown engines, gate parameters that do not compile (regexes, CEL
predicates) and malformed scope globs.

Exit codes: 0 clean, 1 problems found.

Example:
  warden rules lint --policy ./policies`,
	RunE:         runRulesLint,
	SilenceUsage: true,
}

var (
	rulesPolicyFlag []string
	rulesFormatFlag string
)

func init() {
	rulesCmd.PersistentFlags().StringSliceVar(&rulesPolicyFlag, "policy", []string{"constitution"}, "Policies to inspect: preset name, YAML file, or directory (repeatable)")
	rulesListCmd.Flags().StringVar(&rulesFormatFlag, "format", "text", "Output format: text or json")
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesLintCmd)
}

// GetRulesCmd export
func GetRulesCmd() *cobra.Command {
	return rulesCmd
}

// RuleListItem one row of rules list output
type RuleListItem struct {
	ID          string `json:"id"`
	Statement   string `json:"statement"`
	Authority   string `json:"authority"`
	Enforcement string `json:"enforcement"`
	Engine      string `json:"engine"`
	Source      string `json:"source_policy_id,omitempty"`
	ContextWide bool   `json:"context_wide,omitempty"`
}

func runRulesList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logging.From(ctx)

	docs, loadErrs, err := loadPolicies(rulesPolicyFlag)
	if err != nil {
		return err
	}
	for _, le := range loadErrs {
		log.Warn("policy", "policy document rejected", "path", le.Path, "error", le.Err.Error())
	}

	registry, err := gates.NewRegistry(gates.Deps{})
	if err != nil {
		return err
	}
	extraction := policy.Extract(docs, registry, log)

	items := make([]RuleListItem, 0, len(extraction.Rules))
	for _, r := range extraction.Rules {
		items = append(items, RuleListItem{
			ID:          r.ID,
			Statement:   r.Statement,
			Authority:   string(r.Authority),
			Enforcement: string(r.Enforcement),
			Engine:      r.Engine,
			Source:      r.SourcePolicyID,
			ContextWide: r.IsContextLevel,
		})
	}

	if rulesFormatFlag == "json" {
		jsonOutput, jsonErr := FormatJSONOutput(items)
		if jsonErr != nil {
			return fmt.Errorf("failed to format JSON output: %w", jsonErr)
		}
		fmt.Println(string(jsonOutput))
		return nil
	}

	for _, item := range items {
		scope := "file"
		if item.ContextWide {
			scope = "repo"
		}
		fmt.Printf("%-45s %-12s %-8s %-18s %s\n",
			item.ID, item.Authority, item.Enforcement, item.Engine, scope)
	}
	fmt.Printf("\n%d executable rule(s)", len(items))
	if len(extraction.Skipped) > 0 {
		fmt.Printf(", %d skipped", len(extraction.Skipped))
	}
	fmt.Println()
	return nil
}

func runRulesLint(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logging.From(ctx)

	docs, loadErrs, err := loadPolicies(rulesPolicyFlag)
	if err != nil {
		return err
	}

	registry, err := gates.NewRegistry(gates.Deps{})
	if err != nil {
		return err
	}
	extraction := policy.Extract(docs, registry, log)

	var problems []string
	for _, le := range loadErrs {
		problems = append(problems, fmt.Sprintf("%s: %v", le.Path, le.Err))
	}
	for _, s := range extraction.Skipped {
		problems = append(problems, fmt.Sprintf("%s: %s (engine %q, known: %s)",
			s.RuleID, s.Reason, s.Engine, strings.Join(registry.EngineIDs(), ", ")))
	}
	for _, r := range extraction.Rules {
		problems = append(problems, lintRule(r)...)
	}
	for _, doc := range docs {
		if doc.Governance != nil {
			problems = append(problems, lintGovernance(doc.Name, doc.Governance)...)
		}
	}

	if len(problems) == 0 {
		fmt.Printf("%swarden rules lint: PASS%s (%d documents, %d rules)\n",
			colorGreen, colorReset, len(docs), len(extraction.Rules))
		return nil
	}

	fmt.Printf("%swarden rules lint: FAIL%s (%d problem(s))\n", colorRed, colorReset, len(problems))
	for _, p := range problems {
		fmt.Printf("  %s\n", p)
	}
	return &exitError{code: 1, msg: fmt.Sprintf("lint found %d problem(s)", len(problems))}
}

// lintRule checks the parts of a rule that would otherwise only surface
// as engine failures at audit time: gate parameters and scope globs.
func lintRule(r models.ExecutableRule) []string {
	var problems []string
	for _, p := range gates.CheckParams(r.Engine, r.Params) {
		problems = append(problems, fmt.Sprintf("%s: %s", r.ID, p))
	}
	for _, pat := range r.Scope {
		if !doublestar.ValidatePattern(pat) {
			problems = append(problems, fmt.Sprintf("%s: invalid scope pattern %q", r.ID, pat))
		}
	}
	for _, pat := range r.Exclusions {
		if !doublestar.ValidatePattern(pat) {
			problems = append(problems, fmt.Sprintf("%s: invalid exclusion pattern %q", r.ID, pat))
		}
	}
	return problems
}

// lintGovernance checks tier names and approval types are well formed.
func lintGovernance(docName string, gov *models.GovernancePolicy) []string {
	var problems []string

	checkTier := func(kind, pattern, tier string) {
		if _, err := models.ParseRiskTier(tier); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %s rule %q: %v", docName, kind, pattern, err))
		}
	}
	for _, r := range gov.PathRisk {
		checkTier("path_risk", r.Pattern, r.Tier)
	}
	for _, r := range gov.ActionRisk {
		checkTier("action_risk", r.Pattern, r.Tier)
	}

	validApprovals := map[string]bool{
		string(models.ApprovalAutonomous):        true,
		string(models.ApprovalValidationOnly):    true,
		string(models.ApprovalHumanConfirmation): true,
		string(models.ApprovalHumanReview):       true,
	}
	for tier, approval := range gov.ApprovalTable {
		if _, err := models.ParseRiskTier(tier); err != nil {
			problems = append(problems, fmt.Sprintf("%s: approval_table: %v", docName, err))
		}
		if !validApprovals[approval] {
			problems = append(problems, fmt.Sprintf("%s: approval_table: unknown approval type %q", docName, approval))
		}
	}

	return problems
}
