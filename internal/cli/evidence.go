package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corehq/warden/internal/evidence"
)

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Inspect audit evidence artifacts",
}

// evidenceDiffCmd compares two evidence artifacts
var evidenceDiffCmd = &cobra.Command{
	Use:   "diff <before> <after>",
	Short: "Compare two audit evidence artifacts",
	Long: `Shows what moved between two audit runs: verdict transitions,
executed-check changes and finding count shifts.

Example:
  warden evidence diff .warden/evidence-main.json .warden/evidence.json`,
	Args:         cobra.ExactArgs(2),
	RunE:         runEvidenceDiff,
	SilenceUsage: true,
}

// evidenceSignCmd produces a detached signature for an artifact
var evidenceSignCmd = &cobra.Command{
	Use:   "sign <artifact>",
	Short: "Sign an evidence artifact with an ed25519 key",
	Long: `Writes a detached .sig envelope next to the artifact so downstream
consumers can prove the evidence was not edited after the run.

Example:
  warden evidence sign .warden/evidence.json --key warden.key`,
	Args:         cobra.ExactArgs(1),
	RunE:         runEvidenceSign,
	SilenceUsage: true,
}

// evidenceVerifyCmd checks a detached signature
var evidenceVerifyCmd = &cobra.Command{
	Use:   "verify <artifact>",
	Short: "Verify an evidence artifact's detached signature",
	Long: `Checks the artifact's .sig envelope against a public key.

Exit codes: 0 valid, 1 invalid or missing signature.

Example:
  warden evidence verify .warden/evidence.json --key warden.pub`,
	Args:         cobra.ExactArgs(1),
	RunE:         runEvidenceVerify,
	SilenceUsage: true,
}

var (
	evidenceDiffFormatFlag string
	evidenceSignKeyFlag    string
	evidenceVerifyKeyFlag  string
)

func init() {
	evidenceDiffCmd.Flags().StringVar(&evidenceDiffFormatFlag, "format", "text", "Output format: text or json")
	evidenceSignCmd.Flags().StringVar(&evidenceSignKeyFlag, "key", "warden.key", "Path to the ed25519 private key")
	evidenceVerifyCmd.Flags().StringVar(&evidenceVerifyKeyFlag, "key", "warden.pub", "Path to the ed25519 public key")
	evidenceCmd.AddCommand(evidenceDiffCmd)
	evidenceCmd.AddCommand(evidenceSignCmd)
	evidenceCmd.AddCommand(evidenceVerifyCmd)
}

// GetEvidenceCmd export
func GetEvidenceCmd() *cobra.Command {
	return evidenceCmd
}

func runEvidenceDiff(cmd *cobra.Command, args []string) error {
	store := evidence.NewStore()

	before, err := store.Load(args[0])
	if err != nil {
		return err
	}
	after, err := store.Load(args[1])
	if err != nil {
		return err
	}

	result, err := evidence.Diff(before, after)
	if err != nil {
		return err
	}

	if evidenceDiffFormatFlag == "json" {
		jsonOutput, jsonErr := FormatJSONOutput(result)
		if jsonErr != nil {
			return fmt.Errorf("failed to format JSON output: %w", jsonErr)
		}
		fmt.Println(string(jsonOutput))
		return nil
	}

	if !result.HasChanges {
		fmt.Printf("%sNo meaningful changes between runs.%s\n", colorGreen, colorReset)
		return nil
	}

	fmt.Printf("Changes between runs (%d):\n", len(result.Translations))
	for _, t := range result.Translations {
		switch evidence.GetSeverity(t) {
		case evidence.SeverityCritical:
			fmt.Printf("  %s%s%s\n", colorRed, t, colorReset)
		case evidence.SeveritySafe:
			fmt.Printf("  %s%s%s\n", colorGreen, t, colorReset)
		default:
			fmt.Printf("  %s%s%s\n", colorYellow, t, colorReset)
		}
	}
	return nil
}

func runEvidenceSign(cmd *cobra.Command, args []string) error {
	artifactPath := args[0]
	envelope, err := evidence.Sign(artifactPath, evidenceSignKeyFlag)
	if err != nil {
		return err
	}

	sigPath := artifactPath + ".sig"
	if err := os.WriteFile(sigPath, envelope, 0644); err != nil {
		return fmt.Errorf("failed to write signature: %w", err)
	}

	fmt.Printf("%sSigned%s %s -> %s\n", colorGreen, colorReset, artifactPath, sigPath)
	return nil
}

func runEvidenceVerify(cmd *cobra.Command, args []string) error {
	artifactPath := args[0]
	sigPath := artifactPath + ".sig"

	envelope, err := os.ReadFile(sigPath)
	if err != nil {
		return &exitError{code: 1, msg: fmt.Sprintf("signature not found: %s", sigPath)}
	}

	valid, err := evidence.Verify(artifactPath, envelope, evidenceVerifyKeyFlag)
	if err != nil {
		return err
	}
	if !valid {
		fmt.Printf("%swarden evidence verify: INVALID%s (%s)\n", colorRed, colorReset, artifactPath)
		return &exitError{code: 1, msg: "evidence signature is invalid"}
	}

	fmt.Printf("%swarden evidence verify: OK%s (%s)\n", colorGreen, colorReset, artifactPath)
	return nil
}
