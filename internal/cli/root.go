package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/corehq/warden/internal/observability"
	"github.com/corehq/warden/internal/observability/logging"
	otelobs "github.com/corehq/warden/internal/observability/otel"
	"github.com/corehq/warden/internal/observability/receipt"
	"github.com/corehq/warden/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Constitutional policy engine for code and agent actions",
	Long: `warden: declarative rules, enforced.
Audits source trees against versioned policy and gates agent actions
before they run.`,
	Version:           version.String(),
	PersistentPreRunE: setupObservability,
	PersistentPostRun: teardownObservability,
}

var (
	logFormatFlag  string
	logLevelFlag   string
	logOutputFlag  string
	otelFlag       bool
	otelEndpoint   string
	otelProtocol   string
	otelInsecure   bool
	receiptPath    string
	receiptMode    string
	activeLogger   logging.Logger
	activeOtel     *otelobs.Handle
	activeReceipts receipt.Writer
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logFormatFlag, "log-format", "pretty", "Log format: pretty or jsonl")
	pf.StringVar(&logLevelFlag, "log-level", "info", "Log level: debug, info, warn, or error")
	pf.StringVar(&logOutputFlag, "log-output", "stderr", "Log destination: stderr or a file path")
	pf.BoolVar(&otelFlag, "otel", false, "Enable OpenTelemetry tracing")
	pf.StringVar(&otelEndpoint, "otel-endpoint", "", "OTLP endpoint (default from OTEL_EXPORTER_OTLP_ENDPOINT)")
	pf.StringVar(&otelProtocol, "otel-protocol", otelobs.ProtocolHTTP, "OTLP protocol: otlphttp or otlpgrpc")
	pf.BoolVar(&otelInsecure, "otel-insecure", false, "Allow insecure OTLP connections")
	pf.StringVar(&receiptPath, "receipt", "", "Write an execution receipt to this path")
	pf.StringVar(&receiptMode, "receipt-mode", string(receipt.ModeOverwrite), "Receipt write mode: overwrite or append")

	rootCmd.AddCommand(GetAuditCmd())
	rootCmd.AddCommand(GetCoverageCmd())
	rootCmd.AddCommand(GetValidateCmd())
	rootCmd.AddCommand(GetRulesCmd())
	rootCmd.AddCommand(GetEvidenceCmd())
	rootCmd.AddCommand(GetKeygenCmd())
}

// setupObservability wires op id, logger, tracing and receipts into the
// command context before any subcommand runs.
func setupObservability(cmd *cobra.Command, args []string) error {
	ctx := observability.WithOpID(cmd.Context())

	log, err := logging.NewLogger(logging.Config{
		Format: logFormatFlag,
		Level:  logLevelFlag,
		Output: logOutputFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	activeLogger = log
	ctx = logging.WithLogger(ctx, log)

	if otelFlag {
		h, err := otelobs.Init(ctx, otelobs.Config{
			Enabled:     true,
			Endpoint:    otelEndpoint,
			Protocol:    otelProtocol,
			Insecure:    otelInsecure,
			ServiceName: "warden",
			SampleRatio: 1.0,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		activeOtel = h
		ctx = otelobs.WithHandle(ctx, h)
	}

	if receiptPath != "" {
		w, err := receipt.NewWriter(receiptPath, receipt.Mode(receiptMode))
		if err != nil {
			return fmt.Errorf("failed to initialize receipts: %w", err)
		}
		activeReceipts = w
		ctx = receipt.WithWriter(ctx, w)
	}

	cmd.SetContext(ctx)
	return nil
}

func teardownObservability(cmd *cobra.Command, args []string) {
	if activeReceipts != nil {
		_ = activeReceipts.Close()
	}
	if activeOtel != nil {
		_ = activeOtel.Shutdown(cmd.Context())
	}
	if activeLogger != nil {
		_ = activeLogger.Close()
	}
}

// exitError carries a specific process exit code through cobra.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// Execute runs the CLI and returns the process exit code. Findings and
// policy denials use dedicated codes; internal errors exit 2.
func Execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintln(os.Stderr, err)
	return 2
}
