package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appaudit "github.com/jamshiddins/vendbot-unified/internal/application/audit"
	"github.com/jamshiddins/vendbot-unified/internal/infrastructure/config"
	"github.com/jamshiddins/vendbot-unified/internal/infrastructure/logger"
)

var (
	period       string
	uploadFolder string
	outputFolder string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "audit",
	Short: "Vending fleet audit and reconciliation",
	Long: `audit cross-checks vending machine sales against fiscal receipts,
QR payment-service exports and ingredient movements, and writes an Excel
report of every discrepancy it finds.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a reconciliation over one audit period",
	Example: `  audit run --period 2024-06-01:2024-06-14
  audit run --period 2024-06-14:2024-06-14 --upload-folder ./data --output-folder ./reports`,
	RunE: func(cmd *cobra.Command, args []string) error {
		periodStart, periodEnd, err := appaudit.ParsePeriod(period)
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if verbose {
			cfg.Log.Level = "debug"
		}

		log, err := logger.New(&logger.Config{
			Level:      cfg.Log.Level,
			Format:     cfg.Log.Format,
			Output:     cfg.Log.Output,
			TimeFormat: logger.DefaultConfig().TimeFormat,
		})
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		defer logger.Sync(log)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		runner := appaudit.NewRunner(cfg, log, uploadFolder, outputFolder)
		path, err := runner.Run(ctx, periodStart, periodEnd)
		if err != nil {
			return err
		}

		// A run that found discrepancies still succeeded; the report is the
		// deliverable either way.
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", path)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&period, "period", "", "audit period as YYYY-MM-DD:YYYY-MM-DD (required)")
	runCmd.Flags().StringVar(&uploadFolder, "upload-folder", "./data", "folder holding the uploaded exports")
	runCmd.Flags().StringVar(&outputFolder, "output-folder", "./reports", "folder the report is written to")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	_ = runCmd.MarkFlagRequired("period")

	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
