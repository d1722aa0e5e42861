package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/observability"
	"github.com/xkilldash9x/shelfcheck/internal/orchestrator"
	"github.com/xkilldash9x/shelfcheck/internal/reporting"
	"github.com/xkilldash9x/shelfcheck/internal/results"
)

// ErrBelowThreshold is returned by `run` when fewer checks passed than the
// run pass threshold requires. The process still exits non-zero.
var ErrBelowThreshold = fmt.Errorf("success rate below %.0f%%", results.PassThreshold*100)

// runFlagKeys maps run flags to the viper keys they override.
var runFlagKeys = map[string]string{
	"base-url": "run.base_url",
	"urls":     "run.product_urls",
	"output":   "run.output_dir",
	"timeout":  "run.timeout",
	"retries":  "run.retries",
	"headless": "run.headless",
	"verbose":  "run.verbose",
	"report":   "run.generate_report",
}

// newRunCmd creates and configures the `run` command.
func newRunCmd(a *app) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Checks every product URL and writes the report",
		Example: `  shelfcheck run --base-url https://shop.example.com \
    --urls https://shop.example.com/p/1,https://shop.example.com/p/2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFrom(ctx)
			if err != nil {
				return err
			}
			run := cfg.Run
			logger := observability.GetLogger()

			o, err := orchestrator.New(a.newDriver(logger), logger)
			if err != nil {
				return err
			}
			report, err := o.Run(ctx, run)
			if err != nil {
				var setupErr *orchestrator.SetupError
				if errors.As(err, &setupErr) {
					return fmt.Errorf("could not start the browser: %w", err)
				}
				return err
			}

			transcript, err := reporting.New("console")
			if err != nil {
				return err
			}
			if err := transcript.Render(cmd.OutOrStdout(), report); err != nil {
				logger.Warn("Failed to print the console transcript.", zap.Error(err))
			}

			if run.GenerateReport {
				paths, err := reporting.WriteFiles(run.OutputDir, report)
				if err != nil {
					return err
				}
				logger.Info("Reports written.", zap.String("json", paths.JSON), zap.String("html", paths.HTML))
				cmd.Printf("\nJSON report: %s\nHTML report: %s\n", paths.JSON, paths.HTML)
			}

			if !report.Passed() {
				return ErrBelowThreshold
			}
			return nil
		},
	}

	flags := runCmd.Flags()
	flags.String("base-url", "", "Base URL of the shop; used for cookie scoping")
	flags.String("urls", "", "Comma separated product page URLs to check")
	flags.StringP("output", "o", "", "Directory the JSON and HTML reports are written to (default ./test-reports)")
	flags.Int("timeout", 0, "Navigation timeout in milliseconds (default 30000)")
	flags.Int("retries", 0, "Attempts per check before the run is aborted (default 3)")
	flags.Bool("headless", true, "Run Chrome without a window")
	flags.BoolP("verbose", "v", false, "Enable debug logging")
	flags.Bool("report", true, "Write JSON and HTML report files")

	for name, key := range runFlagKeys {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}
	return runCmd
}
