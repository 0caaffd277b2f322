package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRunCmd creates the 'run' subcommand: one full pipeline pass followed by
// the CSV export.
func newRunCmd() *cobra.Command {
	var skipReport bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Crawls the category and completes unparsed products",
		Long: `Crawls every category page, upserts a stub per product, then fetches the
detail page and all reviews of each product still missing them, in chunks.
Products that fail are left for the next run. Unless --skip-report is set,
the products and reviews CSVs are written afterwards.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if a.Config.Server.Addr != "" {
				srv := startServer(a)
				defer srv.shutdown()
			}

			summary, err := a.Coordinator.Run(ctx)
			if err != nil {
				return fmt.Errorf("run pipeline: %w", err)
			}
			a.Logger.Info("Run command finished.",
				zap.String("run_id", summary.RunID),
				zap.Int("discovered", summary.Discovered),
				zap.Int("detail_failed", summary.DetailFailed),
				zap.Int("reviews_failed", summary.ReviewsFailed),
			)
			if skipReport {
				return nil
			}
			if _, err := a.Exporter.Export(ctx); err != nil {
				return fmt.Errorf("export report: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipReport, "skip-report", false, "do not write the CSV report after the run")
	return cmd
}
