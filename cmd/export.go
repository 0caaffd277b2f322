package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newExportCmd creates the 'export' subcommand, which writes the CSV report
// from whatever the store holds.
func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Writes the products and reviews CSVs from the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.Exporter.Export(cmd.Context())
			if err != nil {
				return fmt.Errorf("export report: %w", err)
			}
			a.Logger.Info("Export command finished.", zap.Strings("uris", res.URIs))
			return nil
		},
	}
}
