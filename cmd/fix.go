// File: cmd/fix.go
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/xkilldash9x/focuswarden/internal/observability"
	"go.uber.org/zap"
)

// newFixCmd creates and configures the `fix` command.
func newFixCmd() *cobra.Command {
	var output string

	fixCmd := &cobra.Command{
		Use:   "fix FILE",
		Short: "Writes the remediated document to stdout or --output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			logger := observability.GetLogger().Named("fix")

			rep, err := processFile(args[0], cfg.Engine(), logger)
			if err != nil {
				return err
			}
			for _, d := range rep.Diagnostics {
				logger.Info("Diagnostic.", zap.Stringer("kind", d.Kind), zap.String("node", d.Path), zap.String("message", d.Message))
			}

			if output == "" || output == "-" {
				_, err := io.WriteString(cmd.OutOrStdout(), rep.Rendered)
				return err
			}
			if err := os.WriteFile(output, []byte(rep.Rendered), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			logger.Info("Wrote remediated document.", zap.String("output", output))
			return nil
		},
	}
	fixCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return fixCmd
}
