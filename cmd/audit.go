// File: cmd/audit.go
package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/xkilldash9x/focuswarden/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// newAuditCmd creates and configures the `audit` command.
func newAuditCmd() *cobra.Command {
	var jobs int

	auditCmd := &cobra.Command{
		Use:   "audit FILE...",
		Short: "Prints the focus order of each document before and after remediation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			logger := observability.GetLogger().Named("audit")

			if jobs <= 0 {
				jobs = runtime.GOMAXPROCS(0)
			}
			reports := make([]*fileReport, len(args))

			// Every file gets its own document and loop, so the documents
			// never share state across goroutines.
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(jobs)
			for i, path := range args {
				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					rep, err := processFile(path, cfg.Engine(), logger)
					if err != nil {
						return err
					}
					reports[i] = rep
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, rep := range reports {
				printReport(out, rep)
			}
			logger.Info("Audit complete.", zap.Int("files", len(reports)))
			return nil
		},
	}
	auditCmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "number of files processed concurrently (default: GOMAXPROCS)")
	return auditCmd
}

func printReport(w io.Writer, rep *fileReport) {
	fmt.Fprintf(w, "== %s\n", rep.Path)
	printOrder(w, "before", rep.Before)
	printOrder(w, "after", rep.After)
	fmt.Fprintf(w, "diagnostics (%d):\n", len(rep.Diagnostics))
	for _, d := range rep.Diagnostics {
		if d.Path != "" {
			fmt.Fprintf(w, "  %s %s: %s\n", d.Kind, d.Path, d.Message)
			continue
		}
		fmt.Fprintf(w, "  %s: %s\n", d.Kind, d.Message)
	}
}

func printOrder(w io.Writer, label string, order []string) {
	fmt.Fprintf(w, "%s (%d):\n", label, len(order))
	for i, entry := range order {
		fmt.Fprintf(w, "  %d. %s\n", i+1, entry)
	}
}
