package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"reelpipe/internal/config"
	"reelpipe/internal/jobs"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run one scan of the source folder in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateForServe(); err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			return ctx.withProcessLock(func() error {
				return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
					rt, err := buildRuntime(cfg, store, logger)
					if err != nil {
						return err
					}
					defer rt.Close() //nolint:errcheck

					summary, err := rt.orchestrator.Scan(cmd.Context())
					if err != nil {
						return err
					}
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "Scan %s: %d listed, %d new, %d skipped\n",
						summary.ScanID, summary.Listed, summary.Discovered, summary.Skipped)
					fmt.Fprintf(out, "Published %d, failed %d in %s\n",
						summary.Succeeded, summary.Failed, summary.Duration.Round(time.Millisecond))
					return nil
				})
			})
		},
	}
}
