package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/intake"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var maxAge time.Duration
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove stale staged uploads",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			age := maxAge
			if !cmd.Flags().Changed("max-age") {
				age = time.Duration(cfg.Performance.TempFileMaxAgeHours) * time.Hour
			}
			removed := intake.CleanStale(cmd.Context(), cfg.Paths.StagingDir, age, ctx.logger(cfg))
			out := cmd.OutOrStdout()
			for _, path := range removed {
				fmt.Fprintf(out, "removed %s\n", path)
			}
			fmt.Fprintf(out, "Removed %d staged file(s) older than %s\n", len(removed), age)
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 24*time.Hour, "Remove staged files older than this")
	return cmd
}
