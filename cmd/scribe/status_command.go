package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/deps"
	"scribe/internal/history"
	"scribe/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check tools, directories and the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *history.Store) error {
				checks := preflight.RunAll(cmd.Context(), cfg)
				tools := preflight.CheckSystemDeps(cfg)
				daemonCheck := preflight.CheckDaemon(cmd.Context(), cfg.Paths.APIBind, cfg.Paths.APIToken)
				summary, err := store.Summary(cmd.Context())
				if err != nil {
					return err
				}

				if asJSON {
					return writeJSON(cmd, map[string]any{
						"daemon":       daemonCheck,
						"dependencies": tools,
						"preflight":    checks,
						"jobs":         summary,
					})
				}

				out := cmd.OutOrStdout()
				report := newStatusReport(out)
				report.section("Daemon")
				report.line(daemonCheck.Name, passFail(daemonCheck.Passed, true), daemonCheck.Detail)
				report.section("Dependencies")
				for _, tool := range tools {
					detail := tool.Command
					if !tool.Available {
						detail = tool.Detail
					}
					report.line(tool.Name, passFail(tool.Available, tool.Optional), detail)
				}
				report.section("Directories")
				for _, check := range checks {
					report.line(check.Name, passFail(check.Passed, false), check.Detail)
				}
				report.section("History")
				report.line("Jobs", statusInfo, fmt.Sprintf("%d total, %d pending, %d running, %d completed, %d failed",
					summary.Total, summary.Pending, summary.Running, summary.Completed, summary.Failed))
				if err := report.writeTo(out); err != nil {
					return err
				}

				if missing := deps.MissingRequired(tools); len(missing) > 0 {
					return fmt.Errorf("%d required tool(s) missing", len(missing))
				}
				if failed := preflight.Failed(checks); len(failed) > 0 {
					return fmt.Errorf("%d preflight check(s) failed", len(failed))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
