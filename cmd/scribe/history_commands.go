package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/enrich"
	"scribe/internal/export"
	"scribe/internal/history"
	"scribe/internal/services"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past transcriptions",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryPruneCommand(ctx))
	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *history.Store) error {
				jobs, err := store.List(cmd.Context(), limit, statuses...)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, jobs)
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs recorded")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						shortJobID(job.ID),
						job.SourceName,
						string(job.Status),
						job.Model,
						humanize.IBytes(uint64(max(job.SizeBytes, 0))),
						humanize.Time(job.CreatedAt),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "File", "Status", "Model", "Size", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (pending, running, completed, failed)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum jobs to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func parseStatuses(values []string) ([]history.Status, error) {
	statuses := make([]history.Status, 0, len(values))
	for _, value := range values {
		status, ok := history.ParseStatus(value)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "cli", "parse flags", fmt.Sprintf("unknown status %q", value), nil)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var format string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show a job and its transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *history.Store) error {
				job, err := resolveJob(cmd, store, args[0])
				if err != nil {
					return err
				}
				var result *enrich.Result
				if job.Status == history.StatusCompleted {
					var stored enrich.Result
					if err := store.Result(cmd.Context(), job.ID, &stored); err == nil {
						result = &stored
					} else if !errors.Is(err, services.ErrNotFound) {
						return err
					}
				}
				if asJSON {
					return writeJSON(cmd, map[string]any{"job": job, "result": result})
				}
				out := cmd.OutOrStdout()
				renderJobDetail(out, job)
				if result == nil {
					return nil
				}
				rendered, err := export.Render(format, *result)
				if err != nil {
					return services.Wrap(services.ErrValidation, "cli", "render", err.Error(), nil)
				}
				fmt.Fprintln(out)
				_, _ = out.Write(rendered)
				if len(rendered) > 0 && rendered[len(rendered)-1] != '\n' {
					fmt.Fprintln(out)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", export.FormatText, "Transcript format: "+strings.Join(export.Formats(), ", "))
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output job and result as JSON")
	return cmd
}

// resolveJob accepts a full ID or the unique prefix shown by history list.
func resolveJob(cmd *cobra.Command, store *history.Store, id string) (*history.Job, error) {
	job, err := store.Get(cmd.Context(), id)
	if err == nil || !errors.Is(err, services.ErrNotFound) {
		return job, err
	}
	jobs, listErr := store.List(cmd.Context(), 0)
	if listErr != nil {
		return nil, listErr
	}
	var match *history.Job
	for _, candidate := range jobs {
		if strings.HasPrefix(candidate.ID, id) {
			if match != nil {
				return nil, services.Wrap(services.ErrValidation, "cli", "resolve job", fmt.Sprintf("id prefix %q is ambiguous", id), nil)
			}
			match = candidate
		}
	}
	if match == nil {
		return nil, err
	}
	return match, nil
}

func renderJobDetail(out io.Writer, job *history.Job) {
	fmt.Fprintf(out, "ID:          %s\n", job.ID)
	fmt.Fprintf(out, "File:        %s\n", job.SourceName)
	fmt.Fprintf(out, "Status:      %s\n", job.Status)
	if job.Model != "" {
		fmt.Fprintf(out, "Model:       %s on %s\n", job.Model, job.Device)
	} else if job.RequestedModel != "" {
		fmt.Fprintf(out, "Model:       %s (requested)\n", job.RequestedModel)
	}
	if job.Language != "" {
		fmt.Fprintf(out, "Language:    %s\n", job.Language)
	}
	fmt.Fprintf(out, "Size:        %s\n", humanize.IBytes(uint64(max(job.SizeBytes, 0))))
	fmt.Fprintf(out, "Created:     %s (%s)\n", job.CreatedAt.Local().Format(time.DateTime), humanize.Time(job.CreatedAt))
	if job.Status == history.StatusCompleted {
		fmt.Fprintf(out, "Audio:       %s\n", enrich.FormatTime(job.AudioDuration))
		fmt.Fprintf(out, "Took:        %s\n", enrich.FormatTime(job.ProcessingTime))
		if job.AverageConfidence != nil {
			fmt.Fprintf(out, "Confidence:  %.1f%%\n", *job.AverageConfidence*100)
		}
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:       [%s] %s\n", job.ErrorKind, job.ErrorMessage)
	}
	for _, path := range job.Outputs {
		fmt.Fprintf(out, "Output:      %s\n", path)
	}
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished jobs older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return services.Wrap(services.ErrValidation, "cli", "parse flags", "--older-than must be positive", nil)
			}
			return ctx.withStore(func(_ *config.Config, store *history.Store) error {
				removed, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s job(s)\n", humanize.Comma(removed))
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age cutoff, for example 720h")
	return cmd
}

func shortJobID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
