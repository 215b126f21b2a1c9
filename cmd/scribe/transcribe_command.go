package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/enrich"
	"scribe/internal/export"
	"scribe/internal/intake"
	"scribe/internal/options"
	"scribe/internal/services"
	"scribe/internal/transcriber"
)

type transcribeFlags struct {
	model               string
	language            string
	task                string
	preset              string
	temperature         float64
	beamSize            int
	bestOf              int
	confidenceThreshold float64
	formats             []string
	outputDir           string
	print               bool
	json                bool
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var flags transcribeFlags

	cmd := &cobra.Command{
		Use:   "transcribe FILE...",
		Short: "Transcribe audio or video files",
		Long: "Transcribe one or more files with the local whisper engine. Transcripts are\n" +
			"written next to each other in the output directory and recorded in history.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(cfg *config.Config, svc *transcriber.Service) error {
				jobs, err := buildJobs(cmd, cfg, svc, args, flags)
				if err != nil {
					return err
				}
				results, errs, err := svc.RunBatch(cmd.Context(), jobs)
				if err != nil {
					return err
				}
				if flags.json {
					if err := writeJSON(cmd, batchReport(jobs, results, errs)); err != nil {
						return err
					}
				} else {
					renderBatch(cmd.OutOrStdout(), jobs, results, errs, flags.print)
				}
				return batchError(errs)
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.model, "model", "m", "", "Model: tiny, base, small, medium, large-v2 or auto")
	f.StringVarP(&flags.language, "language", "l", "", "Spoken language code or auto")
	f.StringVar(&flags.task, "task", "", "transcribe or translate")
	f.StringVarP(&flags.preset, "preset", "p", "", "Decoding preset: fast, balanced or high_quality")
	f.Float64Var(&flags.temperature, "temperature", 0, "Override sampling temperature (0.0-1.0)")
	f.IntVar(&flags.beamSize, "beam-size", 0, "Override beam size (1-10)")
	f.IntVar(&flags.bestOf, "best-of", 0, "Override best-of candidates (1-10)")
	f.Float64Var(&flags.confidenceThreshold, "confidence-threshold", 0, "Drop segments below this confidence (0.0-1.0)")
	f.StringSliceVarP(&flags.formats, "format", "f", nil, "Output formats: "+strings.Join(export.Formats(), ", "))
	f.StringVarP(&flags.outputDir, "output-dir", "o", "", "Directory for transcript files")
	f.BoolVar(&flags.print, "print", false, "Print each transcript to stdout")
	f.BoolVar(&flags.json, "json", false, "Output results as JSON")
	return cmd
}

func buildJobs(cmd *cobra.Command, cfg *config.Config, svc *transcriber.Service, paths []string, flags transcribeFlags) ([]transcriber.Job, error) {
	req := transcriber.Request{
		Model: flags.model,
		Request: options.Request{
			Language:            flags.language,
			Task:                flags.task,
			Preset:              flags.preset,
			ConfidenceThreshold: flags.confidenceThreshold,
		},
	}
	if cmd.Flags().Changed("temperature") {
		req.Overrides.Temperature = options.Float(flags.temperature)
	}
	if cmd.Flags().Changed("beam-size") {
		req.Overrides.BeamSize = options.Int(flags.beamSize)
	}
	if cmd.Flags().Changed("best-of") {
		req.Overrides.BestOf = options.Int(flags.bestOf)
	}

	formats := cfg.Export.Formats
	if len(flags.formats) > 0 {
		formats = flags.formats
	}
	normalized := make([]string, 0, len(formats))
	for _, format := range formats {
		format = strings.ToLower(strings.TrimSpace(format))
		if !isKnownFormat(format) {
			return nil, services.Wrap(services.ErrValidation, "cli", "parse flags", fmt.Sprintf("unknown format %q", format), nil)
		}
		normalized = append(normalized, format)
	}
	formats = normalized
	outputDir := cfg.Paths.OutputDir
	if strings.TrimSpace(flags.outputDir) != "" {
		expanded, err := config.ExpandPath(flags.outputDir)
		if err != nil {
			return nil, err
		}
		outputDir = expanded
	}

	jobs := make([]transcriber.Job, 0, len(paths))
	for _, path := range paths {
		file, err := intake.Local(path)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "cli", "open input", path, err)
		}
		if check := svc.ValidateFile(file); !check.Valid {
			return nil, services.Wrap(services.ErrValidation, "cli", "validate input", fmt.Sprintf("%s: %s", path, check.Error), nil)
		}
		jobs = append(jobs, transcriber.Job{
			Source:    file.Name(),
			Path:      file.Path(),
			Request:   req,
			OutputDir: outputDir,
			Formats:   formats,
		})
	}
	return jobs, nil
}

func isKnownFormat(format string) bool {
	for _, known := range export.Formats() {
		if format == known {
			return true
		}
	}
	return false
}

type batchEntry struct {
	File   string                 `json:"file"`
	Result *transcriber.JobResult `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
	Kind   string                 `json:"error_kind,omitempty"`
}

func batchReport(jobs []transcriber.Job, results []transcriber.JobResult, errs []error) []batchEntry {
	out := make([]batchEntry, len(jobs))
	for i, job := range jobs {
		out[i].File = job.Path
		if errs[i] != nil {
			out[i].Error = errs[i].Error()
			out[i].Kind = services.Kind(errs[i])
			continue
		}
		result := results[i]
		out[i].Result = &result
	}
	return out
}

func renderBatch(w io.Writer, jobs []transcriber.Job, results []transcriber.JobResult, errs []error, showText bool) {
	rows := make([][]string, 0, len(jobs))
	var audio, processing float64
	for i, job := range jobs {
		name := filepath.Base(job.Path)
		if errs[i] != nil {
			rows = append(rows, []string{name, "-", "-", "-", "-", "failed: " + services.Kind(errs[i])})
			continue
		}
		r := results[i].Result
		audio += r.AudioDurationSeconds
		processing += r.ProcessingTimeSeconds
		outputs := make([]string, 0, len(results[i].Outputs))
		for _, path := range results[i].Outputs {
			outputs = append(outputs, filepath.Base(path))
		}
		rows = append(rows, []string{
			name,
			string(results[i].Model),
			r.AudioDurationFormatted,
			r.ProcessingTimeFormatted,
			strconv.FormatFloat(r.AverageConfidence*100, 'f', 1, 64) + "%",
			strings.Join(outputs, " "),
		})
	}
	fmt.Fprintln(w, tableSpec{
		headers: []string{"File", "Model", "Audio", "Took", "Confidence", "Outputs"},
		rows:    rows,
		aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
		footer:  []string{humanize.Comma(int64(len(jobs))) + " file(s)", "", enrich.FormatTime(audio), enrich.FormatTime(processing)},
	}.render())

	for i, err := range errs {
		if err != nil {
			fmt.Fprintf(w, "%s: %v\n", filepath.Base(jobs[i].Path), err)
		}
	}
	if showText {
		for i, job := range jobs {
			if errs[i] != nil {
				continue
			}
			fmt.Fprintf(w, "\n--- %s ---\n%s\n", filepath.Base(job.Path), export.Text(results[i].Result))
		}
	}
}

func batchError(errs []error) error {
	var failed int
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	if failed == 1 && len(errs) == 1 {
		return errors.Join(errs...)
	}
	return fmt.Errorf("%d of %d files failed", failed, len(errs))
}
