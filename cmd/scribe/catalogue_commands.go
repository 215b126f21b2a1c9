package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/device"
	"scribe/internal/language"
	"scribe/internal/models"
	"scribe/internal/preset"
)

func resolveProfile(ctx context.Context, c *commandContext, cfg *config.Config) device.Profile {
	return device.NewResolver(nil, cfg.Whisper.Device, c.logger(cfg)).Resolve(ctx)
}

func newModelsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List recognition models and which suit this host",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			profile := resolveProfile(cmd.Context(), ctx, cfg)
			if asJSON {
				return writeJSON(cmd, map[string]any{
					"models":      models.All(),
					"recommended": profile.RecommendedModels,
					"default":     cfg.Whisper.DefaultModel,
				})
			}
			rows := make([][]string, 0, len(models.All()))
			for _, info := range models.All() {
				name := string(info.ID)
				if name == cfg.Whisper.DefaultModel {
					name += " (default)"
				}
				rows = append(rows, []string{
					name,
					info.Description,
					info.Memory,
					strconv.Itoa(info.SpeedRank),
					strconv.Itoa(info.AccuracyRank),
					info.Languages,
					yesNo(profile.Recommends(info.ID)),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Model", "Description", "Memory", "Speed", "Accuracy", "Languages", "Recommended"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newPresetsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List decoding presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, preset.All())
			}
			rows := make([][]string, 0, 3)
			for _, p := range preset.All() {
				name := p.Name
				if preset.Normalize(cfg.Whisper.DefaultPreset) == p.Name {
					name += " (default)"
				}
				rows = append(rows, []string{
					name,
					strconv.Itoa(p.BeamSize),
					strconv.Itoa(p.BestOf),
					strconv.FormatFloat(p.Temperature, 'f', 1, 64),
					p.Description,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Preset", "Beam", "Best of", "Temperature", "Description"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newLanguagesCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:         "languages",
		Short:       "List selectable transcription languages",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			options := language.Options()
			if asJSON {
				return writeJSON(cmd, options)
			}
			rows := make([][]string, 0, len(options))
			for _, opt := range options {
				rows = append(rows, []string{opt.Code, opt.Display, opt.Native})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Code", "Language", "Native"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newDeviceCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Show the compute device scribe will use",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			profile := resolveProfile(cmd.Context(), ctx, cfg)
			if asJSON {
				return writeJSON(cmd, profile)
			}
			memory := "unknown"
			if profile.MemoryGB != nil {
				memory = strconv.FormatFloat(*profile.MemoryGB, 'f', 1, 64) + " GB"
			}
			recommended := make([]string, 0, len(profile.RecommendedModels))
			for _, id := range profile.RecommendedModels {
				recommended = append(recommended, string(id))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Device:              %s (%s)\n", profile.Kind, profile.DeviceName)
			fmt.Fprintf(out, "Memory:              %s\n", memory)
			fmt.Fprintf(out, "Recommended models:  %s\n", strings.Join(recommended, ", "))
			fmt.Fprintf(out, "Max input size:      %d MB\n", profile.MaxInputSizeMB)
			fmt.Fprintf(out, "Parallel jobs:       %s\n", yesNo(profile.SupportsParallelism))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
