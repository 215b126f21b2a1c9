package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"scribe/internal/device"
	"scribe/internal/estimate"
	"scribe/internal/models"
	"scribe/internal/services"
	"scribe/internal/transcriber"
)

func newEstimateCommand(ctx *commandContext) *cobra.Command {
	var sizeMB float64
	var model string
	var deviceFlag string
	var bitrate int

	cmd := &cobra.Command{
		Use:   "estimate [FILE]",
		Short: "Estimate processing time for a file or size",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var sizeBytes uint64
			switch {
			case len(args) == 1:
				info, err := os.Stat(args[0])
				if err != nil {
					return fmt.Errorf("stat %s: %w", args[0], err)
				}
				sizeBytes = uint64(info.Size())
				sizeMB = float64(info.Size()) / (1024 * 1024)
			case sizeMB > 0:
				sizeBytes = uint64(sizeMB * 1024 * 1024)
			default:
				return services.Wrap(services.ErrValidation, "cli", "estimate", "pass a file or --size-mb", nil)
			}

			var kind device.Kind
			if strings.TrimSpace(deviceFlag) != "" {
				parsed, ok := device.ParseKind(strings.ToLower(deviceFlag))
				if !ok {
					return services.Wrap(services.ErrValidation, "cli", "estimate", fmt.Sprintf("unknown device %q", deviceFlag), nil)
				}
				kind = parsed
			} else {
				kind = resolveProfile(cmd.Context(), ctx, cfg).Kind
			}

			if strings.TrimSpace(model) == "" {
				model = cfg.Whisper.DefaultModel
			}
			var id models.ID
			if model == transcriber.ModelAuto {
				id = models.Recommend(sizeMB, kind == device.Accelerated)
			} else {
				id, err = models.Parse(model)
				if err != nil {
					return services.Wrap(services.ErrValidation, "cli", "estimate", err.Error(), nil)
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Size:            %s\n", humanize.IBytes(sizeBytes))
			fmt.Fprintf(out, "Model:           %s\n", id)
			fmt.Fprintf(out, "Device:          %s\n", kind)
			fmt.Fprintf(out, "Audio (approx):  %s at %d kbps\n", estimate.AudioDuration(sizeMB, bitrate), bitrate)
			fmt.Fprintf(out, "Processing:      %s\n", estimate.Duration(sizeMB, id, kind))
			return nil
		},
	}
	cmd.Flags().Float64Var(&sizeMB, "size-mb", 0, "File size in megabytes when no file is given")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model to estimate for, or auto")
	cmd.Flags().StringVar(&deviceFlag, "device", "", "Estimate for cpu or cuda instead of this host")
	cmd.Flags().IntVar(&bitrate, "bitrate", estimate.DefaultBitrateKbps, "Assumed audio bitrate in kbps")
	return cmd
}
