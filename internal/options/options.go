// Package options merges a transcription request into the configuration
// handed to the recognition engine.
//
// Merge order, later wins: task and device flags, then the quality preset,
// then clamped per-field overrides, then the language (omitted for auto).
// Word timestamps are always requested because enrichment needs them.
package options

import (
	"fmt"
	"strings"

	"scribe/internal/device"
	"scribe/internal/engine"
	"scribe/internal/language"
	"scribe/internal/preset"
	"scribe/internal/services"
)

// Clamp bounds for overrides.
const (
	MinTemperature = 0.0
	MaxTemperature = 1.0
	MinBeamSize    = 1
	MaxBeamSize    = 10
	MinBestOf      = 1
	MaxBestOf      = 10
	MinThreshold   = 0.0
	MaxThreshold   = 1.0
)

// Overrides holds optional per-field decoding overrides. Nil means "use the
// preset value".
type Overrides struct {
	Temperature *float64 `json:"temperature,omitempty"`
	BeamSize    *int     `json:"beam_size,omitempty"`
	BestOf      *int     `json:"best_of,omitempty"`
}

// Request is the user-facing portion of a transcription request that shapes
// engine options.
type Request struct {
	Language            string    `json:"language"`
	Task                string    `json:"task"`
	Preset              string    `json:"preset"`
	Overrides           Overrides `json:"overrides"`
	ConfidenceThreshold float64   `json:"confidence_threshold"`
}

// Invocation is the validated result of Build.
type Invocation struct {
	Engine              engine.Options `json:"engine"`
	Preset              string         `json:"preset"`
	ConfidenceThreshold float64        `json:"confidence_threshold"`
}

// Build merges req with the device profile into engine options.
func Build(req Request, profile device.Profile) (Invocation, error) {
	task, err := parseTask(req.Task)
	if err != nil {
		return Invocation{}, err
	}
	lang, err := language.Normalize(req.Language)
	if err != nil {
		return Invocation{}, services.Wrap(services.ErrValidation, "options", "language", err.Error(), nil)
	}

	req = ValidateAdvanced(req)
	selected := preset.Resolve(req.Preset)

	opts := engine.Options{
		Task:           task,
		FP16:           profile.Accelerated(),
		WordTimestamps: true,
	}

	opts.BeamSize = selected.BeamSize
	opts.BestOf = selected.BestOf
	opts.Temperature = selected.Temperature
	opts.CompressionRatioThreshold = selected.CompressionRatioThreshold
	opts.LogprobThreshold = selected.LogprobThreshold
	opts.NoSpeechThreshold = selected.NoSpeechThreshold

	if req.Overrides.Temperature != nil {
		opts.Temperature = *req.Overrides.Temperature
	}
	if req.Overrides.BeamSize != nil {
		opts.BeamSize = *req.Overrides.BeamSize
	}
	if req.Overrides.BestOf != nil {
		opts.BestOf = *req.Overrides.BestOf
	}

	if lang != language.Auto {
		opts.Language = lang
	}

	return Invocation{
		Engine:              opts,
		Preset:              selected.Name,
		ConfidenceThreshold: req.ConfidenceThreshold,
	}, nil
}

// ValidateAdvanced clamps every present override into range, clamps the
// confidence threshold, and normalizes the preset name. It never fails.
func ValidateAdvanced(req Request) Request {
	out := req
	if req.Overrides.Temperature != nil {
		v := clampFloat(*req.Overrides.Temperature, MinTemperature, MaxTemperature)
		out.Overrides.Temperature = &v
	}
	if req.Overrides.BeamSize != nil {
		v := clampInt(*req.Overrides.BeamSize, MinBeamSize, MaxBeamSize)
		out.Overrides.BeamSize = &v
	}
	if req.Overrides.BestOf != nil {
		v := clampInt(*req.Overrides.BestOf, MinBestOf, MaxBestOf)
		out.Overrides.BestOf = &v
	}
	out.ConfidenceThreshold = clampFloat(req.ConfidenceThreshold, MinThreshold, MaxThreshold)
	out.Preset = preset.Normalize(req.Preset)
	return out
}

func parseTask(value string) (engine.Task, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(engine.TaskTranscribe):
		return engine.TaskTranscribe, nil
	case string(engine.TaskTranslate):
		return engine.TaskTranslate, nil
	default:
		return "", services.Wrap(services.ErrValidation, "options", "task",
			fmt.Sprintf("unsupported task %q (expected transcribe or translate)", value), nil)
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v != v { // NaN
		return lo
	}
	return max(lo, min(hi, v))
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

// Float returns a pointer to v, for building Overrides.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, for building Overrides.
func Int(v int) *int { return &v }
