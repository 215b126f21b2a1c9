// Package preset holds the named decoding parameter bundles that trade speed
// for accuracy.
package preset

import (
	"sort"
	"strings"
)

// Names of the canonical presets.
const (
	Fast        = "fast"
	Balanced    = "balanced"
	HighQuality = "high_quality"
)

// Preset is an immutable bundle of decoding parameters.
type Preset struct {
	Name                      string  `json:"name"`
	BeamSize                  int     `json:"beam_size"`
	BestOf                    int     `json:"best_of"`
	Temperature               float64 `json:"temperature"`
	CompressionRatioThreshold float64 `json:"compression_ratio_threshold"`
	LogprobThreshold          float64 `json:"logprob_threshold"`
	NoSpeechThreshold         float64 `json:"no_speech_threshold"`
	Description               string  `json:"description"`
}

var registry = map[string]Preset{
	Fast: {
		Name:                      Fast,
		BeamSize:                  1,
		BestOf:                    1,
		Temperature:               0.0,
		CompressionRatioThreshold: 2.4,
		LogprobThreshold:          -1.0,
		NoSpeechThreshold:         0.6,
		Description:               "Greedy decoding; quickest turnaround",
	},
	Balanced: {
		Name:                      Balanced,
		BeamSize:                  3,
		BestOf:                    3,
		Temperature:               0.0,
		CompressionRatioThreshold: 2.0,
		LogprobThreshold:          -0.5,
		NoSpeechThreshold:         0.5,
		Description:               "Moderate beam search; default",
	},
	HighQuality: {
		Name:                      HighQuality,
		BeamSize:                  5,
		BestOf:                    5,
		Temperature:               0.0,
		CompressionRatioThreshold: 1.8,
		LogprobThreshold:          -0.3,
		NoSpeechThreshold:         0.4,
		Description:               "Wide beam search; strictest thresholds",
	},
}

// Lookup returns the preset registered under name.
func Lookup(name string) (Preset, bool) {
	p, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Resolve returns the preset registered under name. Unknown or empty names
// resolve to the balanced preset rather than failing the job.
func Resolve(name string) Preset {
	if p, ok := Lookup(name); ok {
		return p
	}
	return registry[Balanced]
}

// Normalize returns the canonical name Resolve would select for name.
func Normalize(name string) string {
	return Resolve(name).Name
}

// Names lists the registered preset names ordered from fastest to most accurate.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return registry[names[i]].BeamSize < registry[names[j]].BeamSize
	})
	return names
}

// All returns every preset ordered like Names.
func All() []Preset {
	names := Names()
	out := make([]Preset, 0, len(names))
	for _, name := range names {
		out = append(out, registry[name])
	}
	return out
}
