package device

import (
	"scribe/internal/models"
)

// Kind classifies the compute device.
type Kind string

const (
	Accelerated Kind = "accelerated"
	CPU         Kind = "cpu"
)

// EngineDevice returns the device flag understood by the recognition engine.
func (k Kind) EngineDevice() string {
	if k == Accelerated {
		return "cuda"
	}
	return "cpu"
}

// ParseKind maps config and CLI spellings onto a Kind.
func ParseKind(value string) (Kind, bool) {
	switch value {
	case "cuda", "gpu", "accelerated":
		return Accelerated, true
	case "cpu":
		return CPU, true
	default:
		return "", false
	}
}

// Profile describes available compute and the limits derived from it.
type Profile struct {
	Kind                Kind        `json:"kind"`
	DeviceName          string      `json:"device_name,omitempty"`
	MemoryGB            *float64    `json:"memory_gb,omitempty"`
	RecommendedModels   []models.ID `json:"recommended_models"`
	MaxInputSizeMB      int         `json:"max_input_size_mb"`
	SupportsParallelism bool        `json:"supports_parallelism"`
}

// Accelerated reports whether the profile targets an accelerator.
func (p Profile) Accelerated() bool {
	return p.Kind == Accelerated
}

// Recommends reports whether id is among the profile's recommended models.
func (p Profile) Recommends(id models.ID) bool {
	for _, candidate := range p.RecommendedModels {
		if candidate == id {
			return true
		}
	}
	return false
}

// ProfileFor builds the profile for a device kind and memory size. memoryGB
// is accelerator memory for Accelerated and system RAM for CPU; nil means
// unknown. Accelerators below 8GB (or of unknown size) share one tier.
func ProfileFor(kind Kind, memoryGB *float64) Profile {
	profile := Profile{Kind: kind, MemoryGB: memoryGB}
	if kind != Accelerated {
		profile.Kind = CPU
		profile.RecommendedModels = []models.ID{models.Tiny, models.Base}
		profile.MaxInputSizeMB = 50
		return profile
	}
	if memoryGB != nil && *memoryGB >= 8 {
		profile.RecommendedModels = []models.ID{models.Medium, models.LargeV2}
		profile.MaxInputSizeMB = 500
		profile.SupportsParallelism = true
		return profile
	}
	profile.RecommendedModels = []models.ID{models.Small, models.Medium}
	profile.MaxInputSizeMB = 250
	return profile
}
