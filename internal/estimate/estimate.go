// Package estimate produces rough processing-time and audio-duration guesses
// from file sizes, for display before a job starts.
package estimate

import (
	"fmt"
	"math"

	"scribe/internal/device"
	"scribe/internal/enrich"
	"scribe/internal/models"
)

// DefaultBitrateKbps is assumed when the caller has no better figure.
const DefaultBitrateKbps = 128

const (
	overheadMinutes    = 0.5
	unknownModelFactor = 0.25
	// unknownDeviceMultiplier assumes the slowest known device.
	unknownDeviceMultiplier = cpuMultiplier
)

// minutes of processing per MB of input on an accelerator
var modelFactors = map[models.ID]float64{
	models.Tiny:    0.1,
	models.Base:    0.15,
	models.Small:   0.25,
	models.Medium:  0.4,
	models.LargeV2: 0.6,
}

const (
	cudaMultiplier = 1.0
	cpuMultiplier  = 4.0
)

var deviceMultipliers = map[device.Kind]float64{
	device.Accelerated: cudaMultiplier,
	device.CPU:         cpuMultiplier,
}

// Minutes estimates processing time in minutes including a fixed overhead.
// Unknown models and devices use conservative factors.
func Minutes(sizeMB float64, model models.ID, kind device.Kind) float64 {
	if sizeMB < 0 || math.IsNaN(sizeMB) {
		sizeMB = 0
	}
	factor, ok := modelFactors[model]
	if !ok {
		factor = unknownModelFactor
	}
	mult, ok := deviceMultipliers[kind]
	if !ok {
		mult = unknownDeviceMultiplier
	}
	return sizeMB*factor*mult + overheadMinutes
}

// Duration renders Minutes as "~Ns", "~N.Nmin" or "~HhMMmin".
func Duration(sizeMB float64, model models.ID, kind device.Kind) string {
	return FormatMinutes(Minutes(sizeMB, model, kind))
}

// FormatMinutes renders an estimate in minutes.
func FormatMinutes(m float64) string {
	switch {
	case m < 1:
		return fmt.Sprintf("~%ds", int(m*60))
	case m < 60:
		return fmt.Sprintf("~%.1fmin", m)
	default:
		hours := int(m / 60)
		mins := int(math.Mod(m, 60))
		return fmt.Sprintf("~%dh%02dmin", hours, mins)
	}
}

// AudioSeconds guesses audio length from file size at a constant bitrate.
func AudioSeconds(sizeMB float64, bitrateKbps int) float64 {
	if bitrateKbps <= 0 {
		bitrateKbps = DefaultBitrateKbps
	}
	if sizeMB <= 0 || math.IsNaN(sizeMB) {
		return 0
	}
	bits := sizeMB * 1024 * 1024 * 8
	return bits / float64(bitrateKbps*1000)
}

// AudioDuration renders AudioSeconds as HH:MM:SS.
func AudioDuration(sizeMB float64, bitrateKbps int) string {
	return enrich.FormatTime(AudioSeconds(sizeMB, bitrateKbps))
}
