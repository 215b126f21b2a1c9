// Package models catalogues the recognition model identifiers scribe can load.
//
// The metadata here is display and recommendation data only; nothing on the
// transcription path depends on it for correctness.
package models

import (
	"fmt"
	"strings"
)

// ID names a recognition model size.
type ID string

const (
	Tiny    ID = "tiny"
	Base    ID = "base"
	Small   ID = "small"
	Medium  ID = "medium"
	LargeV2 ID = "large-v2"
)

// Info is static descriptive metadata for a model.
type Info struct {
	ID           ID     `json:"id"`
	Description  string `json:"description"`
	Memory       string `json:"memory"`
	SpeedRank    int    `json:"speed_rank"`
	AccuracyRank int    `json:"accuracy_rank"`
	Languages    string `json:"languages"`
}

var catalogue = []Info{
	{ID: Tiny, Description: "Fastest, least accurate", Memory: "1GB", SpeedRank: 5, AccuracyRank: 2, Languages: "limited"},
	{ID: Base, Description: "Fast with reasonable accuracy", Memory: "1GB", SpeedRank: 4, AccuracyRank: 3, Languages: "good"},
	{ID: Small, Description: "Good speed/accuracy balance", Memory: "2GB", SpeedRank: 3, AccuracyRank: 4, Languages: "very good"},
	{ID: Medium, Description: "More accurate, slower", Memory: "5GB", SpeedRank: 2, AccuracyRank: 5, Languages: "excellent"},
	{ID: LargeV2, Description: "Maximum accuracy, multilingual", Memory: "10GB", SpeedRank: 1, AccuracyRank: 5, Languages: "best"},
}

// All returns every known model in ascending size order.
func All() []Info {
	out := make([]Info, len(catalogue))
	copy(out, catalogue)
	return out
}

// Parse converts user input to a model identifier.
func Parse(value string) (ID, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "large" {
		normalized = string(LargeV2)
	}
	for _, info := range catalogue {
		if string(info.ID) == normalized {
			return info.ID, nil
		}
	}
	return "", fmt.Errorf("unknown model %q", value)
}

// Lookup returns the metadata for id.
func Lookup(id ID) (Info, bool) {
	for _, info := range catalogue {
		if info.ID == id {
			return info, true
		}
	}
	return Info{}, false
}

// Valid reports whether id names a catalogued model.
func (id ID) Valid() bool {
	_, ok := Lookup(id)
	return ok
}

func (id ID) String() string { return string(id) }

// Recommend picks a model for a file of sizeMB on the given device kind
// ("cpu" or "accelerated"). CPU hosts avoid the larger models regardless of
// file size.
func Recommend(sizeMB float64, accelerated bool) ID {
	if !accelerated {
		switch {
		case sizeMB < 10:
			return Base
		case sizeMB < 50:
			return Small
		default:
			return Base
		}
	}
	switch {
	case sizeMB < 5:
		return Small
	case sizeMB < 25:
		return Medium
	default:
		return LargeV2
	}
}
