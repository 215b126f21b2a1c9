// Package enrich turns a raw engine transcript into the result scribe stores
// and exports.
//
// Enrichment is deterministic for a given transcript, elapsed time, and
// options: it attaches timing, aggregates word confidence, derives audio
// duration and speed metrics, optionally filters low-confidence segments, and
// infers coarse audio characteristics.
package enrich

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"scribe/internal/engine"
	"scribe/internal/options"
)

// NeutralConfidence is used when no word probabilities are available.
const NeutralConfidence = 0.5

// SilenceGapSeconds is the gap between segments that counts as silence.
const SilenceGapSeconds = 3.0

// Result is an enriched transcript. Pointer fields are omitted when they
// could not be computed.
type Result struct {
	Text                    string             `json:"text"`
	Language                string             `json:"language"`
	Segments                []engine.Segment   `json:"segments"`
	ProcessingTimeSeconds   float64            `json:"processing_time"`
	ProcessingTimeFormatted string             `json:"processing_time_formatted"`
	AverageConfidence       float64            `json:"average_confidence"`
	AudioDurationSeconds    float64            `json:"audio_duration"`
	AudioDurationFormatted  string             `json:"audio_duration_formatted,omitempty"`
	ProcessingSpeedRatio    *float64           `json:"processing_speed_ratio,omitempty"`
	RealtimeFactor          *float64           `json:"realtime_factor,omitempty"`
	FilteredSegmentsCount   *int               `json:"filtered_segments_count,omitempty"`
	Characteristics         Characteristics    `json:"audio_characteristics"`
	OptionsUsed             options.Invocation `json:"options_used"`
}

// Enrich builds a Result from raw. raw is not modified.
func Enrich(raw engine.RawTranscript, elapsed time.Duration, used options.Invocation) Result {
	processing := elapsed.Seconds()
	if processing < 0 {
		processing = 0
	}

	segments := cloneSegments(raw.Segments)
	result := Result{
		Text:                    raw.Text,
		Language:                raw.Language,
		Segments:                segments,
		ProcessingTimeSeconds:   processing,
		ProcessingTimeFormatted: FormatTime(processing),
		OptionsUsed:             used,
	}

	result.AverageConfidence = AverageConfidence(segments)

	if len(segments) > 0 {
		result.AudioDurationSeconds = segments[len(segments)-1].End
		result.AudioDurationFormatted = FormatTime(result.AudioDurationSeconds)
	}

	if result.AudioDurationSeconds > 0 {
		ratio := processing / result.AudioDurationSeconds
		result.ProcessingSpeedRatio = &ratio
		if processing > 0 {
			factor := result.AudioDurationSeconds / processing
			result.RealtimeFactor = &factor
		}
	}

	if used.ConfidenceThreshold > 0 {
		result.Segments = FilterSegments(segments, used.ConfidenceThreshold)
		kept := len(result.Segments)
		result.FilteredSegmentsCount = &kept
	}

	result.Characteristics = Analyze(result.Segments, result.AudioDurationSeconds, result.AverageConfidence)
	return result
}

// AverageConfidence is the mean probability over every word of every segment,
// clamped to [0,1]. It is NeutralConfidence when no word carries a probability.
func AverageConfidence(segments []engine.Segment) float64 {
	var probabilities []float64
	for _, seg := range segments {
		for _, w := range seg.Words {
			if math.IsNaN(w.Probability) {
				continue
			}
			probabilities = append(probabilities, w.Probability)
		}
	}
	if len(probabilities) == 0 {
		return NeutralConfidence
	}
	return clampUnit(stat.Mean(probabilities, nil))
}

// SegmentConfidence is the mean probability of the segment's own words, or
// NeutralConfidence when it has none.
func SegmentConfidence(seg engine.Segment) float64 {
	if len(seg.Words) == 0 {
		return NeutralConfidence
	}
	probabilities := make([]float64, 0, len(seg.Words))
	for _, w := range seg.Words {
		probabilities = append(probabilities, w.Probability)
	}
	return stat.Mean(probabilities, nil)
}

// FilterSegments keeps segments whose confidence is at least threshold and
// records that confidence on each kept segment. Order is preserved.
func FilterSegments(segments []engine.Segment, threshold float64) []engine.Segment {
	kept := make([]engine.Segment, 0, len(segments))
	for _, seg := range segments {
		confidence := SegmentConfidence(seg)
		if confidence >= threshold {
			seg.Confidence = &confidence
			kept = append(kept, seg)
		}
	}
	return kept
}

// WordCount counts whitespace-separated tokens across segment texts.
func WordCount(segments []engine.Segment) int {
	total := 0
	for _, seg := range segments {
		total += len(strings.Fields(seg.Text))
	}
	return total
}

// cloneSegments copies segments ordered by start with end never before start.
func cloneSegments(in []engine.Segment) []engine.Segment {
	if in == nil {
		return []engine.Segment{}
	}
	out := make([]engine.Segment, len(in))
	for i, seg := range in {
		out[i] = seg
		if seg.Words != nil {
			out[i].Words = append([]engine.Word(nil), seg.Words...)
		}
		if seg.Confidence != nil {
			c := *seg.Confidence
			out[i].Confidence = &c
		}
	}
	slices.SortStableFunc(out, func(a, b engine.Segment) int {
		return cmp.Compare(a.Start, b.Start)
	})
	for i := range out {
		if out[i].End < out[i].Start {
			out[i].End = out[i].Start
		}
	}
	return out
}

func clampUnit(v float64) float64 {
	return max(0, min(1, v))
}
