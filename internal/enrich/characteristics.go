package enrich

import "scribe/internal/engine"

// Speech rate buckets.
const (
	SpeechSlow   = "slow"
	SpeechNormal = "normal"
	SpeechFast   = "fast"
)

// Confidence and quality buckets.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"

	QualityPoor      = "poor"
	QualityFair      = "fair"
	QualityGood      = "good"
	QualityExcellent = "excellent"
)

// Characteristics are heuristics inferred from the transcript.
type Characteristics struct {
	SpeechRate         string `json:"speech_rate"`
	HasSilence         bool   `json:"has_silence"`
	LanguageConfidence string `json:"language_confidence"`
	AudioQuality       string `json:"audio_quality"`
}

// DefaultCharacteristics is reported when there are no segments to analyze.
func DefaultCharacteristics() Characteristics {
	return Characteristics{
		SpeechRate:         SpeechNormal,
		HasSilence:         false,
		LanguageConfidence: LevelMedium,
		AudioQuality:       QualityGood,
	}
}

// Analyze evaluates speech rate, silence, language confidence, and quality in
// that order.
func Analyze(segments []engine.Segment, durationSeconds, averageConfidence float64) Characteristics {
	c := DefaultCharacteristics()
	if len(segments) == 0 {
		return c
	}

	if durationSeconds > 0 {
		wpm := float64(WordCount(segments)) / durationSeconds * 60
		switch {
		case wpm < 120:
			c.SpeechRate = SpeechSlow
		case wpm > 180:
			c.SpeechRate = SpeechFast
		default:
			c.SpeechRate = SpeechNormal
		}
	}

	for i := 0; i+1 < len(segments); i++ {
		if segments[i+1].Start-segments[i].End > SilenceGapSeconds {
			c.HasSilence = true
			break
		}
	}

	switch {
	case averageConfidence > 0.8:
		c.LanguageConfidence = LevelHigh
	case averageConfidence < 0.4:
		c.LanguageConfidence = LevelLow
	default:
		c.LanguageConfidence = LevelMedium
	}

	switch {
	case averageConfidence > 0.7:
		c.AudioQuality = QualityExcellent
	case averageConfidence > 0.5:
		c.AudioQuality = QualityGood
	case averageConfidence > 0.3:
		c.AudioQuality = QualityFair
	default:
		c.AudioQuality = QualityPoor
	}
	return c
}
