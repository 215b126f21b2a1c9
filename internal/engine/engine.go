// Package engine defines the boundary to the speech-recognition capability.
//
// scribe never recognises speech itself: an Engine loads a model for a
// device and the returned Model turns an audio file plus Options into a
// RawTranscript. Everything downstream (caching, invocation, enrichment) is
// written against these interfaces so it can run with a fake in tests.
package engine

import (
	"context"

	"scribe/internal/device"
	"scribe/internal/models"
)

// Engine loads recognition models.
type Engine interface {
	Load(ctx context.Context, id models.ID, kind device.Kind) (Model, error)
}

// Model is a loaded recognition model.
type Model interface {
	ID() models.ID
	Run(ctx context.Context, audioPath string, opts Options) (RawTranscript, error)
	Close() error
}

// MemoryReleaser is implemented by engines that can return accelerator memory
// between jobs.
type MemoryReleaser interface {
	ReleaseMemory(ctx context.Context) error
}

// Task selects between same-language transcription and translation to English.
type Task string

const (
	TaskTranscribe Task = "transcribe"
	TaskTranslate  Task = "translate"
)

// Options is the fully merged invocation configuration handed to Model.Run.
// An empty Language requests automatic detection.
type Options struct {
	Task                      Task    `json:"task"`
	Language                  string  `json:"language,omitempty"`
	FP16                      bool    `json:"fp16"`
	WordTimestamps            bool    `json:"word_timestamps"`
	BeamSize                  int     `json:"beam_size"`
	BestOf                    int     `json:"best_of"`
	Temperature               float64 `json:"temperature"`
	CompressionRatioThreshold float64 `json:"compression_ratio_threshold"`
	LogprobThreshold          float64 `json:"logprob_threshold"`
	NoSpeechThreshold         float64 `json:"no_speech_threshold"`
}

// RawTranscript is the engine's output before enrichment.
type RawTranscript struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// Segment is a contiguous time-stamped span of transcript text. Times are in
// seconds.
type Segment struct {
	ID         int      `json:"id"`
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Text       string   `json:"text"`
	Words      []Word   `json:"words,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Word is a single recognised word with timing and probability.
type Word struct {
	Text        string  `json:"word"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Probability float64 `json:"probability"`
}
