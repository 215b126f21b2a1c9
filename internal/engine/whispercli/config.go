package whispercli

import "time"

// Config captures runtime settings for the whisper CLI.
type Config struct {
	// Binary is the whisper executable name or path.
	Binary string
	// ModelDir, when set, is passed as --model_dir and must contain the
	// checkpoint for a model before it is considered loadable.
	ModelDir string
	// WorkDir is the parent for per-run scratch directories.
	WorkDir string
	// Timeout bounds a single run; zero disables the bound.
	Timeout time.Duration
}

// Whisper CLI constants.
const (
	DefaultBinary = "whisper"
	OutputFormat  = "json"
	scratchPrefix = "scribe_whisper_"
)
