package transcriber

import (
	"log/slog"
	"time"

	"scribe/internal/config"
	"scribe/internal/engine/whispercli"
	"scribe/internal/history"
)

// FromConfig builds a Service backed by the whisper CLI and a host-probing
// device resolver. store may be nil.
func FromConfig(cfg *config.Config, store *history.Store, logger *slog.Logger) (*Service, error) {
	if cfg == nil {
		return New(nil, Dependencies{})
	}
	eng := whispercli.New(whispercli.Config{
		Binary:   cfg.Whisper.Binary,
		ModelDir: cfg.Whisper.ModelDir,
		WorkDir:  cfg.Paths.StagingDir,
		Timeout:  time.Duration(cfg.Whisper.TimeoutSeconds) * time.Second,
	}, logger)
	return New(cfg, Dependencies{
		Engine: eng,
		Store:  store,
		Logger: logger,
	})
}
