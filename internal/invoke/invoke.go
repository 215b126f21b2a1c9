// Package invoke runs a loaded model exactly once per request.
//
// The Invoker times the call, recovers panics, releases accelerator memory
// after success or failure, and translates every engine error into a single
// services.ErrTranscription carrying only the original message.
package invoke

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scribe/internal/device"
	"scribe/internal/engine"
	"scribe/internal/logging"
	"scribe/internal/modelcache"
	"scribe/internal/services"
)

// Invoker executes recognition runs.
type Invoker struct {
	releaser engine.MemoryReleaser
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs an Invoker. releaser may be nil when the engine frees
// accelerator memory on its own.
func New(releaser engine.MemoryReleaser, logger *slog.Logger) *Invoker {
	return &Invoker{
		releaser: releaser,
		logger:   logging.NewComponentLogger(logger, "invoke"),
		now:      time.Now,
	}
}

// Invoke runs handle's model on audioPath and returns the raw transcript with
// the elapsed wall time.
func (i *Invoker) Invoke(ctx context.Context, handle *modelcache.Handle, audioPath string, opts engine.Options) (engine.RawTranscript, time.Duration, error) {
	logger := logging.WithContext(ctx, i.logger)
	if handle == nil || handle.Model() == nil {
		return engine.RawTranscript{}, 0, services.Wrap(services.ErrTranscription, "invoke", "run model", "no model loaded", nil)
	}

	start := i.now()
	raw, runErr := i.run(ctx, handle.Model(), audioPath, opts)
	elapsed := i.now().Sub(start)

	if handle.Kind() == device.Accelerated {
		i.release(ctx, logger)
	}

	if runErr != nil {
		logger.Error("transcription failed",
			logging.String("model", string(handle.ID())),
			logging.Duration("elapsed", elapsed),
			logging.Error(runErr),
			logging.String(logging.FieldEventType, "transcription_failed"),
			logging.String(logging.FieldErrorHint, "inspect the engine output above; retry with a smaller model"),
		)
		return engine.RawTranscript{}, elapsed, services.Opaque(services.ErrTranscription, "invoke", "run model", runErr)
	}

	logger.Info("transcription finished",
		logging.String("model", string(handle.ID())),
		logging.Duration("elapsed", elapsed),
		logging.Int("segments", len(raw.Segments)),
		logging.String("language", raw.Language),
	)
	return raw, elapsed, nil
}

func (i *Invoker) run(ctx context.Context, model engine.Model, audioPath string, opts engine.Options) (raw engine.RawTranscript, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()
	return model.Run(ctx, audioPath, opts)
}

func (i *Invoker) release(ctx context.Context, logger *slog.Logger) {
	if i.releaser == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("memory release panicked", logging.Any("panic", r))
		}
	}()
	if err := i.releaser.ReleaseMemory(ctx); err != nil {
		logging.WarnWithContext(logger, "accelerator memory release failed", "memory_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "later jobs may run short of accelerator memory"),
		)
	}
}
