package transcriber

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"scribe/internal/config"
	"scribe/internal/device"
	"scribe/internal/engine"
	"scribe/internal/enrich"
	"scribe/internal/estimate"
	"scribe/internal/export"
	"scribe/internal/history"
	"scribe/internal/intake"
	"scribe/internal/invoke"
	"scribe/internal/logging"
	"scribe/internal/modelcache"
	"scribe/internal/models"
	"scribe/internal/options"
	"scribe/internal/services"
)

// ModelAuto asks the service to pick a model from file size and device.
const ModelAuto = "auto"

// Dependencies are the collaborators a Service needs. Resolver and Store are
// optional: a nil Resolver probes the host, a nil Store skips history.
type Dependencies struct {
	Engine   engine.Engine
	Resolver *device.Resolver
	Store    *history.Store
	Logger   *slog.Logger
}

// Service runs transcriptions.
type Service struct {
	cfg       *config.Config
	resolver  *device.Resolver
	cache     *modelcache.Cache
	invoker   *invoke.Invoker
	validator *intake.Validator
	stager    *intake.Stager
	store     *history.Store
	logger    *slog.Logger

	// outputMu serializes output name selection with the write that claims it.
	outputMu sync.Mutex
}

// New constructs a Service from cfg and deps.
func New(cfg *config.Config, deps Dependencies) (*Service, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "transcriber", "init", "config is required", nil)
	}
	if deps.Engine == nil {
		return nil, services.Wrap(services.ErrConfiguration, "transcriber", "init", "recognition engine is required", nil)
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	resolver := deps.Resolver
	if resolver == nil {
		resolver = device.NewResolver(nil, cfg.Whisper.Device, logger)
	}
	releaser, _ := deps.Engine.(engine.MemoryReleaser)
	validator := intake.NewValidator(intake.LimitsFromConfig(cfg))

	return &Service{
		cfg:       cfg,
		resolver:  resolver,
		cache:     modelcache.New(deps.Engine, logger),
		invoker:   invoke.New(releaser, logger),
		validator: validator,
		stager:    intake.NewStager(cfg.Paths.StagingDir, validator, logger),
		store:     deps.Store,
		logger:    logging.NewComponentLogger(logger, "transcriber"),
	}, nil
}

// Close releases every cached model.
func (s *Service) Close() error {
	return s.cache.Close()
}

// Config returns the configuration the service was built with.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Store returns the history store, which may be nil.
func (s *Service) Store() *history.Store {
	return s.store
}

// Profile resolves the device profile.
func (s *Service) Profile(ctx context.Context) device.Profile {
	return s.resolver.Resolve(ctx)
}

// LoadedModels lists models currently held by the cache.
func (s *Service) LoadedModels() []models.ID {
	return s.cache.Loaded()
}

// ValidateFile runs the intake checks without touching the filesystem.
func (s *Service) ValidateFile(d intake.Descriptor) intake.Validation {
	return s.validator.Validate(d)
}

// StageFile validates d and copies it to a fresh staging file. The caller
// owns the returned path.
func (s *Service) StageFile(ctx context.Context, d intake.Descriptor) (string, error) {
	return s.stager.Stage(services.WithStage(ctx, "intake"), d)
}

// StageStream stages an upload read from r, validating name and type before
// writing and size afterwards. It returns the staged path and byte count.
func (s *Service) StageStream(ctx context.Context, name, mimeType string, r io.Reader) (string, int64, error) {
	return s.stager.StageStream(services.WithStage(ctx, "intake"), name, mimeType, r)
}

// Request selects the model and decoding options for one transcription.
type Request struct {
	// Model is a model identifier, "auto", or empty for the configured default.
	Model string
	options.Request
}

// Transcribe runs the full pipeline on the audio at path and returns the
// enriched result.
func (s *Service) Transcribe(ctx context.Context, path string, req Request) (enrich.Result, error) {
	outcome, err := s.transcribe(ctx, path, req)
	if err != nil {
		return enrich.Result{}, err
	}
	return outcome.Result, nil
}

type outcome struct {
	Result enrich.Result
	Model  models.ID
	Device device.Kind
}

func (s *Service) transcribe(ctx context.Context, path string, req Request) (outcome, error) {
	ctx = services.WithStage(ctx, "transcribe")
	logger := logging.WithContext(ctx, s.logger)

	info, err := os.Stat(path)
	if err != nil {
		return outcome{}, services.Wrap(services.ErrValidation, "transcribe", "stat input", path, err)
	}
	if info.IsDir() {
		return outcome{}, services.Wrap(services.ErrValidation, "transcribe", "stat input", path+" is a directory", nil)
	}
	sizeMB := float64(info.Size()) / (1024 * 1024)

	profile := s.resolver.Resolve(ctx)
	modelID, err := s.resolveModel(req.Model, sizeMB, profile)
	if err != nil {
		return outcome{}, err
	}
	inv, err := options.Build(s.withDefaults(req.Request), profile)
	if err != nil {
		return outcome{}, err
	}

	if profile.MaxInputSizeMB > 0 && sizeMB > float64(profile.MaxInputSizeMB) {
		logging.WarnWithContext(logger, "input exceeds device profile size guidance", "input_oversized",
			logging.Float64("size_mb", sizeMB),
			logging.Int("max_input_size_mb", profile.MaxInputSizeMB),
			logging.String(logging.FieldImpact, "transcription may be slow or run out of memory"),
			logging.String(logging.FieldErrorHint, "split the file or use a smaller model"),
		)
	}
	if !profile.Recommends(modelID) {
		logger.Debug("model outside device recommendations",
			logging.String("model", string(modelID)),
			logging.Any("recommended", profile.RecommendedModels),
		)
	}

	handle, err := s.cache.GetOrLoad(ctx, modelID, profile)
	if err != nil {
		return outcome{}, err
	}

	logger.Info("transcription started",
		logging.String("input", path),
		logging.String("model", string(handle.ID())),
		logging.String("device", string(profile.Kind)),
		logging.String("preset", inv.Preset),
		logging.String("estimate", estimate.Duration(sizeMB, handle.ID(), profile.Kind)),
	)
	raw, elapsed, err := s.invoker.Invoke(ctx, handle, path, inv.Engine)
	if err != nil {
		return outcome{}, err
	}
	return outcome{
		Result: enrich.Enrich(raw, elapsed, inv),
		Model:  handle.ID(),
		Device: handle.Kind(),
	}, nil
}

func (s *Service) resolveModel(value string, sizeMB float64, profile device.Profile) (models.ID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = s.cfg.Whisper.DefaultModel
	}
	if strings.EqualFold(value, ModelAuto) {
		return models.Recommend(sizeMB, profile.Accelerated()), nil
	}
	id, err := models.Parse(value)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "transcribe", "resolve model", err.Error(), nil)
	}
	return id, nil
}

func (s *Service) withDefaults(req options.Request) options.Request {
	if strings.TrimSpace(req.Language) == "" {
		req.Language = s.cfg.Whisper.DefaultLanguage
	}
	if strings.TrimSpace(req.Task) == "" {
		req.Task = s.cfg.Whisper.DefaultTask
	}
	if strings.TrimSpace(req.Preset) == "" {
		req.Preset = s.cfg.Whisper.DefaultPreset
	}
	return req
}

// ExportText returns the plain-text transcript.
func (s *Service) ExportText(result enrich.Result) string {
	return export.Text(result)
}

// ExportSRT renders segments as SubRip.
func (s *Service) ExportSRT(segments []engine.Segment) string {
	return export.SRT(segments)
}

// EstimateDuration returns a human processing-time guess for a file of
// sizeMB on the given device.
func (s *Service) EstimateDuration(sizeMB float64, model models.ID, kind device.Kind) string {
	return estimate.Duration(sizeMB, model, kind)
}
