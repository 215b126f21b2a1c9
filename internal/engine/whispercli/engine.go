package whispercli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"scribe/internal/device"
	"scribe/internal/engine"
	"scribe/internal/logging"
	"scribe/internal/models"
)

// Engine runs recognition through the whisper CLI.
type Engine struct {
	cfg           Config
	logger        *slog.Logger
	lookPath      func(string) (string, error)
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// New creates a whisper CLI engine.
func New(cfg Config, logger *slog.Logger) *Engine {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = DefaultBinary
	}
	return &Engine{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "whisper"),
		lookPath: exec.LookPath,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *Engine) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	e.commandRunner = runner
}

// WithLookPath overrides binary resolution (for testing).
func (e *Engine) WithLookPath(lookPath func(string) (string, error)) {
	e.lookPath = lookPath
}

// Load verifies the whisper binary and, when a model directory is configured,
// the model checkpoint. The CLI loads weights per run, so the returned Model
// only carries the resolved settings.
func (e *Engine) Load(_ context.Context, id models.ID, kind device.Kind) (engine.Model, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("whisper: unknown model %q", id)
	}
	binary, err := e.lookPath(e.cfg.Binary)
	if err != nil {
		return nil, fmt.Errorf("whisper: locate %s: %w", e.cfg.Binary, err)
	}
	if e.cfg.ModelDir != "" {
		checkpoint := filepath.Join(e.cfg.ModelDir, string(id)+".pt")
		if _, err := os.Stat(checkpoint); err != nil {
			return nil, fmt.Errorf("whisper: model checkpoint %s: %w", checkpoint, err)
		}
	}
	e.logger.Debug("whisper model ready",
		logging.String("model", string(id)),
		logging.String("device", kind.EngineDevice()),
		logging.String("binary", binary),
	)
	return &model{engine: e, id: id, binary: binary, device: kind.EngineDevice()}, nil
}

type model struct {
	engine *Engine
	id     models.ID
	binary string
	device string
}

func (m *model) ID() models.ID { return m.id }

func (m *model) Close() error { return nil }

// Run transcribes audioPath and decodes the JSON transcript.
func (m *model) Run(ctx context.Context, audioPath string, opts engine.Options) (engine.RawTranscript, error) {
	var raw engine.RawTranscript
	if strings.TrimSpace(audioPath) == "" {
		return raw, fmt.Errorf("whisper: audio path required")
	}
	if m.engine.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.engine.cfg.Timeout)
		defer cancel()
	}

	workDir := m.engine.cfg.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return raw, fmt.Errorf("whisper: ensure work dir: %w", err)
	}
	outputDir, err := os.MkdirTemp(workDir, scratchPrefix)
	if err != nil {
		return raw, fmt.Errorf("whisper: create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(outputDir); err != nil {
			m.engine.logger.Debug("scratch cleanup failed", logging.String("path", outputDir), logging.Error(err))
		}
	}()

	args := m.buildArgs(audioPath, outputDir, opts)
	if err := m.engine.run(ctx, m.binary, args...); err != nil {
		return raw, err
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	return LoadTranscript(filepath.Join(outputDir, base+".json"))
}

func (m *model) buildArgs(audioPath, outputDir string, opts engine.Options) []string {
	task := opts.Task
	if task == "" {
		task = engine.TaskTranscribe
	}
	args := []string{
		audioPath,
		"--model", string(m.id),
		"--device", m.device,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--task", string(task),
		"--temperature", formatFloat(opts.Temperature),
		"--best_of", strconv.Itoa(opts.BestOf),
		"--beam_size", strconv.Itoa(opts.BeamSize),
		"--compression_ratio_threshold", formatFloat(opts.CompressionRatioThreshold),
		"--logprob_threshold", formatFloat(opts.LogprobThreshold),
		"--no_speech_threshold", formatFloat(opts.NoSpeechThreshold),
		"--fp16", pythonBool(opts.FP16),
		"--word_timestamps", pythonBool(opts.WordTimestamps),
		"--verbose", "False",
	}
	if opts.Language != "" {
		args = append(args, "--language", opts.Language)
	}
	if m.engine.cfg.ModelDir != "" {
		args = append(args, "--model_dir", m.engine.cfg.ModelDir)
	}
	return args
}

// run executes a command, using the custom runner if set.
func (e *Engine) run(ctx context.Context, name string, args ...string) error {
	if e.commandRunner != nil {
		return e.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", filepath.Base(name), err, lastLines(string(output), 5))
	}
	return nil
}

// transcriptPayload mirrors the whisper JSON writer.
type transcriptPayload struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []segment `json:"segments"`
}

type segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []word  `json:"words"`
}

type word struct {
	Word        string  `json:"word"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Probability float64 `json:"probability"`
}

// LoadTranscript decodes a whisper JSON transcript file.
func LoadTranscript(path string) (engine.RawTranscript, error) {
	var raw engine.RawTranscript
	data, err := os.ReadFile(path)
	if err != nil {
		return raw, fmt.Errorf("whisper: read transcript: %w", err)
	}
	var payload transcriptPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return raw, fmt.Errorf("whisper: parse transcript json: %w", err)
	}
	raw.Text = payload.Text
	raw.Language = payload.Language
	raw.Segments = make([]engine.Segment, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		converted := engine.Segment{
			ID:    seg.ID,
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		}
		if len(seg.Words) > 0 {
			converted.Words = make([]engine.Word, 0, len(seg.Words))
			for _, w := range seg.Words {
				converted.Words = append(converted.Words, engine.Word{
					Text:        w.Word,
					Start:       w.Start,
					End:         w.End,
					Probability: w.Probability,
				})
			}
		}
		raw.Segments = append(raw.Segments, converted)
	}
	return raw, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func pythonBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

func lastLines(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
