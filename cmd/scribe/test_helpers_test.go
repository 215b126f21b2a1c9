package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"scribe/internal/config"
	"scribe/internal/engine"
	"scribe/internal/enrich"
	"scribe/internal/history"
	"scribe/internal/options"
	"scribe/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Whisper.Binary = filepath.Join(t.TempDir(), "missing-whisper")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// seedCompletedJob records a finished transcription directly in history.
func seedCompletedJob(t *testing.T, cfg *config.Config, source string) *history.Job {
	t.Helper()
	store := testsupport.MustOpenHistory(t, cfg)
	job := testsupport.NewJob(t, store, source)
	ctx := context.Background()
	if err := store.MarkRunning(ctx, job.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	segments := []engine.Segment{
		{Start: 0, End: 1.5, Text: "Good morning."},
		{Start: 1.5, End: 4, Text: "Let's begin."},
	}
	result := enrich.Enrich(engine.RawTranscript{
		Text:     "Good morning. Let's begin.",
		Language: "en",
		Segments: segments,
	}, 0, options.Invocation{Preset: "balanced"})
	if err := store.Complete(ctx, job.ID, history.Completion{
		Model:          "base",
		Device:         "cpu",
		Result:         result,
		Language:       "en",
		AudioDuration:  4,
		ProcessingTime: 1,
	}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	done, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return done
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
