package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scribe/internal/history"
	"scribe/internal/intake"
	"scribe/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "scribe", "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowRedactsToken(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithAPIToken("s3cret"))

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[whisper]")
	requireContains(t, out, "<redacted>")
	if strings.Contains(out, "s3cret") {
		t.Fatalf("token leaked in output:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"config", "show", "--show-secrets"}, env.configPath)
	if err != nil {
		t.Fatalf("config show --show-secrets: %v", err)
	}
	requireContains(t, out, "s3cret")

	out, _, err = runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "token required")
}

func TestCatalogueCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"models"}, env.configPath)
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	requireContains(t, out, "large-v2")
	requireContains(t, out, "base (default)")

	out, _, err = runCLI(t, []string{"presets"}, env.configPath)
	if err != nil {
		t.Fatalf("presets: %v", err)
	}
	requireContains(t, out, "high_quality")
	requireContains(t, out, "balanced (default)")

	out, _, err = runCLI(t, []string{"languages", "--json"}, "")
	if err != nil {
		t.Fatalf("languages: %v", err)
	}
	var langs []map[string]string
	if err := json.Unmarshal([]byte(out), &langs); err != nil {
		t.Fatalf("decode languages: %v", err)
	}
	if len(langs) == 0 || langs[0]["code"] != "auto" {
		t.Fatalf("unexpected languages: %v", langs)
	}

	out, _, err = runCLI(t, []string{"device"}, env.configPath)
	if err != nil {
		t.Fatalf("device: %v", err)
	}
	requireContains(t, out, "Device:              cpu")
	requireContains(t, out, "tiny, base")
}

func TestEstimateCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"estimate", "--size-mb", "10", "--model", "base", "--device", "cpu"}, env.configPath)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	requireContains(t, out, "~6.5min")
	requireContains(t, out, "10 MiB")

	file := filepath.Join(t.TempDir(), "talk.mp3")
	testsupport.WriteFile(t, file, 1024*1024)
	out, _, err = runCLI(t, []string{"estimate", file, "--model", "auto"}, env.configPath)
	if err != nil {
		t.Fatalf("estimate file: %v", err)
	}
	requireContains(t, out, "Model:           base")
	requireContains(t, out, "00:01:05")

	if _, _, err := runCLI(t, []string{"estimate"}, env.configPath); err == nil {
		t.Fatal("expected error without a file or size")
	}
	if _, _, err := runCLI(t, []string{"estimate", "--size-mb", "1", "--model", "huge"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown model")
	}
}

func TestHistoryListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	job := seedCompletedJob(t, env.cfg, "standup.m4a")

	out, _, err := runCLI(t, []string{"history", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, out, job.ID[:8])
	requireContains(t, out, "standup.m4a")
	requireContains(t, out, "completed")

	out, _, err = runCLI(t, []string{"history", "list", "--status", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("history list failed: %v", err)
	}
	requireContains(t, out, "No jobs recorded")

	out, _, err = runCLI(t, []string{"history", "show", job.ID[:8]}, env.configPath)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	requireContains(t, out, "Model:       base on cpu")
	requireContains(t, out, "Good morning. Let's begin.")

	out, _, err = runCLI(t, []string{"history", "show", job.ID, "--format", "srt"}, env.configPath)
	if err != nil {
		t.Fatalf("history show srt: %v", err)
	}
	requireContains(t, out, "1\n00:00:00,000 --> 00:00:01,500\nGood morning.")

	out, _, err = runCLI(t, []string{"history", "show", job.ID, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("history show json: %v", err)
	}
	var payload struct {
		Job    history.Job    `json:"job"`
		Result map[string]any `json:"result"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Job.ID != job.ID || payload.Result["language"] != "en" {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	if _, _, err := runCLI(t, []string{"history", "show", "nope"}, env.configPath); err == nil {
		t.Fatal("expected not found error")
	}
	if _, _, err := runCLI(t, []string{"history", "list", "--status", "bogus"}, env.configPath); err == nil {
		t.Fatal("expected invalid status error")
	}
}

func TestHistoryPrune(t *testing.T) {
	env := setupCLITestEnv(t)
	seedCompletedJob(t, env.cfg, "old.mp3")

	out, _, err := runCLI(t, []string{"history", "prune", "--older-than", "1h"}, env.configPath)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	requireContains(t, out, "Removed 0 job(s)")
}

func TestCleanupRemovesStaleUploads(t *testing.T) {
	env := setupCLITestEnv(t)
	stale := filepath.Join(env.cfg.Paths.StagingDir, intake.StagedName(time.Now(), ".wav"))
	fresh := filepath.Join(env.cfg.Paths.StagingDir, intake.StagedName(time.Now(), ".mp3"))
	testsupport.WriteFile(t, stale, 2048)
	testsupport.WriteFile(t, fresh, 2048)
	old := time.Now().Add(-3 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	out, _, err := runCLI(t, []string{"cleanup", "--max-age", "1h"}, env.configPath)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	requireContains(t, out, "Removed 1 staged file(s)")
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale file still present: %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh file removed: %v", err)
	}
}

func TestTranscribeRejectsInvalidInput(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := t.TempDir()

	notes := filepath.Join(dir, "notes.txt")
	testsupport.WriteFile(t, notes, 4096)
	_, _, err := runCLI(t, []string{"transcribe", notes}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "unsupported extension: .txt") {
		t.Fatalf("expected extension error, got %v", err)
	}

	tiny := filepath.Join(dir, "blip.wav")
	testsupport.WriteFile(t, tiny, 10)
	_, _, err = runCLI(t, []string{"transcribe", tiny}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "file too small") {
		t.Fatalf("expected size error, got %v", err)
	}

	audio := filepath.Join(dir, "memo.wav")
	testsupport.WriteFile(t, audio, 4096)
	_, _, err = runCLI(t, []string{"transcribe", audio, "--format", "docx"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), `unknown format "docx"`) {
		t.Fatalf("expected format error, got %v", err)
	}

	_, _, err = runCLI(t, []string{"transcribe", filepath.Join(dir, "absent.wav")}, env.configPath)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestTranscribeReportsEngineFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	audio := filepath.Join(t.TempDir(), "memo.wav")
	testsupport.WriteFile(t, audio, 4096)

	out, _, err := runCLI(t, []string{"transcribe", audio, "--json"}, env.configPath)
	if err == nil {
		t.Fatal("expected failure with a missing whisper binary")
	}
	var report []batchEntry
	if decodeErr := json.Unmarshal([]byte(out), &report); decodeErr != nil {
		t.Fatalf("decode report: %v (%s)", decodeErr, out)
	}
	if len(report) != 1 || report[0].Error == "" || report[0].Kind == "" {
		t.Fatalf("unexpected report: %+v", report)
	}

	out, _, err = runCLI(t, []string{"history", "list", "--status", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, out, "memo.wav")
}

func TestStatusReportsMissingTools(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "required tool(s) missing") {
		t.Fatalf("expected missing tool error, got %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "Whisper:")
	requireContains(t, out, "[ERROR]")
	requireContains(t, out, "Staging directory:")
}

func TestLogsShowsTrailingLines(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(env.cfg.Paths.LogDir, "scribed.log")
	if err := os.WriteFile(path, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "second\nthird\n" {
		t.Fatalf("logs output = %q", out)
	}
}
