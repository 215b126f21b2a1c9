package transcriber_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/config"
	"scribe/internal/device"
	"scribe/internal/engine"
	"scribe/internal/history"
	"scribe/internal/models"
	"scribe/internal/options"
	"scribe/internal/services"
	"scribe/internal/testsupport"
	"scribe/internal/transcriber"
)

func sampleTranscript() engine.RawTranscript {
	return engine.RawTranscript{
		Text:     " Hello there. General remarks. Goodbye.",
		Language: "en",
		Segments: []engine.Segment{
			testsupport.Segment(0, 2, "Hello there.", 0.9, 0.9),
			testsupport.Segment(6, 9, "General remarks.", 0.9, 0.9),
			testsupport.Segment(9, 12, "Goodbye.", 0.9),
		},
	}
}

type fixture struct {
	cfg     *config.Config
	engine  *testsupport.FakeEngine
	store   *history.Store
	service *transcriber.Service
	audio   string
}

func newFixture(t *testing.T, kind device.Kind, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	eng := testsupport.NewFakeEngine(sampleTranscript())
	store := testsupport.MustOpenHistory(t, cfg)
	svc, err := transcriber.New(cfg, transcriber.Dependencies{
		Engine:   eng,
		Resolver: device.Static(device.ProfileFor(kind, nil)),
		Store:    store,
	})
	if err != nil {
		t.Fatalf("transcriber.New: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })

	audio := filepath.Join(t.TempDir(), "Team Sync.wav")
	testsupport.WriteFile(t, audio, 4096)
	return &fixture{cfg: cfg, engine: eng, store: store, service: svc, audio: audio}
}

func TestNewRequiresEngine(t *testing.T) {
	_, err := transcriber.New(testsupport.NewConfig(t), transcriber.Dependencies{})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestTranscribeEnrichesResult(t *testing.T) {
	f := newFixture(t, device.CPU)
	result, err := f.service.Transcribe(context.Background(), f.audio, transcriber.Request{
		Model:   "small",
		Request: options.Request{Language: "en", Preset: "turbo"},
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.AudioDurationSeconds != 12 {
		t.Fatalf("audio duration = %v", result.AudioDurationSeconds)
	}
	if result.Characteristics.AudioQuality != "excellent" || !result.Characteristics.HasSilence {
		t.Fatalf("unexpected characteristics: %+v", result.Characteristics)
	}
	if result.OptionsUsed.Preset != "balanced" {
		t.Fatalf("expected unknown preset to resolve to balanced, got %q", result.OptionsUsed.Preset)
	}
	path, opts := f.engine.LastRun()
	if path != f.audio || opts.Language != "en" || opts.FP16 {
		t.Fatalf("unexpected engine call: %s %+v", path, opts)
	}
	if f.engine.Loads(models.Small) != 1 {
		t.Fatalf("expected small loaded once")
	}
	if f.engine.Releases() != 0 {
		t.Fatal("cpu runs must not release accelerator memory")
	}
}

func TestTranscribeUsesConfiguredDefaults(t *testing.T) {
	f := newFixture(t, device.Accelerated)
	if _, err := f.service.Transcribe(context.Background(), f.audio, transcriber.Request{}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	_, opts := f.engine.LastRun()
	if opts.Language != "" || opts.Task != engine.TaskTranscribe || !opts.FP16 || opts.BeamSize != 3 {
		t.Fatalf("unexpected defaulted options: %+v", opts)
	}
	if f.engine.Loads(models.ID(f.cfg.Whisper.DefaultModel)) != 1 {
		t.Fatalf("expected default model load")
	}
	if f.engine.Releases() != 1 {
		t.Fatalf("expected accelerator memory release, got %d", f.engine.Releases())
	}
}

func TestTranscribeAutoModelFollowsRecommendation(t *testing.T) {
	f := newFixture(t, device.CPU)
	if _, err := f.service.Transcribe(context.Background(), f.audio, transcriber.Request{Model: "auto"}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if f.engine.Loads(models.Recommend(0.004, false)) != 1 {
		t.Fatal("expected recommended model to load")
	}
}

func TestTranscribeRejectsUnknownModelBeforeLoading(t *testing.T) {
	f := newFixture(t, device.CPU)
	_, err := f.service.Transcribe(context.Background(), f.audio, transcriber.Request{Model: "gigantic"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.engine.Runs() != 0 {
		t.Fatal("engine must not run on invalid model")
	}
}

func TestTranscribeRejectsBadTask(t *testing.T) {
	f := newFixture(t, device.CPU)
	_, err := f.service.Transcribe(context.Background(), f.audio, transcriber.Request{Request: options.Request{Task: "summarize"}})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTranscribeMissingFile(t *testing.T) {
	f := newFixture(t, device.CPU)
	_, err := f.service.Transcribe(context.Background(), filepath.Join(t.TempDir(), "nope.wav"), transcriber.Request{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTranscribeFallsBackToTiny(t *testing.T) {
	f := newFixture(t, device.CPU)
	f.engine.LoadErr = map[models.ID]error{models.Medium: testsupport.ErrFakeLoad}

	job, err := f.service.Run(context.Background(), transcriber.Job{Path: f.audio, Request: transcriber.Request{Model: "medium"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if job.Model != models.Tiny {
		t.Fatalf("expected tiny fallback, got %s", job.Model)
	}
	stored, err := f.store.Get(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.RequestedModel != "medium" || stored.Model != "tiny" {
		t.Fatalf("unexpected recorded models: %#v", stored)
	}
}

func TestRunRecordsTranscriptionFailure(t *testing.T) {
	f := newFixture(t, device.CPU)
	f.engine.RunErr = errors.New("CUDA out of memory")

	result, err := f.service.Run(context.Background(), transcriber.Job{Path: f.audio})
	if !errors.Is(err, services.ErrTranscription) || !strings.Contains(err.Error(), "CUDA out of memory") {
		t.Fatalf("expected transcription error with original message, got %v", err)
	}
	stored, getErr := f.store.Get(context.Background(), result.JobID)
	if getErr != nil {
		t.Fatalf("Get: %v", getErr)
	}
	if stored.Status != history.StatusFailed || stored.ErrorKind != "transcription" {
		t.Fatalf("unexpected stored job: %#v", stored)
	}
}

func TestRunWritesOutputsAndHistory(t *testing.T) {
	f := newFixture(t, device.CPU)
	ctx := context.Background()

	job, err := f.service.Submit(ctx, transcriber.Job{Path: f.audio, Source: "Team Sync.wav"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	pending, _ := f.store.Get(ctx, job.ID)
	if pending == nil || pending.Status != history.StatusPending || pending.SizeBytes != 4096 {
		t.Fatalf("unexpected pending job: %#v", pending)
	}

	job.OutputDir = f.cfg.Paths.OutputDir
	job.Formats = []string{"txt", "srt"}
	result, err := f.service.Run(ctx, job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantSRT := filepath.Join(f.cfg.Paths.OutputDir, "Team_Sync.srt")
	if len(result.Outputs) != 2 || result.Outputs[1] != wantSRT {
		t.Fatalf("unexpected outputs: %v", result.Outputs)
	}
	data, err := os.ReadFile(wantSRT)
	if err != nil {
		t.Fatalf("read srt: %v", err)
	}
	if !strings.HasPrefix(string(data), "1\n00:00:00,000 --> 00:00:02,000\nHello there.\n\n") {
		t.Fatalf("unexpected srt: %q", data)
	}

	stored, storedResult, err := f.service.JobResultFromStore(ctx, job.ID)
	if err != nil {
		t.Fatalf("JobResultFromStore: %v", err)
	}
	if stored.Status != history.StatusCompleted || len(stored.Outputs) != 2 {
		t.Fatalf("unexpected stored job: %#v", stored)
	}
	if storedResult.Text != result.Result.Text || len(storedResult.Segments) != 3 {
		t.Fatalf("stored result mismatch: %#v", storedResult)
	}
}

func TestRunRemovesStagedSource(t *testing.T) {
	f := newFixture(t, device.CPU)
	staged, err := f.service.StageFile(context.Background(), testsupport.NewUpload("clip.mp3", "audio/mpeg", 2048))
	if err != nil {
		t.Fatalf("StageFile: %v", err)
	}
	if _, err := f.service.Run(context.Background(), transcriber.Job{Path: staged, Source: "clip.mp3", RemoveSource: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(staged); !os.IsNotExist(err) {
		t.Fatalf("expected staged file removed, stat err = %v", err)
	}
}

func TestRunBatchKeepsOutputsOfSameNamedSources(t *testing.T) {
	f := newFixture(t, device.CPU)
	var jobs []transcriber.Job
	for _, dir := range []string{"a", "b", "c"} {
		path := filepath.Join(t.TempDir(), dir, "meeting.wav")
		testsupport.WriteFile(t, path, 4096)
		jobs = append(jobs, transcriber.Job{
			Path:      path,
			OutputDir: f.cfg.Paths.OutputDir,
			Formats:   []string{"txt"},
		})
	}

	results, errs, err := f.service.RunBatch(context.Background(), jobs)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	seen := map[string]bool{}
	for i, res := range results {
		if errs[i] != nil {
			t.Fatalf("job %d: %v", i, errs[i])
		}
		if len(res.Outputs) != 1 {
			t.Fatalf("job %d outputs: %v", i, res.Outputs)
		}
		if seen[res.Outputs[0]] {
			t.Fatalf("output %s written twice", res.Outputs[0])
		}
		seen[res.Outputs[0]] = true
	}
	if results[0].Outputs[0] != filepath.Join(f.cfg.Paths.OutputDir, "meeting.txt") {
		t.Fatalf("first job should keep the plain name, got %s", results[0].Outputs[0])
	}
	entries, err := os.ReadDir(f.cfg.Paths.OutputDir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 transcripts, found %d", len(entries))
	}
}

func TestRunBatchEnforcesLimit(t *testing.T) {
	f := newFixture(t, device.CPU)
	f.cfg.Intake.MaxBatchFiles = 2
	jobs := []transcriber.Job{{Path: f.audio}, {Path: f.audio}, {Path: f.audio}}
	if _, _, err := f.service.RunBatch(context.Background(), jobs); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected batch limit validation error, got %v", err)
	}
	if f.engine.Runs() != 0 {
		t.Fatal("no job should run when batch is rejected")
	}

	results, errs, err := f.service.RunBatch(context.Background(), jobs[:2])
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	for i := range results {
		if errs[i] != nil || results[i].JobID == "" {
			t.Fatalf("job %d: %v", i, errs[i])
		}
	}
	if f.engine.Loads(models.Base) != 1 || f.engine.Runs() != 2 {
		t.Fatalf("expected one load and two runs, got %d/%d", f.engine.Loads(models.Base), f.engine.Runs())
	}
}

func TestValidateFileAndExports(t *testing.T) {
	f := newFixture(t, device.CPU)
	if v := f.service.ValidateFile(testsupport.NewUpload("a.wma", "", 2048)); v.Valid {
		t.Fatal("expected .wma to be rejected")
	}
	result, err := f.service.Transcribe(context.Background(), f.audio, transcriber.Request{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if f.service.ExportText(result) != sampleTranscript().Text {
		t.Fatal("expected verbatim text export")
	}
	if !strings.HasPrefix(f.service.ExportSRT(result.Segments), "1\n") {
		t.Fatal("expected SRT export")
	}
	if got := f.service.EstimateDuration(10, models.Base, device.CPU); got != "~6.5min" {
		t.Fatalf("EstimateDuration = %q", got)
	}
}
