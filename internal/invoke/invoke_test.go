package invoke_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"scribe/internal/device"
	"scribe/internal/engine"
	"scribe/internal/invoke"
	"scribe/internal/modelcache"
	"scribe/internal/models"
	"scribe/internal/services"
	"scribe/internal/testsupport"
)

func loadHandle(t *testing.T, eng *testsupport.FakeEngine, kind device.Kind) *modelcache.Handle {
	t.Helper()
	cache := modelcache.New(eng, nil)
	h, err := cache.GetOrLoad(context.Background(), models.Base, device.ProfileFor(kind, nil))
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	return h
}

func TestInvokeReturnsTranscriptAndReleasesOnAccelerator(t *testing.T) {
	eng := testsupport.NewFakeEngine(engine.RawTranscript{
		Text:     "hello",
		Language: "en",
		Segments: []engine.Segment{testsupport.Segment(0, 1, "hello", 0.9)},
	})
	h := loadHandle(t, eng, device.Accelerated)

	raw, elapsed, err := invoke.New(eng, nil).Invoke(context.Background(), h, "/tmp/a.wav", engine.Options{BeamSize: 3})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if raw.Text != "hello" || elapsed < 0 {
		t.Fatalf("unexpected result: %+v elapsed=%v", raw, elapsed)
	}
	if eng.Runs() != 1 {
		t.Fatalf("expected exactly one run, got %d", eng.Runs())
	}
	if eng.Releases() != 1 {
		t.Fatalf("expected memory release on accelerator, got %d", eng.Releases())
	}
	path, opts := eng.LastRun()
	if path != "/tmp/a.wav" || opts.BeamSize != 3 {
		t.Fatalf("unexpected run args: %q %+v", path, opts)
	}
}

func TestInvokeSkipsReleaseOnCPU(t *testing.T) {
	eng := testsupport.NewFakeEngine(engine.RawTranscript{})
	h := loadHandle(t, eng, device.CPU)
	if _, _, err := invoke.New(eng, nil).Invoke(context.Background(), h, "/tmp/a.wav", engine.Options{}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if eng.Releases() != 0 {
		t.Fatalf("expected no release on cpu, got %d", eng.Releases())
	}
}

func TestInvokeWrapsEngineErrorOpaquely(t *testing.T) {
	eng := testsupport.NewFakeEngine(engine.RawTranscript{})
	nativeErr := &os.PathError{Op: "open", Path: "/tmp/a.wav", Err: os.ErrNotExist}
	eng.RunErr = nativeErr
	eng.ReleaseErr = errors.New("release failed")
	h := loadHandle(t, eng, device.Accelerated)

	_, _, err := invoke.New(eng, nil).Invoke(context.Background(), h, "/tmp/a.wav", engine.Options{})
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected ErrTranscription, got %v", err)
	}
	if !strings.Contains(err.Error(), nativeErr.Error()) {
		t.Fatalf("expected original message preserved, got %v", err)
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		t.Fatal("engine error type must not leak through the wrapper")
	}
	if strings.Contains(err.Error(), "release failed") {
		t.Fatalf("release failure must not mask primary error: %v", err)
	}
	if eng.Releases() != 1 {
		t.Fatalf("expected release after failure, got %d", eng.Releases())
	}
	if eng.Runs() != 1 {
		t.Fatalf("expected no retry, got %d runs", eng.Runs())
	}
}

func TestInvokeRecoversPanic(t *testing.T) {
	eng := testsupport.NewFakeEngine(engine.RawTranscript{})
	eng.RunPanic = "tensor shape mismatch"
	h := loadHandle(t, eng, device.CPU)

	_, _, err := invoke.New(nil, nil).Invoke(context.Background(), h, "/tmp/a.wav", engine.Options{})
	if !errors.Is(err, services.ErrTranscription) || !strings.Contains(err.Error(), "tensor shape mismatch") {
		t.Fatalf("expected wrapped panic, got %v", err)
	}
}

func TestInvokeRejectsNilHandle(t *testing.T) {
	if _, _, err := invoke.New(nil, nil).Invoke(context.Background(), nil, "/tmp/a.wav", engine.Options{}); !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected ErrTranscription, got %v", err)
	}
}
