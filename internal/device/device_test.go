package device_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"scribe/internal/device"
	"scribe/internal/models"
)

type stubProber struct {
	accel    device.Accelerator
	err      error
	ram      float64
	ramErr   error
	calls    atomic.Int32
	ramCalls atomic.Int32
}

func (s *stubProber) ProbeAccelerator(context.Context) (device.Accelerator, error) {
	s.calls.Add(1)
	return s.accel, s.err
}

func (s *stubProber) SystemMemoryGB() (float64, error) {
	s.ramCalls.Add(1)
	return s.ram, s.ramErr
}

func gb(v float64) *float64 { return &v }

func TestProfileForTiers(t *testing.T) {
	tests := []struct {
		name        string
		kind        device.Kind
		memory      *float64
		models      []models.ID
		maxMB       int
		parallelism bool
	}{
		{"cpu", device.CPU, gb(16), []models.ID{models.Tiny, models.Base}, 50, false},
		{"gpu-2gb", device.Accelerated, gb(2), []models.ID{models.Small, models.Medium}, 250, false},
		{"gpu-6gb", device.Accelerated, gb(6), []models.ID{models.Small, models.Medium}, 250, false},
		{"gpu-unknown", device.Accelerated, nil, []models.ID{models.Small, models.Medium}, 250, false},
		{"gpu-8gb", device.Accelerated, gb(8), []models.ID{models.Medium, models.LargeV2}, 500, true},
		{"gpu-24gb", device.Accelerated, gb(24), []models.ID{models.Medium, models.LargeV2}, 500, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := device.ProfileFor(tt.kind, tt.memory)
			if p.Kind != tt.kind {
				t.Fatalf("kind = %q, want %q", p.Kind, tt.kind)
			}
			if p.MaxInputSizeMB != tt.maxMB || p.SupportsParallelism != tt.parallelism {
				t.Fatalf("unexpected limits: %+v", p)
			}
			if len(p.RecommendedModels) != len(tt.models) {
				t.Fatalf("models = %v, want %v", p.RecommendedModels, tt.models)
			}
			for i := range tt.models {
				if p.RecommendedModels[i] != tt.models[i] {
					t.Fatalf("models = %v, want %v", p.RecommendedModels, tt.models)
				}
			}
		})
	}
}

func TestResolverFallsBackToCPUWhenProbeFails(t *testing.T) {
	prober := &stubProber{err: errors.New("nvidia-smi: not found"), ram: 12}
	r := device.NewResolver(prober, "auto", nil)
	p := r.Resolve(context.Background())
	if p.Kind != device.CPU {
		t.Fatalf("expected cpu profile, got %q", p.Kind)
	}
	if p.MemoryGB == nil || *p.MemoryGB != 12 {
		t.Fatalf("expected system memory on cpu profile, got %v", p.MemoryGB)
	}
}

func TestResolverUsesAccelerator(t *testing.T) {
	prober := &stubProber{accel: device.Accelerator{Name: "RTX 4090", MemoryGB: 24}}
	p := device.NewResolver(prober, "auto", nil).Resolve(context.Background())
	if !p.Accelerated() || p.DeviceName != "RTX 4090" || !p.SupportsParallelism {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if !p.Recommends(models.LargeV2) {
		t.Fatal("expected large-v2 recommended on 24GB accelerator")
	}
}

func TestResolverForcedCPUSkipsProbe(t *testing.T) {
	prober := &stubProber{accel: device.Accelerator{Name: "RTX", MemoryGB: 24}}
	p := device.NewResolver(prober, "cpu", nil).Resolve(context.Background())
	if p.Kind != device.CPU {
		t.Fatalf("expected forced cpu, got %q", p.Kind)
	}
	if prober.calls.Load() != 0 {
		t.Fatalf("expected no accelerator probe, got %d", prober.calls.Load())
	}
}

func TestResolverForcedCUDAWithoutProbe(t *testing.T) {
	prober := &stubProber{err: errors.New("missing")}
	p := device.NewResolver(prober, "cuda", nil).Resolve(context.Background())
	if p.Kind != device.Accelerated || p.MaxInputSizeMB != 250 {
		t.Fatalf("unexpected forced cuda profile: %+v", p)
	}
}

func TestResolverProbesOnceUnderConcurrency(t *testing.T) {
	prober := &stubProber{accel: device.Accelerator{Name: "GPU", MemoryGB: 6}}
	r := device.NewResolver(prober, "auto", nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Resolve(context.Background())
		}()
	}
	wg.Wait()
	if got := prober.calls.Load(); got != 1 {
		t.Fatalf("expected one probe, got %d", got)
	}
}

func TestHostProberParsesNvidiaSMI(t *testing.T) {
	p := device.NewHostProber()
	var gotArgs []string
	p.WithCommandRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = append([]string{name}, args...)
		return []byte("NVIDIA GeForce RTX 3060, 12288\nNVIDIA T4, 15360\n"), nil
	})
	accel, err := p.ProbeAccelerator(context.Background())
	if err != nil {
		t.Fatalf("ProbeAccelerator: %v", err)
	}
	if accel.Name != "NVIDIA GeForce RTX 3060" || accel.MemoryGB != 12 {
		t.Fatalf("unexpected accelerator: %+v", accel)
	}
	if len(gotArgs) != 3 || gotArgs[0] != device.NvidiaSMICommand {
		t.Fatalf("unexpected command: %v", gotArgs)
	}
}

func TestHostProberRejectsEmptyOutput(t *testing.T) {
	p := device.NewHostProber()
	p.WithCommandRunner(func(context.Context, string, ...string) ([]byte, error) {
		return []byte("\n"), nil
	})
	if _, err := p.ProbeAccelerator(context.Background()); !errors.Is(err, device.ErrNoAccelerator) {
		t.Fatalf("expected ErrNoAccelerator, got %v", err)
	}
}

func TestStaticResolver(t *testing.T) {
	want := device.ProfileFor(device.Accelerated, gb(10))
	got := device.Static(want).Resolve(context.Background())
	if got.Kind != want.Kind || got.MaxInputSizeMB != want.MaxInputSizeMB {
		t.Fatalf("static resolver returned %+v", got)
	}
}
