package device

import (
	"context"
	"log/slog"
	"sync"

	"scribe/internal/logging"
)

// Resolver computes the device profile once and caches it.
type Resolver struct {
	prober Prober
	forced Kind
	logger *slog.Logger

	once    sync.Once
	profile Profile
}

// NewResolver constructs a resolver. forced is the configured device
// ("auto", "cpu", or "cuda"); anything other than cpu/cuda probes the host.
func NewResolver(prober Prober, forced string, logger *slog.Logger) *Resolver {
	kind, _ := ParseKind(forced)
	if prober == nil {
		prober = NewHostProber()
	}
	return &Resolver{
		prober: prober,
		forced: kind,
		logger: logging.NewComponentLogger(logger, "device"),
	}
}

// Static returns a resolver that always yields profile without probing.
func Static(profile Profile) *Resolver {
	r := &Resolver{logger: logging.NewNop()}
	r.once.Do(func() { r.profile = profile })
	return r
}

// Resolve returns the cached device profile, probing on first use.
func (r *Resolver) Resolve(ctx context.Context) Profile {
	r.once.Do(func() {
		r.profile = r.detect(ctx)
		attrs := []logging.Attr{
			logging.String("kind", string(r.profile.Kind)),
			logging.Int("max_input_size_mb", r.profile.MaxInputSizeMB),
			logging.Bool("parallelism", r.profile.SupportsParallelism),
		}
		if r.profile.DeviceName != "" {
			attrs = append(attrs, logging.String("device_name", r.profile.DeviceName))
		}
		if r.profile.MemoryGB != nil {
			attrs = append(attrs, logging.Float64("memory_gb", *r.profile.MemoryGB))
		}
		r.logger.Info("device profile resolved", logging.Args(attrs...)...)
	})
	return r.profile
}

func (r *Resolver) detect(ctx context.Context) Profile {
	if r.forced == CPU {
		return r.cpuProfile()
	}

	accel, err := r.prober.ProbeAccelerator(ctx)
	if err != nil {
		if r.forced == Accelerated {
			logging.WarnWithContext(r.logger, "accelerator forced but probe failed", "device_probe_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "using the smallest accelerator tier"),
				logging.String(logging.FieldErrorHint, "check nvidia-smi is installed and the driver is loaded"),
			)
			return ProfileFor(Accelerated, nil)
		}
		r.logger.Debug("no accelerator found", logging.Error(err))
		return r.cpuProfile()
	}

	memory := accel.MemoryGB
	profile := ProfileFor(Accelerated, &memory)
	profile.DeviceName = accel.Name
	return profile
}

func (r *Resolver) cpuProfile() Profile {
	var memory *float64
	if gb, err := r.prober.SystemMemoryGB(); err == nil && gb > 0 {
		memory = &gb
	}
	profile := ProfileFor(CPU, memory)
	profile.DeviceName = "cpu"
	return profile
}
