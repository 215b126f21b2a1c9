package estimate_test

import (
	"math"
	"testing"

	"scribe/internal/device"
	"scribe/internal/estimate"
	"scribe/internal/models"
)

func TestDuration(t *testing.T) {
	tests := []struct {
		sizeMB float64
		model  models.ID
		kind   device.Kind
		want   string
	}{
		{0, models.Base, device.CPU, "~30s"},
		{1, models.Tiny, device.Accelerated, "~36s"},
		{10, models.Base, device.CPU, "~6.5min"},
		{2, models.Medium, device.Accelerated, "~1.3min"},
		{100, models.LargeV2, device.CPU, "~4h00min"},
		{50, models.Small, device.CPU, "~50.5min"},
		{100, models.ID("huge"), device.Kind("tpu"), "~1h40min"},
	}
	for _, tt := range tests {
		if got := estimate.Duration(tt.sizeMB, tt.model, tt.kind); got != tt.want {
			t.Errorf("Duration(%v, %s, %s) = %q, want %q", tt.sizeMB, tt.model, tt.kind, got, tt.want)
		}
	}
}

func TestMinutesClampsNegativeSize(t *testing.T) {
	if got := estimate.Minutes(-5, models.Base, device.CPU); got != 0.5 {
		t.Fatalf("Minutes(-5) = %v, want 0.5", got)
	}
}

func TestAudioDuration(t *testing.T) {
	// 1 MB at 128kbps is 8388608 bits / 128000 = 65.536s
	if got := estimate.AudioSeconds(1, 128); math.Abs(got-65.536) > 1e-9 {
		t.Fatalf("AudioSeconds = %v", got)
	}
	if got := estimate.AudioDuration(1, 0); got != "00:01:05" {
		t.Fatalf("AudioDuration default bitrate = %q", got)
	}
	if got := estimate.AudioDuration(60, 320); got != "00:26:12" {
		t.Fatalf("AudioDuration(60, 320) = %q", got)
	}
	if got := estimate.AudioDuration(0, 128); got != "00:00:00" {
		t.Fatalf("AudioDuration(0) = %q", got)
	}
}

func TestCPUIsFourTimesSlowerThanCUDA(t *testing.T) {
	cuda := estimate.Minutes(10, models.Base, device.Accelerated) - 0.5
	cpu := estimate.Minutes(10, models.Base, device.CPU) - 0.5
	if math.Abs(cpu-4*cuda) > 1e-9 {
		t.Fatalf("cpu %v, cuda %v", cpu, cuda)
	}
	if got := estimate.Minutes(10, models.Base, device.Kind("npu")); got != estimate.Minutes(10, models.Base, device.CPU) {
		t.Fatalf("unknown device should use the cpu multiplier, got %v", got)
	}
}
