package preset_test

import (
	"testing"

	"scribe/internal/preset"
)

func TestResolveCanonicalPresets(t *testing.T) {
	tests := []struct {
		name     string
		beam     int
		bestOf   int
		compress float64
		logprob  float64
		noSpeech float64
	}{
		{preset.Fast, 1, 1, 2.4, -1.0, 0.6},
		{preset.Balanced, 3, 3, 2.0, -0.5, 0.5},
		{preset.HighQuality, 5, 5, 1.8, -0.3, 0.4},
	}
	for _, tt := range tests {
		p := preset.Resolve(tt.name)
		if p.Name != tt.name || p.BeamSize != tt.beam || p.BestOf != tt.bestOf {
			t.Fatalf("unexpected preset for %q: %+v", tt.name, p)
		}
		if p.CompressionRatioThreshold != tt.compress || p.LogprobThreshold != tt.logprob || p.NoSpeechThreshold != tt.noSpeech {
			t.Fatalf("unexpected thresholds for %q: %+v", tt.name, p)
		}
		if p.Temperature != 0 {
			t.Fatalf("expected zero temperature for %q, got %v", tt.name, p.Temperature)
		}
	}
}

func TestResolveUnknownFallsBackToBalanced(t *testing.T) {
	for _, name := range []string{"turbo", "", "  "} {
		if got := preset.Resolve(name); got.Name != preset.Balanced {
			t.Fatalf("Resolve(%q) = %q, want balanced", name, got.Name)
		}
	}
	if _, ok := preset.Lookup("turbo"); ok {
		t.Fatal("Lookup should report unknown preset")
	}
}

func TestResolveIsCaseInsensitive(t *testing.T) {
	if got := preset.Resolve(" High_Quality "); got.Name != preset.HighQuality {
		t.Fatalf("expected high_quality, got %q", got.Name)
	}
}

func TestNamesOrderedBySpeed(t *testing.T) {
	names := preset.Names()
	want := []string{preset.Fast, preset.Balanced, preset.HighQuality}
	if len(names) != len(want) {
		t.Fatalf("unexpected names: %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
