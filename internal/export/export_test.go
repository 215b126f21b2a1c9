package export_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scribe/internal/engine"
	"scribe/internal/enrich"
	"scribe/internal/export"
	"scribe/internal/options"
)

func sampleSegments() []engine.Segment {
	return []engine.Segment{
		{Start: 0, End: 2.5, Text: " Hello world. "},
		{Start: 2.5, End: 65.25, Text: "Second cue"},
		{Start: 3661.0019, End: 3662.9999, Text: "Third\n"},
	}
}

func TestSRTBlockGrammar(t *testing.T) {
	got := export.SRT(sampleSegments())
	want := "1\n00:00:00,000 --> 00:00:02,500\nHello world.\n\n" +
		"2\n00:00:02,500 --> 00:01:05,250\nSecond cue\n\n" +
		"3\n01:01:01,001 --> 01:01:02,999\nThird\n\n"
	if got != want {
		t.Fatalf("unexpected SRT:\n%q\nwant\n%q", got, want)
	}
}

func TestSRTEmpty(t *testing.T) {
	if got := export.SRT(nil); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestFormatSRTTimestamp(t *testing.T) {
	tests := map[float64]string{
		-3:      "00:00:00,000",
		0:       "00:00:00,000",
		1.001:   "00:00:01,001",
		1.0009:  "00:00:01,000",
		59.9999: "00:00:59,999",
		65.25:   "00:01:05,250",
		7325.5:  "02:02:05,500",
	}
	for in, want := range tests {
		if got := export.FormatSRTTimestamp(in); got != want {
			t.Errorf("FormatSRTTimestamp(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestSRTRoundTripToMillisecond(t *testing.T) {
	segments := []engine.Segment{
		{Start: 0.1234, End: 1.9876, Text: "alpha"},
		{Start: 2.0, End: 4.5005, Text: "beta gamma"},
		{Start: 4.5005, End: 10.0, Text: "delta"},
		{Start: 12.75, End: 3599.9999, Text: "epsilon"},
	}
	cues, err := export.ParseSRT(export.SRT(segments))
	if err != nil {
		t.Fatalf("ParseSRT: %v", err)
	}
	if len(cues) != len(segments) {
		t.Fatalf("expected %d cues, got %d", len(segments), len(cues))
	}
	trunc := func(v float64) float64 {
		got, _ := export.ParseTimestamp(export.FormatSRTTimestamp(v))
		return got
	}
	for i, seg := range segments {
		cue := cues[i]
		if cue.Index != i+1 {
			t.Fatalf("cue %d index = %d", i, cue.Index)
		}
		if cue.Start != trunc(seg.Start) || cue.End != trunc(seg.End) {
			t.Fatalf("cue %d times = (%v,%v), want (%v,%v)", i, cue.Start, cue.End, trunc(seg.Start), trunc(seg.End))
		}
		if cue.Start > seg.Start || seg.Start-cue.Start >= 0.001 {
			t.Fatalf("cue %d start %v not a millisecond truncation of %v", i, cue.Start, seg.Start)
		}
		if cue.Text != seg.Text {
			t.Fatalf("cue %d text = %q, want %q", i, cue.Text, seg.Text)
		}
	}
}

func TestParseSRTRejectsMalformedBlocks(t *testing.T) {
	for _, content := range []string{
		"x\n00:00:00,000 --> 00:00:01,000\nhi\n",
		"1\nnot a timing line\nhi\n",
		"1\n",
	} {
		if _, err := export.ParseSRT(content); err == nil {
			t.Fatalf("expected error for %q", content)
		}
	}
}

func TestVTT(t *testing.T) {
	got := export.VTT(sampleSegments()[:1])
	want := "WEBVTT\n\n00:00:00.000 --> 00:00:02.500\nHello world.\n\n"
	if got != want {
		t.Fatalf("unexpected VTT: %q", got)
	}
}

func TestTextIsVerbatim(t *testing.T) {
	result := enrich.Result{Text: "  spaced text \n"}
	if export.Text(result) != "  spaced text \n" {
		t.Fatalf("expected verbatim text, got %q", export.Text(result))
	}
}

func TestWriteAll(t *testing.T) {
	raw := engine.RawTranscript{Text: "Hello world.", Language: "en", Segments: sampleSegments()[:2]}
	result := enrich.Enrich(raw, 2*time.Second, options.Invocation{Preset: "balanced"})
	base := filepath.Join(t.TempDir(), "out", "talk")

	paths, err := export.WriteAll(base, result, []string{"txt", ".SRT", "json"})
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if len(paths) != 3 || paths[1] != base+".srt" {
		t.Fatalf("unexpected paths: %v", paths)
	}
	text, _ := os.ReadFile(base + ".txt")
	if string(text) != "Hello world." {
		t.Fatalf("unexpected text output: %q", text)
	}
	srt, _ := os.ReadFile(base + ".srt")
	if !strings.HasPrefix(string(srt), "1\n00:00:00,000 --> 00:00:02,500\n") {
		t.Fatalf("unexpected srt output: %q", srt)
	}
	var decoded map[string]any
	data, _ := os.ReadFile(base + ".json")
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if decoded["average_confidence"] != 0.5 {
		t.Fatalf("unexpected json payload: %v", decoded["average_confidence"])
	}
	if _, ok := decoded["filtered_segments_count"]; ok {
		t.Fatal("expected filtered_segments_count omitted")
	}
}

func TestWriteAllRejectsUnknownFormat(t *testing.T) {
	if _, err := export.WriteAll(filepath.Join(t.TempDir(), "x"), enrich.Result{}, []string{"docx"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestAvailableBaseSkipsTakenNames(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "meeting")
	formats := []string{"txt", "srt"}

	if got := export.AvailableBase(base, formats, "20240102_150405"); got != base {
		t.Fatalf("expected free base kept, got %s", got)
	}

	// One taken format is enough to move the whole set.
	if err := os.WriteFile(base+".srt", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	want := base + "_20240102_150405"
	if got := export.AvailableBase(base, formats, "20240102_150405"); got != want {
		t.Fatalf("AvailableBase = %s, want %s", got, want)
	}

	if err := os.WriteFile(want+".txt", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := export.AvailableBase(base, formats, "20240102_150405"); got != want+"_2" {
		t.Fatalf("AvailableBase = %s, want %s_2", got, want)
	}
	if got := export.AvailableBase(base, []string{"vtt"}, "20240102_150405"); got != base {
		t.Fatalf("unrelated formats should keep the base, got %s", got)
	}
}
