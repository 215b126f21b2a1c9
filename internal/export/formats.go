package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"scribe/internal/engine"
	"scribe/internal/enrich"
	"scribe/internal/fileutil"
)

// Supported output formats.
const (
	FormatText = "txt"
	FormatSRT  = "srt"
	FormatVTT  = "vtt"
	FormatJSON = "json"
)

// Formats lists every supported output format.
func Formats() []string {
	return []string{FormatText, FormatSRT, FormatVTT, FormatJSON}
}

// Text returns the transcript text verbatim.
func Text(result enrich.Result) string {
	return result.Text
}

// VTT renders segments as a WebVTT document.
func VTT(segments []engine.Segment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, seg := range segments {
		b.WriteString(formatTimestamp(seg.Start, '.'))
		b.WriteString(" --> ")
		b.WriteString(formatTimestamp(seg.End, '.'))
		b.WriteByte('\n')
		b.WriteString(strings.TrimSpace(seg.Text))
		b.WriteString("\n\n")
	}
	return b.String()
}

// JSON renders the full enriched result.
func JSON(result enrich.Result) ([]byte, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return append(data, '\n'), nil
}

// Render returns the bytes for one format.
func Render(format string, result enrich.Result) ([]byte, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), ".")) {
	case FormatText:
		return []byte(Text(result)), nil
	case FormatSRT:
		return []byte(SRT(result.Segments)), nil
	case FormatVTT:
		return []byte(VTT(result.Segments)), nil
	case FormatJSON:
		return JSON(result)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// AvailableBase returns a base path for WriteAll that overwrites nothing.
// basePath is used when none of its format files exist; otherwise suffix is
// appended, then a counter until every target is free.
func AvailableBase(basePath string, formats []string, suffix string) string {
	if !baseTaken(basePath, formats) {
		return basePath
	}
	candidate := basePath
	if suffix != "" {
		candidate = basePath + "_" + suffix
		if !baseTaken(candidate, formats) {
			return candidate
		}
	}
	for n := 2; ; n++ {
		next := candidate + "_" + strconv.Itoa(n)
		if !baseTaken(next, formats) {
			return next
		}
	}
}

func baseTaken(basePath string, formats []string) bool {
	for _, format := range formats {
		_, err := os.Lstat(basePath + "." + extension(format))
		if !errors.Is(err, fs.ErrNotExist) {
			return true
		}
	}
	return false
}

func extension(format string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
}

// WriteAll writes result in every requested format to basePath plus the
// format extension and returns the written paths in request order.
func WriteAll(basePath string, result enrich.Result, formats []string) ([]string, error) {
	written := make([]string, 0, len(formats))
	for _, format := range formats {
		data, err := Render(format, result)
		if err != nil {
			return written, err
		}
		path := basePath + "." + extension(format)
		if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", filepath.Base(path), err)
		}
		written = append(written, path)
	}
	return written, nil
}
