package intake

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	unsafeNameChars = regexp.MustCompile(`[^\w\-.]`)
	repeatedUnder   = regexp.MustCompile(`_+`)
)

// CleanFilename replaces characters outside [A-Za-z0-9_.-] in the stem with
// underscores and keeps the extension. An empty stem becomes "audio_file".
func CleanFilename(name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(filepath.Base(name), ext)
	if filepath.Base(name) == ext {
		stem, ext = ext, ""
	}

	clean := unsafeNameChars.ReplaceAllString(stem, "_")
	clean = repeatedUnder.ReplaceAllString(clean, "_")
	clean = strings.Trim(clean, "_")
	if clean == "" {
		clean = "audio_file"
	}
	return clean + ext
}

// FormatFileSize renders bytes with one decimal and a B/KB/MB/GB unit.
func FormatFileSize(size int64) string {
	if size == 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	value := float64(size)
	i := 0
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", value, units[i])
}
