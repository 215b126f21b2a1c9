package intake

import (
	"path/filepath"
	"sort"
	"strings"
)

// StagePrefix marks files written by Stager so CleanStale only removes its own.
const StagePrefix = "scribe_audio_"

// MaxNameLength bounds accepted file names.
const MaxNameLength = 255

// mimeExtensions maps supported MIME types to their extensions. The first
// extension is the canonical one used when a name carries none.
var mimeExtensions = map[string][]string{
	"audio/mpeg":      {".mp3"},
	"audio/wav":       {".wav"},
	"audio/x-wav":     {".wav"},
	"audio/mp4":       {".m4a"},
	"audio/x-m4a":     {".m4a"},
	"audio/aac":       {".aac"},
	"audio/ogg":       {".ogg"},
	"audio/flac":      {".flac"},
	"audio/webm":      {".webm"},
	"video/mp4":       {".mp4"},
	"video/mpeg":      {".mpeg", ".mpg"},
	"video/quicktime": {".mov"},
	"video/webm":      {".webm"},
	"video/x-msvideo": {".avi"},
}

var deniedExtensions = map[string]struct{}{
	".exe": {}, ".bat": {}, ".sh": {}, ".scr": {}, ".com": {}, ".pif": {},
	".vbs": {}, ".js": {}, ".jar": {}, ".app": {}, ".deb": {}, ".rpm": {},
}

var supportedExtensions = func() map[string]struct{} {
	set := make(map[string]struct{})
	for _, exts := range mimeExtensions {
		for _, ext := range exts {
			set[ext] = struct{}{}
		}
	}
	return set
}()

// SupportedExtensions returns the accepted extensions, sorted.
func SupportedExtensions() []string {
	out := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// SupportedMIMETypes returns the accepted MIME types, sorted.
func SupportedMIMETypes() []string {
	out := make([]string, 0, len(mimeExtensions))
	for mime := range mimeExtensions {
		out = append(out, mime)
	}
	sort.Strings(out)
	return out
}

// IsSupportedPath reports whether path carries an accepted media extension.
func IsSupportedPath(path string) bool {
	_, ok := supportedExtensions[Extension(path)]
	return ok
}

// Extension returns the lowercased extension of name including the dot.
func Extension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

func normalizeMIME(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if idx := strings.IndexByte(value, ';'); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	return value
}
