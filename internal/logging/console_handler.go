package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const consoleTimeLayout = "2006-01-02 15:04:05"

// liftedFields are rendered in the line prefix instead of as key=value pairs.
var liftedFields = [...]string{FieldJobID, FieldStage, FieldComponent}

type consoleHandler struct {
	out       *lockedWriter
	level     *slog.LevelVar
	addSource bool
	color     bool
	prefix    string
	preset    []field
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{
		out:       &lockedWriter{w: w},
		level:     lvl,
		addSource: addSource,
		color:     colorEnabled(w),
	}
}

func colorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if !h.Enabled(context.Background(), record.Level) {
		return nil
	}

	fields := append(make([]field, 0, len(h.preset)+record.NumAttrs()), h.preset...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = collect(fields, h.prefix, attr)
		return true
	})

	var lifted [len(liftedFields)]string
	rest := fields[:0]
	for _, f := range fields {
		if i := liftedIndex(f.key); i >= 0 {
			if lifted[i] == "" {
				lifted[i] = renderValue(f.value, false)
			}
			continue
		}
		rest = append(rest, f)
	}
	jobID, stage, component := lifted[0], lifted[1], lifted[2]

	when := record.Time
	if when.IsZero() {
		when = time.Now()
	}

	var b strings.Builder
	b.WriteString(when.Local().Format(consoleTimeLayout))
	b.WriteByte(' ')
	b.WriteString(h.levelTag(record.Level))
	b.WriteByte(' ')
	if jobID != "" {
		b.WriteByte('[')
		b.WriteString(abbreviate(jobID))
		if stage != "" {
			b.WriteString("/" + stage)
		}
		b.WriteString("] ")
	}
	if component != "" {
		b.WriteString(component + ": ")
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	b.WriteString(msg)

	if h.addSource {
		if src := record.Source(); src != nil && src.File != "" {
			fmt.Fprintf(&b, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	for _, f := range rest {
		if f.key == "" {
			continue
		}
		b.WriteString(" " + f.key + "=" + renderValue(f.value, true))
	}
	b.WriteByte('\n')

	return h.out.write(b.String())
}

func (lw *lockedWriter) write(line string) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	_, err := io.WriteString(lw.w, line)
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.preset = append([]field(nil), h.preset...)
	for _, attr := range attrs {
		next.preset = collect(next.preset, h.prefix, attr)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = joinKey(h.prefix, name)
	return &next
}

// collect appends attr to dst, flattening groups into dotted keys.
func collect(dst []field, prefix string, attr slog.Attr) []field {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	value := attr.Value.Resolve()
	if value.Kind() != slog.KindGroup {
		return append(dst, field{key: joinKey(prefix, attr.Key), value: value})
	}
	inner := prefix
	if attr.Key != "" {
		inner = joinKey(prefix, attr.Key)
	}
	for _, child := range value.Group() {
		dst = collect(dst, inner, child)
	}
	return dst
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func liftedIndex(key string) int {
	for i, name := range liftedFields {
		if key == name {
			return i
		}
	}
	return -1
}

func renderValue(v slog.Value, quote bool) string {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		return v.String()
	}
	if quote && (s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' })) {
		return strconv.Quote(s)
	}
	return s
}

func (h *consoleHandler) levelTag(level slog.Level) string {
	var tag, color string
	switch {
	case level >= slog.LevelError:
		tag, color = "ERROR", "\x1b[31m"
	case level >= slog.LevelWarn:
		tag, color = "WARN ", "\x1b[33m"
	case level >= slog.LevelInfo:
		tag, color = "INFO ", "\x1b[36m"
	default:
		tag, color = "DEBUG", "\x1b[90m"
	}
	if !h.color {
		return tag
	}
	return color + tag + "\x1b[0m"
}

func abbreviate(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
