// Package inbox watches a drop folder and hands settled media files to a
// handler after moving them out of the folder.
package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"scribe/internal/fileutil"
	"scribe/internal/intake"
	"scribe/internal/logging"
)

// DefaultSettle is how long a file must stay unchanged before it is picked up.
const DefaultSettle = 2 * time.Second

// Handler receives a claimed file. path is the file's new location in the
// staging directory and name its original base name.
type Handler func(ctx context.Context, path, name string) error

// Watcher claims files dropped into an inbox directory.
type Watcher struct {
	dir        string
	stagingDir string
	validator  *intake.Validator
	handler    Handler
	logger     *slog.Logger
	settle     time.Duration

	mu      sync.Mutex
	pending map[string]pendingFile
	ignored map[string]struct{}
}

type pendingFile struct {
	lastEvent time.Time
	size      int64
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithSettle overrides DefaultSettle.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// New constructs a watcher for dir that moves claimed files into stagingDir.
func New(dir, stagingDir string, validator *intake.Validator, handler Handler, logger *slog.Logger, opts ...Option) *Watcher {
	if validator == nil {
		validator = intake.NewValidator(intake.DefaultLimits())
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	w := &Watcher{
		dir:        dir,
		stagingDir: stagingDir,
		validator:  validator,
		handler:    handler,
		logger:     logging.NewComponentLogger(logger, "inbox"),
		settle:     DefaultSettle,
		pending:    make(map[string]pendingFile),
		ignored:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled. Files already present are considered
// on startup.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create inbox dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("inbox watcher started", logging.String("dir", w.dir))

	w.scanExisting()

	tick := w.settle / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.touch(event.Name)
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				w.forget(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("inbox watcher error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "inbox_watch_error"),
				logging.String(logging.FieldErrorHint, "check inbox_dir permissions"),
				logging.String(logging.FieldImpact, "dropped files may be missed until restart"),
			)
		case now := <-ticker.C:
			for _, path := range w.settled(now) {
				w.claim(ctx, path)
			}
		}
	}
}

func (w *Watcher) scanExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			w.touch(filepath.Join(w.dir, entry.Name()))
		}
	}
}

func (w *Watcher) touch(path string) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !intake.IsSupportedPath(path) {
		if _, seen := w.ignored[path]; !seen {
			w.ignored[path] = struct{}{}
			w.logger.Info("ignoring unsupported inbox file", logging.String("file", name))
		}
		return
	}
	w.pending[path] = pendingFile{lastEvent: time.Now(), size: info.Size()}
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pending, path)
	delete(w.ignored, path)
}

// settled returns paths whose size has not changed for the settle period.
func (w *Watcher) settled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var ready []string
	for path, file := range w.pending {
		if now.Sub(file.lastEvent) < w.settle {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			delete(w.pending, path)
			continue
		}
		if info.Size() != file.size {
			w.pending[path] = pendingFile{lastEvent: now, size: info.Size()}
			continue
		}
		delete(w.pending, path)
		ready = append(ready, path)
	}
	return ready
}

func (w *Watcher) claim(ctx context.Context, path string) {
	name := filepath.Base(path)
	logger := w.logger.With(logging.String("file", name))

	local, err := intake.Local(path)
	if err != nil {
		return
	}
	if result := w.validator.Validate(local); !result.Valid {
		logging.WarnWithContext(logger, "inbox file rejected", "inbox_rejected",
			logging.String("reason", result.Error),
			logging.String(logging.FieldImpact, "file left in inbox"),
			logging.String(logging.FieldErrorHint, "remove or replace the file"),
		)
		w.mu.Lock()
		w.ignored[path] = struct{}{}
		w.mu.Unlock()
		return
	}

	target := filepath.Join(w.stagingDir, intake.StagedName(time.Now(), intake.Extension(name)))
	if err := fileutil.MoveFile(path, target); err != nil {
		logging.WarnWithContext(logger, "failed to claim inbox file", "inbox_claim_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "file not transcribed"),
			logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
		)
		return
	}
	logger.Info("inbox file claimed", logging.String("staged", target), logging.String(logging.FieldEventType, "inbox_claimed"))

	if w.handler == nil {
		return
	}
	if err := w.handler(ctx, target, name); err != nil {
		logger.Error("inbox handler failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "inbox_handler_failed"),
		)
	}
}
