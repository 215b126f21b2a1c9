package intake

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scribe/internal/logging"
)

// CleanStale removes staged files older than maxAge from dir and returns the
// removed paths. Failures are logged and skipped.
func CleanStale(ctx context.Context, dir string, maxAge time.Duration, logger *slog.Logger) []string {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.WithContext(ctx, logging.NewComponentLogger(logger, "intake"))

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Debug("staging cleanup skipped", logging.String("dir", dir), logging.Error(err))
		}
		return nil
	}

	cutoff := time.Now().Add(-maxAge)
	var removed []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), StagePrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			logging.WarnWithContext(logger, "failed to remove stale staged file", "staging_cleanup_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		removed = append(removed, path)
		logger.Info("removed stale staged file",
			logging.String("path", path),
			logging.Duration("age", time.Since(info.ModTime())),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}
	return removed
}

// Remove deletes a staged file, ignoring errors.
func Remove(path string, logger *slog.Logger) {
	if strings.TrimSpace(path) == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) && logger != nil {
		logger.Debug("staged file cleanup failed", logging.String("path", path), logging.Error(err))
	}
}
