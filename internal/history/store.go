package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"scribe/internal/config"
	"scribe/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by another schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to the history database configured in cfg.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.HistoryPath())
}

// OpenPath connects to the database at path, creating it when missing.
func OpenPath(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to start fresh)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Create inserts a pending job. An empty ID is replaced with a new UUID.
func (s *Store) Create(ctx context.Context, job NewJob) (*Job, error) {
	if strings.TrimSpace(job.SourceName) == "" {
		return nil, errors.New("create job: source name required")
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := formatTime(time.Now())
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO jobs (
            id, source_name, source_path, status, requested_model, language, task, preset,
            size_bytes, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.SourceName, nullableString(job.SourcePath), StatusPending,
		nullableString(job.RequestedModel), nullableString(job.Language),
		nullableString(job.Task), nullableString(job.Preset),
		job.SizeBytes, now, now,
	); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.Get(ctx, job.ID)
}

// Get fetches a job by id. Missing jobs return an ErrNotFound-marked error.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "history", "get job", id, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// Result decodes the stored result of a completed job into dst.
func (s *Store) Result(ctx context.Context, id string, dst any) error {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT result_json FROM jobs WHERE id = ?", id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return services.Wrap(services.ErrNotFound, "history", "get result", id, nil)
	}
	if err != nil {
		return fmt.Errorf("get result %s: %w", id, err)
	}
	if !raw.Valid || raw.String == "" {
		return services.Wrap(services.ErrNotFound, "history", "get result", "job "+id+" has no result", nil)
	}
	if err := json.Unmarshal([]byte(raw.String), dst); err != nil {
		return fmt.Errorf("decode result %s: %w", id, err)
	}
	return nil
}

// List returns jobs newest first, optionally filtered by status. A limit of
// zero or less returns every match.
func (s *Store) List(ctx context.Context, limit int, statuses ...Status) ([]*Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs"
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ",") + ")"
	}
	query += " ORDER BY created_at DESC, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// MarkRunning moves a pending job to running.
func (s *Store) MarkRunning(ctx context.Context, id string) error {
	return s.transition(ctx, id, "mark running",
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusRunning, formatTime(time.Now()), id, StatusPending)
}

// Complete records a successful job and its result.
func (s *Store) Complete(ctx context.Context, id string, done Completion) error {
	resultJSON, err := json.Marshal(done.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	outputsJSON, err := json.Marshal(done.Outputs)
	if err != nil {
		return fmt.Errorf("encode outputs: %w", err)
	}
	now := formatTime(time.Now())
	return s.transition(ctx, id, "complete",
		`UPDATE jobs SET status = ?, model = ?, device = ?, language = COALESCE(?, language),
             audio_duration = ?, processing_time = ?, average_confidence = ?,
             result_json = ?, outputs_json = ?, error_kind = NULL, error_message = NULL,
             updated_at = ?, finished_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusCompleted, nullableString(done.Model), nullableString(done.Device), nullableString(done.Language),
		done.AudioDuration, done.ProcessingTime, done.AverageConfidence,
		string(resultJSON), string(outputsJSON), now, now,
		id, StatusPending, StatusRunning)
}

// Fail records a failed job. The error kind comes from services.Kind.
func (s *Store) Fail(ctx context.Context, id string, cause error) error {
	message := "unknown error"
	if cause != nil {
		message = cause.Error()
	}
	now := formatTime(time.Now())
	return s.transition(ctx, id, "fail",
		`UPDATE jobs SET status = ?, error_kind = ?, error_message = ?, updated_at = ?, finished_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusFailed, nullableString(services.Kind(cause)), message, now, now,
		id, StatusPending, StatusRunning)
}

func (s *Store) transition(ctx context.Context, id, operation, query string, args ...any) error {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s %s: %w", operation, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: %w", operation, id, err)
	}
	if affected == 0 {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return getErr
		}
		return services.Wrap(services.ErrValidation, "history", operation, "job "+id+" is not in a state that allows it", nil)
	}
	return nil
}

// ResetInterrupted fails jobs left pending or running by a previous process.
func (s *Store) ResetInterrupted(ctx context.Context) (int64, error) {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, error_kind = 'internal', error_message = ?, updated_at = ?, finished_at = ?
         WHERE status IN (?, ?)`,
		StatusFailed, DaemonStopReason, now, now, StatusPending, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("reset interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns job counts grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("history stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Summary aggregates Stats.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{
		Pending:   stats[StatusPending],
		Running:   stats[StatusRunning],
		Completed: stats[StatusCompleted],
		Failed:    stats[StatusFailed],
	}
	for _, count := range stats {
		summary.Total += count
	}
	return summary, nil
}

// Prune deletes finished jobs older than cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM jobs WHERE status IN (?, ?) AND created_at < ?`,
		StatusCompleted, StatusFailed, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return res.RowsAffected()
}
