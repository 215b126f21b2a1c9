package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const jobColumns = "id, source_name, source_path, status, requested_model, model, device, language, task, preset, size_bytes, audio_duration, processing_time, average_confidence, error_kind, error_message, outputs_json, created_at, updated_at, finished_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job            Job
		sourcePath     sql.NullString
		statusStr      string
		requestedModel sql.NullString
		model          sql.NullString
		device         sql.NullString
		language       sql.NullString
		task           sql.NullString
		preset         sql.NullString
		confidence     sql.NullFloat64
		errorKind      sql.NullString
		errorMessage   sql.NullString
		outputs        sql.NullString
		createdRaw     string
		updatedRaw     string
		finishedRaw    sql.NullString
	)
	if err := scanner.Scan(
		&job.ID,
		&job.SourceName,
		&sourcePath,
		&statusStr,
		&requestedModel,
		&model,
		&device,
		&language,
		&task,
		&preset,
		&job.SizeBytes,
		&job.AudioDuration,
		&job.ProcessingTime,
		&confidence,
		&errorKind,
		&errorMessage,
		&outputs,
		&createdRaw,
		&updatedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	job.SourcePath = sourcePath.String
	job.Status = Status(statusStr)
	job.RequestedModel = requestedModel.String
	job.Model = model.String
	job.Device = device.String
	job.Language = language.String
	job.Task = task.String
	job.Preset = preset.String
	job.ErrorKind = errorKind.String
	job.ErrorMessage = errorMessage.String
	if confidence.Valid {
		value := confidence.Float64
		job.AverageConfidence = &value
	}
	if outputs.Valid && outputs.String != "" && outputs.String != "null" {
		_ = json.Unmarshal([]byte(outputs.String), &job.Outputs)
	}
	job.CreatedAt = parseTime(createdRaw)
	job.UpdatedAt = parseTime(updatedRaw)
	if finishedRaw.Valid && finishedRaw.String != "" {
		finished := parseTime(finishedRaw.String)
		job.FinishedAt = &finished
	}
	return &job, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

// timeLayout keeps a fixed fraction width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}
