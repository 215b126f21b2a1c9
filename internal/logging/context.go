package logging

import (
	"context"
	"log/slog"

	"scribe/internal/services"
)

// Structured field keys shared by every component.
const (
	FieldComponent     = "component"
	FieldJobID         = "job_id"
	FieldStage         = "stage"
	FieldCorrelationID = "correlation_id"
	FieldEventType     = "event_type"
	FieldErrorHint     = "error_hint"
	FieldErrorKind     = "error_kind"
	// FieldImpact describes what the operator loses when a warning fires.
	FieldImpact = "impact"
)

// ContextFields returns the job, stage and request identifiers carried by ctx.
func ContextFields(ctx context.Context) []Attr {
	if ctx == nil {
		return nil
	}
	lookups := []struct {
		key string
		get func(context.Context) (string, bool)
	}{
		{FieldJobID, services.JobIDFromContext},
		{FieldStage, services.StageFromContext},
		{FieldCorrelationID, services.RequestIDFromContext},
	}
	var fields []Attr
	for _, l := range lookups {
		if v, ok := l.get(ctx); ok {
			fields = append(fields, slog.String(l.key, v))
		}
	}
	return fields
}

// WithContext returns logger annotated with the identifiers carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if fields := ContextFields(ctx); len(fields) > 0 {
		return logger.With(Args(fields...)...)
	}
	return logger
}
