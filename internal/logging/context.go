package logging

import (
	"context"
	"log/slog"

	"vidsweep/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized structured logging key for run identifiers.
	FieldRunID = "run_id"
	// FieldModel is the standardized structured logging key for model backend names.
	FieldModel = "model"
	// FieldDataset is the standardized structured logging key for dataset names.
	FieldDataset = "dataset"
	// FieldTask is the standardized structured logging key for task types (t2v, i2v).
	FieldTask = "task"
	// FieldSampleID is the standardized structured logging key for sample identifiers.
	FieldSampleID = "sample_id"
	// FieldJobID is the standardized structured logging key for scheduler job identifiers.
	FieldJobID = "job_id"
	// FieldEventType is the standardized structured logging key for lifecycle event names.
	FieldEventType = "event_type"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 6)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	model, dataset, task := services.SliceFromContext(ctx)
	if model != "" {
		fields = append(fields, slog.String(FieldModel, model))
	}
	if dataset != "" {
		fields = append(fields, slog.String(FieldDataset, dataset))
	}
	if task != "" {
		fields = append(fields, slog.String(FieldTask, task))
	}
	if id, ok := services.SampleIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSampleID, id))
	}
	if id, ok := services.JobIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJobID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from
// the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }
