package services

import "context"

type contextKey int

const (
	runIDKey contextKey = iota
	modelKey
	datasetKey
	taskKey
	sampleIDKey
	jobIDKey
)

// WithRunID stamps the run identifier onto the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext extracts the run identifier, if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(runIDKey).(string)
	return v, ok && v != ""
}

// WithSlice stamps slice coordinates (model, dataset, task) onto the context.
func WithSlice(ctx context.Context, model, dataset, task string) context.Context {
	if model != "" {
		ctx = context.WithValue(ctx, modelKey, model)
	}
	if dataset != "" {
		ctx = context.WithValue(ctx, datasetKey, dataset)
	}
	if task != "" {
		ctx = context.WithValue(ctx, taskKey, task)
	}
	return ctx
}

// SliceFromContext extracts slice coordinates. Empty strings mean unset.
func SliceFromContext(ctx context.Context) (model, dataset, task string) {
	model, _ = ctx.Value(modelKey).(string)
	dataset, _ = ctx.Value(datasetKey).(string)
	task, _ = ctx.Value(taskKey).(string)
	return model, dataset, task
}

// WithSampleID stamps the current sample id onto the context.
func WithSampleID(ctx context.Context, sampleID string) context.Context {
	if sampleID == "" {
		return ctx
	}
	return context.WithValue(ctx, sampleIDKey, sampleID)
}

// SampleIDFromContext extracts the current sample id, if present.
func SampleIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sampleIDKey).(string)
	return v, ok && v != ""
}

// WithJobID stamps the scheduler (or local) job id onto the context.
func WithJobID(ctx context.Context, jobID string) context.Context {
	if jobID == "" {
		return ctx
	}
	return context.WithValue(ctx, jobIDKey, jobID)
}

// JobIDFromContext extracts the job id, if present.
func JobIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(jobIDKey).(string)
	return v, ok && v != ""
}
