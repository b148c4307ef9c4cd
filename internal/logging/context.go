package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	processIDKey ctxKey = iota
	stageNameKey
	orgIDKey
)

// WithProcessID returns a context with the process ID set.
func WithProcessID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, processIDKey, id)
}

// WithStageName returns a context with the stage name set.
func WithStageName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, stageNameKey, name)
}

// WithOrgID returns a context with the organization ID set.
func WithOrgID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, orgIDKey, id)
}

// ProcessID extracts the process ID from the context, or "" if absent.
func ProcessID(ctx context.Context) string {
	v, _ := ctx.Value(processIDKey).(string)
	return v
}

// StageName extracts the stage name from the context, or "" if absent.
func StageName(ctx context.Context) string {
	v, _ := ctx.Value(stageNameKey).(string)
	return v
}

// OrgID extracts the organization ID from the context, or "" if absent.
func OrgID(ctx context.Context) string {
	v, _ := ctx.Value(orgIDKey).(string)
	return v
}

// WithIDs sets all three correlation IDs on the context at once.
func WithIDs(ctx context.Context, processID, stageName, orgID string) context.Context {
	ctx = WithProcessID(ctx, processID)
	ctx = WithStageName(ctx, stageName)
	ctx = WithOrgID(ctx, orgID)
	return ctx
}

// LogWith returns a logger enriched with correlation IDs from the context.
// Only non-empty values are added as attributes.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if pID := ProcessID(ctx); pID != "" {
		logger = logger.With(slog.String("process_id", pID))
	}
	if stage := StageName(ctx); stage != "" {
		logger = logger.With(slog.String("stage", stage))
	}
	if oID := OrgID(ctx); oID != "" {
		logger = logger.With(slog.String("org_id", oID))
	}
	return logger
}

// CorrelationHandler wraps an slog.Handler, automatically injecting
// correlation IDs from the context into every log record.
// Use with slog.New(NewCorrelationHandler(inner)) so callers can use
// logger.InfoContext(ctx, ...) and IDs appear automatically.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler with automatic correlation ID injection.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if v := ProcessID(ctx); v != "" {
		r.AddAttrs(slog.String("process_id", v))
	}
	if v := StageName(ctx); v != "" {
		r.AddAttrs(slog.String("stage", v))
	}
	if v := OrgID(ctx); v != "" {
		r.AddAttrs(slog.String("org_id", v))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
