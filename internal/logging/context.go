package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	tenantIDKey ctxKey = iota
	workflowIDKey
	eventKey
)

// WithTenantID returns a context with the tenant ID set.
func WithTenantID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tenantIDKey, id)
}

// WithWorkflowID returns a context with the workflow ID set.
func WithWorkflowID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, workflowIDKey, id)
}

// WithEvent returns a context with the triggering event name set.
func WithEvent(ctx context.Context, event string) context.Context {
	return context.WithValue(ctx, eventKey, event)
}

// TenantID extracts the tenant ID from the context, or "" if absent.
func TenantID(ctx context.Context) string {
	v, _ := ctx.Value(tenantIDKey).(string)
	return v
}

// WorkflowID extracts the workflow ID from the context, or "" if absent.
func WorkflowID(ctx context.Context) string {
	v, _ := ctx.Value(workflowIDKey).(string)
	return v
}

// Event extracts the triggering event name from the context, or "" if absent.
func Event(ctx context.Context) string {
	v, _ := ctx.Value(eventKey).(string)
	return v
}

// LogWith returns a logger enriched with correlation IDs from the context.
// Only non-empty values are added as attributes.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if tID := TenantID(ctx); tID != "" {
		logger = logger.With(slog.String("tenant_id", tID))
	}
	if wfID := WorkflowID(ctx); wfID != "" {
		logger = logger.With(slog.String("workflow_id", wfID))
	}
	if ev := Event(ctx); ev != "" {
		logger = logger.With(slog.String("event", ev))
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
	if v := TenantID(ctx); v != "" {
		r.AddAttrs(slog.String("tenant_id", v))
	}
	if v := WorkflowID(ctx); v != "" {
		r.AddAttrs(slog.String("workflow_id", v))
	}
	if v := Event(ctx); v != "" {
		r.AddAttrs(slog.String("event", v))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
