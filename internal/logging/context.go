package logging

import "context"

type correlationCtxKey struct{}
type loggerCtxKey struct{}

// WithCorrelationID attaches an envelope correlation_id to ctx so every log
// line emitted underneath carries it.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationCtxKey{}, correlationID)
}

// CorrelationIDFromContext extracts the correlation_id attached by
// WithCorrelationID, or "" if none was set.
func CorrelationIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(correlationCtxKey{}).(string); ok {
		return v
	}
	return ""
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves the Logger stored by WithLogger, or a nop Logger if
// none was set.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return Nop()
}
