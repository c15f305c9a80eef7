package infrastructure

import "context"

// Unexported struct keys so no other package can collide with these
// values by building the same key.
type traceIDKey struct{}
type runIDKey struct{}

// WithTraceID returns a context carrying the request correlation ID.
// The JSON log handler stamps it onto every record logged under this
// context, and the HTTP error surface echoes it in problem documents.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// GetTraceID returns the correlation ID, or "" when the context has none.
func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey{}).(string)
	return v
}

// WithRunID returns a context carrying a dataset refresh run ID so every
// log line produced during the run can be grouped afterwards.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// GetRunID returns the refresh run ID, or "" when the context has none.
func GetRunID(ctx context.Context) string {
	v, _ := ctx.Value(runIDKey{}).(string)
	return v
}
