package ctxkeys

// TraceIDKey keys the per-message trace ID in a context.
type TraceIDKey struct{}
