package copilot

import "context"

type contextKey int

const (
	ctxKeySessionID contextKey = iota
	ctxKeyToolCallID
)

// WithContextSessionID returns a context carrying the session ID.
func WithContextSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeySessionID, id)
}

// ContextSessionID returns the session ID from context, or empty string.
// Tool and permission handlers receive a context carrying it.
func ContextSessionID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeySessionID).(string); ok {
		return v
	}
	return ""
}

// WithContextToolCallID returns a context carrying the tool call ID.
func WithContextToolCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyToolCallID, id)
}

// ContextToolCallID returns the tool call ID from context, or empty string.
func ContextToolCallID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyToolCallID).(string); ok {
		return v
	}
	return ""
}
