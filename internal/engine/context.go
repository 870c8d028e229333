package engine

import "context"

type ctxKey string

const ctxCallerIDKey ctxKey = "callerID"

// WithCallerID attaches the opaque caller identity a transport
// adapter has already authenticated upstream. The Engine trusts
// whatever it finds here; it does no authentication of its own.
func WithCallerID(ctx context.Context, callerID string) context.Context {
	return context.WithValue(ctx, ctxCallerIDKey, callerID)
}

func CallerIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxCallerIDKey).(string)
	return v, ok && v != ""
}
