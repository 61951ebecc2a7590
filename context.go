package portalauth

import "context"

type ctxKey uint8

const (
	ctxClientIP ctxKey = iota + 1
	ctxUserAgent
	ctxRequestID
)

// WithClientIP attaches the caller's source address to ctx. The engine uses
// it for the per-source rate window, the session fingerprint and audit.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxClientIP, ip)
}

// WithUserAgent attaches the HTTP User-Agent string for the session
// fingerprint.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, ctxUserAgent, userAgent)
}

// WithRequestID attaches a request id that audit events carry.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestID, requestID)
}

// RequestIDFromContext returns the id set by [WithRequestID], or "".
func RequestIDFromContext(ctx context.Context) string { return ctxString(ctx, ctxRequestID) }

func clientIPFromContext(ctx context.Context) string  { return ctxString(ctx, ctxClientIP) }
func userAgentFromContext(ctx context.Context) string { return ctxString(ctx, ctxUserAgent) }

func ctxString(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
