// Package requestcontext carries per-request metadata through context:
// the request ID assigned by middleware and the request clock.
//
// The clock makes time an injected dependency. Production code calls
// requestcontext.Now(ctx) wherever it would call time.Now(), and tests pin
// the clock with WithNow to exercise time-windowed behavior (lockout expiry,
// rate-limit windows, session refresh) deterministically.
package requestcontext

import (
	"context"
	"time"
)

type requestIDKey struct{}

type nowKey struct{}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID retrieves the request ID from the context, or "" when absent.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithNow pins the context clock to a fixed function. Tests use this to
// control time; middleware uses it to freeze a single timestamp per request.
func WithNow(ctx context.Context, now func() time.Time) context.Context {
	return context.WithValue(ctx, nowKey{}, now)
}

// Now returns the context clock's current time, falling back to time.Now.
func Now(ctx context.Context) time.Time {
	if now, ok := ctx.Value(nowKey{}).(func() time.Time); ok {
		return now()
	}
	return time.Now()
}
