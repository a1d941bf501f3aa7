package authz

import (
	"context"

	"gatehouse/internal/session"
)

type contextKey string

const sessionKey contextKey = "authz_session"

// WithSession stores a validated session in the context.
func WithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext retrieves the validated session, or nil when the
// request never passed the authentication middleware.
func SessionFromContext(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey).(*session.Session)
	return s
}
