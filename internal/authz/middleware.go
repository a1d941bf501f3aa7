package authz

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"gatehouse/internal/auth/models"
	"gatehouse/internal/session"
	"gatehouse/internal/transport/http/shared"
	dErrors "gatehouse/pkg/domain-errors"
)

// RefreshedTokenHeader carries a rotated session token back to the client.
// Clients replace their stored token whenever the header is present.
const RefreshedTokenHeader = "X-Refreshed-Token"

// SessionValidator is the slice of the session manager the middleware needs.
type SessionValidator interface {
	ValidateAndRefresh(ctx context.Context, token string) (*session.Session, string, error)
}

// Authenticate validates the bearer token and stores the session in the
// request context. Rotated tokens are surfaced via RefreshedTokenHeader.
// Flagged sessions pass through; the per-route gates decide what a
// disabled-account session may still reach.
func Authenticate(validator SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				shared.WriteError(w, r, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			sess, refreshed, err := validator.ValidateAndRefresh(r.Context(), token)
			if err != nil {
				shared.WriteError(w, r, err)
				return
			}
			if refreshed != "" {
				w.Header().Set(RefreshedTokenHeader, refreshed)
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// RequireRolesMiddleware gates a route on role membership.
func RequireRolesMiddleware(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d := RequireRoles(SessionFromContext(r.Context()), roles...); !d.Allowed {
				shared.WriteError(w, r, d.Err())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwnerOrAdminMiddleware gates a route on ownership of the resource
// named by the given chi URL parameter, with ADMIN override.
func RequireOwnerOrAdminMiddleware(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ownerID, err := uuid.Parse(chi.URLParam(r, param))
			if err != nil {
				shared.WriteError(w, r, dErrors.New(dErrors.CodeInvalidInput, "invalid resource id"))
				return
			}
			if d := RequireOwnerOrAdmin(SessionFromContext(r.Context()), ownerID); !d.Allowed {
				shared.WriteError(w, r, d.Err())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
