// Package authz layers role and ownership checks on top of an already
// validated session. The checks are pure functions over the session claims;
// no store reads happen here.
package authz

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"gatehouse/internal/auth/models"
	"gatehouse/internal/session"
	dErrors "gatehouse/pkg/domain-errors"
)

// Decision is the transient outcome of an authorization check.
type Decision struct {
	Allowed       bool
	Reason        string
	RequiredRoles []models.Role
}

// Err converts a denial into its domain error. Allowed decisions yield nil.
// Denials with role requirements map to forbidden; missing or flagged
// sessions map to unauthorized and account_disabled respectively.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch {
	case d.Reason == reasonNoSession:
		return dErrors.New(dErrors.CodeUnauthorized, d.Reason)
	case d.Reason == reasonAccountDisabled:
		return dErrors.New(dErrors.CodeAccountDisabled, d.Reason)
	default:
		return dErrors.New(dErrors.CodeForbidden, d.Reason)
	}
}

const (
	reasonNoSession       = "authentication required"
	reasonAccountDisabled = "account is disabled"
)

func allow() Decision {
	return Decision{Allowed: true}
}

// RequireAuth admits any holder of a valid, unflagged session.
// A DISABLED_ACCOUNT flag means authenticated but forbidden, so the denial
// is a disabled-account error rather than a missing-session one.
func RequireAuth(s *session.Session) Decision {
	if s == nil {
		return Decision{Reason: reasonNoSession}
	}
	if s.Flag == session.FlagDisabledAccount {
		return Decision{Reason: reasonAccountDisabled}
	}
	return allow()
}

// RequireRoles admits sessions whose role is in the allowed set. The denial
// lists the required roles; roles are not secret, so this is a diagnostics
// aid, not a leak.
func RequireRoles(s *session.Session, roles ...models.Role) Decision {
	if d := RequireAuth(s); !d.Allowed {
		return d
	}
	for _, role := range roles {
		if s.Role == role {
			return allow()
		}
	}
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = role.String()
	}
	return Decision{
		Reason:        fmt.Sprintf("requires one of roles: %s", strings.Join(names, ", ")),
		RequiredRoles: roles,
	}
}

// RequireOwnerOrAdmin admits the resource owner and any ADMIN.
func RequireOwnerOrAdmin(s *session.Session, ownerID uuid.UUID) Decision {
	if d := RequireAuth(s); !d.Allowed {
		return d
	}
	if s.SubjectID == ownerID || s.Role == models.RoleAdmin {
		return allow()
	}
	return Decision{Reason: "not the resource owner"}
}
