package authz

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatehouse/internal/auth/models"
	"gatehouse/internal/session"
	dErrors "gatehouse/pkg/domain-errors"
)

func sessionWithRole(role models.Role) *session.Session {
	return &session.Session{SubjectID: uuid.New(), Role: role}
}

func TestRequireAuth(t *testing.T) {
	t.Run("nil session denied unauthorized", func(t *testing.T) {
		d := RequireAuth(nil)
		assert.False(t, d.Allowed)
		assert.True(t, dErrors.HasCode(d.Err(), dErrors.CodeUnauthorized))
	})

	t.Run("valid session allowed", func(t *testing.T) {
		d := RequireAuth(sessionWithRole(models.RoleClient))
		assert.True(t, d.Allowed)
		assert.NoError(t, d.Err())
	})

	t.Run("flagged session denied as disabled", func(t *testing.T) {
		s := sessionWithRole(models.RoleClient)
		s.Flag = session.FlagDisabledAccount
		d := RequireAuth(s)
		assert.False(t, d.Allowed)
		assert.True(t, dErrors.HasCode(d.Err(), dErrors.CodeAccountDisabled))
	})
}

func TestRequireRoles(t *testing.T) {
	tests := []struct {
		name    string
		role    models.Role
		allowed []models.Role
		want    bool
	}{
		{"admin on admin route", models.RoleAdmin, []models.Role{models.RoleAdmin}, true},
		{"client on admin route", models.RoleClient, []models.Role{models.RoleAdmin}, false},
		{"staff on staff-or-admin route", models.RoleStaff, []models.Role{models.RoleAdmin, models.RoleStaff}, true},
		{"client on staff-or-admin route", models.RoleClient, []models.Role{models.RoleAdmin, models.RoleStaff}, false},
		{"client on client route", models.RoleClient, []models.Role{models.RoleClient}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := RequireRoles(sessionWithRole(tt.role), tt.allowed...)
			assert.Equal(t, tt.want, d.Allowed)
			if !tt.want {
				assert.Equal(t, tt.allowed, d.RequiredRoles)
				assert.True(t, dErrors.HasCode(d.Err(), dErrors.CodeForbidden))
			}
		})
	}

	t.Run("denial names the required roles", func(t *testing.T) {
		d := RequireRoles(sessionWithRole(models.RoleClient), models.RoleAdmin, models.RoleStaff)
		require.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "ADMIN")
		assert.Contains(t, d.Reason, "STAFF")
	})

	t.Run("nil session denied unauthorized not forbidden", func(t *testing.T) {
		d := RequireRoles(nil, models.RoleAdmin)
		assert.True(t, dErrors.HasCode(d.Err(), dErrors.CodeUnauthorized))
	})
}

func TestRequireOwnerOrAdmin(t *testing.T) {
	ownerID := uuid.New()

	tests := []struct {
		name    string
		role    models.Role
		subject uuid.UUID
		want    bool
	}{
		{"owner client", models.RoleClient, ownerID, true},
		{"owner staff", models.RoleStaff, ownerID, true},
		{"owner admin", models.RoleAdmin, ownerID, true},
		{"other client", models.RoleClient, uuid.New(), false},
		{"other staff", models.RoleStaff, uuid.New(), false},
		{"other admin", models.RoleAdmin, uuid.New(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &session.Session{SubjectID: tt.subject, Role: tt.role}
			d := RequireOwnerOrAdmin(s, ownerID)
			assert.Equal(t, tt.want, d.Allowed)
			if !tt.want {
				assert.True(t, dErrors.HasCode(d.Err(), dErrors.CodeForbidden))
			}
		})
	}

	t.Run("nil session denied unauthorized", func(t *testing.T) {
		d := RequireOwnerOrAdmin(nil, ownerID)
		assert.True(t, dErrors.HasCode(d.Err(), dErrors.CodeUnauthorized))
	})
}
