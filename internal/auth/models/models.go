package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of account roles. Keeping it a dedicated type (not
// free-form strings) forces exhaustive handling in the authorization gate.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleStaff  Role = "STAFF"
	RoleClient Role = "CLIENT"
)

// Valid reports whether the role is one of the known constants.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleClient:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// Account is the user record as seen by the authentication core.
// The record lifecycle is owned by registration and admin tooling; this core
// reads it and mutates only the lockout bookkeeping fields.
//
// Lock invariant: IsLocked implies LockUntil is set; once the current time
// reaches LockUntil the account is logically unlocked even before the flags
// are cleared (clearing happens lazily on the next successful login).
type Account struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	ServiceTier  string

	IsDisabled          bool
	IsLocked            bool
	LockUntil           *time.Time
	FailedLoginAttempts int
	LastFailedLogin     *time.Time
	LastLogin           *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PublicAccount is the caller-facing projection of an Account.
// It never carries the password hash.
type PublicAccount struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Role        Role      `json:"role"`
	ServiceTier string    `json:"service_tier,omitempty"`
}

// Public returns the account's public projection.
func (a *Account) Public() PublicAccount {
	return PublicAccount{
		ID:          a.ID,
		Email:       a.Email,
		Name:        a.Name,
		Role:        a.Role,
		ServiceTier: a.ServiceTier,
	}
}

// LockState is the result of an AccountGuard lock check.
type LockState struct {
	Locked            bool
	Disabled          bool
	RetryAfterSeconds int
}

// AccountUpdate carries the partial fields the guard persists. Nil pointers
// mean "leave unchanged"; ClearLockUntil distinguishes "set LockUntil to
// nil" from "leave it alone".
type AccountUpdate struct {
	IsDisabled          *bool
	IsLocked            *bool
	LockUntil           *time.Time
	ClearLockUntil      bool
	FailedLoginAttempts *int
	LastFailedLogin     *time.Time
	LastLogin           *time.Time
}
