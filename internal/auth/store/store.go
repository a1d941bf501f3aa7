// Package store defines the persistence contract for account records.
//
// The authentication core consumes accounts through this narrow interface;
// it never owns the schema. The in-memory implementation backs tests and
// single-instance deployments, and the interface leaves room for a database
// implementation behind the same contract.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"gatehouse/internal/auth/models"
)

// ErrNotFound is returned by all Find methods when no account matches.
var ErrNotFound = errors.New("account not found")

// ErrConflict is returned by Create when the email is already registered.
var ErrConflict = errors.New("email already registered")

// UserStore is the account persistence contract.
// Error contract: Find methods return ErrNotFound when the entity doesn't exist.
type UserStore interface {
	Create(ctx context.Context, account *models.Account) error
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	Update(ctx context.Context, id uuid.UUID, update models.AccountUpdate) (*models.Account, error)
	Ping(ctx context.Context) error
}
