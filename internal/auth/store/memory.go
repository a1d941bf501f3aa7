package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"gatehouse/internal/auth/models"
	str "gatehouse/pkg/string"
	"gatehouse/pkg/requestcontext"
)

// InMemoryUserStore is a thread-safe map-backed UserStore.
type InMemoryUserStore struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*models.Account
	byEmail  map[string]uuid.UUID
}

// NewInMemoryUserStore creates an empty in-memory user store.
func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		accounts: make(map[uuid.UUID]*models.Account),
		byEmail:  make(map[string]uuid.UUID),
	}
}

// Create stores a new account, rejecting duplicate emails.
func (s *InMemoryUserStore) Create(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := str.NormalizeEmail(account.Email)
	if _, exists := s.byEmail[email]; exists {
		return ErrConflict
	}

	cp := *account
	cp.Email = email
	now := requestcontext.Now(ctx)
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.accounts[cp.ID] = &cp
	s.byEmail[email] = cp.ID
	return nil
}

// FindByEmail looks up an account by normalized email.
func (s *InMemoryUserStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[str.NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.accounts[id]
	return &cp, nil
}

// FindByID looks up an account by ID.
func (s *InMemoryUserStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *account
	return &cp, nil
}

// Update applies a partial update to the stored account and returns a copy
// of the result.
func (s *InMemoryUserStore) Update(ctx context.Context, id uuid.UUID, update models.AccountUpdate) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}

	if update.IsDisabled != nil {
		account.IsDisabled = *update.IsDisabled
	}
	if update.IsLocked != nil {
		account.IsLocked = *update.IsLocked
	}
	if update.ClearLockUntil {
		account.LockUntil = nil
	} else if update.LockUntil != nil {
		account.LockUntil = update.LockUntil
	}
	if update.FailedLoginAttempts != nil {
		account.FailedLoginAttempts = *update.FailedLoginAttempts
	}
	if update.LastFailedLogin != nil {
		account.LastFailedLogin = update.LastFailedLogin
	}
	if update.LastLogin != nil {
		account.LastLogin = update.LastLogin
	}
	account.UpdatedAt = requestcontext.Now(ctx)

	cp := *account
	return &cp, nil
}

// Ping reports store liveness. The in-memory store only fails when the
// context is already dead, which mirrors how a database ping behaves.
func (s *InMemoryUserStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
