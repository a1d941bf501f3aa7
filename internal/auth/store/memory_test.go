package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatehouse/internal/auth/models"
)

func newAccount(email string) *models.Account {
	return &models.Account{
		ID:           uuid.New(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: "$2a$10$hash",
		Role:         models.RoleClient,
	}
}

func TestCreateAndFind(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryUserStore()

	acc := newAccount("User@Example.com")
	require.NoError(t, s.Create(ctx, acc))

	byEmail, err := s.FindByEmail(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, byEmail.ID)
	assert.Equal(t, "user@example.com", byEmail.Email, "emails are normalized on create")

	byID, err := s.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, byEmail.Email, byID.Email)
}

func TestCreateDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryUserStore()

	require.NoError(t, s.Create(ctx, newAccount("user@example.com")))
	err := s.Create(ctx, newAccount("USER@example.com"))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestFindNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryUserStore()

	_, err := s.FindByEmail(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatePartialFields(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryUserStore()

	acc := newAccount("user@example.com")
	require.NoError(t, s.Create(ctx, acc))

	locked := true
	until := time.Now().Add(30 * time.Minute)
	attempts := 0
	updated, err := s.Update(ctx, acc.ID, models.AccountUpdate{
		IsLocked:            &locked,
		LockUntil:           &until,
		FailedLoginAttempts: &attempts,
	})
	require.NoError(t, err)
	assert.True(t, updated.IsLocked)
	require.NotNil(t, updated.LockUntil)
	assert.Equal(t, 0, updated.FailedLoginAttempts)

	// A later update without lock fields leaves them untouched.
	lastLogin := time.Now()
	updated, err = s.Update(ctx, acc.ID, models.AccountUpdate{LastLogin: &lastLogin})
	require.NoError(t, err)
	assert.True(t, updated.IsLocked)
	assert.NotNil(t, updated.LockUntil)

	// ClearLockUntil wipes the timestamp without a replacement value.
	unlocked := false
	updated, err = s.Update(ctx, acc.ID, models.AccountUpdate{IsLocked: &unlocked, ClearLockUntil: true})
	require.NoError(t, err)
	assert.False(t, updated.IsLocked)
	assert.Nil(t, updated.LockUntil)
}

func TestUpdateNotFound(t *testing.T) {
	s := NewInMemoryUserStore()
	_, err := s.Update(context.Background(), uuid.New(), models.AccountUpdate{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryUserStore()

	acc := newAccount("user@example.com")
	require.NoError(t, s.Create(ctx, acc))

	got, err := s.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	got.FailedLoginAttempts = 99

	again, err := s.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.FailedLoginAttempts, "mutating a returned account must not affect the store")
}

func TestPing(t *testing.T) {
	s := NewInMemoryUserStore()
	assert.NoError(t, s.Ping(context.Background()))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Ping(cancelled))
}

func TestConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryUserStore()

	acc := newAccount("user@example.com")
	require.NoError(t, s.Create(ctx, acc))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			attempts := n
			_, _ = s.Update(ctx, acc.ID, models.AccountUpdate{FailedLoginAttempts: &attempts})
			_, _ = s.FindByID(ctx, acc.ID)
		}(i)
	}
	wg.Wait()
}
