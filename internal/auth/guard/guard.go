// Package guard tracks failed login attempts per account and enforces
// temporary lockout.
//
// State machine: ACTIVE -> LOCKED on the Nth consecutive failure
// (N = lockout threshold); LOCKED -> ACTIVE lazily once the lock deadline
// passes. There is no background timer; any check after the deadline treats
// the account as unlocked. DISABLED is terminal here; only external admin
// action leaves it.
package guard

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"gatehouse/internal/auth/models"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/requestcontext"
)

// Config bounds the lockout behavior.
type Config struct {
	// LockoutThreshold is the number of consecutive failures that trips a lock.
	LockoutThreshold int
	// LockDuration is how long a tripped lock holds.
	LockDuration time.Duration
	// OffenderThreshold is the failure count at which the repeat-offender
	// sub-window limiter kicks in.
	OffenderThreshold int
	// RecentFailureWindow is the lookback for the repeat-offender heuristic.
	RecentFailureWindow time.Duration
}

// DefaultConfig returns the documented lockout parameters.
func DefaultConfig() Config {
	return Config{
		LockoutThreshold:    5,
		LockDuration:        30 * time.Minute,
		OffenderThreshold:   5,
		RecentFailureWindow: 15 * time.Minute,
	}
}

// AccountWriter is the slice of the user store the guard needs.
type AccountWriter interface {
	Update(ctx context.Context, id uuid.UUID, update models.AccountUpdate) (*models.Account, error)
}

// Guard mutates account lockout bookkeeping. It is the only writer of the
// lock fields besides the verifier's success path.
type Guard struct {
	store   AccountWriter
	logger  *slog.Logger
	config  Config
	metrics Metrics
}

// Metrics is the observational hook; a nil-safe no-op by default.
type Metrics interface {
	IncrementLockouts()
	IncrementFailuresRecorded()
}

type Option func(*Guard)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

func WithConfig(cfg Config) Option {
	return func(g *Guard) {
		g.config = cfg
	}
}

func WithMetrics(m Metrics) Option {
	return func(g *Guard) {
		g.metrics = m
	}
}

// New creates a Guard writing through the given store.
func New(store AccountWriter, opts ...Option) (*Guard, error) {
	if store == nil {
		return nil, errors.New("account store is required")
	}
	g := &Guard{
		store:  store,
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g, nil
}

// RecordFailure registers a failed authentication attempt. On the Nth
// consecutive failure the account transitions to LOCKED: lock flags set,
// attempt counter reset to zero.
func (g *Guard) RecordFailure(ctx context.Context, account *models.Account) error {
	now := requestcontext.Now(ctx)
	attempts := account.FailedLoginAttempts + 1

	update := models.AccountUpdate{LastFailedLogin: &now}

	if attempts >= g.config.LockoutThreshold {
		locked := true
		until := now.Add(g.config.LockDuration)
		zero := 0
		update.IsLocked = &locked
		update.LockUntil = &until
		update.FailedLoginAttempts = &zero

		g.logAudit(ctx, "account_locked",
			"account_id", account.ID.String(),
			"lock_until", until,
			"attempts", attempts,
		)
		if g.metrics != nil {
			g.metrics.IncrementLockouts()
		}
	} else {
		update.FailedLoginAttempts = &attempts
	}

	updated, err := g.store.Update(ctx, account.ID, update)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record auth failure")
	}
	*account = *updated

	if g.metrics != nil {
		g.metrics.IncrementFailuresRecorded()
	}
	return nil
}

// RecordSuccess clears the failure counter and lock flags and stamps the
// last login time.
func (g *Guard) RecordSuccess(ctx context.Context, account *models.Account) error {
	now := requestcontext.Now(ctx)
	zero := 0
	unlocked := false
	update := models.AccountUpdate{
		FailedLoginAttempts: &zero,
		IsLocked:            &unlocked,
		ClearLockUntil:      true,
		LastLogin:           &now,
	}

	updated, err := g.store.Update(ctx, account.ID, update)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record auth success")
	}
	*account = *updated
	return nil
}

// CheckLockState reports whether the account may attempt authentication.
// DISABLED always denies. A lock past its deadline reads as unlocked even
// though the stored flags are still set.
func (g *Guard) CheckLockState(ctx context.Context, account *models.Account) models.LockState {
	if account.IsDisabled {
		return models.LockState{Disabled: true}
	}

	if account.IsLocked && account.LockUntil != nil {
		now := requestcontext.Now(ctx)
		if now.Before(*account.LockUntil) {
			retryAfter := int(math.Ceil(account.LockUntil.Sub(now).Seconds()))
			return models.LockState{Locked: true, RetryAfterSeconds: retryAfter}
		}
	}

	return models.LockState{}
}

// IsRepeatOffender reports whether the account has accumulated enough recent
// failures to deserve the extra one-per-five-minutes login limiter. This
// deliberately overlaps with the lockout itself: both gates apply, and the
// overlap is kept rather than collapsed.
func (g *Guard) IsRepeatOffender(ctx context.Context, account *models.Account) bool {
	if account.FailedLoginAttempts < g.config.OffenderThreshold {
		return false
	}
	if account.LastFailedLogin == nil {
		return false
	}
	now := requestcontext.Now(ctx)
	return now.Sub(*account.LastFailedLogin) < g.config.RecentFailureWindow
}

func (g *Guard) logAudit(ctx context.Context, event string, attrs ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}
	args := append(attrs, "event", event, "log_type", "audit")
	g.logger.InfoContext(ctx, event, args...)
}
