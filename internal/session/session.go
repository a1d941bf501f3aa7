// Package session issues and validates signed session tokens.
//
// Tokens are stateless HS256 JWTs with a 30-day absolute lifetime and a
// transparent sliding refresh: once a token's last refresh is more than a day
// old, validation re-checks the account's live state and re-signs the token
// with a fresh refresh stamp. There is no server-side revocation list, so
// disabling an account only takes effect at the next refresh-window
// validation; inside the 24-hour window validation is pure computation.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"gatehouse/internal/auth/models"
	"gatehouse/internal/session/metrics"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/requestcontext"
)

// FlagDisabledAccount marks a session whose account was found disabled or
// locked during a refresh check. The holder is authenticated but forbidden,
// which is distinct from an expired or invalid token.
const FlagDisabledAccount = "DISABLED_ACCOUNT"

const (
	defaultLifetime     = 30 * 24 * time.Hour
	defaultRefreshAfter = 24 * time.Hour
)

// Claims is the wire shape of a session token.
type Claims struct {
	Role        models.Role      `json:"role"`
	ServiceTier string           `json:"service_tier,omitempty"`
	LastRefresh *jwt.NumericDate `json:"lrt"`
	Flag        string           `json:"err,omitempty"`
	jwt.RegisteredClaims
}

// Session is the validated read-through view of a token's claims, plus
// derived observability fields. SessionExpires and LastRefreshed are
// computed from the claims, not stored authoritatively anywhere.
type Session struct {
	SubjectID      uuid.UUID
	Role           models.Role
	ServiceTier    string
	IssuedAt       time.Time
	LastRefreshed  time.Time
	SessionExpires time.Time
	Flag           string
}

// Flagged reports whether the session carries the DISABLED_ACCOUNT marker.
func (s *Session) Flagged() bool {
	return s.Flag != ""
}

// AccountReader is the store slice the refresh path needs.
type AccountReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// Manager signs, validates, and refreshes session tokens.
type Manager struct {
	signingKey   []byte
	users        AccountReader
	lifetime     time.Duration
	refreshAfter time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mx
	}
}

// WithLifetime overrides the absolute token lifetime.
func WithLifetime(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.lifetime = d
		}
	}
}

// WithRefreshAfter overrides the sliding refresh threshold.
func WithRefreshAfter(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.refreshAfter = d
		}
	}
}

// NewManager creates a session manager. The signing key must already have
// passed config validation; users backs the refresh-window liveness check.
func NewManager(signingKey string, users AccountReader, opts ...Option) (*Manager, error) {
	if signingKey == "" {
		return nil, errors.New("signing key is required")
	}
	if users == nil {
		return nil, errors.New("account reader is required")
	}
	m := &Manager{
		signingKey:   []byte(signingKey),
		users:        users,
		lifetime:     defaultLifetime,
		refreshAfter: defaultRefreshAfter,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m, nil
}

// Issue signs a fresh token for the account with issuedAt = lastRefresh = now
// and an absolute expiry of issuedAt + lifetime.
func (m *Manager) Issue(ctx context.Context, account *models.Account) (string, error) {
	now := requestcontext.Now(ctx)
	token, err := m.sign(Claims{
		Role:        account.Role,
		ServiceTier: account.ServiceTier,
		LastRefresh: jwt.NewNumericDate(now),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.lifetime)),
			ID:        uuid.NewString(),
		},
	})
	if err != nil {
		return "", err
	}
	if m.metrics != nil {
		m.metrics.IssuedTotal.Inc()
	}
	return token, nil
}

// ValidateAndRefresh checks a token and applies the sliding refresh rule.
//
// Age is measured from the last refresh stamp. Under the refresh threshold
// the call is pure and newToken is empty. Past it, the account's live state
// is re-read: an active account gets a re-signed token with a fresh refresh
// stamp (original issue time and absolute expiry are kept, so the 30-day cap
// holds across any number of refreshes); a disabled or locked account gets a
// re-signed token carrying the DISABLED_ACCOUNT flag instead. Expired and
// malformed tokens fail with an unauthorized error.
func (m *Manager) ValidateAndRefresh(ctx context.Context, tokenString string) (*Session, string, error) {
	claims, err := m.parse(ctx, tokenString)
	if err != nil {
		return nil, "", err
	}

	session, err := m.toSession(claims)
	if err != nil {
		m.countValidationFailure("malformed_claims")
		return nil, "", dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid session token")
	}

	if session.Flagged() {
		return session, "", nil
	}

	now := requestcontext.Now(ctx)
	if now.Sub(session.LastRefreshed) < m.refreshAfter {
		return session, "", nil
	}

	account, err := m.users.FindByID(ctx, session.SubjectID)
	if err != nil {
		// The token is still inside its absolute lifetime; a store outage
		// must not log everyone out. Skip the refresh and retry next time.
		m.logger.WarnContext(ctx, "session refresh check skipped",
			"error", err,
			"subject_id", session.SubjectID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return session, "", nil
	}

	if account.IsDisabled || m.lockedAt(account, now) {
		claims.Flag = FlagDisabledAccount
		flagged, signErr := m.sign(*claims)
		if signErr != nil {
			return nil, "", signErr
		}
		session.Flag = FlagDisabledAccount
		m.logAudit(ctx, "session_flagged_disabled", "subject_id", session.SubjectID.String())
		if m.metrics != nil {
			m.metrics.FlaggedTotal.Inc()
		}
		return session, flagged, nil
	}

	claims.LastRefresh = jwt.NewNumericDate(now)
	refreshed, err := m.sign(*claims)
	if err != nil {
		return nil, "", err
	}
	session.LastRefreshed = now
	m.logAudit(ctx, "session_refreshed", "subject_id", session.SubjectID.String())
	if m.metrics != nil {
		m.metrics.RefreshedTotal.Inc()
	}
	return session, refreshed, nil
}

func (m *Manager) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign session token")
	}
	return signed, nil
}

func (m *Manager) parse(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		m.countValidationFailure("empty")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing session token")
	}

	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return m.signingKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return requestcontext.Now(ctx) }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			m.countValidationFailure("expired")
			return nil, dErrors.New(dErrors.CodeUnauthorized, "session expired")
		}
		m.countValidationFailure("invalid")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}
	if !token.Valid {
		m.countValidationFailure("invalid")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}
	return claims, nil
}

func (m *Manager) toSession(claims *Claims) (*Session, error) {
	subjectID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, err
	}
	if !claims.Role.Valid() {
		return nil, errors.New("unknown role claim")
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil || claims.LastRefresh == nil {
		return nil, errors.New("missing time claims")
	}
	// NumericDate round-trips through Unix seconds in the local location;
	// the view normalizes to UTC so instants compare by value.
	return &Session{
		SubjectID:      subjectID,
		Role:           claims.Role,
		ServiceTier:    claims.ServiceTier,
		IssuedAt:       claims.IssuedAt.Time.UTC(),
		LastRefreshed:  claims.LastRefresh.Time.UTC(),
		SessionExpires: claims.ExpiresAt.Time.UTC(),
		Flag:           claims.Flag,
	}, nil
}

func (m *Manager) lockedAt(account *models.Account, now time.Time) bool {
	return account.IsLocked && account.LockUntil != nil && now.Before(*account.LockUntil)
}

func (m *Manager) countValidationFailure(reason string) {
	if m.metrics != nil {
		m.metrics.ValidationFailures.WithLabelValues(reason).Inc()
	}
}

func (m *Manager) logAudit(ctx context.Context, event string, attrs ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}
	args := append(attrs, "event", event, "log_type", "audit")
	m.logger.InfoContext(ctx, event, args...)
}
