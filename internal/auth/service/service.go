package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gatehouse/internal/auth/device"
	"gatehouse/internal/auth/metrics"
	"gatehouse/internal/auth/models"
	"gatehouse/internal/auth/store"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/requestcontext"
	"gatehouse/pkg/secrets"
	str "gatehouse/pkg/string"
)

// genericCredentialsMessage is returned for both unknown email and wrong
// password so responses cannot distinguish the two (enumeration hardening).
const genericCredentialsMessage = "invalid email or password"

// storeTimeout bounds every user-store call so a slow backend turns into
// service_unavailable instead of a hung request.
const storeTimeout = 2 * time.Second

// UserStore is the persistence slice the verifier needs.
// Error Contract: Find methods return store.ErrNotFound when the entity doesn't exist.
type UserStore interface {
	Create(ctx context.Context, account *models.Account) error
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	Ping(ctx context.Context) error
}

// AccountGuard is the lockout bookkeeping contract.
type AccountGuard interface {
	RecordFailure(ctx context.Context, account *models.Account) error
	RecordSuccess(ctx context.Context, account *models.Account) error
	CheckLockState(ctx context.Context, account *models.Account) models.LockState
}

// Service verifies credentials and registers accounts.
type Service struct {
	users        UserStore
	guard        AccountGuard
	hasher       secrets.Hasher
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	storeTimeout time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// NewService creates the credential verifier.
func NewService(users UserStore, g AccountGuard, hasher secrets.Hasher, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, errors.New("user store is required")
	}
	if g == nil {
		return nil, errors.New("account guard is required")
	}
	if hasher == nil {
		return nil, errors.New("password hasher is required")
	}
	svc := &Service{
		users:        users,
		guard:        g,
		hasher:       hasher,
		tracer:       otel.Tracer("gatehouse/auth"),
		storeTimeout: storeTimeout,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc, nil
}

// Authenticate validates an email/password pair.
//
// Order matters: input check, store liveness, lookup, lock check, password
// compare. Unknown email and wrong password produce the identical generic
// error; lock and disabled states are only revealed for accounts that exist,
// after the same lookup path.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.Account, error) {
	ctx, span := s.tracer.Start(ctx, "auth.authenticate")
	var spanErr error
	defer func() {
		if spanErr != nil {
			span.RecordError(spanErr)
			span.SetStatus(codes.Error, spanErr.Error())
		}
		span.End()
	}()

	email = str.NormalizeEmail(email)
	if email == "" || password == "" {
		s.incrementLoginFailure("invalid_input")
		return nil, dErrors.New(dErrors.CodeInvalidInput, "email and password are required")
	}

	if err := s.pingStore(ctx); err != nil {
		spanErr = err
		s.logAuthFailure(ctx, "store_unreachable", true, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeServiceUnavailable, "authentication temporarily unavailable")
	}

	account, err := s.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Same response as a wrong password.
			s.logAuthFailure(ctx, "account_not_found", false)
			s.incrementLoginFailure("invalid_credentials")
			return nil, dErrors.New(dErrors.CodeInvalidCredentials, genericCredentialsMessage)
		}
		spanErr = err
		s.logAuthFailure(ctx, "account_lookup_failed", true, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeServiceUnavailable, "authentication temporarily unavailable")
	}
	span.SetAttributes(attribute.String("account.role", account.Role.String()))

	state := s.guard.CheckLockState(ctx, account)
	if state.Disabled {
		s.logAuthFailure(ctx, "account_disabled", false, "account_id", account.ID.String())
		s.incrementLoginFailure("account_disabled")
		return nil, dErrors.New(dErrors.CodeAccountDisabled, "account is disabled")
	}
	if state.Locked {
		minutes := (state.RetryAfterSeconds + 59) / 60
		s.logAuthFailure(ctx, "account_locked", false,
			"account_id", account.ID.String(),
			"retry_after_seconds", state.RetryAfterSeconds,
		)
		s.incrementLoginFailure("account_locked")
		return nil, dErrors.NewRetryable(dErrors.CodeAccountLocked,
			fmt.Sprintf("account temporarily locked, try again in %d minutes", minutes),
			state.RetryAfterSeconds)
	}

	if !s.hasher.Compare(password, account.PasswordHash) {
		// Bookkeeping failures are logged but must not displace the
		// credentials error already on its way out.
		if recErr := s.guard.RecordFailure(ctx, account); recErr != nil {
			s.logger.ErrorContext(ctx, "failed to record auth failure",
				"error", recErr,
				"account_id", account.ID.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		s.logAuthFailure(ctx, "password_mismatch", false, "account_id", account.ID.String())
		s.incrementLoginFailure("invalid_credentials")
		return nil, dErrors.New(dErrors.CodeInvalidCredentials, genericCredentialsMessage)
	}

	if err := s.guard.RecordSuccess(ctx, account); err != nil {
		s.logger.ErrorContext(ctx, "failed to record auth success",
			"error", err,
			"account_id", account.ID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}

	auditAttrs := []any{"account_id", account.ID.String()}
	if fp := device.GetFingerprint(ctx); fp != "" {
		auditAttrs = append(auditAttrs, "device_fingerprint", fp)
	}
	s.logAudit(ctx, "login_succeeded", auditAttrs...)
	if s.metrics != nil {
		s.metrics.LoginSuccessTotal.Inc()
	}
	return account, nil
}

// Register creates a CLIENT-role account with a hashed password.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.Account, error) {
	str.TrimStrings(&req.Name)

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		ID:           uuid.New(),
		Email:        str.NormalizeEmail(req.Email),
		Name:         req.Name,
		PasswordHash: hash,
		Role:         models.RoleClient,
	}

	cctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := s.users.Create(cctx, account); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email already registered")
		}
		s.logger.ErrorContext(ctx, "failed to create account",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.Wrap(err, dErrors.CodeServiceUnavailable, "registration temporarily unavailable")
	}

	s.logAudit(ctx, "account_registered", "account_id", account.ID.String())
	if s.metrics != nil {
		s.metrics.RegistrationsTotal.Inc()
	}
	return account, nil
}

// FindByEmail exposes a lookup for the request governor's offender check.
// Unknown emails surface as store.ErrNotFound, not a domain error, so the
// caller can stay silent about account existence.
func (s *Service) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.findByEmail(ctx, str.NormalizeEmail(email))
}

func (s *Service) pingStore(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.users.Ping(cctx)
}

func (s *Service) findByEmail(ctx context.Context, email string) (*models.Account, error) {
	cctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.users.FindByEmail(cctx, email)
}

func (s *Service) logAudit(ctx context.Context, event string, attrs ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}
	args := append(attrs, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) logAuthFailure(ctx context.Context, reason string, isError bool, attrs ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}
	args := append(attrs, "event", "auth_failed", "reason", reason, "log_type", "standard")
	if isError {
		s.logger.ErrorContext(ctx, "auth_failed", args...)
		return
	}
	s.logger.WarnContext(ctx, "auth_failed", args...)
}

func (s *Service) incrementLoginFailure(reason string) {
	if s.metrics != nil {
		s.metrics.LoginFailureTotal.WithLabelValues(reason).Inc()
	}
}
