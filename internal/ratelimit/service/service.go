// Package service enforces per-client, per-route rate limits.
//
// Usage:
//
//	svc, _ := service.New(bucketStore)
//	prefix, id := service.ClientKey(subjectID, clientIP)
//	result, _ := svc.Check(ctx, prefix, id, "/auth/login", models.ClassLogin)
//	if !result.Allowed {
//	    // 429 with Retry-After
//	}
//
// Client keys come from ClientKey: authenticated requests key on the subject
// id, anonymous requests on the resolved IP.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gatehouse/internal/ratelimit/config"
	"gatehouse/internal/ratelimit/metrics"
	"gatehouse/internal/ratelimit/models"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/requestcontext"
)

// BucketStore counts requests per key within a window.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
}

// Service checks request counts against the configured tier table.
// Thread-safe for concurrent use by HTTP middleware.
type Service struct {
	buckets BucketStore
	logger  *slog.Logger
	config  *config.Config
	metrics *metrics.Metrics
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger sets the structured logger for audit logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithConfig overrides the default tier table.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates a rate limiting service backed by the given counter store.
func New(buckets BucketStore, opts ...Option) (*Service, error) {
	if buckets == nil {
		return nil, errors.New("bucket store is required")
	}
	svc := &Service{
		buckets: buckets,
		config:  config.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc, nil
}

// ClientKey resolves the rate-limit identity for a request: authenticated
// callers key on their subject id, everyone else on the client IP.
func ClientKey(subjectID, ip string) (models.KeyPrefix, string) {
	if subjectID != "" {
		return models.KeyPrefixUser, subjectID
	}
	if ip == "" {
		ip = "unknown"
	}
	return models.KeyPrefixIP, ip
}

// Check counts one request for (prefix:identifier, class, route) and reports
// whether it fits the class's window.
func (s *Service) Check(ctx context.Context, prefix models.KeyPrefix, identifier, route string, class models.EndpointClass) (*models.Result, error) {
	tier, ok := s.config.Lookup(class)
	if !ok {
		// Default-deny: an unconfigured class cannot be a bypass.
		s.logger.ErrorContext(ctx, "rate limit tier missing",
			"endpoint_class", class,
			"request_id", requestcontext.RequestID(ctx),
		)
		return &models.Result{
			Allowed:    false,
			ResetAt:    requestcontext.Now(ctx),
			RetryAfter: 60,
		}, nil
	}

	key := models.NewKey(prefix, identifier, class, route)
	result, err := s.buckets.Allow(ctx, key.String(), tier.MaxRequests, tier.Window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rate limit")
	}

	if s.metrics != nil {
		s.metrics.RecordCheck(string(class), result.Allowed)
	}
	if !result.Allowed {
		s.logger.WarnContext(ctx, "rate_limit_exceeded",
			"identifier", identifier,
			"endpoint_class", class,
			"route", route,
			"limit", tier.MaxRequests,
			"window_seconds", int(tier.Window.Seconds()),
			"request_id", requestcontext.RequestID(ctx),
			"log_type", "audit",
		)
	}

	return result, nil
}

// CheckOffender runs the repeat-offender sub-window limiter for an account.
// Layered on top of the login tier when the guard flags recent failures.
func (s *Service) CheckOffender(ctx context.Context, accountID string) (*models.Result, error) {
	return s.Check(ctx, models.KeyPrefixOffender, accountID, "login", models.ClassOffender)
}
