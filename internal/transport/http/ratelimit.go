package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"

	"gatehouse/internal/authz"
	"gatehouse/internal/platform/middleware"
	ratelimitmetrics "gatehouse/internal/ratelimit/metrics"
	ratelimitmodels "gatehouse/internal/ratelimit/models"
	"gatehouse/internal/ratelimit/service"
	"gatehouse/internal/transport/http/json"
	"gatehouse/pkg/requestcontext"
)

// Limiter is the slice of the rate limit service the transport needs.
type Limiter interface {
	Check(ctx context.Context, prefix ratelimitmodels.KeyPrefix, identifier, route string, class ratelimitmodels.EndpointClass) (*ratelimitmodels.Result, error)
}

// RateLimit enforces the named endpoint class per client and route.
//
// Authenticated requests key on the session subject, anonymous ones on the
// client IP. X-RateLimit headers are set on every response, allowed or not.
// A limiter failure fails open and is logged.
func RateLimit(limiter Limiter, class ratelimitmodels.EndpointClass, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var subjectID string
			if sess := authz.SessionFromContext(ctx); sess != nil {
				subjectID = sess.SubjectID.String()
			}
			prefix, identifier := service.ClientKey(subjectID, middleware.GetClientIP(ctx))

			result, err := limiter.Check(ctx, prefix, identifier, r.URL.Path, class)
			if err != nil {
				logger.ErrorContext(ctx, "rate limit check failed, failing open",
					"error", err,
					"route", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			writeRateLimitHeaders(w, result)
			if !result.Allowed {
				writeRateLimited(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GlobalThrottle caps total throughput across all clients with a token
// bucket, ahead of the per-client windows.
func GlobalThrottle(limiter *rate.Limiter, m *ratelimitmetrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				if m != nil {
					m.GlobalThrottledTotal.Inc()
				}
				w.Header().Set("Retry-After", "1")
				json.WriteJSON(w, http.StatusTooManyRequests, ratelimitmodels.RateLimitExceededResponse{
					Error:      "rate_limit_exceeded",
					Message:    "server is at capacity, retry shortly",
					RetryAfter: 1,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeRateLimitHeaders(w http.ResponseWriter, result *ratelimitmodels.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimited(w http.ResponseWriter, result *ratelimitmodels.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	json.WriteJSON(w, http.StatusTooManyRequests, ratelimitmodels.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "too many requests, slow down",
		RetryAfter: result.RetryAfter,
	})
}
