// Package bucket holds the counter store behind the rate limiter.
//
// Counters are fixed-window: the first request for a key opens a window
// (count=1, resetAt=now+window); requests increment the count until resetAt,
// after which the entry is replaced, not incremented. State is process-local
// and lost on restart. The store is
// interface-abstracted at the service layer so a shared key-value store can
// take its place for multi-instance deployments.
package bucket

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"gatehouse/internal/ratelimit/models"
	"gatehouse/pkg/requestcontext"
)

// sweepProbability is the chance a call opportunistically sweeps expired
// entries. Sweeping is best-effort memory hygiene only; correctness never
// depends on it because expired windows are replaced lazily.
const sweepProbability = 0.01

type entry struct {
	count   int
	resetAt time.Time
}

// InMemoryStore is a mutex-guarded fixed-window counter map.
// The single lock makes increment-and-check atomic per key: concurrent
// requests for the same key cannot under-count.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty counter store.
func New() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]*entry)}
}

// Allow counts one request against key and reports whether it fits the
// window. The context clock supplies "now" so tests can pin time.
func (s *InMemoryStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if rand.Float64() < sweepProbability {
		s.sweepLocked(now)
	}

	e, ok := s.entries[key]
	if !ok || !now.Before(e.resetAt) {
		// First request in a window, or the old window expired: replace.
		e = &entry{count: 1, resetAt: now.Add(window)}
		s.entries[key] = e
		return &models.Result{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - 1,
			ResetAt:   e.resetAt,
		}, nil
	}

	e.count++
	if e.count > limit {
		retryAfter := int(math.Ceil(e.resetAt.Sub(now).Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		return &models.Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    e.resetAt,
			RetryAfter: retryAfter,
		}, nil
	}

	return &models.Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - e.count,
		ResetAt:   e.resetAt,
	}, nil
}

// Reset clears the counter for a key.
func (s *InMemoryStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Sweep removes all expired windows and returns how many were dropped.
// The cleanup worker calls this periodically to bound memory.
func (s *InMemoryStore) Sweep(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(now), nil
}

// Len reports the number of live entries. Used by tests and metrics.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *InMemoryStore) sweepLocked(now time.Time) int {
	removed := 0
	for key, e := range s.entries {
		if !now.Before(e.resetAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}
