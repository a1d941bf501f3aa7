package config

import (
	"time"

	"gatehouse/internal/ratelimit/models"
)

// Tier is one named rate-limit window.
type Tier struct {
	MaxRequests int
	Window      time.Duration
}

// Config maps endpoint classes to their tiers.
type Config struct {
	Tiers map[models.EndpointClass]Tier

	// GlobalRPS caps total request throughput across all clients.
	// Zero disables the global throttle.
	GlobalRPS   float64
	GlobalBurst int
}

// Default returns the documented tier table.
func Default() *Config {
	return &Config{
		Tiers: map[models.EndpointClass]Tier{
			models.ClassStrict:        {MaxRequests: 10, Window: time.Minute},
			models.ClassStandard:      {MaxRequests: 60, Window: time.Minute},
			models.ClassRelaxed:       {MaxRequests: 120, Window: time.Minute},
			models.ClassPublic:        {MaxRequests: 30, Window: time.Minute},
			models.ClassLogin:         {MaxRequests: 5, Window: 15 * time.Minute},
			models.ClassPasswordReset: {MaxRequests: 3, Window: time.Hour},
			models.ClassOffender:      {MaxRequests: 1, Window: 5 * time.Minute},
		},
		GlobalRPS:   500,
		GlobalBurst: 1000,
	}
}

// Lookup returns the tier for a class. The second return is false when the
// class has no configured tier; callers treat that as deny (default-deny so
// a misrouted class cannot bypass limiting).
func (c *Config) Lookup(class models.EndpointClass) (Tier, bool) {
	t, ok := c.Tiers[class]
	return t, ok
}
