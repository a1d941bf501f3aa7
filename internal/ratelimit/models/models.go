package models

import (
	"fmt"
	"time"
)

// EndpointClass buckets routes into named rate-limit tiers.
type EndpointClass string

const (
	ClassStrict        EndpointClass = "strict"
	ClassStandard      EndpointClass = "standard"
	ClassRelaxed       EndpointClass = "relaxed"
	ClassPublic        EndpointClass = "public"
	ClassLogin         EndpointClass = "login"
	ClassPasswordReset EndpointClass = "password_reset"

	// ClassOffender is the sub-window limiter layered on the login tier for
	// accounts with recent repeated failures. Intentionally redundant with
	// the account lockout: both gates stay in place.
	ClassOffender EndpointClass = "offender"
)

// KeyPrefix distinguishes identity kinds inside a rate-limit key.
type KeyPrefix string

const (
	KeyPrefixIP       KeyPrefix = "ip"
	KeyPrefixUser     KeyPrefix = "user"
	KeyPrefixOffender KeyPrefix = "offender"
)

// Key identifies one counter: who, on which route class.
type Key struct {
	Prefix     KeyPrefix
	Identifier string
	Class      EndpointClass
	Route      string
}

// NewKey builds a rate limit key for an identity and route.
func NewKey(prefix KeyPrefix, identifier string, class EndpointClass, route string) Key {
	return Key{Prefix: prefix, Identifier: identifier, Class: class, Route: route}
}

// String renders the composite counter key. Route keeps limits per-endpoint
// rather than global per client.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", k.Prefix, k.Identifier, k.Class, k.Route)
}

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds; 0 when allowed
}

// RateLimitExceededResponse is the 429 JSON body.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}
