package core

import (
	"context"
	"time"

	"careervision/internal/types"
)

// Authenticator decouples the HTTP layer from the session store, allowing for
// easy mocking in tests.
type Authenticator interface {
	// ResolveToken resolves a bearer token to the authenticated Identity.
	//
	// Distinct Error Codes:
	// - Return ErrCodeAuthTokenInvalid if the token is malformed or not found.
	// - Return ErrCodeAuthSessionExpired if the session exists but has expired.
	ResolveToken(ctx context.Context, token string) (*types.Identity, error)
}

// RateLimitStore abstracts the backing store for rate limiting.
// Production uses Redis atomic counters; tests use in-memory fakes.
type RateLimitStore interface {
	// IncrementAndCheck atomically increments the rate limit counter for the
	// given key and checks if the limit has been exceeded within the window.
	IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error)
}

// RateLimitResult contains the outcome of a rate limit check.
type RateLimitResult struct {
	// Allowed indicates whether the request is within the rate limit.
	Allowed bool
	// Remaining is the number of requests remaining in the current window.
	Remaining int
	// ResetAt is the time when the current rate limit window resets.
	ResetAt time.Time
}
