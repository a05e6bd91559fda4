package types

import "time"

// Clock abstracts time.Now for components whose behavior depends on the
// current instant (unlock expiry, session validation, period-end mapping).
// Production code uses RealClock; tests substitute a fixed or advancing fake.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// Notifier surfaces user-visible notices from boundary components: failed
// entitlement fetches, authentication-required prompts during checkout, and
// similar non-fatal conditions. Implementations must never block.
//
// Boundary components (oracle, checkout client) notify exactly once per
// failure and then settle to a safe default state; they never retry
// automatically.
type Notifier interface {
	Notify(title, message string)
}
