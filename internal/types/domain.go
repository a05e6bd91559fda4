// Package types defines the shared domain model for the CareerVision
// entitlement service: subscription state, unlock grants, identities, and
// the error taxonomy used across all packages. Types here carry no behavior
// beyond validation and mapping; business logic lives in the owning packages.
package types

import "time"

// Plan identifies a billing plan tier.
type Plan string

const (
	// PlanNone means no subscription record exists for the user.
	PlanNone Plan = "none"
	// PlanFree is an explicit free-tier record.
	PlanFree Plan = "free"
	// PlanMonthly is the monthly paid subscription.
	PlanMonthly Plan = "monthly"
	// PlanYearly is the yearly paid subscription.
	PlanYearly Plan = "yearly"
)

// IsPaid reports whether the plan is a paying tier.
func (p Plan) IsPaid() bool {
	return p == PlanMonthly || p == PlanYearly
}

// Valid reports whether the plan is one of the known tiers.
func (p Plan) Valid() bool {
	switch p {
	case PlanNone, PlanFree, PlanMonthly, PlanYearly:
		return true
	}
	return false
}

// SubscriptionStatus is a point-in-time snapshot of the user's billing
// entitlement. It is owned exclusively by the entitlement oracle: every
// other component treats it as read-only, and the oracle replaces it
// wholesale on every fetch, never partially patched.
//
// Invariant: IsActive == true implies Plan is a paid tier and
// CurrentPeriodEnd was present and in the future at fetch time. The oracle
// does not re-derive IsActive from CurrentPeriodEnd afterwards; staleness
// is bounded only by when the snapshot was taken.
type SubscriptionStatus struct {
	IsActive         bool       `json:"isActive"`
	Plan             Plan       `json:"plan"`
	CurrentPeriodEnd *time.Time `json:"currentPeriodEnd,omitempty"`
	Loading          bool       `json:"loading"`
}

// InactiveStatus returns the fully-inactive default snapshot. Every failure
// path in the oracle settles here: a stale or unverified read must resolve
// to "no entitlement", never to a previous active state.
func InactiveStatus() SubscriptionStatus {
	return SubscriptionStatus{
		IsActive: false,
		Plan:     PlanNone,
		Loading:  false,
	}
}

// LoadingStatus returns an unknown/loading snapshot. Used when the identity
// changes and a fresh fetch has not yet resolved.
func LoadingStatus() SubscriptionStatus {
	return SubscriptionStatus{
		IsActive: false,
		Plan:     PlanNone,
		Loading:  true,
	}
}

// SubscriptionRecord is the durable row keyed by user ID that the payment
// confirmation service upserts. Exactly one record exists per user; it is
// the only entity that may gate indefinite access.
type SubscriptionRecord struct {
	UserID               string    `json:"user_id"`
	StripeSubscriptionID string    `json:"stripe_subscription_id"`
	Status               string    `json:"status"`
	Plan                 Plan      `json:"plan"`
	CurrentPeriodEnd     time.Time `json:"current_period_end"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// SubRecordStatusActive is the only status value under which a record
// contributes an active entitlement.
const SubRecordStatusActive = "active"

// UnlockGrant is the locally issued, time-limited permission to view the
// pre-release build. It is installation-scoped, not user-scoped: it fences
// the build, not a billing entitlement, and is deliberately decoupled from
// SubscriptionStatus. A grant is valid iff now < ExpiresAt; an expired or
// absent grant is indistinguishable from "never unlocked".
type UnlockGrant struct {
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ValidAt reports whether the grant is still live at the given instant.
func (g UnlockGrant) ValidAt(now time.Time) bool {
	return now.Before(g.ExpiresAt)
}

// User is the minimal identity-store projection the service needs: the
// identity provider itself (login/signup) is an external collaborator, and
// only the stable ID and contact email cross the boundary.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is an authenticated browser session resolved from a bearer token.
type Session struct {
	ID             string
	UserID         string
	TokenHash      string
	ExpiresAt      time.Time
	LastActivityAt time.Time
	CreatedAt      time.Time
}
