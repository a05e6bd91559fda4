// Package entitlement owns the subscription status for the currently tracked
// identity. The status is a single value replaced wholesale on every
// evaluation; no caller ever patches individual fields. Two implementations
// share one interface: a networked oracle backed by the billing-status
// endpoint and a deterministic local oracle backed by a durable file. The
// implementation is chosen once at construction and never per call.
package entitlement

import (
	"context"

	"careervision/internal/types"
)

// StatusFetcher is the upstream dependency of the networked oracle.
type StatusFetcher interface {
	// FetchStatus returns the customer's subscription status. All failure
	// classes (transport, non-2xx, undecodable body) surface as one error.
	FetchStatus(ctx context.Context, customerID string) (types.SubscriptionStatus, error)
}

// Oracle answers "what is the current subscription status" for the tracked
// identity. Failed or absent data always resolves to the inactive default;
// callers never receive an error.
type Oracle interface {
	// Status returns the current snapshot without blocking.
	Status() types.SubscriptionStatus

	// Bind replaces the tracked identity wholesale. A nil identity settles
	// the status to inactive without any fetch; a new identity triggers a
	// refresh. Responses still in flight for a previous identity are
	// discarded when they land.
	Bind(ctx context.Context, identity *types.Identity)

	// Refresh re-evaluates the status for the bound identity. Networked
	// implementations mark the status loading synchronously before
	// fetching.
	Refresh(ctx context.Context)

	// StatusFor binds the identity if it differs from the tracked one and
	// returns the resulting snapshot.
	StatusFor(ctx context.Context, identity *types.Identity) types.SubscriptionStatus
}

// sameIdentity compares two optional identities by user ID.
func sameIdentity(a, b *types.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.UserID == b.UserID
}
