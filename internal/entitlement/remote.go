package entitlement

import (
	"context"
	"log/slog"
	"sync"

	"careervision/internal/types"
)

// RemoteOracle resolves the subscription status by querying the
// billing-status endpoint.
//
// Consistency model: last write wins. Concurrent refreshes are not
// serialized; whichever response lands last replaces the status wholesale.
// The one guard is identity fencing: every fetch is tagged with the
// generation of the identity it was requested for, and a late response for a
// previous identity is discarded. Stale or failed reads always settle to
// inactive, never to a stale active state.
type RemoteOracle struct {
	fetcher  StatusFetcher
	notifier types.Notifier
	logger   *slog.Logger

	mu       sync.Mutex
	identity *types.Identity
	gen      uint64
	status   types.SubscriptionStatus
}

// NewRemoteOracle creates a networked oracle. The notifier receives one
// user-visible notice per failed refresh.
func NewRemoteOracle(fetcher StatusFetcher, notifier types.Notifier, logger *slog.Logger) *RemoteOracle {
	return &RemoteOracle{
		fetcher:  fetcher,
		notifier: notifier,
		logger:   logger,
		status:   types.InactiveStatus(),
	}
}

var _ Oracle = (*RemoteOracle)(nil)

// Status returns the current snapshot.
func (o *RemoteOracle) Status() types.SubscriptionStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Bind replaces the tracked identity. The generation bump invalidates any
// in-flight fetch for the previous identity.
func (o *RemoteOracle) Bind(ctx context.Context, identity *types.Identity) {
	o.mu.Lock()
	o.identity = identity
	o.gen++
	o.status = types.InactiveStatus()
	o.mu.Unlock()

	if identity != nil {
		o.Refresh(ctx)
	}
}

// Refresh sets the loading state synchronously, then fetches. With no bound
// identity it settles to inactive immediately, without any network call.
func (o *RemoteOracle) Refresh(ctx context.Context) {
	o.mu.Lock()
	identity := o.identity
	gen := o.gen
	if identity == nil {
		o.status = types.InactiveStatus()
		o.mu.Unlock()
		return
	}
	o.status = types.LoadingStatus()
	o.mu.Unlock()

	status, err := o.fetcher.FetchStatus(ctx, identity.UserID)

	o.mu.Lock()
	if o.gen != gen {
		// The identity changed while this fetch was in flight.
		o.mu.Unlock()
		o.logger.Debug("discarding stale status response",
			slog.String("user_id", identity.UserID),
		)
		return
	}
	if err != nil {
		o.status = types.InactiveStatus()
		o.mu.Unlock()
		o.logger.Warn("subscription status fetch failed",
			slog.String("user_id", identity.UserID),
			slog.String("error", err.Error()),
		)
		if o.notifier != nil {
			o.notifier.Notify("Subscription check failed", "Could not verify your subscription. Showing limited access.")
		}
		return
	}
	o.status = status
	o.mu.Unlock()
}

// StatusFor rebinds when the identity differs from the tracked one, then
// returns the snapshot.
func (o *RemoteOracle) StatusFor(ctx context.Context, identity *types.Identity) types.SubscriptionStatus {
	o.mu.Lock()
	same := sameIdentity(o.identity, identity)
	o.mu.Unlock()

	if !same {
		o.Bind(ctx, identity)
	}
	return o.Status()
}
