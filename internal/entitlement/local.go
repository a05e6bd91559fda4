package entitlement

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"

	"careervision/internal/types"
)

// successPath is the navigation path whose observation marks a completed
// purchase in local mode. The cancel path deliberately has no observer:
// only the success path mutates state.
const successPath = "/subscription/success"

// LocalOracle derives the subscription status deterministically from a
// durable local record of the purchased plan. It never performs network
// calls, which makes it suitable for offline development and tests.
//
// Observing navigation to the success path persists the inferred plan; the
// status is then computed from that plan and the clock on every read.
type LocalOracle struct {
	path   string
	clock  types.Clock
	logger *slog.Logger

	mu       sync.Mutex
	identity *types.Identity
	plan     types.Plan
}

// NewLocalOracle creates a local oracle, restoring any persisted plan.
// A corrupt or unknown persisted value is treated as no plan.
func NewLocalOracle(path string, clock types.Clock, logger *slog.Logger) *LocalOracle {
	if clock == nil {
		clock = types.RealClock{}
	}
	o := &LocalOracle{
		path:   path,
		clock:  clock,
		logger: logger,
		plan:   types.PlanNone,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		plan := types.Plan(strings.TrimSpace(string(raw)))
		if plan.IsPaid() {
			o.plan = plan
		} else {
			logger.Warn("persisted plan not purchasable, ignoring",
				slog.String("path", path),
				slog.String("plan", string(plan)),
			)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		logger.Warn("plan state unreadable, treating as absent",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}

	return o
}

var _ Oracle = (*LocalOracle)(nil)

// Status computes the snapshot from the persisted plan and the clock.
// The period end is one month out for monthly, one year for yearly.
func (o *LocalOracle) Status() types.SubscriptionStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.identity == nil || !o.plan.IsPaid() {
		return types.InactiveStatus()
	}

	var periodEnd = o.clock.Now().AddDate(0, 1, 0)
	if o.plan == types.PlanYearly {
		periodEnd = o.clock.Now().AddDate(1, 0, 0)
	}

	return types.SubscriptionStatus{
		IsActive:         true,
		Plan:             o.plan,
		CurrentPeriodEnd: &periodEnd,
	}
}

// Bind replaces the tracked identity. The persisted plan is
// installation-scoped and survives identity changes.
func (o *LocalOracle) Bind(ctx context.Context, identity *types.Identity) {
	o.mu.Lock()
	o.identity = identity
	o.mu.Unlock()
}

// Refresh is a no-op: the status is derived on every read.
func (o *LocalOracle) Refresh(ctx context.Context) {}

// StatusFor rebinds when the identity differs, then returns the snapshot.
func (o *LocalOracle) StatusFor(ctx context.Context, identity *types.Identity) types.SubscriptionStatus {
	o.mu.Lock()
	if !sameIdentity(o.identity, identity) {
		o.identity = identity
	}
	o.mu.Unlock()
	return o.Status()
}

// ObserveSuccessPath inspects a navigation target. Navigation to the success
// path persists the plan named by its "plan" query parameter, defaulting to
// monthly for any absent or unrecognized value. All other paths, including
// the cancel path, leave state untouched.
func (o *LocalOracle) ObserveSuccessPath(target string) {
	u, err := url.Parse(target)
	if err != nil || u.Path != successPath {
		return
	}

	plan := types.PlanMonthly
	if u.Query().Get("plan") == string(types.PlanYearly) {
		plan = types.PlanYearly
	}

	o.mu.Lock()
	o.plan = plan
	o.mu.Unlock()

	if err := os.WriteFile(o.path, []byte(string(plan)), 0o600); err != nil {
		o.logger.Error("failed to persist plan",
			slog.String("path", o.path),
			slog.String("error", err.Error()),
		)
	}

	o.logger.Info("purchase observed",
		slog.String("plan", string(plan)),
	)
}
