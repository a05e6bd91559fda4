package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"careervision/internal/core"
	"careervision/internal/gate"
	"careervision/internal/types"
)

// StatusSource resolves the subscription status for a request identity.
type StatusSource interface {
	StatusFor(ctx context.Context, identity *types.Identity) types.SubscriptionStatus
}

// AccessSnapshot is the entitlement summary served behind the gate. The
// dashboard shell uses it to decide which affordances to draw.
type AccessSnapshot struct {
	UserID           string     `json:"userId"`
	Unlocked         bool       `json:"unlocked"`
	UnlockExpiresAt  *time.Time `json:"unlockExpiresAt,omitempty"`
	Plan             types.Plan `json:"plan"`
	SubscriptionEnds *time.Time `json:"subscriptionEnds,omitempty"`
}

// DashboardHandler serves the gate-protected routes. The gate middleware
// wraps each route; these handlers only run for entitled callers.
type DashboardHandler struct {
	gate   *gate.Gate
	unlock UnlockStore
	status StatusSource
	logger *slog.Logger
}

// NewDashboardHandler creates a new DashboardHandler with the provided
// dependencies.
func NewDashboardHandler(g *gate.Gate, unlock UnlockStore, status StatusSource, logger *slog.Logger) *DashboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardHandler{gate: g, unlock: unlock, status: status, logger: logger}
}

// RegisterRoutes mounts the protected routes. /dashboard accepts either
// entitlement; /insights is subscriber-only and ignores the unlock grant.
func (h *DashboardHandler) RegisterRoutes(r chi.Router) {
	r.With(h.gate.Protect).Get("/dashboard", h.GetAccess)
	r.With(h.gate.ProtectSubscriberOnly).Get("/insights", h.GetAccess)
}

// GetAccess reports the caller's current entitlement snapshot.
func (h *DashboardHandler) GetAccess(w http.ResponseWriter, r *http.Request) {
	identity, ok := types.GetIdentity(r.Context())
	if !ok {
		// The gate redirects anonymous callers before this handler runs.
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthRequired, "authentication required", nil))
		return
	}

	snapshot := AccessSnapshot{
		UserID:   identity.UserID,
		Unlocked: h.unlock.Unlocked(),
	}
	if expiresAt, unlocked := h.unlock.ExpiresAt(); unlocked {
		snapshot.UnlockExpiresAt = &expiresAt
	}

	status := h.status.StatusFor(r.Context(), &identity)
	snapshot.Plan = status.Plan
	snapshot.SubscriptionEnds = status.CurrentPeriodEnd

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: snapshot})
}
