// Package handlers contains the HTTP handler implementations for the
// CareerVision entitlement API.
//
// This file implements the subscription-status endpoint the dashboard's
// entitlement oracle polls: POST with a customer ID, answered with the
// stored subscription or an empty object.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"careervision/internal/core"
	"careervision/internal/types"
)

// SubscriptionStatusReader derives the status snapshot for a user.
type SubscriptionStatusReader interface {
	StatusForUser(ctx context.Context, userID string, now time.Time) (types.SubscriptionStatus, error)
}

// StatusRequest is the request body for POST /v1/subscription/status.
type StatusRequest struct {
	CustomerID string `json:"customerId" validate:"required"`
}

// statusSubscription is the wire shape of an active subscription. The
// endpoint contract is bare JSON, not the standard envelope: callers get
// {"subscription": {...}} or {}.
type statusSubscription struct {
	IsActive         bool       `json:"isActive"`
	Plan             types.Plan `json:"plan"`
	CurrentPeriodEnd *time.Time `json:"currentPeriodEnd,omitempty"`
}

type statusResponse struct {
	Subscription *statusSubscription `json:"subscription,omitempty"`
}

// StatusHandler serves the billing-status endpoint.
type StatusHandler struct {
	reader    SubscriptionStatusReader
	validator *core.Validator
	clock     types.Clock
	logger    *slog.Logger
}

// NewStatusHandler creates a new StatusHandler with the provided dependencies.
func NewStatusHandler(reader SubscriptionStatusReader, v *core.Validator, clock types.Clock, logger *slog.Logger) *StatusHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusHandler{reader: reader, validator: v, clock: clock, logger: logger}
}

// RegisterRoutes mounts the status endpoint.
func (h *StatusHandler) RegisterRoutes(r chi.Router) {
	r.Post("/subscription/status", h.GetStatus)
}

// GetStatus handles POST /v1/subscription/status.
//
// A user with no active subscription gets an empty object, not an error:
// "never subscribed" is an ordinary answer here. Database failures surface
// as errors so the caller can distinguish "inactive" from "unknown".
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	status, err := h.reader.StatusForUser(r.Context(), req.CustomerID, h.clock.Now())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to resolve subscription status",
			"customer_id", req.CustomerID,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	if !status.IsActive {
		core.JSON(w, r, http.StatusOK, statusResponse{})
		return
	}
	core.JSON(w, r, http.StatusOK, statusResponse{
		Subscription: &statusSubscription{
			IsActive:         status.IsActive,
			Plan:             status.Plan,
			CurrentPeriodEnd: status.CurrentPeriodEnd,
		},
	})
}
