package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"careervision/internal/core"
	"careervision/internal/external"
	"careervision/internal/types"
)

// CheckoutService abstracts the purchase flow implemented in the billing
// package. Defined locally so the handler couples to the contract, not the
// concrete service.
type CheckoutService interface {
	BeginCheckout(ctx context.Context, identity *types.Identity, plan types.Plan) (*external.CheckoutResult, error)
	ConfirmCheckout(ctx context.Context, userID, sessionID string) (*types.SubscriptionRecord, error)
}

// CreateCheckoutRequest is the request body for POST /v1/checkout-session.
type CreateCheckoutRequest struct {
	Plan types.Plan `json:"plan" validate:"required,plan"`
}

// CheckoutResponse returns only the opaque session handle. The hosted
// checkout URL is derivable client-side from the session ID; exposing just
// the ID keeps the response stable across provider URL format changes.
type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
}

// ConfirmRequest is the request body for POST /v1/subscription/confirm.
type ConfirmRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
	UserID    string `json:"userId" validate:"required"`
}

// ConfirmResponse reports the recorded subscription after confirmation.
type ConfirmResponse struct {
	Status           string     `json:"status"`
	Plan             types.Plan `json:"plan"`
	CurrentPeriodEnd string     `json:"currentPeriodEnd"`
}

// CheckoutHandler handles checkout initiation and payment confirmation.
type CheckoutHandler struct {
	service   CheckoutService
	validator *core.Validator
	logger    *slog.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler with the provided
// dependencies.
func NewCheckoutHandler(service CheckoutService, v *core.Validator, logger *slog.Logger) *CheckoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutHandler{service: service, validator: v, logger: logger}
}

// RegisterRoutes mounts the checkout and confirmation endpoints.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Post("/checkout-session", h.CreateCheckoutSession)
	r.Post("/subscription/confirm", h.ConfirmSubscription)
}

// CreateCheckoutSession handles POST /v1/checkout-session.
//
// The redirect URLs are constructed server-side from configuration; client
// input never chooses where the provider sends the browser afterwards.
func (h *CheckoutHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req CreateCheckoutRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	var identity *types.Identity
	if id, ok := types.GetIdentity(r.Context()); ok {
		identity = &id
	}

	result, err := h.service.BeginCheckout(r.Context(), identity, req.Plan)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: CheckoutResponse{SessionID: result.SessionID},
	})
}

// ConfirmSubscription handles POST /v1/subscription/confirm.
//
// The caller may only confirm sessions for their own account; the body's
// userId is cross-checked against the authenticated identity before the
// provider round trip.
func (h *CheckoutHandler) ConfirmSubscription(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	identity, ok := types.GetIdentity(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthRequired, "authentication required", nil))
		return
	}
	if identity.UserID != req.UserID {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeEntitlementRequired,
			"cannot confirm a subscription for another user",
			nil,
		))
		return
	}

	record, err := h.service.ConfirmCheckout(r.Context(), req.UserID, req.SessionID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: ConfirmResponse{
			Status:           record.Status,
			Plan:             record.Plan,
			CurrentPeriodEnd: record.CurrentPeriodEnd.UTC().Format(time.RFC3339),
		},
	})
}
