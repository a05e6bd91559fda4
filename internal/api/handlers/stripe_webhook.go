// Package handlers contains the HTTP handler implementations for the
// CareerVision entitlement API.
//
// This file implements the Stripe webhook endpoint. It is NOT behind auth
// middleware; security is the Stripe-Signature header, verified with
// HMAC-SHA256 before the payload is trusted.
package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"careervision/internal/core"
	"careervision/internal/types"
)

// maxWebhookBodySize caps Stripe webhook payloads (64 KB). Real events are
// far smaller; the limit protects against abuse on an unauthenticated path.
const maxWebhookBodySize = 64 * 1024

// WebhookVerifier validates a webhook payload against its signature header.
type WebhookVerifier interface {
	Verify(payload []byte, header string, secret string) error
}

// EventProcessor applies a verified provider event to subscription state.
type EventProcessor interface {
	Process(ctx context.Context, payload []byte) error
}

// StripeWebhookHandler handles asynchronous billing events from Stripe.
type StripeWebhookHandler struct {
	verifier  WebhookVerifier
	processor EventProcessor
	secret    string
	logger    *slog.Logger
}

// NewStripeWebhookHandler creates a new StripeWebhookHandler with the
// provided dependencies.
func NewStripeWebhookHandler(verifier WebhookVerifier, processor EventProcessor, secret string, logger *slog.Logger) *StripeWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeWebhookHandler{
		verifier:  verifier,
		processor: processor,
		secret:    secret,
		logger:    logger,
	}
}

// RegisterRoutes mounts the webhook endpoint. The path is on the auth
// middleware's public list; signature verification is the only gate.
func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/billing/webhook", h.Handle)
}

// Handle processes one incoming Stripe event: read, verify, apply, 200.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"failed to read request body",
			err,
		))
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		h.logger.WarnContext(r.Context(), "missing Stripe-Signature header")
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"missing Stripe-Signature header",
			nil,
		))
		return
	}

	if err := h.verifier.Verify(payload, sigHeader, h.secret); err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenInvalid,
			"webhook signature verification failed",
			err,
		))
		return
	}

	if err := h.processor.Process(r.Context(), payload); err != nil {
		// Non-2xx makes Stripe retry with backoff, which is what we want
		// for transient database failures.
		h.logger.ErrorContext(r.Context(), "failed to process webhook event", "error", err)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]bool{"received": true}})
}
