package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"careervision/internal/types"
)

// Webhook event types the processor acts on. Everything else is
// acknowledged and ignored.
const (
	eventCheckoutCompleted   = "checkout.session.completed"
	eventSubscriptionUpdated = "customer.subscription.updated"
	eventSubscriptionDeleted = "customer.subscription.deleted"
)

// SubRecordStatusCanceled marks a subscription the provider has ended.
const SubRecordStatusCanceled = "canceled"

// SubscriptionUpdater applies provider-driven lifecycle changes to stored
// subscription records.
type SubscriptionUpdater interface {
	SubscriptionStore
	UpdateBySubscriptionID(ctx context.Context, stripeSubscriptionID, status string, currentPeriodEnd time.Time) error
}

// webhookEvent is the envelope Stripe posts. Only the fields the processor
// reads are declared.
type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type webhookSession struct {
	ID            string            `json:"id"`
	PaymentStatus string            `json:"payment_status"`
	Subscription  string            `json:"subscription"`
	Metadata      map[string]string `json:"metadata"`
}

type webhookSubscription struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	Metadata         map[string]string `json:"metadata"`
	Items            struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// WebhookProcessor applies verified Stripe events to subscription records.
// Signature verification happens before the payload reaches it.
type WebhookProcessor struct {
	store     SubscriptionUpdater
	retriever SessionRetriever
	catalog   *Catalog
	logger    *slog.Logger
}

// NewWebhookProcessor builds a processor over the given store. The retriever
// resolves completed checkout sessions with their subscription expanded.
func NewWebhookProcessor(store SubscriptionUpdater, retriever SessionRetriever, catalog *Catalog, logger *slog.Logger) *WebhookProcessor {
	return &WebhookProcessor{store: store, retriever: retriever, catalog: catalog, logger: logger}
}

// Process applies one event. Unhandled event types return nil so the
// provider does not retry them.
func (p *WebhookProcessor) Process(ctx context.Context, payload []byte) error {
	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "undecodable webhook payload", err)
	}

	switch event.Type {
	case eventCheckoutCompleted:
		return p.handleCheckoutCompleted(ctx, event)
	case eventSubscriptionUpdated:
		return p.handleSubscriptionChange(ctx, event, "")
	case eventSubscriptionDeleted:
		return p.handleSubscriptionChange(ctx, event, SubRecordStatusCanceled)
	default:
		p.logger.Debug("ignoring webhook event", slog.String("type", event.Type))
		return nil
	}
}

func (p *WebhookProcessor) handleCheckoutCompleted(ctx context.Context, event webhookEvent) error {
	var session webhookSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "undecodable checkout session", err)
	}

	userID := session.Metadata["userId"]
	if userID == "" {
		// A session created outside this service; nothing to correlate.
		p.logger.Warn("checkout completed without userId metadata",
			slog.String("session_id", session.ID))
		return nil
	}
	if session.PaymentStatus != "paid" {
		p.logger.Info("checkout completed but unpaid, waiting for payment",
			slog.String("session_id", session.ID),
			slog.String("payment_status", session.PaymentStatus))
		return nil
	}

	// The session payload carries no period end; only the expanded
	// subscription does. Returning the retrieval error makes the provider
	// redeliver the event rather than recording an already-lapsed period.
	details, err := p.retriever.RetrieveCheckoutSession(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("resolving completed checkout %s: %w", session.ID, err)
	}

	plan := p.catalog.PlanForPrice(details.PriceID)
	if plan == types.PlanNone {
		if meta := types.Plan(session.Metadata["plan"]); meta.IsPaid() {
			plan = meta
		}
	}

	record := types.SubscriptionRecord{
		UserID:               userID,
		StripeSubscriptionID: session.Subscription,
		Status:               types.SubRecordStatusActive,
		Plan:                 plan,
		CurrentPeriodEnd:     details.CurrentPeriodEnd,
		UpdatedAt:            time.Now().UTC(),
	}
	if record.StripeSubscriptionID == "" {
		record.StripeSubscriptionID = details.SubscriptionID
	}
	if err := p.store.UpsertActive(ctx, record); err != nil {
		return fmt.Errorf("recording completed checkout %s: %w", session.ID, err)
	}

	p.logger.Info("subscription activated from webhook",
		slog.String("user_id", userID),
		slog.String("subscription_id", record.StripeSubscriptionID),
		slog.Time("current_period_end", record.CurrentPeriodEnd))
	return nil
}

// handleSubscriptionChange applies an update or deletion. forcedStatus
// overrides the payload status when non-empty.
func (p *WebhookProcessor) handleSubscriptionChange(ctx context.Context, event webhookEvent, forcedStatus string) error {
	var sub webhookSubscription
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "undecodable subscription object", err)
	}

	status := sub.Status
	if forcedStatus != "" {
		status = forcedStatus
	}
	periodEnd := time.Unix(sub.CurrentPeriodEnd, 0).UTC()

	if err := p.store.UpdateBySubscriptionID(ctx, sub.ID, status, periodEnd); err != nil {
		return fmt.Errorf("applying %s for %s: %w", event.Type, sub.ID, err)
	}

	p.logger.Info("subscription lifecycle event applied",
		slog.String("subscription_id", sub.ID),
		slog.String("status", status),
		slog.String("event", event.Type))
	return nil
}
