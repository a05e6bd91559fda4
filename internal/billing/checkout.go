package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"careervision/internal/external"
	"careervision/internal/types"
)

// CheckoutProvider creates hosted checkout sessions with the payment
// provider.
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, params external.CheckoutParams) (*external.CheckoutResult, error)
}

// SessionRetriever fetches a checkout session's settled details.
type SessionRetriever interface {
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (*external.SessionDetails, error)
}

// SubscriptionStore persists subscription records keyed by user ID.
type SubscriptionStore interface {
	UpsertActive(ctx context.Context, record types.SubscriptionRecord) error
}

// UserReader looks up the identity-store projection of a user.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*types.User, error)
}

// Service runs the purchase flow end to end: BeginCheckout hands the caller
// off to hosted checkout, ConfirmCheckout turns a settled session into a
// durable subscription record.
type Service struct {
	provider     CheckoutProvider
	retriever    SessionRetriever
	store        SubscriptionStore
	users        UserReader
	catalog      *Catalog
	notifier     types.Notifier
	logger       *slog.Logger
	dashboardURL string
}

// NewService builds the billing service. dashboardURL is the public
// dashboard origin the provider redirects back to after checkout.
func NewService(
	provider CheckoutProvider,
	retriever SessionRetriever,
	store SubscriptionStore,
	users UserReader,
	catalog *Catalog,
	notifier types.Notifier,
	logger *slog.Logger,
	dashboardURL string,
) *Service {
	return &Service{
		provider:     provider,
		retriever:    retriever,
		store:        store,
		users:        users,
		catalog:      catalog,
		notifier:     notifier,
		logger:       logger,
		dashboardURL: dashboardURL,
	}
}

// BeginCheckout starts a hosted checkout session for the given plan.
//
// Without an identity there is nothing to check out: the caller gets a
// single sign-in notice and no network call is made. Any provider failure
// likewise surfaces as a single user-visible notice; no subscription state
// changes until the payment is confirmed.
func (s *Service) BeginCheckout(ctx context.Context, identity *types.Identity, plan types.Plan) (*external.CheckoutResult, error) {
	if identity == nil {
		s.notifier.Notify("Sign in required", "Please sign in to subscribe.")
		return nil, types.NewAppError(types.ErrCodeAuthRequired, "sign in to start checkout", nil)
	}

	priceID, err := s.catalog.PriceForPlan(plan)
	if err != nil {
		return nil, err
	}

	// The user store is authoritative for the receipt email; the session
	// identity may carry a stale address.
	email := identity.Email
	if user, lookupErr := s.users.GetByID(ctx, identity.UserID); lookupErr == nil {
		email = user.Email
	} else {
		s.logger.Warn("user lookup failed, using session email",
			slog.String("user_id", identity.UserID),
			slog.Any("error", lookupErr),
		)
	}

	result, err := s.provider.CreateCheckoutSession(ctx, external.CheckoutParams{
		UserID:     identity.UserID,
		Email:      email,
		PriceID:    priceID,
		Plan:       plan,
		SuccessURL: fmt.Sprintf("%s/subscription/success?plan=%s", s.dashboardURL, plan),
		CancelURL:  s.dashboardURL + "/subscription/cancel",
	})
	if err != nil {
		s.logger.Error("checkout session creation failed",
			slog.String("user_id", identity.UserID),
			slog.String("plan", string(plan)),
			slog.Any("error", err),
		)
		s.notifier.Notify("Checkout failed", "Could not start checkout. Please try again.")
		return nil, err
	}

	s.logger.Info("checkout session created",
		slog.String("user_id", identity.UserID),
		slog.String("plan", string(plan)),
		slog.String("session_id", result.SessionID),
	)
	return result, nil
}

// ConfirmCheckout verifies that a checkout session settled as paid and
// records the resulting subscription.
//
// An unpaid session is a hard failure: nothing is written and the caller
// gets payment_not_completed. A paid session upserts the user's single
// subscription record, so replaying a confirmation is harmless.
func (s *Service) ConfirmCheckout(ctx context.Context, userID, sessionID string) (*types.SubscriptionRecord, error) {
	details, err := s.retriever.RetrieveCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !details.Paid() {
		s.logger.Warn("confirmation rejected for unpaid session",
			slog.String("user_id", userID),
			slog.String("session_id", sessionID),
			slog.String("payment_status", details.PaymentStatus),
		)
		return nil, types.NewAppError(
			types.ErrCodePaymentNotCompleted,
			"payment has not completed for this session",
			nil,
		)
	}

	// The session's own metadata is authoritative for ownership; the caller
	// supplied user ID must match it.
	if details.UserID != "" && details.UserID != userID {
		return nil, types.NewAppError(
			types.ErrCodeNotFoundSubscription,
			"session does not belong to this user",
			nil,
		)
	}

	record := types.SubscriptionRecord{
		UserID:               userID,
		StripeSubscriptionID: details.SubscriptionID,
		Status:               types.SubRecordStatusActive,
		Plan:                 s.catalog.PlanForPrice(details.PriceID),
		CurrentPeriodEnd:     details.CurrentPeriodEnd,
		UpdatedAt:            time.Now().UTC(),
	}
	if err := s.store.UpsertActive(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("subscription confirmed",
		slog.String("user_id", userID),
		slog.String("subscription_id", details.SubscriptionID),
		slog.String("plan", string(record.Plan)),
	)
	return &record, nil
}
