package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"careervision/internal/types"
)

// SubscriptionRepository manages the subscriptions table. Exactly one row
// exists per user; every write is an upsert keyed by user_id, which is what
// makes payment confirmation safely replayable.
type SubscriptionRepository struct {
	db     DBTX
	logger *slog.Logger
}

// NewSubscriptionRepository creates a new SubscriptionRepository backed by
// the given database connection (pool or transaction).
func NewSubscriptionRepository(db DBTX, logger *slog.Logger) *SubscriptionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionRepository{db: db, logger: logger}
}

const subscriptionColumns = `user_id, stripe_subscription_id, status, plan, current_period_end, updated_at`

func scanSubscription(row pgx.Row) (*types.SubscriptionRecord, error) {
	var rec types.SubscriptionRecord
	err := row.Scan(
		&rec.UserID,
		&rec.StripeSubscriptionID,
		&rec.Status,
		&rec.Plan,
		&rec.CurrentPeriodEnd,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpsertActive inserts or replaces the user's single subscription record.
//
// The guard on the update arm makes a replayed confirmation a no-op: when
// the incoming stripe_subscription_id matches the stored one and the stored
// period end is already at or past the incoming one, nothing changes. A
// genuinely new subscription (different provider ID) always wins.
func (r *SubscriptionRepository) UpsertActive(ctx context.Context, record types.SubscriptionRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO subscriptions (user_id, stripe_subscription_id, status, plan, current_period_end, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (user_id) DO UPDATE
		 SET stripe_subscription_id = EXCLUDED.stripe_subscription_id,
		     status = EXCLUDED.status,
		     plan = EXCLUDED.plan,
		     current_period_end = EXCLUDED.current_period_end,
		     updated_at = NOW()
		 WHERE subscriptions.stripe_subscription_id IS DISTINCT FROM EXCLUDED.stripe_subscription_id
		    OR subscriptions.current_period_end < EXCLUDED.current_period_end
		    OR subscriptions.status IS DISTINCT FROM EXCLUDED.status`,
		record.UserID,
		record.StripeSubscriptionID,
		record.Status,
		record.Plan,
		record.CurrentPeriodEnd,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert subscription", err)
	}
	return nil
}

// GetByUserID retrieves the user's subscription record.
// Returns ErrCodeNotFoundSubscription if the user has never subscribed.
func (r *SubscriptionRepository) GetByUserID(ctx context.Context, userID string) (*types.SubscriptionRecord, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE user_id = $1`,
		userID,
	)

	rec, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSubscription, "no subscription for user", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve subscription", err)
	}
	return rec, nil
}

// UpdateBySubscriptionID applies a provider lifecycle change to the record
// holding the given provider subscription ID. An unknown ID is a no-op: the
// provider may emit events for subscriptions this service never recorded.
func (r *SubscriptionRepository) UpdateBySubscriptionID(ctx context.Context, stripeSubscriptionID, status string, currentPeriodEnd time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE subscriptions
		 SET status = $1,
		     current_period_end = $2,
		     updated_at = NOW()
		 WHERE stripe_subscription_id = $3`,
		status,
		currentPeriodEnd,
		stripeSubscriptionID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update subscription status", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Info("lifecycle event for unknown subscription ignored",
			slog.String("stripe_subscription_id", stripeSubscriptionID),
			slog.String("status", status),
		)
	}
	return nil
}

// StatusForUser derives the SubscriptionStatus snapshot served by the
// billing-status endpoint. A missing record, a non-active status, or a
// lapsed period end all resolve to the inactive default.
func (r *SubscriptionRepository) StatusForUser(ctx context.Context, userID string, now time.Time) (types.SubscriptionStatus, error) {
	rec, err := r.GetByUserID(ctx, userID)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundSubscription {
			return types.InactiveStatus(), nil
		}
		return types.InactiveStatus(), err
	}

	if rec.Status != types.SubRecordStatusActive || !now.Before(rec.CurrentPeriodEnd) {
		return types.InactiveStatus(), nil
	}

	periodEnd := rec.CurrentPeriodEnd
	return types.SubscriptionStatus{
		IsActive:         true,
		Plan:             rec.Plan,
		CurrentPeriodEnd: &periodEnd,
	}, nil
}
