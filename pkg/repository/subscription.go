package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/biblegpt/api/pkg/domain"
)

const uniqueViolation = "23505"

// SubscriptionRepository implements domain.SubscriptionRepository on Postgres
type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

const subscriptionColumns = `id, user_id, status, trial_ends_at, current_period_end,
	cancel_at_period_end, stripe_customer_id, stripe_subscription_id, stripe_price_id,
	last_event_at, trial_reminder_sent_at, created_at, updated_at`

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var s domain.Subscription
	err := row.Scan(
		&s.ID, &s.UserID, &s.Status, &s.TrialEndsAt, &s.CurrentPeriodEnd,
		&s.CancelAtPeriodEnd, &s.StripeCustomerID, &s.StripeSubscriptionID, &s.StripePriceID,
		&s.LastEventAt, &s.TrialReminderSentAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}
	return &s, nil
}

// GetByUserID returns the user's subscription row, or (nil, nil) when absent
func (r *SubscriptionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1`, userID)
	return scanSubscription(row)
}

// GetByCustomerID resolves a row by the billing system's customer id
func (r *SubscriptionRepository) GetByCustomerID(ctx context.Context, customerID string) (*domain.Subscription, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE stripe_customer_id = $1`, customerID)
	return scanSubscription(row)
}

// GetBySubscriptionID resolves a row by the billing system's subscription id
func (r *SubscriptionRepository) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE stripe_subscription_id = $1`, subscriptionID)
	return scanSubscription(row)
}

// Create inserts a new subscription row; a second row for the same user
// is a conflict
func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO subscriptions (id, user_id, status, trial_ends_at, current_period_end,
			cancel_at_period_end, stripe_customer_id, stripe_subscription_id, stripe_price_id,
			last_event_at, trial_reminder_sent_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sub.ID, sub.UserID, sub.Status, sub.TrialEndsAt, sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd, sub.StripeCustomerID, sub.StripeSubscriptionID, sub.StripePriceID,
		sub.LastEventAt, sub.TrialReminderSentAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.NewConflictError("Subscription already exists for user")
		}
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// Update writes all mutable fields of an existing row
func (r *SubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE subscriptions SET status = $2, trial_ends_at = $3, current_period_end = $4,
			cancel_at_period_end = $5, stripe_customer_id = $6, stripe_subscription_id = $7,
			stripe_price_id = $8, last_event_at = $9, trial_reminder_sent_at = $10,
			updated_at = now()
		 WHERE id = $1`,
		sub.ID, sub.Status, sub.TrialEndsAt, sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd, sub.StripeCustomerID, sub.StripeSubscriptionID,
		sub.StripePriceID, sub.LastEventAt, sub.TrialReminderSentAt)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("Subscription")
	}
	return nil
}

// Upsert inserts the row or, when the user already has one, overwrites
// its mutable fields. Keyed on user_id per the one-row-per-user invariant.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *domain.Subscription) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO subscriptions (id, user_id, status, trial_ends_at, current_period_end,
			cancel_at_period_end, stripe_customer_id, stripe_subscription_id, stripe_price_id,
			last_event_at, trial_reminder_sent_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (user_id) DO UPDATE SET
			status = EXCLUDED.status,
			trial_ends_at = EXCLUDED.trial_ends_at,
			current_period_end = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			stripe_price_id = EXCLUDED.stripe_price_id,
			last_event_at = EXCLUDED.last_event_at,
			trial_reminder_sent_at = EXCLUDED.trial_reminder_sent_at,
			updated_at = now()`,
		sub.ID, sub.UserID, sub.Status, sub.TrialEndsAt, sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd, sub.StripeCustomerID, sub.StripeSubscriptionID, sub.StripePriceID,
		sub.LastEventAt, sub.TrialReminderSentAt)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// ListTrialsEndingBetween returns trialing subscriptions whose trial ends
// inside the window and that have not been reminded yet
func (r *SubscriptionRepository) ListTrialsEndingBetween(ctx context.Context, from, to time.Time) ([]*domain.Subscription, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE status = $1 AND trial_ends_at >= $2 AND trial_ends_at < $3
		   AND trial_reminder_sent_at IS NULL
		 ORDER BY trial_ends_at`,
		domain.StatusTrialing, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query ending trials: %w", err)
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
