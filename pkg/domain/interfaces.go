package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SubscriptionRepository defines data access for subscription rows.
// Lookups return (nil, nil) when no row matches — absence is a normal
// outcome, never an error. Create on an existing user returns a conflict;
// callers should read-then-create rather than blind-insert.
type SubscriptionRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	GetByCustomerID(ctx context.Context, customerID string) (*Subscription, error)
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (*Subscription, error)
	Create(ctx context.Context, sub *Subscription) error
	Update(ctx context.Context, sub *Subscription) error
	Upsert(ctx context.Context, sub *Subscription) error
	ListTrialsEndingBetween(ctx context.Context, from, to time.Time) ([]*Subscription, error)
}

// ReferralRepository defines data access for referral rows.
type ReferralRepository interface {
	GetByRefereeID(ctx context.Context, refereeID uuid.UUID) (*Referral, error)
	ListByReferrerID(ctx context.Context, referrerID uuid.UUID) ([]*Referral, error)
	Create(ctx context.Context, ref *Referral) error
	// MarkRewardGiven flips reward_given to true only if it is still false,
	// returning whether this call performed the flip.
	MarkRewardGiven(ctx context.Context, id uuid.UUID) (bool, error)
}

// UserRepository defines data access for user profile rows.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByReferralCode(ctx context.Context, code string) (*User, error)
	Create(ctx context.Context, u *User) error
	UpdateProfile(ctx context.Context, id uuid.UUID, name, avatarURL *string) (*User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// DevotionalRepository defines data access for devotional content.
type DevotionalRepository interface {
	GetByDate(ctx context.Context, date time.Time) (*Devotional, error)
}

// CacheRepository defines caching operations
type CacheRepository interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// EmailService defines email notification operations
type EmailService interface {
	SendPaymentFailedEmail(to, name string) error
	SendTrialEndingEmail(to, name string, trialEndsAt time.Time) error
}
