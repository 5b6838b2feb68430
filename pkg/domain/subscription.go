package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus mirrors the billing provider's subscription status.
// Only the four values below drive local behavior; anything else the
// provider reports is stored as-is.
type SubscriptionStatus string

const (
	StatusTrialing SubscriptionStatus = "trialing"
	StatusActive   SubscriptionStatus = "active"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
)

// GrantsAccess reports whether the status unlocks gated features.
func (s SubscriptionStatus) GrantsAccess() bool {
	return s == StatusActive || s == StatusTrialing
}

// TrialPeriodDays is the fixed free-trial window.
const TrialPeriodDays = 7

// Subscription is the single source of truth for a user's subscription
// state. Exactly zero or one row per user. Status is written only at
// initial creation (trial) and by the webhook reconciler.
type Subscription struct {
	ID                   uuid.UUID
	UserID               uuid.UUID
	Status               SubscriptionStatus
	TrialEndsAt          *time.Time
	CurrentPeriodEnd     *time.Time
	CancelAtPeriodEnd    bool
	StripeCustomerID     *string
	StripeSubscriptionID *string
	StripePriceID        *string

	// LastEventAt is the provider timestamp of the newest webhook event
	// applied to this row. Stale (out-of-order) events are skipped when
	// their timestamp is older than this watermark.
	LastEventAt *time.Time

	// TrialReminderSentAt marks that the trial-ending email went out,
	// so the daily sweep sends it at most once.
	TrialReminderSentAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTrialSubscription builds the default 7-day trial row provisioned at
// registration or lazily by the access gate.
func NewTrialSubscription(userID uuid.UUID, now time.Time) *Subscription {
	trialEnd := now.AddDate(0, 0, TrialPeriodDays)
	return &Subscription{
		ID:          uuid.New(),
		UserID:      userID,
		Status:      StatusTrialing,
		TrialEndsAt: &trialEnd,
	}
}

// Referral links a referee to the user who referred them. One row per
// referee; RewardGiven flips to true at most once, when the referee's
// subscription first converts to a paid, invoiced state.
type Referral struct {
	ID          uuid.UUID
	ReferrerID  uuid.UUID
	RefereeID   uuid.UUID
	RewardGiven bool
	CreatedAt   time.Time
}

// User is the local profile row created after identity-platform sign-up.
// The ID is the identity platform's user id.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         *string
	AvatarURL    *string
	ReferralCode string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Devotional is the daily devotional content row, the app's simplest
// subscription-gated feature.
type Devotional struct {
	ID        uuid.UUID
	Date      time.Time
	Title     string
	Verse     string
	VerseText string
	Content   string
	Prayer    string
}
