package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/biblegpt/api/pkg/domain"
)

// ProviderSubscription is the slice of the billing system's subscription
// object this service cares about.
type ProviderSubscription struct {
	ID                string
	Status            domain.SubscriptionStatus
	TrialEnd          *time.Time
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
}

// Provider abstracts the external billing system so the checkout
// initiator and webhook reconciler can be exercised against a test
// double. The only production implementation is Stripe.
type Provider interface {
	// CreateCustomer creates a billing customer keyed by email, tagged
	// with the internal user id for webhook correlation.
	CreateCustomer(ctx context.Context, email string, userID uuid.UUID) (string, error)

	// CreateSetupIntent opens a payment-method collection flow scoped to
	// the customer and returns its client secret.
	CreateSetupIntent(ctx context.Context, customerID, priceID string, userID uuid.UUID) (string, error)

	// CreateTrialSubscription creates a trialing subscription on the
	// given price, deferring payment collection until the trial ends.
	CreateTrialSubscription(ctx context.Context, customerID, priceID string, trialDays int64) (*ProviderSubscription, error)

	// GetSubscription re-fetches a subscription for its authoritative
	// period boundary.
	GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error)

	// CancelAtPeriodEnd requests cancellation at the end of the current
	// paid period.
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error

	// VerifyEvent checks the signature on a raw webhook payload and
	// decodes it into a typed event. The raw body must be passed
	// unmodified; any re-encoding invalidates the signature.
	VerifyEvent(payload []byte, signature string) (Event, error)
}
