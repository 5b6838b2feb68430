package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/biblegpt/api/pkg/domain"
)

// StripeConfig holds Stripe configuration
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	PriceMonthly  string
	PriceYearly   string
}

// StripeProvider implements Provider against the Stripe API. The API
// client is owned by the provider instance; no package-level key is set.
type StripeProvider struct {
	client        *client.API
	webhookSecret string
}

// NewStripeProvider creates a Stripe-backed billing provider
func NewStripeProvider(cfg *StripeConfig) *StripeProvider {
	sc := &client.API{}
	sc.Init(cfg.SecretKey, nil)

	return &StripeProvider{
		client:        sc,
		webhookSecret: cfg.WebhookSecret,
	}
}

// CreateCustomer creates a Stripe customer keyed by email, with the
// internal user id in metadata for webhook correlation
func (p *StripeProvider) CreateCustomer(ctx context.Context, email string, userID uuid.UUID) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID.String())

	cust, err := p.client.Customers.New(params)
	if err != nil {
		return "", domain.NewProviderError(err)
	}
	return cust.ID, nil
}

// CreateSetupIntent opens a card-collection flow for the customer
func (p *StripeProvider) CreateSetupIntent(ctx context.Context, customerID, priceID string, userID uuid.UUID) (string, error) {
	params := &stripe.SetupIntentParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID.String())
	params.AddMetadata("price_id", priceID)

	intent, err := p.client.SetupIntents.New(params)
	if err != nil {
		return "", domain.NewProviderError(err)
	}
	return intent.ClientSecret, nil
}

// CreateTrialSubscription creates a trialing subscription that defers
// payment collection until the trial ends and saves the collected
// payment method as the default
func (p *StripeProvider) CreateTrialSubscription(ctx context.Context, customerID, priceID string, trialDays int64) (*ProviderSubscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		TrialPeriodDays: stripe.Int64(trialDays),
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
	}
	params.Context = ctx

	sub, err := p.client.Subscriptions.New(params)
	if err != nil {
		return nil, domain.NewProviderError(err)
	}
	return providerSubscription(sub), nil
}

// GetSubscription re-fetches a subscription from Stripe
func (p *StripeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := p.client.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, domain.NewProviderError(err)
	}
	return providerSubscription(sub), nil
}

// CancelAtPeriodEnd flags the Stripe subscription to cancel once the
// current paid period elapses
func (p *StripeProvider) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx

	if _, err := p.client.Subscriptions.Update(subscriptionID, params); err != nil {
		return domain.NewProviderError(err)
	}
	return nil
}

// VerifyEvent checks the Stripe signature on the raw payload and decodes
// the event. Verification happens before any event-type branching.
func (p *StripeProvider) VerifyEvent(payload []byte, signature string) (Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return nil, &domain.DomainError{
			Code:    domain.ErrCodeUnauthorized,
			Message: "Webhook signature verification failed",
			Err:     err,
		}
	}
	return decodeEvent(event)
}

func providerSubscription(sub *stripe.Subscription) *ProviderSubscription {
	ps := &ProviderSubscription{
		ID:                sub.ID,
		Status:            domain.SubscriptionStatus(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.TrialEnd > 0 {
		end := time.Unix(sub.TrialEnd, 0)
		ps.TrialEnd = &end
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0)
		ps.CurrentPeriodEnd = &end
	}
	return ps
}
