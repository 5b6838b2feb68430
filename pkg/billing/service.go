package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/biblegpt/api/pkg/domain"
	"github.com/biblegpt/api/pkg/logger"
	"github.com/biblegpt/api/pkg/metrics"
)

// CheckoutSession is what the frontend needs to finish a checkout:
// the setup intent's client secret plus the provider ids just created.
type CheckoutSession struct {
	SetupIntentClientSecret string
	CustomerID              string
	SubscriptionID          string
}

// Service owns the subscription lifecycle on the application side:
// checkout initiation, cancellation, and lazy trial provisioning.
type Service struct {
	users    domain.UserRepository
	subs     domain.SubscriptionRepository
	provider Provider
	cache    domain.CacheRepository
	metrics  *metrics.Metrics
	cfg      *StripeConfig
	log      logger.Logger
}

// NewService creates a new billing service
func NewService(
	users domain.UserRepository,
	subs domain.SubscriptionRepository,
	provider Provider,
	cache domain.CacheRepository,
	m *metrics.Metrics,
	cfg *StripeConfig,
	log logger.Logger,
) *Service {
	return &Service{
		users:    users,
		subs:     subs,
		provider: provider,
		cache:    cache,
		metrics:  m,
		cfg:      cfg,
		log:      log,
	}
}

// StatusCacheKey is the cache key holding a user's gate status
func StatusCacheKey(userID uuid.UUID) string {
	return "sub:status:" + userID.String()
}

// planForPrice maps a price id onto its plan name. Unknown prices are
// rejected before anything is created on the provider side.
func (s *Service) planForPrice(priceID string) (string, bool) {
	switch priceID {
	case s.cfg.PriceMonthly:
		return "monthly", true
	case s.cfg.PriceYearly:
		return "yearly", true
	default:
		return "", false
	}
}

// CreateSubscription starts the checkout flow for a user: a setup intent
// to collect a card, plus a trialing subscription that will bill against
// the collected card once the trial ends. Refused while the user already
// has a live provider subscription.
func (s *Service) CreateSubscription(ctx context.Context, userID uuid.UUID, priceID string) (*CheckoutSession, error) {
	plan, ok := s.planForPrice(priceID)
	if !ok {
		return nil, domain.NewValidationError("Invalid price id")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.NewNotFoundError("User")
	}

	existing, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.StripeSubscriptionID != nil && existing.Status.GrantsAccess() {
		return nil, domain.NewConflictError("Subscription already exists")
	}

	var customerID string
	if existing != nil && existing.StripeCustomerID != nil {
		customerID = *existing.StripeCustomerID
	} else {
		customerID, err = s.provider.CreateCustomer(ctx, user.Email, userID)
		if err != nil {
			return nil, err
		}
	}

	clientSecret, err := s.provider.CreateSetupIntent(ctx, customerID, priceID, userID)
	if err != nil {
		return nil, err
	}

	providerSub, err := s.provider.CreateTrialSubscription(ctx, customerID, priceID, domain.TrialPeriodDays)
	if err != nil {
		return nil, err
	}

	sub := existing
	if sub == nil {
		sub = domain.NewTrialSubscription(userID, time.Now().UTC())
	}
	sub.Status = providerSub.Status
	sub.TrialEndsAt = providerSub.TrialEnd
	sub.CurrentPeriodEnd = providerSub.CurrentPeriodEnd
	sub.CancelAtPeriodEnd = false
	sub.StripeCustomerID = &customerID
	sub.StripeSubscriptionID = &providerSub.ID
	sub.StripePriceID = &priceID

	if err := s.subs.Upsert(ctx, sub); err != nil {
		return nil, err
	}

	s.invalidateStatus(ctx, userID)
	s.metrics.RecordCheckoutStarted(plan)
	s.log.Info("checkout started", "user_id", userID, "plan", plan, "subscription_id", providerSub.ID)

	return &CheckoutSession{
		SetupIntentClientSecret: clientSecret,
		CustomerID:              customerID,
		SubscriptionID:          providerSub.ID,
	}, nil
}

// GetForUser returns the user's subscription row, or (nil, nil)
func (s *Service) GetForUser(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	return s.subs.GetByUserID(ctx, userID)
}

// GetOrProvision returns the user's subscription, creating the default
// 7-day trial row on first access. A concurrent create by another
// request is not an error; the winner's row is re-read and returned.
func (s *Service) GetOrProvision(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		return sub, nil
	}

	sub = domain.NewTrialSubscription(userID, time.Now().UTC())
	if err := s.subs.Create(ctx, sub); err != nil {
		if domain.IsConflict(err) {
			return s.subs.GetByUserID(ctx, userID)
		}
		return nil, err
	}

	s.metrics.RecordTrialProvisioned()
	s.log.Info("trial provisioned", "user_id", userID, "trial_ends_at", sub.TrialEndsAt)
	return sub, nil
}

// Cancel flags the subscription to end at the current period boundary.
// Access continues until the provider reports the terminal transition
// via webhook.
func (s *Service) Cancel(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil || sub.StripeSubscriptionID == nil {
		return nil, domain.NewBadRequestError("No active subscription to cancel")
	}

	if err := s.provider.CancelAtPeriodEnd(ctx, *sub.StripeSubscriptionID); err != nil {
		return nil, err
	}

	sub.CancelAtPeriodEnd = true
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.invalidateStatus(ctx, userID)
	s.log.Info("cancellation scheduled", "user_id", userID, "subscription_id", *sub.StripeSubscriptionID)
	return sub, nil
}

func (s *Service) invalidateStatus(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, StatusCacheKey(userID)); err != nil {
		s.log.Warn(fmt.Sprintf("failed to invalidate status cache: %v", err), "user_id", userID)
	}
}
