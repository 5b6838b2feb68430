package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biblegpt/api/pkg/domain"
	"github.com/biblegpt/api/pkg/logger"
)

// Drives one referred user's subscription row through the whole journey:
// lazy trial, monthly checkout, first paid invoice (activation + referral
// reward), failed renewal, and the provider's terminal cancellation.
func TestSubscriptionLifecycle(t *testing.T) {
	users := newFakeUserRepo()
	subs := newFakeSubscriptionRepo()
	referrals := newFakeReferralRepo()
	provider := &fakeProvider{}
	cache := newFakeCache()
	email := &fakeEmail{}
	log := logger.NewNop()

	cfg := &StripeConfig{PriceMonthly: "price_monthly", PriceYearly: "price_yearly"}
	svc := NewService(users, subs, provider, cache, nil, cfg, log)
	rec := NewReconciler(subs, referrals, users, provider, email, cache, nil, log)

	ctx := context.Background()
	base := time.Now().UTC()

	referrer := &domain.User{ID: uuid.New(), Email: "friend@example.com", ReferralCode: "FRIEND01"}
	user := &domain.User{ID: uuid.New(), Email: "grace@example.com", ReferralCode: "GRACE123"}
	users.rows[referrer.ID] = referrer
	users.rows[user.ID] = user
	referrals.rows[user.ID] = &domain.Referral{
		ID:         uuid.New(),
		ReferrerID: referrer.ID,
		RefereeID:  user.ID,
	}

	// First touch provisions the 7-day trial
	sub, err := svc.GetOrProvision(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTrialing, sub.Status)
	require.NotNil(t, sub.TrialEndsAt)
	assert.WithinDuration(t, base.AddDate(0, 0, domain.TrialPeriodDays), *sub.TrialEndsAt, 5*time.Second)
	assert.True(t, sub.Status.GrantsAccess())

	// Checkout of the monthly plan attaches the provider identifiers
	session, err := svc.CreateSubscription(ctx, user.ID, "price_monthly")
	require.NoError(t, err)
	assert.Equal(t, "cus_test", session.CustomerID)
	assert.Equal(t, "sub_test", session.SubscriptionID)

	row, _ := subs.GetByUserID(ctx, user.ID)
	assert.Equal(t, domain.StatusTrialing, row.Status)
	require.NotNil(t, row.StripePriceID)
	assert.Equal(t, "price_monthly", *row.StripePriceID)

	// The trial's first invoice pays: active, authoritative period end,
	// and the referrer's reward granted
	periodEnd := base.AddDate(0, 1, 0)
	provider.subscription = &ProviderSubscription{
		ID:               "sub_test",
		Status:           domain.StatusActive,
		CurrentPeriodEnd: &periodEnd,
	}
	provider.verifyEvent = InvoicePaid{SubscriptionID: "sub_test", OccurredAt: base.Add(time.Minute)}
	require.NoError(t, rec.HandleWebhook(ctx, []byte("{}"), "sig"))

	row, _ = subs.GetByUserID(ctx, user.ID)
	assert.Equal(t, domain.StatusActive, row.Status)
	require.NotNil(t, row.CurrentPeriodEnd)
	assert.Equal(t, periodEnd.Unix(), row.CurrentPeriodEnd.Unix())
	assert.Equal(t, 1, referrals.rewardFlips)

	// The same invoice delivered again changes nothing
	require.NoError(t, rec.HandleWebhook(ctx, []byte("{}"), "sig"))
	assert.Equal(t, 1, referrals.rewardFlips)

	// A renewal payment fails: past due, access lost, user notified
	provider.verifyEvent = InvoicePaymentFailed{SubscriptionID: "sub_test", OccurredAt: base.Add(2 * time.Minute)}
	require.NoError(t, rec.HandleWebhook(ctx, []byte("{}"), "sig"))

	row, _ = subs.GetByUserID(ctx, user.ID)
	assert.Equal(t, domain.StatusPastDue, row.Status)
	assert.False(t, row.Status.GrantsAccess())
	assert.Equal(t, []string{"grace@example.com"}, email.paymentFailed)

	// The provider gives up and cancels the subscription
	provider.verifyEvent = SubscriptionChanged{
		CustomerID: "cus_test",
		Status:     domain.StatusCanceled,
		OccurredAt: base.Add(3 * time.Minute),
	}
	require.NoError(t, rec.HandleWebhook(ctx, []byte("{}"), "sig"))

	row, _ = subs.GetByUserID(ctx, user.ID)
	assert.Equal(t, domain.StatusCanceled, row.Status)
	assert.False(t, row.Status.GrantsAccess())

	// Every transition invalidated the cached gate decision, and the
	// reward was never granted twice
	assert.Contains(t, cache.deleted, StatusCacheKey(user.ID))
	assert.Equal(t, 1, referrals.rewardFlips)
}
