package billing

import (
	"context"

	"github.com/biblegpt/api/pkg/domain"
	"github.com/biblegpt/api/pkg/logger"
	"github.com/biblegpt/api/pkg/metrics"
)

// Reconciler applies verified billing webhook events to the local
// subscription state. The provider is the source of truth: events are
// applied as reported, except that out-of-order subscription updates
// older than the row's watermark are skipped.
type Reconciler struct {
	subs      domain.SubscriptionRepository
	referrals domain.ReferralRepository
	users     domain.UserRepository
	provider  Provider
	email     domain.EmailService
	cache     domain.CacheRepository
	metrics   *metrics.Metrics
	log       logger.Logger
}

// NewReconciler creates a new webhook reconciler
func NewReconciler(
	subs domain.SubscriptionRepository,
	referrals domain.ReferralRepository,
	users domain.UserRepository,
	provider Provider,
	email domain.EmailService,
	cache domain.CacheRepository,
	m *metrics.Metrics,
	log logger.Logger,
) *Reconciler {
	return &Reconciler{
		subs:      subs,
		referrals: referrals,
		users:     users,
		provider:  provider,
		email:     email,
		cache:     cache,
		metrics:   m,
		log:       log,
	}
}

// HandleWebhook verifies the raw payload's signature, decodes the event
// and applies it. Events that reference no locally known subscription
// are dropped without error; the provider must never be told to retry
// something that cannot succeed.
func (r *Reconciler) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := r.provider.VerifyEvent(payload, signature)
	if err != nil {
		return err
	}

	switch e := event.(type) {
	case SubscriptionChanged:
		return r.applySubscriptionChanged(ctx, e)
	case InvoicePaid:
		return r.applyInvoicePaid(ctx, e)
	case InvoicePaymentFailed:
		return r.applyInvoicePaymentFailed(ctx, e)
	case IgnoredEvent:
		r.metrics.RecordWebhookEvent(e.Type, "skipped")
		return nil
	default:
		return nil
	}
}

func (r *Reconciler) applySubscriptionChanged(ctx context.Context, e SubscriptionChanged) error {
	const eventType = "subscription_changed"

	sub, err := r.subs.GetByCustomerID(ctx, e.CustomerID)
	if err != nil {
		r.metrics.RecordWebhookEvent(eventType, "error")
		return err
	}
	if sub == nil {
		r.metrics.RecordWebhookEvent(eventType, "dropped")
		r.log.Debug("webhook for unknown customer dropped", "customer_id", e.CustomerID)
		return nil
	}

	// Skip events delivered behind the watermark already applied to
	// this row
	if sub.LastEventAt != nil && e.OccurredAt.Before(*sub.LastEventAt) {
		r.metrics.RecordWebhookEvent(eventType, "skipped")
		r.log.Debug("stale webhook skipped",
			"customer_id", e.CustomerID,
			"event_at", e.OccurredAt,
			"watermark", *sub.LastEventAt)
		return nil
	}

	sub.Status = e.Status
	sub.CurrentPeriodEnd = e.CurrentPeriodEnd
	sub.CancelAtPeriodEnd = e.CancelAtPeriodEnd
	sub.LastEventAt = &e.OccurredAt

	if err := r.subs.Update(ctx, sub); err != nil {
		r.metrics.RecordWebhookEvent(eventType, "error")
		return err
	}

	r.invalidateStatus(ctx, sub)
	r.metrics.RecordWebhookEvent(eventType, "applied")
	r.log.Info("subscription updated from webhook",
		"user_id", sub.UserID, "status", sub.Status)
	return nil
}

func (r *Reconciler) applyInvoicePaid(ctx context.Context, e InvoicePaid) error {
	const eventType = "invoice_paid"

	sub, err := r.subs.GetBySubscriptionID(ctx, e.SubscriptionID)
	if err != nil {
		r.metrics.RecordWebhookEvent(eventType, "error")
		return err
	}
	if sub == nil {
		r.metrics.RecordWebhookEvent(eventType, "dropped")
		r.log.Debug("invoice for unknown subscription dropped", "subscription_id", e.SubscriptionID)
		return nil
	}

	// The invoice payload carries no period boundary we trust; re-fetch
	// the subscription for the authoritative one. If the provider is
	// unreachable the event is dropped and the next invoice catches up.
	providerSub, err := r.provider.GetSubscription(ctx, e.SubscriptionID)
	if err != nil {
		r.metrics.RecordWebhookEvent(eventType, "error")
		r.log.Warn("failed to re-fetch subscription after invoice.paid, dropping event",
			"subscription_id", e.SubscriptionID, "error", err)
		return nil
	}

	sub.Status = domain.StatusActive
	sub.CurrentPeriodEnd = providerSub.CurrentPeriodEnd
	sub.CancelAtPeriodEnd = providerSub.CancelAtPeriodEnd
	sub.LastEventAt = &e.OccurredAt

	if err := r.subs.Update(ctx, sub); err != nil {
		r.metrics.RecordWebhookEvent(eventType, "error")
		return err
	}

	r.invalidateStatus(ctx, sub)
	r.metrics.RecordWebhookEvent(eventType, "applied")
	r.log.Info("subscription activated by paid invoice",
		"user_id", sub.UserID, "subscription_id", e.SubscriptionID)

	return r.rewardReferral(ctx, sub)
}

func (r *Reconciler) applyInvoicePaymentFailed(ctx context.Context, e InvoicePaymentFailed) error {
	const eventType = "invoice_payment_failed"

	sub, err := r.subs.GetBySubscriptionID(ctx, e.SubscriptionID)
	if err != nil {
		r.metrics.RecordWebhookEvent(eventType, "error")
		return err
	}
	if sub == nil {
		r.metrics.RecordWebhookEvent(eventType, "dropped")
		return nil
	}

	sub.Status = domain.StatusPastDue
	sub.LastEventAt = &e.OccurredAt

	if err := r.subs.Update(ctx, sub); err != nil {
		r.metrics.RecordWebhookEvent(eventType, "error")
		return err
	}

	r.invalidateStatus(ctx, sub)
	r.metrics.RecordWebhookEvent(eventType, "applied")
	r.log.Info("subscription past due",
		"user_id", sub.UserID, "subscription_id", e.SubscriptionID)

	r.notifyPaymentFailed(ctx, sub)
	return nil
}

// rewardReferral grants the referrer's reward the first time the
// referee's subscription is paid. The conditional flip in the
// repository makes this idempotent across redelivered invoices.
func (r *Reconciler) rewardReferral(ctx context.Context, sub *domain.Subscription) error {
	ref, err := r.referrals.GetByRefereeID(ctx, sub.UserID)
	if err != nil {
		return err
	}
	if ref == nil || ref.RewardGiven {
		return nil
	}

	flipped, err := r.referrals.MarkRewardGiven(ctx, ref.ID)
	if err != nil {
		return err
	}
	if flipped {
		r.metrics.RecordReferralRewarded()
		r.log.Info("referral reward granted",
			"referrer_id", ref.ReferrerID, "referee_id", ref.RefereeID)
	}
	return nil
}

func (r *Reconciler) notifyPaymentFailed(ctx context.Context, sub *domain.Subscription) {
	if r.email == nil {
		return
	}
	user, err := r.users.GetByID(ctx, sub.UserID)
	if err != nil || user == nil {
		return
	}
	name := ""
	if user.Name != nil {
		name = *user.Name
	}
	if err := r.email.SendPaymentFailedEmail(user.Email, name); err != nil {
		r.log.Warn("failed to send payment-failed email", "user_id", sub.UserID, "error", err)
	}
}

func (r *Reconciler) invalidateStatus(ctx context.Context, sub *domain.Subscription) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, StatusCacheKey(sub.UserID)); err != nil {
		r.log.Warn("failed to invalidate status cache", "user_id", sub.UserID, "error", err)
	}
}
