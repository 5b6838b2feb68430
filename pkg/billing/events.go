package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"

	"github.com/biblegpt/api/pkg/domain"
)

// Event is the tagged variant the webhook payload is decoded into, once,
// at the boundary. Everything the reconciler does not handle becomes an
// IgnoredEvent.
type Event interface {
	event()
}

// SubscriptionChanged covers customer.subscription.updated and
// customer.subscription.deleted. Correlated by customer id.
type SubscriptionChanged struct {
	CustomerID        string
	Status            domain.SubscriptionStatus
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
	OccurredAt        time.Time
}

// InvoicePaid covers invoice.paid. Correlated by subscription id; the
// reconciler re-fetches the subscription for the authoritative period end.
type InvoicePaid struct {
	SubscriptionID string
	OccurredAt     time.Time
}

// InvoicePaymentFailed covers invoice.payment_failed. Correlated by
// subscription id.
type InvoicePaymentFailed struct {
	SubscriptionID string
	OccurredAt     time.Time
}

// IgnoredEvent is any event type the reconciler does not handle, plus
// invoice events not tied to a subscription.
type IgnoredEvent struct {
	Type string
}

func (SubscriptionChanged) event()  {}
func (InvoicePaid) event()          {}
func (InvoicePaymentFailed) event() {}
func (IgnoredEvent) event()         {}

// decodeEvent maps a verified Stripe event onto the variant the
// reconciler consumes.
func decodeEvent(event stripe.Event) (Event, error) {
	occurredAt := time.Unix(event.Created, 0)

	switch event.Type {
	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("failed to unmarshal subscription: %w", err)
		}

		changed := SubscriptionChanged{
			Status:            domain.SubscriptionStatus(sub.Status),
			CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
			OccurredAt:        occurredAt,
		}
		if sub.Customer != nil {
			changed.CustomerID = sub.Customer.ID
		}
		if sub.CurrentPeriodEnd > 0 {
			end := time.Unix(sub.CurrentPeriodEnd, 0)
			changed.CurrentPeriodEnd = &end
		}
		return changed, nil

	case "invoice.paid":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("failed to unmarshal invoice: %w", err)
		}
		if invoice.Subscription == nil || invoice.Subscription.ID == "" {
			// One-off invoice, nothing to reconcile
			return IgnoredEvent{Type: string(event.Type)}, nil
		}
		return InvoicePaid{SubscriptionID: invoice.Subscription.ID, OccurredAt: occurredAt}, nil

	case "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("failed to unmarshal invoice: %w", err)
		}
		if invoice.Subscription == nil || invoice.Subscription.ID == "" {
			return IgnoredEvent{Type: string(event.Type)}, nil
		}
		return InvoicePaymentFailed{SubscriptionID: invoice.Subscription.ID, OccurredAt: occurredAt}, nil

	default:
		return IgnoredEvent{Type: string(event.Type)}, nil
	}
}
