package billing

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/biblegpt/api/pkg/domain"
)

func stripeEvent(eventType string, created int64, object string) stripe.Event {
	return stripe.Event{
		Type:    stripe.EventType(eventType),
		Created: created,
		Data:    &stripe.EventData{Raw: json.RawMessage(object)},
	}
}

func TestDecodeEvent_SubscriptionUpdated(t *testing.T) {
	created := time.Now().Unix()
	periodEnd := time.Now().AddDate(0, 1, 0).Unix()

	object := `{
		"id": "sub_123",
		"customer": "cus_123",
		"status": "active",
		"cancel_at_period_end": true,
		"current_period_end": ` + strconv.FormatInt(periodEnd, 10) + `
	}`

	event, err := decodeEvent(stripeEvent("customer.subscription.updated", created, object))
	require.NoError(t, err)

	changed, ok := event.(SubscriptionChanged)
	require.True(t, ok)
	assert.Equal(t, "cus_123", changed.CustomerID)
	assert.Equal(t, domain.StatusActive, changed.Status)
	assert.True(t, changed.CancelAtPeriodEnd)
	require.NotNil(t, changed.CurrentPeriodEnd)
	assert.Equal(t, periodEnd, changed.CurrentPeriodEnd.Unix())
	assert.Equal(t, created, changed.OccurredAt.Unix())
}

func TestDecodeEvent_SubscriptionDeleted(t *testing.T) {
	object := `{"id": "sub_123", "customer": "cus_123", "status": "canceled"}`

	event, err := decodeEvent(stripeEvent("customer.subscription.deleted", time.Now().Unix(), object))
	require.NoError(t, err)

	changed, ok := event.(SubscriptionChanged)
	require.True(t, ok)
	assert.Equal(t, domain.StatusCanceled, changed.Status)
	assert.Nil(t, changed.CurrentPeriodEnd)
}

func TestDecodeEvent_InvoicePaid(t *testing.T) {
	object := `{"id": "in_123", "subscription": "sub_123"}`

	event, err := decodeEvent(stripeEvent("invoice.paid", time.Now().Unix(), object))
	require.NoError(t, err)

	paid, ok := event.(InvoicePaid)
	require.True(t, ok)
	assert.Equal(t, "sub_123", paid.SubscriptionID)
}

func TestDecodeEvent_OneOffInvoiceIgnored(t *testing.T) {
	object := `{"id": "in_123"}`

	event, err := decodeEvent(stripeEvent("invoice.paid", time.Now().Unix(), object))
	require.NoError(t, err)

	ignored, ok := event.(IgnoredEvent)
	require.True(t, ok)
	assert.Equal(t, "invoice.paid", ignored.Type)
}

func TestDecodeEvent_InvoicePaymentFailed(t *testing.T) {
	object := `{"id": "in_123", "subscription": "sub_123"}`

	event, err := decodeEvent(stripeEvent("invoice.payment_failed", time.Now().Unix(), object))
	require.NoError(t, err)

	failed, ok := event.(InvoicePaymentFailed)
	require.True(t, ok)
	assert.Equal(t, "sub_123", failed.SubscriptionID)
}

func TestDecodeEvent_UnhandledTypesIgnored(t *testing.T) {
	for _, eventType := range []string{
		"payment_intent.succeeded",
		"charge.refunded",
		"customer.created",
		"setup_intent.succeeded",
	} {
		event, err := decodeEvent(stripeEvent(eventType, time.Now().Unix(), `{}`))
		require.NoError(t, err)

		ignored, ok := event.(IgnoredEvent)
		require.True(t, ok, "expected %s to be ignored", eventType)
		assert.Equal(t, eventType, ignored.Type)
	}
}

func TestDecodeEvent_MalformedObject(t *testing.T) {
	_, err := decodeEvent(stripeEvent("customer.subscription.updated", time.Now().Unix(), `{"status": 42`))
	require.Error(t, err)
}
