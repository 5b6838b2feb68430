package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biblegpt/api/pkg/auth"
	"github.com/biblegpt/api/pkg/billing"
	"github.com/biblegpt/api/pkg/domain"
	"github.com/biblegpt/api/pkg/logger"
	"github.com/biblegpt/api/pkg/models"
)

type memSubscriptionRepo struct {
	rows map[uuid.UUID]*domain.Subscription
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{rows: make(map[uuid.UUID]*domain.Subscription)}
}

func (m *memSubscriptionRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	return m.rows[userID], nil
}

func (m *memSubscriptionRepo) GetByCustomerID(_ context.Context, customerID string) (*domain.Subscription, error) {
	for _, sub := range m.rows {
		if sub.StripeCustomerID != nil && *sub.StripeCustomerID == customerID {
			return sub, nil
		}
	}
	return nil, nil
}

func (m *memSubscriptionRepo) GetBySubscriptionID(_ context.Context, subscriptionID string) (*domain.Subscription, error) {
	for _, sub := range m.rows {
		if sub.StripeSubscriptionID != nil && *sub.StripeSubscriptionID == subscriptionID {
			return sub, nil
		}
	}
	return nil, nil
}

func (m *memSubscriptionRepo) Create(_ context.Context, sub *domain.Subscription) error {
	if _, ok := m.rows[sub.UserID]; ok {
		return domain.NewConflictError("Subscription already exists")
	}
	m.rows[sub.UserID] = sub
	return nil
}

func (m *memSubscriptionRepo) Update(_ context.Context, sub *domain.Subscription) error {
	m.rows[sub.UserID] = sub
	return nil
}

func (m *memSubscriptionRepo) Upsert(_ context.Context, sub *domain.Subscription) error {
	m.rows[sub.UserID] = sub
	return nil
}

func (m *memSubscriptionRepo) ListTrialsEndingBetween(_ context.Context, _, _ time.Time) ([]*domain.Subscription, error) {
	return nil, nil
}

type memUserRepo struct {
	rows map[uuid.UUID]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{rows: make(map[uuid.UUID]*domain.User)}
}

func (m *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	return m.rows[id], nil
}

func (m *memUserRepo) GetByReferralCode(_ context.Context, code string) (*domain.User, error) {
	for _, u := range m.rows {
		if u.ReferralCode == code {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memUserRepo) Create(_ context.Context, u *domain.User) error {
	m.rows[u.ID] = u
	return nil
}

func (m *memUserRepo) UpdateProfile(_ context.Context, id uuid.UUID, name, avatarURL *string) (*domain.User, error) {
	u := m.rows[id]
	if u == nil {
		return nil, nil
	}
	if name != nil {
		u.Name = name
	}
	if avatarURL != nil {
		u.AvatarURL = avatarURL
	}
	return u, nil
}

func (m *memUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.rows, id)
	return nil
}

type subscriptionFixture struct {
	handler *SubscriptionHandler
	users   *memUserRepo
	subs    *memSubscriptionRepo
	userID  uuid.UUID
}

func newSubscriptionFixture(t *testing.T) *subscriptionFixture {
	t.Helper()

	users := newMemUserRepo()
	subs := newMemSubscriptionRepo()
	user := &domain.User{ID: uuid.New(), Email: "user@example.com", ReferralCode: "ABCD1234"}
	require.NoError(t, users.Create(context.Background(), user))

	cfg := &billing.StripeConfig{
		PriceMonthly: "price_monthly",
		PriceYearly:  "price_yearly",
	}
	svc := billing.NewService(users, subs, &stubProvider{}, nil, nil, cfg, logger.NewNop())

	return &subscriptionFixture{
		handler: NewSubscriptionHandler(svc),
		users:   users,
		subs:    subs,
		userID:  user.ID,
	}
}

func authedContext(t *testing.T, method, target, body string, userID uuid.UUID) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	identity := &auth.Identity{UserID: userID, Email: "user@example.com"}
	req = req.WithContext(auth.WithIdentity(req.Context(), identity))

	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func TestSubscriptionGet_ProvisionsTrial(t *testing.T) {
	f := newSubscriptionFixture(t)

	c, rec := authedContext(t, http.MethodGet, "/api/subscription", "", f.userID)
	require.NoError(t, f.handler.Get(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.SubscriptionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.StatusTrialing), resp.Status)
	assert.True(t, resp.HasAccess)
	require.NotNil(t, resp.TrialEndsAt)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, domain.TrialPeriodDays), *resp.TrialEndsAt, time.Minute)

	// The row now exists; a second call returns the same one
	assert.NotNil(t, f.subs.rows[f.userID])
}

func TestSubscriptionGet_Unauthenticated(t *testing.T) {
	f := newSubscriptionFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/subscription", nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	require.NoError(t, f.handler.Get(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubscriptionCreate_StartsCheckout(t *testing.T) {
	f := newSubscriptionFixture(t)

	c, rec := authedContext(t, http.MethodPost, "/api/subscription", `{"priceId":"price_monthly"}`, f.userID)
	require.NoError(t, f.handler.Create(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.CheckoutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "seti_secret_test", resp.ClientSecret)
	assert.Equal(t, "cus_test", resp.CustomerID)
	assert.Equal(t, "sub_test", resp.SubscriptionID)
}

func TestSubscriptionCreate_RejectsUnknownPrice(t *testing.T) {
	f := newSubscriptionFixture(t)

	c, rec := authedContext(t, http.MethodPost, "/api/subscription", `{"priceId":"price_lifetime"}`, f.userID)
	require.NoError(t, f.handler.Create(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubscriptionCreate_RejectsMissingPrice(t *testing.T) {
	f := newSubscriptionFixture(t)

	c, rec := authedContext(t, http.MethodPost, "/api/subscription", `{}`, f.userID)
	require.NoError(t, f.handler.Create(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubscriptionCancel_NoSubscription(t *testing.T) {
	f := newSubscriptionFixture(t)

	c, rec := authedContext(t, http.MethodDelete, "/api/subscription", "", f.userID)
	require.NoError(t, f.handler.Cancel(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubscriptionCancel_FlagsPeriodEnd(t *testing.T) {
	f := newSubscriptionFixture(t)

	customerID := "cus_test"
	subscriptionID := "sub_test"
	f.subs.rows[f.userID] = &domain.Subscription{
		ID:                   uuid.New(),
		UserID:               f.userID,
		Status:               domain.StatusActive,
		StripeCustomerID:     &customerID,
		StripeSubscriptionID: &subscriptionID,
	}

	c, rec := authedContext(t, http.MethodDelete, "/api/subscription", "", f.userID)
	require.NoError(t, f.handler.Cancel(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.SubscriptionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.CancelAtPeriodEnd)
	assert.Equal(t, string(domain.StatusActive), resp.Status)
}
