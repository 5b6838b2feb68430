package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/biblegpt/api/pkg/domain"
)

// In-memory doubles for the repositories and the billing provider.
// Rows are copied on the way in and out so tests observe only what
// went through the interface.

type fakeSubscriptionRepo struct {
	rows map[uuid.UUID]*domain.Subscription

	createErr error
	// missFirstGet makes the first GetByUserID report no row, simulating
	// a concurrent insert landing between a read and a create
	missFirstGet bool
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{rows: make(map[uuid.UUID]*domain.Subscription)}
}

func cloneSub(sub *domain.Subscription) *domain.Subscription {
	c := *sub
	return &c
}

func (f *fakeSubscriptionRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	if f.missFirstGet {
		f.missFirstGet = false
		return nil, nil
	}
	if sub, ok := f.rows[userID]; ok {
		return cloneSub(sub), nil
	}
	return nil, nil
}

func (f *fakeSubscriptionRepo) GetByCustomerID(_ context.Context, customerID string) (*domain.Subscription, error) {
	for _, sub := range f.rows {
		if sub.StripeCustomerID != nil && *sub.StripeCustomerID == customerID {
			return cloneSub(sub), nil
		}
	}
	return nil, nil
}

func (f *fakeSubscriptionRepo) GetBySubscriptionID(_ context.Context, subscriptionID string) (*domain.Subscription, error) {
	for _, sub := range f.rows {
		if sub.StripeSubscriptionID != nil && *sub.StripeSubscriptionID == subscriptionID {
			return cloneSub(sub), nil
		}
	}
	return nil, nil
}

func (f *fakeSubscriptionRepo) Create(_ context.Context, sub *domain.Subscription) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.rows[sub.UserID]; ok {
		return domain.NewConflictError("Subscription already exists")
	}
	f.rows[sub.UserID] = cloneSub(sub)
	return nil
}

func (f *fakeSubscriptionRepo) Update(_ context.Context, sub *domain.Subscription) error {
	if _, ok := f.rows[sub.UserID]; !ok {
		return domain.NewNotFoundError("Subscription")
	}
	f.rows[sub.UserID] = cloneSub(sub)
	return nil
}

func (f *fakeSubscriptionRepo) Upsert(_ context.Context, sub *domain.Subscription) error {
	f.rows[sub.UserID] = cloneSub(sub)
	return nil
}

func (f *fakeSubscriptionRepo) ListTrialsEndingBetween(_ context.Context, from, to time.Time) ([]*domain.Subscription, error) {
	var out []*domain.Subscription
	for _, sub := range f.rows {
		if sub.Status != domain.StatusTrialing || sub.TrialEndsAt == nil || sub.TrialReminderSentAt != nil {
			continue
		}
		// Inclusive lower bound, matching the repository's >= from
		if !sub.TrialEndsAt.Before(from) && sub.TrialEndsAt.Before(to) {
			out = append(out, cloneSub(sub))
		}
	}
	return out, nil
}

type fakeReferralRepo struct {
	rows map[uuid.UUID]*domain.Referral // keyed by referee

	rewardFlips int
}

func newFakeReferralRepo() *fakeReferralRepo {
	return &fakeReferralRepo{rows: make(map[uuid.UUID]*domain.Referral)}
}

func (f *fakeReferralRepo) GetByRefereeID(_ context.Context, refereeID uuid.UUID) (*domain.Referral, error) {
	if ref, ok := f.rows[refereeID]; ok {
		c := *ref
		return &c, nil
	}
	return nil, nil
}

func (f *fakeReferralRepo) ListByReferrerID(_ context.Context, referrerID uuid.UUID) ([]*domain.Referral, error) {
	var out []*domain.Referral
	for _, ref := range f.rows {
		if ref.ReferrerID == referrerID {
			c := *ref
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeReferralRepo) Create(_ context.Context, ref *domain.Referral) error {
	if _, ok := f.rows[ref.RefereeID]; ok {
		return domain.NewConflictError("Referral already applied")
	}
	c := *ref
	f.rows[ref.RefereeID] = &c
	return nil
}

func (f *fakeReferralRepo) MarkRewardGiven(_ context.Context, id uuid.UUID) (bool, error) {
	for _, ref := range f.rows {
		if ref.ID == id {
			if ref.RewardGiven {
				return false, nil
			}
			ref.RewardGiven = true
			f.rewardFlips++
			return true, nil
		}
	}
	return false, nil
}

type fakeUserRepo struct {
	rows map[uuid.UUID]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{rows: make(map[uuid.UUID]*domain.User)}
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	if u, ok := f.rows[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (f *fakeUserRepo) GetByReferralCode(_ context.Context, code string) (*domain.User, error) {
	for _, u := range f.rows {
		if u.ReferralCode == code {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) Create(_ context.Context, u *domain.User) error {
	if _, ok := f.rows[u.ID]; ok {
		return domain.NewConflictError("User already exists")
	}
	c := *u
	f.rows[u.ID] = &c
	return nil
}

func (f *fakeUserRepo) UpdateProfile(_ context.Context, id uuid.UUID, name, avatarURL *string) (*domain.User, error) {
	u, ok := f.rows[id]
	if !ok {
		return nil, domain.NewNotFoundError("User")
	}
	if name != nil {
		u.Name = name
	}
	if avatarURL != nil {
		u.AvatarURL = avatarURL
	}
	c := *u
	return &c, nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.rows[id]; !ok {
		return domain.NewNotFoundError("User")
	}
	delete(f.rows, id)
	return nil
}

// fakeProvider records every call so tests can assert exactly what was
// (or was not) created on the provider side.
type fakeProvider struct {
	customerCalls int
	setupCalls    int
	subCalls      int
	cancelCalls   []string
	getCalls      int

	subscription *ProviderSubscription
	getErr       error

	verifyEvent Event
	verifyErr   error
}

func (f *fakeProvider) CreateCustomer(_ context.Context, _ string, _ uuid.UUID) (string, error) {
	f.customerCalls++
	return "cus_test", nil
}

func (f *fakeProvider) CreateSetupIntent(_ context.Context, _, _ string, _ uuid.UUID) (string, error) {
	f.setupCalls++
	return "seti_secret_test", nil
}

func (f *fakeProvider) CreateTrialSubscription(_ context.Context, _, _ string, trialDays int64) (*ProviderSubscription, error) {
	f.subCalls++
	if f.subscription != nil {
		return f.subscription, nil
	}
	trialEnd := time.Now().UTC().AddDate(0, 0, int(trialDays))
	return &ProviderSubscription{
		ID:       "sub_test",
		Status:   domain.StatusTrialing,
		TrialEnd: &trialEnd,
	}, nil
}

func (f *fakeProvider) GetSubscription(_ context.Context, _ string) (*ProviderSubscription, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.subscription, nil
}

func (f *fakeProvider) CancelAtPeriodEnd(_ context.Context, subscriptionID string) error {
	f.cancelCalls = append(f.cancelCalls, subscriptionID)
	return nil
}

func (f *fakeProvider) VerifyEvent(_ []byte, _ string) (Event, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.verifyEvent, nil
}

type fakeCache struct {
	store   map[string]string
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: make(map[string]string)}
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.store[key] = fmt.Sprint(value)
	return nil
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.store[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.store, key)
		f.deleted = append(f.deleted, key)
	}
	return nil
}

func (f *fakeCache) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.store[key]
	return ok, nil
}

func (f *fakeCache) Close() error { return nil }

type fakeEmail struct {
	paymentFailed []string
	trialEnding   []string
}

func (f *fakeEmail) SendPaymentFailedEmail(to, _ string) error {
	f.paymentFailed = append(f.paymentFailed, to)
	return nil
}

func (f *fakeEmail) SendTrialEndingEmail(to, _ string, _ time.Time) error {
	f.trialEnding = append(f.trialEnding, to)
	return nil
}
