package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/biblegpt/api/pkg/billing"
	"github.com/biblegpt/api/pkg/domain"
	"github.com/biblegpt/api/pkg/logger"
	"github.com/biblegpt/api/pkg/metrics"
	"github.com/biblegpt/api/pkg/referral"
)

// Service manages the local account row that mirrors an identity
// platform user: registration after sign-up, profile reads and
// updates, and deletion.
type Service struct {
	users     domain.UserRepository
	subs      domain.SubscriptionRepository
	referrals *referral.Service
	billing   *billing.Service
	metrics   *metrics.Metrics
	log       logger.Logger
}

// NewService creates a new account service
func NewService(
	users domain.UserRepository,
	subs domain.SubscriptionRepository,
	referrals *referral.Service,
	billingSvc *billing.Service,
	m *metrics.Metrics,
	log logger.Logger,
) *Service {
	return &Service{
		users:     users,
		subs:      subs,
		referrals: referrals,
		billing:   billingSvc,
		metrics:   m,
		log:       log,
	}
}

// generateReferralCode returns an 8-character uppercase hex code
func generateReferralCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// Register creates the local user row after identity-platform sign-up
// and eagerly provisions the 7-day trial. Registering an id that
// already has a row returns that row; the frontend may call this more
// than once. An optional referral code is applied best-effort.
func (s *Service) Register(ctx context.Context, id uuid.UUID, email string, name *string, referralCode string) (*domain.User, error) {
	existing, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	code, err := generateReferralCode()
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	user := &domain.User{
		ID:           id,
		Email:        email,
		Name:         name,
		ReferralCode: code,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if domain.IsConflict(err) {
			// Lost a race with a concurrent register for the same id
			if winner, err := s.users.GetByID(ctx, id); err == nil && winner != nil {
				return winner, nil
			}
		}
		return nil, err
	}

	trial := domain.NewTrialSubscription(id, time.Now().UTC())
	if err := s.subs.Create(ctx, trial); err != nil && !domain.IsConflict(err) {
		s.log.Error("failed to provision trial at registration", "user_id", id, "error", err)
	}

	if referralCode != "" {
		if _, err := s.referrals.Apply(ctx, id, referralCode); err != nil {
			s.log.Warn("referral code not applied at registration",
				"user_id", id, "code", referralCode, "error", err)
		}
	}

	s.metrics.RecordUserRegistered()
	s.log.Info("user registered", "user_id", id)
	return user, nil
}

// Get returns the user's profile together with their subscription row.
// The subscription is nil for users whose trial was never provisioned.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.User, *domain.Subscription, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, domain.NewNotFoundError("User")
	}

	sub, err := s.subs.GetByUserID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return user, sub, nil
}

// UpdateProfile updates the mutable profile fields, leaving nil ones
// untouched
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, name, avatarURL *string) (*domain.User, error) {
	return s.users.UpdateProfile(ctx, id, name, avatarURL)
}

// Delete removes the account. A live provider subscription is flagged
// to cancel first, best-effort; deletion proceeds either way and the
// database cascades the subscription and referral rows.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	sub, err := s.subs.GetByUserID(ctx, id)
	if err != nil {
		return err
	}
	if sub != nil && sub.StripeSubscriptionID != nil && sub.Status.GrantsAccess() {
		if _, err := s.billing.Cancel(ctx, id); err != nil {
			s.log.Warn("failed to cancel subscription before account deletion",
				"user_id", id, "error", err)
		}
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info("account deleted", "user_id", id)
	return nil
}
