package referral

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/biblegpt/api/pkg/domain"
	"github.com/biblegpt/api/pkg/logger"
)

// Stats summarizes a user's referral activity
type Stats struct {
	Code     string
	Total    int
	Rewarded int
}

// Service manages referral codes: applying a code to a new user and
// reporting a referrer's stats. Rewards are granted elsewhere, by the
// webhook reconciler, when a referee's subscription first pays.
type Service struct {
	users     domain.UserRepository
	referrals domain.ReferralRepository
	log       logger.Logger
}

// NewService creates a new referral service
func NewService(users domain.UserRepository, referrals domain.ReferralRepository, log logger.Logger) *Service {
	return &Service{
		users:     users,
		referrals: referrals,
		log:       log,
	}
}

// normalizeCode uppercases and trims a user-supplied referral code
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Apply links the referee to the owner of the given code. Each user can
// be referred at most once, and never by themselves.
func (s *Service) Apply(ctx context.Context, refereeID uuid.UUID, code string) (*domain.Referral, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, domain.NewValidationError("Referral code is required")
	}

	existing, err := s.referrals.GetByRefereeID(ctx, refereeID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.NewConflictError("Referral already applied")
	}

	referrer, err := s.users.GetByReferralCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if referrer == nil {
		return nil, domain.NewValidationError("Invalid referral code")
	}
	if referrer.ID == refereeID {
		return nil, domain.NewValidationError("You cannot refer yourself")
	}

	ref := &domain.Referral{
		ID:         uuid.New(),
		ReferrerID: referrer.ID,
		RefereeID:  refereeID,
	}
	if err := s.referrals.Create(ctx, ref); err != nil {
		return nil, err
	}

	s.log.Info("referral applied", "referrer_id", referrer.ID, "referee_id", refereeID)
	return ref, nil
}

// Validate resolves a code to its owner without applying it. Returns
// (nil, nil) for a code nobody owns; used by the pre-signup check.
func (s *Service) Validate(ctx context.Context, code string) (*domain.User, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, nil
	}
	return s.users.GetByReferralCode(ctx, code)
}

// Stats reports the user's own code plus how many referrals they have
// made and how many converted to a reward
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.NewNotFoundError("User")
	}

	refs, err := s.referrals.ListByReferrerID(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Code: user.ReferralCode, Total: len(refs)}
	for _, ref := range refs {
		if ref.RewardGiven {
			stats.Rewarded++
		}
	}
	return stats, nil
}
