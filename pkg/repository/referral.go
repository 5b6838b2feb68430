package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/biblegpt/api/pkg/domain"
)

// ReferralRepository implements domain.ReferralRepository on Postgres
type ReferralRepository struct {
	pool *pgxpool.Pool
}

// NewReferralRepository creates a new referral repository
func NewReferralRepository(pool *pgxpool.Pool) *ReferralRepository {
	return &ReferralRepository{pool: pool}
}

// GetByRefereeID returns the referral row for a referee, or (nil, nil)
func (r *ReferralRepository) GetByRefereeID(ctx context.Context, refereeID uuid.UUID) (*domain.Referral, error) {
	var ref domain.Referral
	err := r.pool.QueryRow(ctx,
		`SELECT id, referrer_id, referee_id, reward_given, created_at
		 FROM referrals WHERE referee_id = $1`, refereeID).
		Scan(&ref.ID, &ref.ReferrerID, &ref.RefereeID, &ref.RewardGiven, &ref.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query referral: %w", err)
	}
	return &ref, nil
}

// ListByReferrerID returns all referrals made by a user
func (r *ReferralRepository) ListByReferrerID(ctx context.Context, referrerID uuid.UUID) ([]*domain.Referral, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, referrer_id, referee_id, reward_given, created_at
		 FROM referrals WHERE referrer_id = $1 ORDER BY created_at DESC`, referrerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query referrals: %w", err)
	}
	defer rows.Close()

	var refs []*domain.Referral
	for rows.Next() {
		var ref domain.Referral
		if err := rows.Scan(&ref.ID, &ref.ReferrerID, &ref.RefereeID, &ref.RewardGiven, &ref.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan referral: %w", err)
		}
		refs = append(refs, &ref)
	}
	return refs, rows.Err()
}

// Create inserts a referral row; a second referral for the same referee
// is a conflict
func (r *ReferralRepository) Create(ctx context.Context, ref *domain.Referral) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO referrals (id, referrer_id, referee_id, reward_given)
		 VALUES ($1, $2, $3, $4)`,
		ref.ID, ref.ReferrerID, ref.RefereeID, ref.RewardGiven)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.NewConflictError("Referral already applied")
		}
		return fmt.Errorf("failed to create referral: %w", err)
	}
	return nil
}

// MarkRewardGiven flips reward_given to true only when still false.
// The WHERE clause is the idempotency guard: a re-delivered invoice.paid
// event finds zero rows to update and reports no flip.
func (r *ReferralRepository) MarkRewardGiven(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE referrals SET reward_given = TRUE WHERE id = $1 AND reward_given = FALSE`, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark reward given: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
