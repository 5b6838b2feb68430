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

// UserRepository implements domain.UserRepository on Postgres
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.AvatarURL, &u.ReferralCode, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

// GetByID returns the user row, or (nil, nil) when absent
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, name, avatar_url, referral_code, created_at, updated_at
		 FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByReferralCode resolves a user by their referral code
func (r *UserRepository) GetByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, name, avatar_url, referral_code, created_at, updated_at
		 FROM users WHERE referral_code = $1`, code)
	return scanUser(row)
}

// Create inserts a new user row
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, email, name, avatar_url, referral_code)
		 VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Email, u.Name, u.AvatarURL, u.ReferralCode)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.NewConflictError("User already exists")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UpdateProfile updates name and avatar, leaving nil fields untouched
func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, name, avatarURL *string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE users SET
			name = COALESCE($2, name),
			avatar_url = COALESCE($3, avatar_url),
			updated_at = now()
		 WHERE id = $1
		 RETURNING id, email, name, avatar_url, referral_code, created_at, updated_at`,
		id, name, avatarURL)
	u, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.NewNotFoundError("User")
	}
	return u, nil
}

// Delete removes the user row; subscriptions and referrals cascade away
// with it (enforced by the schema)
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("User")
	}
	return nil
}
