package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/biblegpt/api/pkg/domain"
)

// DevotionalRepository implements domain.DevotionalRepository on Postgres
type DevotionalRepository struct {
	pool *pgxpool.Pool
}

// NewDevotionalRepository creates a new devotional repository
func NewDevotionalRepository(pool *pgxpool.Pool) *DevotionalRepository {
	return &DevotionalRepository{pool: pool}
}

// GetByDate returns the devotional for the given calendar day, or (nil, nil)
func (r *DevotionalRepository) GetByDate(ctx context.Context, date time.Time) (*domain.Devotional, error) {
	var d domain.Devotional
	err := r.pool.QueryRow(ctx,
		`SELECT id, date, title, verse, verse_text, content, prayer
		 FROM devotionals WHERE date = $1`, date.Format("2006-01-02")).
		Scan(&d.ID, &d.Date, &d.Title, &d.Verse, &d.VerseText, &d.Content, &d.Prayer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query devotional: %w", err)
	}
	return &d, nil
}
