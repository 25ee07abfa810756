package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pageant-backend/internal/domains/contestant"
)

type contestantRepository struct {
	pool *pgxpool.Pool
}

func NewContestantRepository(pool *pgxpool.Pool) contestant.Repository {
	return &contestantRepository{pool: pool}
}

func (r *contestantRepository) GetByID(ctx context.Context, id string) (*contestant.Contestant, error) {
	query := `
		SELECT id, name, event_slug, photo_url, vote_total, active, created_at, updated_at
		FROM contestants
		WHERE id = $1
	`

	c := &contestant.Contestant{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.Name,
		&c.EventSlug,
		&c.PhotoURL,
		&c.VoteTotal,
		&c.Active,
		&c.CreatedAt,
		&c.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, contestant.ErrContestantNotFound
		}
		return nil, fmt.Errorf("failed to get contestant: %w", err)
	}

	return c, nil
}

func (r *contestantRepository) List(ctx context.Context, eventSlug string) ([]*contestant.Contestant, error) {
	query := `
		SELECT id, name, event_slug, photo_url, vote_total, active, created_at, updated_at
		FROM contestants
		WHERE active = TRUE
	`
	args := []interface{}{}

	if eventSlug != "" {
		query += " AND event_slug = $1"
		args = append(args, eventSlug)
	}

	query += " ORDER BY vote_total DESC, name ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contestants: %w", err)
	}
	defer rows.Close()

	var contestants []*contestant.Contestant
	for rows.Next() {
		c := &contestant.Contestant{}
		err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.EventSlug,
			&c.PhotoURL,
			&c.VoteTotal,
			&c.Active,
			&c.CreatedAt,
			&c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contestant: %w", err)
		}
		contestants = append(contestants, c)
	}

	return contestants, nil
}

func (r *contestantRepository) IncrementVotes(ctx context.Context, id string, n int) error {
	query := `
		UPDATE contestants
		SET vote_total = vote_total + $2,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, n)
	if err != nil {
		return fmt.Errorf("failed to increment votes: %w", err)
	}

	if result.RowsAffected() == 0 {
		return contestant.ErrContestantNotFound
	}

	return nil
}

func (r *contestantRepository) IncrementVotesWithTx(ctx context.Context, tx pgx.Tx, id string, n int) error {
	query := `
		UPDATE contestants
		SET vote_total = vote_total + $2,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := tx.Exec(ctx, query, id, n)
	if err != nil {
		return fmt.Errorf("failed to increment votes: %w", err)
	}

	if result.RowsAffected() == 0 {
		return contestant.ErrContestantNotFound
	}

	return nil
}
