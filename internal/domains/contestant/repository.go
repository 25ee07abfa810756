package contestant

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Repository is the contestant data access used by the payment pipeline
// and the public read endpoints.
type Repository interface {
	// GetByID returns the contestant or ErrContestantNotFound.
	GetByID(ctx context.Context, id string) (*Contestant, error)

	// List returns active contestants ordered by vote total.
	List(ctx context.Context, eventSlug string) ([]*Contestant, error)

	// IncrementVotes adds n votes outside any transaction (bypass paths).
	IncrementVotes(ctx context.Context, id string, n int) error

	// IncrementVotesWithTx adds n votes inside the caller's transaction.
	// Returns ErrContestantNotFound when the row no longer exists so the
	// caller can abort the whole credit.
	IncrementVotesWithTx(ctx context.Context, tx pgx.Tx, id string, n int) error
}
