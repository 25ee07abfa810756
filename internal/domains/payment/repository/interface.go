package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"pageant-backend/internal/domains/payment/model"
)

// =====================================================
// PAYMENT SESSION REPOSITORY INTERFACE
// =====================================================
type PaymentRepoInterface interface {
	// ============================================
	// STANDALONE METHODS
	// ============================================

	// Create persists a new payment session in status "created"
	Create(ctx context.Context, session *model.PaymentSession) error

	// GetByID gets a session by its surrogate id
	GetByID(ctx context.Context, id uuid.UUID) (*model.PaymentSession, error)

	// GetByPRN gets a session by reference id, normalizing the prefix
	GetByPRN(ctx context.Context, prn string) (*model.PaymentSession, error)

	// FindRecentCreatedByAmount finds the newest still-created session with
	// the given amount inside the fallback window
	FindRecentCreatedByAmount(ctx context.Context, amount decimal.Decimal, window time.Duration) (*model.PaymentSession, error)

	// UpdateStatus moves a session to a new lifecycle status
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.Status) error

	// UpdateOutcome records a terminal non-credited outcome (failed/error
	// plus how verification ended)
	UpdateOutcome(ctx context.Context, id uuid.UUID, status model.Status, verification model.VerificationStatus) error

	// MarkVerified is the non-transactional fence used by the best-effort
	// bypass path; same guard as MarkVerifiedWithTx
	MarkVerified(ctx context.Context, id uuid.UUID, verification model.VerificationStatus) error

	// SaveResponseSnapshot stores the raw gateway callback fields
	SaveResponseSnapshot(ctx context.Context, id uuid.UUID, cb *model.ReturnCallback) error

	// SaveGatewayAPIResponse stores the raw S2S confirmation payload
	SaveGatewayAPIResponse(ctx context.Context, id uuid.UUID, payload map[string]interface{}) error

	// ExpireStale fails sessions stuck in "created" longer than maxAge
	ExpireStale(ctx context.Context, maxAge time.Duration) (int64, error)

	// ListRecentlySkipped returns credited sessions that settled on
	// redirect trust, for the reconciliation recheck job
	ListRecentlySkipped(ctx context.Context, window time.Duration, limit int) ([]*model.PaymentSession, error)

	// ConfirmSkippedVerification upgrades a skipped session to verified
	// after a successful recheck
	ConfirmSkippedVerification(ctx context.Context, id uuid.UUID) error

	// List pages through sessions, optionally filtered by status
	List(ctx context.Context, status model.Status, page, limit int) ([]*model.PaymentSession, int, error)

	// Stats aggregates collection totals per status
	Stats(ctx context.Context) (*model.PaymentStatistics, error)

	// ============================================
	// TRANSACTION-AWARE METHODS
	// ============================================

	// MarkVerifiedWithTx is the idempotency fence: it flips the session to
	// status=success with the given verification mode only when no prior
	// execution credited it, and returns model.ErrReplayDetected when the
	// guard matches zero rows.
	MarkVerifiedWithTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, verification model.VerificationStatus) error
}

// TransactionManager abstracts transaction lifecycle for services
type TransactionManager interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CommitTx(ctx context.Context, tx pgx.Tx) error
	RollbackTx(ctx context.Context, tx pgx.Tx) error
}
