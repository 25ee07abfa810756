package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"pageant-backend/internal/domains/payment/model"
)

// =====================================================
// PAYMENT SESSION REPOSITORY IMPLEMENTATION
// =====================================================
type sessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) PaymentRepoInterface {
	return &sessionRepository{pool: pool}
}

const sessionColumns = `
	id, reference_id, merchant_id,
	contestant_id, contestant_name, vote_count,
	amount, currency, purpose, aux1, aux2,
	return_url, request_indicator, date_token, mode_token, request_signature,
	gateway_success_flag, response_code, trace_id, bank_code, initiator_code,
	paid_amount_raw, refund_amount_raw, response_signature,
	status, verification_status, gateway_api_response,
	created_at, updated_at
`

// =====================================================
// STANDALONE METHODS
// =====================================================

// Create persists a new payment session
func (r *sessionRepository) Create(ctx context.Context, session *model.PaymentSession) error {
	query := `
		INSERT INTO payment_sessions (
			id, reference_id, merchant_id,
			contestant_id, contestant_name, vote_count,
			amount, currency, purpose, aux1, aux2,
			return_url, request_indicator, date_token, mode_token, request_signature,
			status, verification_status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
		)
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		session.ID,
		session.ReferenceID,
		session.MerchantID,
		session.ContestantID,
		session.ContestantName,
		session.VoteCount,
		session.Amount,
		session.Currency,
		session.Purpose,
		session.Aux1,
		session.Aux2,
		session.ReturnURL,
		session.RequestIndicator,
		session.DateToken,
		session.ModeToken,
		session.RequestSignature,
		session.Status,
		session.VerificationStatus,
	).Scan(&session.CreatedAt, &session.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create payment session: %w", err)
	}

	return nil
}

// GetByID gets a session by surrogate id
func (r *sessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PaymentSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM payment_sessions WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// GetByPRN gets a session by reference id. The gateway sometimes echoes
// the PRN without its prefix, so lookup goes through NormalizePRN.
func (r *sessionRepository) GetByPRN(ctx context.Context, prn string) (*model.PaymentSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM payment_sessions WHERE reference_id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, model.NormalizePRN(prn)))
}

// FindRecentCreatedByAmount is the diagnostic fallback for callbacks whose
// PRN matches nothing: the newest still-created session with the same
// amount inside the window. Never used to credit, only to log.
func (r *sessionRepository) FindRecentCreatedByAmount(ctx context.Context, amount decimal.Decimal, window time.Duration) (*model.PaymentSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM payment_sessions
		WHERE status = $1 AND amount = $2 AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT 1
	`
	cutoff := time.Now().Add(-window)
	return r.scanOne(r.pool.QueryRow(ctx, query, model.StatusCreated, amount, cutoff))
}

// UpdateStatus moves a session to a new lifecycle status
func (r *sessionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.Status) error {
	query := `
		UPDATE payment_sessions
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrSessionNotFound
	}

	return nil
}

// SaveResponseSnapshot stores the raw callback fields for audit. Stored
// before any decision is made so a crash mid-handling still leaves the
// evidence on disk.
func (r *sessionRepository) SaveResponseSnapshot(ctx context.Context, id uuid.UUID, cb *model.ReturnCallback) error {
	query := `
		UPDATE payment_sessions
		SET gateway_success_flag = $1,
		    response_code = $2,
		    trace_id = $3,
		    bank_code = $4,
		    initiator_code = $5,
		    paid_amount_raw = $6,
		    refund_amount_raw = $7,
		    response_signature = $8,
		    updated_at = NOW()
		WHERE id = $9
	`

	result, err := r.pool.Exec(ctx, query,
		cb.PS, cb.RC, cb.UID, cb.BC, cb.INI, cb.PAmt, cb.RAmt, cb.DV, id,
	)
	if err != nil {
		return fmt.Errorf("failed to save response snapshot: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrSessionNotFound
	}

	return nil
}

// SaveGatewayAPIResponse stores the raw S2S confirmation payload as JSONB
func (r *sessionRepository) SaveGatewayAPIResponse(ctx context.Context, id uuid.UUID, payload map[string]interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal gateway api response: %w", err)
	}

	query := `
		UPDATE payment_sessions
		SET gateway_api_response = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.pool.Exec(ctx, query, raw, id)
	if err != nil {
		return fmt.Errorf("failed to save gateway api response: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrSessionNotFound
	}

	return nil
}

// ExpireStale fails sessions stuck in "created" longer than maxAge.
// Called from the scheduled cleanup job.
func (r *sessionRepository) ExpireStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	query := `
		UPDATE payment_sessions
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND created_at < $3
	`

	cutoff := time.Now().Add(-maxAge)
	result, err := r.pool.Exec(ctx, query, model.StatusFailed, model.StatusCreated, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale sessions: %w", err)
	}

	return result.RowsAffected(), nil
}

// ListRecentlySkipped returns credited-on-trust sessions inside the window
func (r *sessionRepository) ListRecentlySkipped(ctx context.Context, window time.Duration, limit int) ([]*model.PaymentSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM payment_sessions
		WHERE status = $1 AND verification_status = $2 AND updated_at >= $3
		ORDER BY updated_at ASC
		LIMIT $4
	`

	cutoff := time.Now().Add(-window)
	rows, err := r.pool.Query(ctx, query, model.StatusSuccess, model.VerificationSkipped, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list skipped sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*model.PaymentSession, 0, limit)
	for rows.Next() {
		session, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate skipped sessions: %w", err)
	}

	return sessions, nil
}

// ConfirmSkippedVerification upgrades skipped to success once the merchant
// API confirmed the payment after the fact. The predicate keeps it from
// touching anything the recheck job should not.
func (r *sessionRepository) ConfirmSkippedVerification(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE payment_sessions
		SET verification_status = $1, updated_at = NOW()
		WHERE id = $2 AND verification_status = $3
	`

	result, err := r.pool.Exec(ctx, query, model.VerificationSuccess, id, model.VerificationSkipped)
	if err != nil {
		return fmt.Errorf("failed to confirm skipped verification: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrSessionNotFound
	}

	return nil
}

// List pages through sessions newest first, optionally filtered by status
func (r *sessionRepository) List(ctx context.Context, status model.Status, page, limit int) ([]*model.PaymentSession, int, error) {
	where := ""
	args := []interface{}{}
	if status != "" {
		where = "WHERE status = $1"
		args = append(args, status)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM payment_sessions %s", where)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count payment sessions: %w", err)
	}

	offset := (page - 1) * limit
	listQuery := fmt.Sprintf(`
		SELECT %s
		FROM payment_sessions
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, sessionColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payment sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*model.PaymentSession, 0, limit)
	for rows.Next() {
		session, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate payment sessions: %w", err)
	}

	return sessions, total, nil
}

// Stats aggregates per-status counts and the credited totals in one scan
func (r *sessionRepository) Stats(ctx context.Context) (*model.PaymentStatistics, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE status = $1 AND verification_status = $2), 0),
			COUNT(*) FILTER (WHERE status = $1),
			COUNT(*) FILTER (WHERE status = $3),
			COUNT(*) FILTER (WHERE status = $4),
			COUNT(*) FILTER (WHERE status = $5),
			COALESCE(SUM(vote_count) FILTER (WHERE status = $1 AND verification_status = $2), 0)
		FROM payment_sessions
	`

	stats := &model.PaymentStatistics{}
	err := r.pool.QueryRow(ctx, query,
		model.StatusSuccess,
		model.VerificationSuccess,
		model.StatusPending,
		model.StatusFailed,
		model.StatusError,
	).Scan(
		&stats.TotalCollected,
		&stats.SuccessCount,
		&stats.PendingCount,
		&stats.FailedCount,
		&stats.ErrorCount,
		&stats.VotesCredited,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate payment statistics: %w", err)
	}

	return stats, nil
}

// UpdateOutcome records a terminal non-credited outcome in one statement
func (r *sessionRepository) UpdateOutcome(ctx context.Context, id uuid.UUID, status model.Status, verification model.VerificationStatus) error {
	query := `
		UPDATE payment_sessions
		SET status = $1, verification_status = $2, updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.pool.Exec(ctx, query, status, verification, id)
	if err != nil {
		return fmt.Errorf("failed to update session outcome: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrSessionNotFound
	}

	return nil
}

// =====================================================
// IDEMPOTENCY FENCE
// =====================================================

// The fence is a conditional update: it moves the session to success with
// the given verification mode only while no credited mode is set yet.
// Exactly one execution across all replicas and replays can win it; zero
// rows affected means someone else already did.
const markVerifiedQuery = `
	UPDATE payment_sessions
	SET status = $1, verification_status = $2, updated_at = NOW()
	WHERE id = $3 AND verification_status NOT IN ($4, $5, $6)
`

func markVerifiedArgs(id uuid.UUID, verification model.VerificationStatus) []interface{} {
	return []interface{}{
		model.StatusSuccess,
		verification,
		id,
		model.VerificationSuccess,
		model.VerificationSkipped,
		model.VerificationBypassed,
	}
}

// MarkVerified is the fence outside a transaction, used by the best-effort
// bypass path.
func (r *sessionRepository) MarkVerified(ctx context.Context, id uuid.UUID, verification model.VerificationStatus) error {
	result, err := r.pool.Exec(ctx, markVerifiedQuery, markVerifiedArgs(id, verification)...)
	if err != nil {
		return fmt.Errorf("failed to mark session verified: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrReplayDetected
	}

	return nil
}

// MarkVerifiedWithTx is the fence inside the caller's transaction, so the
// contestant increments commit or roll back together with it.
func (r *sessionRepository) MarkVerifiedWithTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, verification model.VerificationStatus) error {
	result, err := tx.Exec(ctx, markVerifiedQuery, markVerifiedArgs(id, verification)...)
	if err != nil {
		return fmt.Errorf("failed to mark session verified: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrReplayDetected
	}

	return nil
}

// =====================================================
// SCAN HELPERS
// =====================================================

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *sessionRepository) scanOne(row pgx.Row) (*model.PaymentSession, error) {
	session, err := r.scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

func (r *sessionRepository) scanRow(row rowScanner) (*model.PaymentSession, error) {
	session := &model.PaymentSession{}
	var apiResponse []byte

	err := row.Scan(
		&session.ID,
		&session.ReferenceID,
		&session.MerchantID,
		&session.ContestantID,
		&session.ContestantName,
		&session.VoteCount,
		&session.Amount,
		&session.Currency,
		&session.Purpose,
		&session.Aux1,
		&session.Aux2,
		&session.ReturnURL,
		&session.RequestIndicator,
		&session.DateToken,
		&session.ModeToken,
		&session.RequestSignature,
		&session.GatewaySuccessFlag,
		&session.ResponseCode,
		&session.TraceID,
		&session.BankCode,
		&session.InitiatorCode,
		&session.PaidAmountRaw,
		&session.RefundAmountRaw,
		&session.ResponseSignature,
		&session.Status,
		&session.VerificationStatus,
		&apiResponse,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan payment session: %w", err)
	}

	if len(apiResponse) > 0 {
		if err := json.Unmarshal(apiResponse, &session.GatewayAPIResponse); err != nil {
			return nil, fmt.Errorf("failed to unmarshal gateway api response: %w", err)
		}
	}

	return session, nil
}
