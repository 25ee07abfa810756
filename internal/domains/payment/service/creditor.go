package service

import (
	"context"
	"errors"
	"fmt"

	"pageant-backend/internal/domains/payment/bulk"
	"pageant-backend/internal/domains/payment/model"
	"pageant-backend/pkg/logger"
	"pageant-backend/pkg/metrics"
)

// =====================================================
// VOTE CREDITING
// =====================================================
//
// Two crediting paths exist on purpose and they are NOT equivalent:
//
//   - creditTransactional: fence + all contestant increments commit or roll
//     back as one unit. Used whenever the merchant API was consulted
//     (S2S confirmed, S2S unreachable or indeterminate fallback).
//   - creditBestEffort: fence first, then per-contestant increments outside
//     any transaction. Used on the bypass paths (dev mode, no merchant API
//     credentials). A crash between fence and increments loses votes and
//     will not retry; this asymmetry is known and accepted, the fix is to
//     configure API credentials.

// creditTargets resolves which contestants a session pays for. Aux1 may
// carry a bulk payload crediting several contestants; anything the codec
// cannot read falls back to the session's primary contestant.
func creditTargets(session *model.PaymentSession) []bulk.Item {
	if items := bulk.Decode(session.Aux1); len(items) > 0 {
		return items
	}
	return []bulk.Item{{ContestantID: session.ContestantID, Votes: session.VoteCount}}
}

// creditTransactional credits every target atomically behind the fence.
//
// Returns model.ErrReplayDetected when another execution already credited,
// and model.ErrTransactionFailure when any increment failed; in the latter
// case NO contestant was credited and the session is marked error.
func (s *paymentService) creditTransactional(ctx context.Context, session *model.PaymentSession, verification model.VerificationStatus) error {
	items := creditTargets(session)

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to open credit transaction: %w", err)
	}
	defer s.txManager.RollbackTx(ctx, tx)

	// The fence goes first so a lost race rolls back before touching any
	// vote total.
	if err := s.sessionRepo.MarkVerifiedWithTx(ctx, tx, session.ID, verification); err != nil {
		if errors.Is(err, model.ErrReplayDetected) {
			s.counters.Incr(ctx, metrics.CounterReplayAttempt)
			logger.Warn("Replay attempt blocked by crediting fence", map[string]interface{}{
				"prn": session.ReferenceID,
			})
			return model.ErrReplayDetected
		}
		return s.abortCredit(ctx, session, fmt.Errorf("fence update failed: %w", err))
	}

	for _, item := range items {
		if err := s.contestantRepo.IncrementVotesWithTx(ctx, tx, item.ContestantID, item.Votes); err != nil {
			return s.abortCredit(ctx, session, fmt.Errorf("failed to credit contestant %s: %w", item.ContestantID, err))
		}
	}

	if err := s.txManager.CommitTx(ctx, tx); err != nil {
		return s.abortCredit(ctx, session, err)
	}

	logger.Info("Votes credited", map[string]interface{}{
		"prn":          session.ReferenceID,
		"targets":      len(items),
		"votes":        bulk.TotalVotes(items),
		"verification": string(verification),
	})
	return nil
}

// abortCredit rolls the world back to a visible error state: the deferred
// rollback undoes any partial increments, then the session is flagged so
// reconciliation finds it.
func (s *paymentService) abortCredit(ctx context.Context, session *model.PaymentSession, cause error) error {
	s.counters.Incr(ctx, metrics.CounterTxFail)
	logger.Error("Vote credit transaction aborted", cause)

	if err := s.sessionRepo.UpdateOutcome(ctx, session.ID, model.StatusError, model.VerificationFailed); err != nil {
		logger.Error("Failed to flag session after aborted credit", err)
	}
	return model.ErrTransactionFailure
}

// creditBestEffort credits targets without a transaction. Individual
// increment failures are logged and counted but never fail the payment:
// the money is already taken, losing the vote beats losing the redirect.
func (s *paymentService) creditBestEffort(ctx context.Context, session *model.PaymentSession, verification model.VerificationStatus) error {
	items := creditTargets(session)

	if err := s.sessionRepo.MarkVerified(ctx, session.ID, verification); err != nil {
		if errors.Is(err, model.ErrReplayDetected) {
			s.counters.Incr(ctx, metrics.CounterReplayAttempt)
			return model.ErrReplayDetected
		}
		return fmt.Errorf("fence update failed: %w", err)
	}

	s.counters.Incr(ctx, metrics.CounterBypassCredit)

	for _, item := range items {
		if err := s.contestantRepo.IncrementVotes(ctx, item.ContestantID, item.Votes); err != nil {
			s.counters.Incr(ctx, metrics.CounterCreditFail)
			logger.Error(fmt.Sprintf("Best-effort credit failed for contestant %s (prn %s)",
				item.ContestantID, session.ReferenceID), err)
		}
	}

	return nil
}
