package job

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	repo "pageant-backend/internal/domains/payment/repository"
	"pageant-backend/internal/domains/payment/service"
	"pageant-backend/pkg/logger"
)

// RecheckSkippedPayload configures one reconciliation run.
type RecheckSkippedPayload struct {
	WindowHours int `json:"windowHours,omitempty"`
	Limit       int `json:"limit,omitempty"`
}

const (
	defaultRecheckWindow = 24 * time.Hour
	defaultRecheckLimit  = 100
)

// RecheckSkippedHandler re-verifies sessions that were credited on
// redirect trust while the merchant API was unreachable. Confirmed ones
// are upgraded to verified; contradicted ones are logged loudly for the
// operator because the votes are already on the board and disputes are a
// manual process.
type RecheckSkippedHandler struct {
	sessionRepo repo.PaymentRepoInterface
	verifier    service.TransactionVerifier
}

func NewRecheckSkippedHandler(sessionRepo repo.PaymentRepoInterface, verifier service.TransactionVerifier) *RecheckSkippedHandler {
	return &RecheckSkippedHandler{
		sessionRepo: sessionRepo,
		verifier:    verifier,
	}
}

func (h *RecheckSkippedHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	if h.verifier == nil {
		// No API credentials: nothing to recheck against.
		return nil
	}

	var payload RecheckSkippedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Error("Failed to unmarshal recheck payload", err)
		return err
	}

	window := defaultRecheckWindow
	if payload.WindowHours > 0 {
		window = time.Duration(payload.WindowHours) * time.Hour
	}
	limit := payload.Limit
	if limit <= 0 {
		limit = defaultRecheckLimit
	}

	sessions, err := h.sessionRepo.ListRecentlySkipped(ctx, window, limit)
	if err != nil {
		logger.Error("Failed to list skipped sessions for recheck", err)
		return err
	}

	confirmed, contradicted, indeterminate := 0, 0, 0
	for _, session := range sessions {
		outcome, err := h.verifier.VerifyTransaction(ctx, session.ReferenceID, session.Amount)
		if err != nil {
			indeterminate++
			continue
		}

		if outcome.Raw != nil {
			if err := h.sessionRepo.SaveGatewayAPIResponse(ctx, session.ID, outcome.Raw); err != nil {
				logger.Error("Failed to store recheck response", err)
			}
		}

		switch {
		case outcome.Settled():
			if err := h.sessionRepo.ConfirmSkippedVerification(ctx, session.ID); err != nil {
				logger.Error("Failed to upgrade rechecked session", err)
				continue
			}
			confirmed++
		case outcome.HTTPStatus >= 200 && outcome.HTTPStatus < 300:
			contradicted++
			log.Error().
				Str("prn", session.ReferenceID).
				Str("s2s_status", string(outcome.Status)).
				Msg("Recheck contradicts credited session, manual review required")
		default:
			indeterminate++
		}
	}

	log.Info().
		Int("checked", len(sessions)).
		Int("confirmed", confirmed).
		Int("contradicted", contradicted).
		Int("indeterminate", indeterminate).
		Msg("Skipped-session recheck completed")

	return nil
}
