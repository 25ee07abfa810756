package job

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	repo "pageant-backend/internal/domains/payment/repository"
	"pageant-backend/pkg/logger"
)

// ExpireStaleSessionsPayload configures one expiry run. MaxAgeMinutes
// falls back to the scheduler's configured default when zero.
type ExpireStaleSessionsPayload struct {
	MaxAgeMinutes int `json:"maxAgeMinutes,omitempty"`
}

// ExpireStaleSessionsHandler fails sessions whose voter never came back
// from the gateway. Without it, abandoned checkouts sit in 'created'
// forever and pollute the reconciliation numbers.
type ExpireStaleSessionsHandler struct {
	sessionRepo   repo.PaymentRepoInterface
	defaultMaxAge time.Duration
}

func NewExpireStaleSessionsHandler(sessionRepo repo.PaymentRepoInterface, defaultMaxAge time.Duration) *ExpireStaleSessionsHandler {
	return &ExpireStaleSessionsHandler{
		sessionRepo:   sessionRepo,
		defaultMaxAge: defaultMaxAge,
	}
}

func (h *ExpireStaleSessionsHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload ExpireStaleSessionsPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Error("Failed to unmarshal expiry payload", err)
		return err
	}

	maxAge := h.defaultMaxAge
	if payload.MaxAgeMinutes > 0 {
		maxAge = time.Duration(payload.MaxAgeMinutes) * time.Minute
	}

	expired, err := h.sessionRepo.ExpireStale(ctx, maxAge)
	if err != nil {
		logger.Error("Failed to expire stale sessions", err)
		return err
	}

	log.Info().
		Int64("expired", expired).
		Dur("max_age", maxAge).
		Msg("Stale payment sessions expired")

	return nil
}
