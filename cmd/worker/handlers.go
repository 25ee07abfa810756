package main

import (
	"time"

	"github.com/hibiken/asynq"

	"pageant-backend/internal/domains/payment/job"
	"pageant-backend/internal/shared"
	"pageant-backend/pkg/container"
)

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	expireStale    *job.ExpireStaleSessionsHandler
	recheckSkipped *job.RecheckSkippedHandler
}

// initializeHandlers creates all job handlers with their dependencies
func initializeHandlers(c *container.Container) *HandlerRegistry {
	defaultMaxAge := time.Duration(c.Config.Jobs.StaleSessionMinutes) * time.Minute

	return &HandlerRegistry{
		expireStale:    job.NewExpireStaleSessionsHandler(c.SessionRepo, defaultMaxAge),
		recheckSkipped: job.NewRecheckSkippedHandler(c.SessionRepo, c.Verifier),
	}
}

// RegisterHandlers registers all handlers with the mux
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(shared.TypeExpireStaleSessions, h.expireStale.ProcessTask)
	mux.HandleFunc(shared.TypeRecheckSkipped, h.recheckSkipped.ProcessTask)
}
