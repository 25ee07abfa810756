package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"pageant-backend/internal/config"
	"pageant-backend/internal/domains/payment/job"
	"pageant-backend/internal/shared"
	"pageant-backend/pkg/logger"
)

type Scheduler struct {
	scheduler *asynq.Scheduler
	jobConfig config.JobConfig
}

func NewScheduler(redisAddress string, jobConfig config.JobConfig) *Scheduler {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: redisAddress},
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{
		scheduler: scheduler,
		jobConfig: jobConfig,
	}
}

func (s *Scheduler) RegisterPaymentJobs() error {
	if err := s.registerExpireStaleSessionsJob(); err != nil {
		return err
	}

	if err := s.registerRecheckSkippedJob(); err != nil {
		return err
	}

	return nil
}

// ================================================
// JOB 1: Expire Stale Sessions
// ================================================
// Runs on the configured cron (default every 10 minutes). Sessions whose
// voter abandoned the gateway page move from 'created' to 'failed' so the
// dashboard and the fallback search stop seeing them.
func (s *Scheduler) registerExpireStaleSessionsJob() error {
	payload, err := json.Marshal(job.ExpireStaleSessionsPayload{
		MaxAgeMinutes: s.jobConfig.StaleSessionMinutes,
	})
	if err != nil {
		return err
	}

	task := asynq.NewTask(shared.TypeExpireStaleSessions, payload)

	_, err = s.scheduler.Register(
		s.jobConfig.ExpiryCronSpec,
		task,
		asynq.Queue(shared.QueuePayment),
		asynq.MaxRetry(1),
		asynq.Timeout(2*time.Minute),
	)

	if err != nil {
		logger.Error("Failed to register ExpireStaleSessions job", err)
		return err
	}

	logger.Info("Registered ExpireStaleSessions", map[string]interface{}{
		"cron":        s.jobConfig.ExpiryCronSpec,
		"max_age_min": s.jobConfig.StaleSessionMinutes,
	})
	return nil
}

// ================================================
// JOB 2: Recheck Skipped Sessions (Hourly)
// ================================================
// Sessions credited on redirect trust get re-verified against the
// merchant API once it is reachable again.
func (s *Scheduler) registerRecheckSkippedJob() error {
	payload, err := json.Marshal(job.RecheckSkippedPayload{})
	if err != nil {
		return err
	}

	task := asynq.NewTask(shared.TypeRecheckSkipped, payload)

	_, err = s.scheduler.Register(
		"15 * * * *", // hourly, offset from the expiry job
		task,
		asynq.Queue(shared.QueuePayment),
		asynq.MaxRetry(1),
		asynq.Timeout(5*time.Minute),
	)

	if err != nil {
		logger.Error("Failed to register RecheckSkipped job", err)
		return err
	}

	logger.Info("Registered RecheckSkipped: hourly at :15", map[string]interface{}{})
	return nil
}

func (s *Scheduler) Start() error {
	return s.scheduler.Start()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
