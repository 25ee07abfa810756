package shared

// Asynq task types
const (
	TypeExpireStaleSessions = "payment:expire_stale_sessions"
	TypeRecheckSkipped      = "payment:recheck_skipped"
)

// Asynq queues
const (
	QueuePayment = "payment"
	QueueDefault = "default"
)
