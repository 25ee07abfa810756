package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pageant-backend/pkg/logger"
)

// Counter names emitted by the payment pipeline. These feed the
// reconciliation dashboard, so renaming one is a breaking change.
const (
	CounterDVMismatch    = "dv_mismatch"
	CounterReplayAttempt = "replay_attempt"
	CounterTxFail        = "tx_fail"
	CounterS2SSuccess    = "s2s_success"
	CounterBypassCredit  = "bypass_credit"
	CounterCreditFail    = "credit_fail"
)

// Counter is the sink the payment pipeline emits counters into.
type Counter interface {
	Incr(ctx context.Context, name string)
	Get(ctx context.Context, name string) (int64, error)
}

// =====================================================
// REDIS COUNTER SINK
// =====================================================

// redisCounter persists counters as Redis INCR keys under a fixed prefix.
// Increment failures are logged and swallowed: metrics must never fail a
// payment flow.
type redisCounter struct {
	client *redis.Client
	prefix string
}

func NewRedisCounter(client *redis.Client, prefix string) Counter {
	if prefix == "" {
		prefix = "metrics"
	}
	return &redisCounter{client: client, prefix: prefix}
}

func (r *redisCounter) key(name string) string {
	return fmt.Sprintf("%s:%s", r.prefix, name)
}

func (r *redisCounter) Incr(ctx context.Context, name string) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := r.client.Incr(ctx, r.key(name)).Err(); err != nil {
		logger.Error(fmt.Sprintf("Failed to increment metric %s", name), err)
	}
}

func (r *redisCounter) Get(ctx context.Context, name string) (int64, error) {
	val, err := r.client.Get(ctx, r.key(name)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read metric %s: %w", name, err)
	}
	return val, nil
}

// =====================================================
// IN-MEMORY COUNTER SINK (tests, local runs without Redis)
// =====================================================

type memCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewMemCounter() Counter {
	return &memCounter{counts: make(map[string]int64)}
}

func (m *memCounter) Incr(_ context.Context, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name]++
}

func (m *memCounter) Get(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name], nil
}
