package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"pageant-backend/internal/domains/contestant"
	"pageant-backend/internal/domains/payment/gateway/fonepay"
	"pageant-backend/internal/domains/payment/model"
)

// =====================================================
// IN-MEMORY SESSION REPOSITORY
// =====================================================

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*model.PaymentSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uuid.UUID]*model.PaymentSession)}
}

func (r *fakeSessionRepo) Create(_ context.Context, session *model.PaymentSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session.CreatedAt = time.Now()
	session.UpdatedAt = session.CreatedAt
	r.sessions[session.ID] = session
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id uuid.UUID) (*model.PaymentSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s, nil
	}
	return nil, model.ErrSessionNotFound
}

func (r *fakeSessionRepo) GetByPRN(_ context.Context, prn string) (*model.PaymentSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	normalized := model.NormalizePRN(prn)
	for _, s := range r.sessions {
		if s.ReferenceID == normalized {
			return s, nil
		}
	}
	return nil, model.ErrSessionNotFound
}

func (r *fakeSessionRepo) FindRecentCreatedByAmount(_ context.Context, amount decimal.Decimal, window time.Duration) (*model.PaymentSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-window)
	for _, s := range r.sessions {
		if s.Status == model.StatusCreated && s.Amount.Equal(amount) && s.CreatedAt.After(cutoff) {
			return s, nil
		}
	}
	return nil, model.ErrSessionNotFound
}

func (r *fakeSessionRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return model.ErrSessionNotFound
	}
	s.Status = status
	return nil
}

func (r *fakeSessionRepo) UpdateOutcome(_ context.Context, id uuid.UUID, status model.Status, verification model.VerificationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return model.ErrSessionNotFound
	}
	s.Status = status
	s.VerificationStatus = verification
	return nil
}

func (r *fakeSessionRepo) SaveResponseSnapshot(_ context.Context, id uuid.UUID, cb *model.ReturnCallback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return model.ErrSessionNotFound
	}
	s.GatewaySuccessFlag = &cb.PS
	s.ResponseCode = &cb.RC
	s.TraceID = &cb.UID
	s.BankCode = &cb.BC
	s.InitiatorCode = &cb.INI
	s.PaidAmountRaw = &cb.PAmt
	s.RefundAmountRaw = &cb.RAmt
	s.ResponseSignature = &cb.DV
	return nil
}

func (r *fakeSessionRepo) SaveGatewayAPIResponse(_ context.Context, id uuid.UUID, payload map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return model.ErrSessionNotFound
	}
	s.GatewayAPIResponse = payload
	return nil
}

func (r *fakeSessionRepo) ExpireStale(_ context.Context, maxAge time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	var expired int64
	for _, s := range r.sessions {
		if s.Status == model.StatusCreated && s.CreatedAt.Before(cutoff) {
			s.Status = model.StatusFailed
			expired++
		}
	}
	return expired, nil
}

func (r *fakeSessionRepo) ListRecentlySkipped(_ context.Context, window time.Duration, limit int) ([]*model.PaymentSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-window)
	var out []*model.PaymentSession
	for _, s := range r.sessions {
		if len(out) >= limit {
			break
		}
		if s.Status == model.StatusSuccess && s.VerificationStatus == model.VerificationSkipped && s.UpdatedAt.After(cutoff) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) ConfirmSkippedVerification(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.VerificationStatus != model.VerificationSkipped {
		return model.ErrSessionNotFound
	}
	s.VerificationStatus = model.VerificationSuccess
	return nil
}

func (r *fakeSessionRepo) List(_ context.Context, status model.Status, page, limit int) ([]*model.PaymentSession, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PaymentSession
	for _, s := range r.sessions {
		if status == "" || s.Status == status {
			out = append(out, s)
		}
	}
	return out, len(out), nil
}

func (r *fakeSessionRepo) Stats(_ context.Context) (*model.PaymentStatistics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &model.PaymentStatistics{}
	for _, s := range r.sessions {
		switch s.Status {
		case model.StatusSuccess:
			stats.SuccessCount++
			if s.VerificationStatus.Credited() {
				stats.TotalCollected = stats.TotalCollected.Add(s.Amount)
				stats.VotesCredited += int64(s.VoteCount)
			}
		case model.StatusPending:
			stats.PendingCount++
		case model.StatusFailed:
			stats.FailedCount++
		case model.StatusError:
			stats.ErrorCount++
		}
	}
	return stats, nil
}

// MarkVerified applies the fence immediately (no transaction).
func (r *fakeSessionRepo) MarkVerified(_ context.Context, id uuid.UUID, verification model.VerificationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applyFence(id, verification)
}

// MarkVerifiedWithTx checks the fence now and stages the write on the fake
// transaction, mirroring the conditional-update-inside-tx semantics.
func (r *fakeSessionRepo) MarkVerifiedWithTx(_ context.Context, tx pgx.Tx, id uuid.UUID, verification model.VerificationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return model.ErrSessionNotFound
	}
	if s.VerificationStatus.Credited() {
		return model.ErrReplayDetected
	}
	tx.(*fakeTx).stage(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		_ = r.applyFence(id, verification)
	})
	return nil
}

func (r *fakeSessionRepo) applyFence(id uuid.UUID, verification model.VerificationStatus) error {
	s, ok := r.sessions[id]
	if !ok {
		return model.ErrSessionNotFound
	}
	if s.VerificationStatus.Credited() {
		return model.ErrReplayDetected
	}
	s.Status = model.StatusSuccess
	s.VerificationStatus = verification
	return nil
}

// =====================================================
// IN-MEMORY CONTESTANT REPOSITORY
// =====================================================

type fakeContestantRepo struct {
	mu          sync.Mutex
	contestants map[string]*contestant.Contestant
}

func newFakeContestantRepo(ids ...string) *fakeContestantRepo {
	r := &fakeContestantRepo{contestants: make(map[string]*contestant.Contestant)}
	for _, id := range ids {
		r.contestants[id] = &contestant.Contestant{ID: id, Name: "Contestant " + id, Active: true}
	}
	return r
}

func (r *fakeContestantRepo) GetByID(_ context.Context, id string) (*contestant.Contestant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.contestants[id]; ok {
		return c, nil
	}
	return nil, contestant.ErrContestantNotFound
}

func (r *fakeContestantRepo) List(_ context.Context, _ string) ([]*contestant.Contestant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*contestant.Contestant
	for _, c := range r.contestants {
		out = append(out, c)
	}
	return out, nil
}

func (r *fakeContestantRepo) IncrementVotes(_ context.Context, id string, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contestants[id]
	if !ok {
		return contestant.ErrContestantNotFound
	}
	c.VoteTotal += int64(n)
	return nil
}

func (r *fakeContestantRepo) IncrementVotesWithTx(_ context.Context, tx pgx.Tx, id string, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contestants[id]
	if !ok {
		return contestant.ErrContestantNotFound
	}
	tx.(*fakeTx).stage(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		c.VoteTotal += int64(n)
	})
	return nil
}

func (r *fakeContestantRepo) votes(id string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.contestants[id]; ok {
		return c.VoteTotal
	}
	return 0
}

// =====================================================
// FAKE TRANSACTION MANAGER
// =====================================================

// fakeTx stages writes until commit; the embedded interface keeps the
// full pgx.Tx surface without implementing it.
type fakeTx struct {
	pgx.Tx
	staged    []func()
	committed bool
}

func (t *fakeTx) stage(fn func()) {
	t.staged = append(t.staged, fn)
}

type fakeTxManager struct {
	begun     int
	committed int
	rolled    int
}

func (m *fakeTxManager) BeginTx(_ context.Context) (pgx.Tx, error) {
	m.begun++
	return &fakeTx{}, nil
}

func (m *fakeTxManager) CommitTx(_ context.Context, tx pgx.Tx) error {
	ft := tx.(*fakeTx)
	for _, fn := range ft.staged {
		fn()
	}
	ft.committed = true
	m.committed++
	return nil
}

func (m *fakeTxManager) RollbackTx(_ context.Context, tx pgx.Tx) error {
	ft := tx.(*fakeTx)
	if !ft.committed {
		ft.staged = nil
		m.rolled++
	}
	return nil
}

// =====================================================
// SCRIPTED VERIFIER
// =====================================================

type fakeVerifier struct {
	outcome *fonepay.VerificationOutcome
	err     error
	calls   int
}

func (v *fakeVerifier) VerifyTransaction(_ context.Context, _ string, _ decimal.Decimal) (*fonepay.VerificationOutcome, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	return v.outcome, nil
}
