package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pageant-backend/internal/domains/payment/gateway/fonepay"
	"pageant-backend/internal/domains/payment/model"
)

// =====================================================
// PAYMENT SERVICE INTERFACE
// =====================================================
type PaymentService interface {
	// CreateSession opens a payment session and returns the signed
	// gateway redirect URL
	CreateSession(ctx context.Context, req model.CreateSessionRequest) (*model.CreateSessionResponse, error)

	// HandleReturn runs the full verification and crediting pipeline for a
	// gateway callback and always yields a browser redirect outcome
	HandleReturn(ctx context.Context, cb *model.ReturnCallback) *ReturnOutcome

	// GetSessionByPRN looks a session up by reference id
	GetSessionByPRN(ctx context.Context, prn string) (*model.SessionStatusResponse, error)

	// GetSessionByID looks a session up by surrogate id
	GetSessionByID(ctx context.Context, id uuid.UUID) (*model.SessionStatusResponse, error)

	// ListSessions pages through sessions for the operator console. The
	// request is normalized in place so callers see the applied paging.
	ListSessions(ctx context.Context, req *model.ListSessionsRequest) ([]*model.PaymentSession, int, error)

	// GetStatistics aggregates collection totals for the operator console
	GetStatistics(ctx context.Context) (*model.PaymentStatistics, error)
}

// ReturnOutcome is where the callback handler sends the voter's browser.
// The callback endpoint never shows errors itself; everything lands on the
// frontend status page as ?prn= or ?error=.
type ReturnOutcome struct {
	PRN       string
	ErrorCode string // empty on success, one of model.RedirectErr* otherwise
}

func (o *ReturnOutcome) Succeeded() bool {
	return o.ErrorCode == ""
}

// TransactionVerifier is the S2S confirmation call, abstracted so tests can
// script gateway answers. Implemented by fonepay.VerificationClient.
type TransactionVerifier interface {
	VerifyTransaction(ctx context.Context, prn string, amount decimal.Decimal) (*fonepay.VerificationOutcome, error)
}
