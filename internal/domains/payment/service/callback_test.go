package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageant-backend/internal/domains/payment/bulk"
	"pageant-backend/internal/domains/payment/gateway/fonepay"
	"pageant-backend/internal/domains/payment/model"
	"pageant-backend/pkg/metrics"
)

// settledCallback builds a callback the way the gateway would send it for
// a settled payment, DV included.
func settledCallback(session *model.PaymentSession, paidAmount string) *model.ReturnCallback {
	cb := &model.ReturnCallback{
		PRN:  session.ReferenceID,
		PID:  session.MerchantID,
		PS:   "true",
		RC:   model.ResponseCodeSuccess,
		UID:  "TRACE0001",
		BC:   "NICENPKA",
		INI:  "9800000001",
		PAmt: paidAmount,
		RAmt: "0.00",
	}
	cb.DV = fonepay.SignParams(testSecret, map[string]string{
		"PRN": cb.PRN, "PID": cb.PID, "PS": cb.PS, "RC": cb.RC, "UID": cb.UID,
		"BC": cb.BC, "INI": cb.INI, "P_AMT": cb.PAmt, "R_AMT": cb.RAmt,
	}, fonepay.ReturnFieldOrder)
	return cb
}

func settledS2SOutcome() *fonepay.VerificationOutcome {
	return &fonepay.VerificationOutcome{
		Status:     fonepay.S2SSuccess,
		HTTPStatus: 200,
		Raw:        map[string]interface{}{"paymentStatus": "success"},
	}
}

// =====================================================
// HAPPY PATH + REPLAY
// =====================================================

func TestHandleReturnConfirmedCreditsExactlyOnce(t *testing.T) {
	verifier := &fakeVerifier{outcome: settledS2SOutcome()}
	env := newTestEnv(verifier, false, "C1")
	session := env.createSession(t, "C1", 5)

	cb := settledCallback(session, "5.00")
	outcome := env.svc.HandleReturn(context.Background(), cb)

	assert.True(t, outcome.Succeeded())
	assert.Equal(t, session.ReferenceID, outcome.PRN)
	assert.EqualValues(t, 5, env.contestants.votes("C1"))
	assert.Equal(t, model.StatusSuccess, session.Status)
	assert.Equal(t, model.VerificationSuccess, session.VerificationStatus)
	assert.Equal(t, 1, verifier.calls)
	assert.EqualValues(t, 1, env.counter(metrics.CounterS2SSuccess))

	// Replayed callback: same redirect outcome, zero additional credit.
	replay := env.svc.HandleReturn(context.Background(), cb)
	assert.True(t, replay.Succeeded())
	assert.EqualValues(t, 5, env.contestants.votes("C1"))
	assert.Equal(t, 1, verifier.calls)
	assert.EqualValues(t, 1, env.counter(metrics.CounterReplayAttempt))
}

// =====================================================
// REJECTION PATHS
// =====================================================

func TestHandleReturnMissingFields(t *testing.T) {
	env := newTestEnv(nil, false, "C1")

	outcome := env.svc.HandleReturn(context.Background(), &model.ReturnCallback{
		PRN: "prn_1", PS: "true",
	})

	assert.Equal(t, model.RedirectErrMissingFields, outcome.ErrorCode)
}

func TestHandleReturnUnknownPRN(t *testing.T) {
	env := newTestEnv(nil, false, "C1")
	env.createSession(t, "C1", 5) // amount-matched candidate for the diagnostic search

	outcome := env.svc.HandleReturn(context.Background(), &model.ReturnCallback{
		PRN: "prn_nope", PID: testMerchant, PS: "true", RC: model.ResponseCodeSuccess,
		PAmt: "5.00", DV: "ABC",
	})

	assert.Equal(t, model.RedirectErrUnknownPRN, outcome.ErrorCode)
	assert.EqualValues(t, 0, env.contestants.votes("C1"))
}

func TestHandleReturnPIDMismatchLeavesSessionLive(t *testing.T) {
	verifier := &fakeVerifier{outcome: settledS2SOutcome()}
	env := newTestEnv(verifier, false, "C1")
	session := env.createSession(t, "C1", 5)

	forged := settledCallback(session, "5.00")
	forged.PID = "MER999"

	outcome := env.svc.HandleReturn(context.Background(), forged)

	assert.Equal(t, model.RedirectErrPIDMismatch, outcome.ErrorCode)
	assert.EqualValues(t, 0, env.contestants.votes("C1"))

	// The forged callback must not move the session: PRNs are guessable,
	// so anyone could send one. The genuine gateway callback still settles.
	assert.Equal(t, model.StatusCreated, session.Status)
	assert.Equal(t, model.VerificationPending, session.VerificationStatus)

	genuine := env.svc.HandleReturn(context.Background(), settledCallback(session, "5.00"))

	assert.True(t, genuine.Succeeded())
	assert.EqualValues(t, 5, env.contestants.votes("C1"))
	assert.Equal(t, model.StatusSuccess, session.Status)
}

func TestHandleReturnGatewayDeclined(t *testing.T) {
	env := newTestEnv(nil, false, "C1")
	session := env.createSession(t, "C1", 2)

	cb := settledCallback(session, "2.00")
	cb.PS = "false"
	cb.RC = "failure"

	outcome := env.svc.HandleReturn(context.Background(), cb)

	assert.Equal(t, model.RedirectErrPaymentFailed, outcome.ErrorCode)
	assert.Equal(t, model.StatusFailed, session.Status)
	assert.EqualValues(t, 0, env.contestants.votes("C1"))
}

func TestHandleReturnDVMismatch(t *testing.T) {
	env := newTestEnv(nil, false, "C1")
	session := env.createSession(t, "C1", 2)

	cb := settledCallback(session, "2.00")
	cb.DV = "0000TAMPERED0000"

	outcome := env.svc.HandleReturn(context.Background(), cb)

	assert.Equal(t, model.RedirectErrDVMismatch, outcome.ErrorCode)
	assert.Equal(t, model.StatusError, session.Status)
	assert.Equal(t, model.VerificationFailed, session.VerificationStatus)
	assert.EqualValues(t, 0, env.contestants.votes("C1"))
	assert.EqualValues(t, 1, env.counter(metrics.CounterDVMismatch))
}

// =====================================================
// AMOUNT CHECKS
// =====================================================

func TestHandleReturnAmountWithinToleranceCredits(t *testing.T) {
	verifier := &fakeVerifier{outcome: settledS2SOutcome()}
	env := newTestEnv(verifier, false, "C1")
	session := env.createSession(t, "C1", 5)

	// One paisa of rounding drift is acceptable.
	outcome := env.svc.HandleReturn(context.Background(), settledCallback(session, "5.01"))

	assert.True(t, outcome.Succeeded())
	assert.EqualValues(t, 5, env.contestants.votes("C1"))
}

func TestHandleReturnAmountBeyondToleranceRejected(t *testing.T) {
	env := newTestEnv(nil, false, "C1")
	session := env.createSession(t, "C1", 5)

	// Signed by the gateway, so the DV is valid over the wrong amount:
	// the request itself was manipulated before signing.
	outcome := env.svc.HandleReturn(context.Background(), settledCallback(session, "5.02"))

	assert.Equal(t, model.RedirectErrAmountManipulation, outcome.ErrorCode)
	assert.Equal(t, model.StatusError, session.Status)
	assert.EqualValues(t, 0, env.contestants.votes("C1"))
}

func TestHandleReturnAmountMismatchWhenUnverifiable(t *testing.T) {
	env := newTestEnv(nil, false, "C1")
	session := env.createSession(t, "C1", 5)

	cb := settledCallback(session, "1.00")
	cb.UID = "" // verification material incomplete -> DV soft-skipped

	outcome := env.svc.HandleReturn(context.Background(), cb)

	assert.Equal(t, model.RedirectErrAmountMismatch, outcome.ErrorCode)
	assert.EqualValues(t, 0, env.contestants.votes("C1"))
}

// =====================================================
// TRUST DECISION TABLE
// =====================================================

func TestHandleReturnDevModeTrustsRedirect(t *testing.T) {
	verifier := &fakeVerifier{outcome: settledS2SOutcome()}
	env := newTestEnv(verifier, true, "C1")
	session := env.createSession(t, "C1", 1)

	outcome := env.svc.HandleReturn(context.Background(), settledCallback(session, "1.00"))

	assert.True(t, outcome.Succeeded())
	assert.EqualValues(t, 1, env.contestants.votes("C1"))
	assert.Equal(t, model.VerificationSkipped, session.VerificationStatus)
	// Dev mode never touches the merchant API and, like the credential-less
	// bypass, credits best-effort without a transaction.
	assert.Equal(t, 0, verifier.calls)
	assert.Equal(t, 0, env.txManager.begun)
}

func TestHandleReturnBypassPathWithoutCredentials(t *testing.T) {
	env := newTestEnv(nil, false, "C1")
	session := env.createSession(t, "C1", 3)

	outcome := env.svc.HandleReturn(context.Background(), settledCallback(session, "3.00"))

	assert.True(t, outcome.Succeeded())
	assert.EqualValues(t, 3, env.contestants.votes("C1"))
	assert.Equal(t, model.VerificationBypassed, session.VerificationStatus)
	assert.EqualValues(t, 1, env.counter(metrics.CounterBypassCredit))
	// Best-effort path never opens a transaction.
	assert.Equal(t, 0, env.txManager.begun)
}

func TestHandleReturnS2SUnreachableSettlesOnRedirectTrust(t *testing.T) {
	verifier := &fakeVerifier{err: errors.New("dial timeout")}
	env := newTestEnv(verifier, false, "C1")
	session := env.createSession(t, "C1", 2)

	outcome := env.svc.HandleReturn(context.Background(), settledCallback(session, "2.00"))

	assert.True(t, outcome.Succeeded())
	assert.EqualValues(t, 2, env.contestants.votes("C1"))
	assert.Equal(t, model.VerificationSkipped, session.VerificationStatus)
}

func TestHandleReturnS2SContradictsRedirect(t *testing.T) {
	verifier := &fakeVerifier{outcome: &fonepay.VerificationOutcome{
		Status:     fonepay.S2SFailed,
		HTTPStatus: 200,
		Raw:        map[string]interface{}{"paymentStatus": "failed"},
	}}
	env := newTestEnv(verifier, false, "C1")
	session := env.createSession(t, "C1", 2)

	outcome := env.svc.HandleReturn(context.Background(), settledCallback(session, "2.00"))

	assert.Equal(t, model.RedirectErrPaymentFailed, outcome.ErrorCode)
	assert.Equal(t, model.StatusError, session.Status)
	assert.EqualValues(t, 0, env.contestants.votes("C1"))
}

func TestHandleReturnS2SRemoteAmountManipulation(t *testing.T) {
	remote := decimal.RequireFromString("1.00")
	verifier := &fakeVerifier{outcome: &fonepay.VerificationOutcome{
		Status:       fonepay.S2SSuccess,
		HTTPStatus:   200,
		RemoteAmount: &remote,
	}}
	env := newTestEnv(verifier, false, "C1")
	session := env.createSession(t, "C1", 5)

	outcome := env.svc.HandleReturn(context.Background(), settledCallback(session, "5.00"))

	assert.Equal(t, model.RedirectErrAmountManipulation, outcome.ErrorCode)
	assert.EqualValues(t, 0, env.contestants.votes("C1"))
}

// =====================================================
// BULK CREDITING
// =====================================================

func TestHandleReturnBulkCreditsAllTargets(t *testing.T) {
	verifier := &fakeVerifier{outcome: settledS2SOutcome()}
	env := newTestEnv(verifier, false, "C1", "C7")
	session := env.createSession(t, "C1", 5)

	payload, err := bulk.Encode([]bulk.Item{
		{ContestantID: "C1", Votes: 2},
		{ContestantID: "C7", Votes: 3},
	})
	require.NoError(t, err)
	session.Aux1 = payload

	outcome := env.svc.HandleReturn(context.Background(), settledCallback(session, "5.00"))

	assert.True(t, outcome.Succeeded())
	assert.EqualValues(t, 2, env.contestants.votes("C1"))
	assert.EqualValues(t, 3, env.contestants.votes("C7"))
}

func TestHandleReturnBulkAbortsAtomically(t *testing.T) {
	verifier := &fakeVerifier{outcome: settledS2SOutcome()}
	env := newTestEnv(verifier, false, "C1") // C7 does not exist
	session := env.createSession(t, "C1", 5)

	payload, err := bulk.Encode([]bulk.Item{
		{ContestantID: "C1", Votes: 2},
		{ContestantID: "C7", Votes: 3},
	})
	require.NoError(t, err)
	session.Aux1 = payload

	outcome := env.svc.HandleReturn(context.Background(), settledCallback(session, "5.00"))

	// The whole credit rolls back: not even the existing contestant moves.
	assert.Equal(t, model.RedirectErrInternal, outcome.ErrorCode)
	assert.EqualValues(t, 0, env.contestants.votes("C1"))
	assert.Equal(t, model.StatusError, session.Status)
	assert.EqualValues(t, 1, env.counter(metrics.CounterTxFail))
	assert.Equal(t, 1, env.txManager.rolled)
}

func TestHandleReturnMalformedBulkFallsBackToPrimary(t *testing.T) {
	verifier := &fakeVerifier{outcome: settledS2SOutcome()}
	env := newTestEnv(verifier, false, "C1")
	session := env.createSession(t, "C1", 5)
	session.Aux1 = "{broken json"

	outcome := env.svc.HandleReturn(context.Background(), settledCallback(session, "5.00"))

	assert.True(t, outcome.Succeeded())
	assert.EqualValues(t, 5, env.contestants.votes("C1"))
}
