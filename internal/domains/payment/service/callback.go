package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"pageant-backend/internal/domains/payment/gateway/fonepay"
	"pageant-backend/internal/domains/payment/model"
	"pageant-backend/pkg/logger"
	"pageant-backend/pkg/metrics"
)

// =====================================================
// RETURN CALLBACK PIPELINE
// =====================================================

// HandleReturn runs the verification pipeline for a gateway callback.
//
// Business Logic Flow:
// 1. Check the minimum field set (PRN, PID, DV)
// 2. Look up the session; unknown PRN triggers a diagnostic-only search
// 3. Short-circuit replays of already-settled sessions
// 4. Check PID matches the session's merchant; a mismatch redirects
//    without touching the session at all
// 5. Snapshot the raw callback for audit
// 6. Check the gateway's own success flag
// 7. Verify the DV (soft-skip when verification material is incomplete)
// 8. Check the paid amount against the session within tolerance
// 9. Confirm and credit per the trust decision table
//
// Trust decision table for step 9:
//
//	dev mode            -> credit best-effort,     verification=skipped
//	no API credentials  -> credit best-effort,     verification=bypassed
//	S2S unreachable     -> credit transactionally, verification=skipped
//	S2S non-2xx/unknown -> credit transactionally, verification=skipped
//	S2S says failed     -> session error,          redirect payment_failed
//	S2S confirms        -> credit transactionally, verification=success
//
// The pipeline never returns an error: every path collapses into a
// ReturnOutcome because the voter's browser must always be redirected.
func (s *paymentService) HandleReturn(ctx context.Context, cb *model.ReturnCallback) *ReturnOutcome {
	// Step 1: Minimum field set
	if !cb.HasRequiredFields() {
		logger.Warn("Callback missing required fields", map[string]interface{}{
			"prn": cb.PRN, "pid": cb.PID, "has_dv": cb.DV != "",
		})
		s.searchOrphanCallback(ctx, cb)
		return &ReturnOutcome{PRN: cb.PRN, ErrorCode: model.RedirectErrMissingFields}
	}

	// Step 2: Session lookup
	session, err := s.sessionRepo.GetByPRN(ctx, cb.PRN)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			logger.Warn("Callback for unknown PRN", map[string]interface{}{"prn": cb.PRN})
			s.searchOrphanCallback(ctx, cb)
			return &ReturnOutcome{PRN: cb.PRN, ErrorCode: model.RedirectErrUnknownPRN}
		}
		logger.Error("Failed to load session for callback", err)
		return &ReturnOutcome{PRN: cb.PRN, ErrorCode: model.RedirectErrInternal}
	}

	// Step 3: Replay short-circuit. Settled sessions answer from their
	// stored outcome; the crediting fence below is the backstop for the
	// race where two callbacks arrive before either settles.
	if session.Status.Terminal() {
		s.counters.Incr(ctx, metrics.CounterReplayAttempt)
		logger.Warn("Duplicate callback for settled session", map[string]interface{}{
			"prn": session.ReferenceID, "status": string(session.Status),
		})
		if session.Credited() {
			return &ReturnOutcome{PRN: session.ReferenceID}
		}
		return &ReturnOutcome{PRN: session.ReferenceID, ErrorCode: terminalErrorCode(session.Status)}
	}

	// Step 4: Merchant check. PRNs are guessable, so a wrong PID may be a
	// forgery probing a live session. It proves nothing about the payment:
	// the session stays exactly as it was so the genuine gateway callback
	// can still settle it.
	if cb.PID != session.MerchantID {
		logger.Warn("Callback PID does not match session merchant", map[string]interface{}{
			"prn": session.ReferenceID, "got": cb.PID,
		})
		return &ReturnOutcome{PRN: session.ReferenceID, ErrorCode: model.RedirectErrPIDMismatch}
	}

	// Step 5: Audit snapshot, before any verdict is reached
	if err := s.sessionRepo.SaveResponseSnapshot(ctx, session.ID, cb); err != nil {
		logger.Error("Failed to snapshot callback", err)
	}

	// Step 6: Gateway's own verdict
	if !cb.Success() {
		s.settleFailed(ctx, session, model.StatusFailed, model.VerificationPending)
		return &ReturnOutcome{PRN: session.ReferenceID, ErrorCode: model.RedirectErrPaymentFailed}
	}

	// Step 7: DV verification
	dvResult := s.verifyCallbackSignature(cb)
	switch dvResult {
	case fonepay.VerifyMismatch:
		s.counters.Incr(ctx, metrics.CounterDVMismatch)
		logger.Warn("Callback DV mismatch", map[string]interface{}{"prn": session.ReferenceID})
		s.settleFailed(ctx, session, model.StatusError, model.VerificationFailed)
		return &ReturnOutcome{PRN: session.ReferenceID, ErrorCode: model.RedirectErrDVMismatch}
	case fonepay.VerifySkipped:
		// Some declined-then-retried flows echo a partial field set. Not
		// tamper evidence, so the pipeline continues on the remaining checks.
		logger.Warn("Callback DV not verifiable, continuing unverified", map[string]interface{}{
			"prn": session.ReferenceID,
		})
	}

	// Step 8: Amount check
	if code := s.checkPaidAmount(session, cb, dvResult); code != "" {
		s.settleFailed(ctx, session, model.StatusError, model.VerificationFailed)
		return &ReturnOutcome{PRN: session.ReferenceID, ErrorCode: code}
	}

	// Step 9: Confirm and credit
	return s.confirmAndCredit(ctx, session)
}

// verifyCallbackSignature checks the DV over the inbound field order.
// Verification needs the full signed tuple; when the gateway omitted part
// of it the result is a skip, not a failure.
func (s *paymentService) verifyCallbackSignature(cb *model.ReturnCallback) fonepay.VerifyResult {
	if cb.UID == "" || cb.BC == "" || cb.INI == "" || cb.PAmt == "" {
		return fonepay.VerifySkipped
	}
	params := map[string]string{
		"PRN":   cb.PRN,
		"PID":   cb.PID,
		"PS":    cb.PS,
		"RC":    cb.RC,
		"UID":   cb.UID,
		"BC":    cb.BC,
		"INI":   cb.INI,
		"P_AMT": cb.PAmt,
		"R_AMT": cb.RAmt,
	}
	return fonepay.VerifyParams(s.gateway.Secret, params, fonepay.ReturnFieldOrder, cb.DV)
}

// checkPaidAmount compares P_AMT to the session amount within the fixed
// tolerance. Returns the redirect error code, empty when the amount is
// acceptable. A verified signature over a wrong amount means the request
// itself was manipulated before signing, which gets its own code.
func (s *paymentService) checkPaidAmount(session *model.PaymentSession, cb *model.ReturnCallback, dvResult fonepay.VerifyResult) string {
	paid, err := decimal.NewFromString(cb.PAmt)
	if err != nil {
		logger.Warn("Callback paid amount unparseable", map[string]interface{}{
			"prn": session.ReferenceID, "p_amt": cb.PAmt,
		})
		return model.RedirectErrAmountMismatch
	}

	tolerance := decimal.RequireFromString(model.AmountTolerance)
	if paid.Sub(session.Amount).Abs().GreaterThan(tolerance) {
		logger.Warn("Callback paid amount outside tolerance", map[string]interface{}{
			"prn": session.ReferenceID, "expected": session.Amount.String(), "paid": paid.String(),
		})
		if dvResult == fonepay.VerifyOK {
			return model.RedirectErrAmountManipulation
		}
		return model.RedirectErrAmountMismatch
	}

	return ""
}

// confirmAndCredit implements the trust decision table and turns its row
// into a credit call plus a redirect outcome.
func (s *paymentService) confirmAndCredit(ctx context.Context, session *model.PaymentSession) *ReturnOutcome {
	// Dev mode: sandbox gateways sign correctly but their merchant API is
	// unreliable, so the redirect is trusted as-is. Same best-effort path
	// as the credential-less bypass below.
	if s.gateway.DevMode {
		return s.finishCredit(ctx, session, false, model.VerificationSkipped)
	}

	// No API credentials: legacy bypass path, best effort.
	if s.verifier == nil {
		return s.finishCredit(ctx, session, false, model.VerificationBypassed)
	}

	outcome, err := s.verifier.VerifyTransaction(ctx, session.ReferenceID, session.Amount)
	if err != nil {
		// Unreachable merchant API must not strand a paid voter; settle on
		// redirect trust and let reconciliation re-check skipped sessions.
		logger.Error(fmt.Sprintf("S2S verification unreachable for prn %s, settling on redirect trust",
			session.ReferenceID), err)
		return s.finishCredit(ctx, session, true, model.VerificationSkipped)
	}

	if outcome.Raw != nil {
		if err := s.sessionRepo.SaveGatewayAPIResponse(ctx, session.ID, outcome.Raw); err != nil {
			logger.Error("Failed to store S2S response", err)
		}
	}

	switch {
	case outcome.Settled():
		s.counters.Incr(ctx, metrics.CounterS2SSuccess)
		if code := s.checkRemoteAmount(session, outcome); code != "" {
			s.settleFailed(ctx, session, model.StatusError, model.VerificationFailed)
			return &ReturnOutcome{PRN: session.ReferenceID, ErrorCode: code}
		}
		return s.finishCredit(ctx, session, true, model.VerificationSuccess)

	case outcome.HTTPStatus >= 200 && outcome.HTTPStatus < 300 && outcome.Status == fonepay.S2SFailed:
		// The redirect claimed success but the merchant API disagrees.
		// The API wins.
		logger.Warn("S2S verification contradicts redirect", map[string]interface{}{
			"prn": session.ReferenceID,
		})
		s.settleFailed(ctx, session, model.StatusError, model.VerificationFailed)
		return &ReturnOutcome{PRN: session.ReferenceID, ErrorCode: model.RedirectErrPaymentFailed}

	default:
		// API errors and indeterminate answers degrade to redirect trust,
		// same as unreachable.
		logger.Warn("S2S verification indeterminate, settling on redirect trust", map[string]interface{}{
			"prn": session.ReferenceID, "http_status": outcome.HTTPStatus, "s2s": string(outcome.Status),
		})
		return s.finishCredit(ctx, session, true, model.VerificationSkipped)
	}
}

// checkRemoteAmount cross-checks the amount the merchant API reports.
func (s *paymentService) checkRemoteAmount(session *model.PaymentSession, outcome *fonepay.VerificationOutcome) string {
	if outcome.RemoteAmount == nil {
		return ""
	}
	tolerance := decimal.RequireFromString(model.AmountTolerance)
	if outcome.RemoteAmount.Sub(session.Amount).Abs().GreaterThan(tolerance) {
		logger.Warn("S2S amount outside tolerance", map[string]interface{}{
			"prn": session.ReferenceID, "expected": session.Amount.String(), "remote": outcome.RemoteAmount.String(),
		})
		return model.RedirectErrAmountManipulation
	}
	return ""
}

// finishCredit runs the chosen credit path and maps its result onto a
// redirect outcome. Replays are a success for the voter.
func (s *paymentService) finishCredit(ctx context.Context, session *model.PaymentSession, transactional bool, verification model.VerificationStatus) *ReturnOutcome {
	var err error
	if transactional {
		err = s.creditTransactional(ctx, session, verification)
	} else {
		err = s.creditBestEffort(ctx, session, verification)
	}

	switch {
	case err == nil, errors.Is(err, model.ErrReplayDetected):
		return &ReturnOutcome{PRN: session.ReferenceID}
	default:
		return &ReturnOutcome{PRN: session.ReferenceID, ErrorCode: model.RedirectErrInternal}
	}
}

// settleFailed records a terminal non-credited outcome, logging rather
// than propagating persistence errors: the redirect happens regardless.
func (s *paymentService) settleFailed(ctx context.Context, session *model.PaymentSession, status model.Status, verification model.VerificationStatus) {
	if err := s.sessionRepo.UpdateOutcome(ctx, session.ID, status, verification); err != nil {
		logger.Error("Failed to persist session outcome", err)
	}
}

// searchOrphanCallback is diagnostics only: when a callback cannot be tied
// to a session by PRN, look for a plausible candidate by amount so the
// operator log has something to start from. Never credits.
func (s *paymentService) searchOrphanCallback(ctx context.Context, cb *model.ReturnCallback) {
	if cb.PAmt == "" {
		return
	}
	paid, err := decimal.NewFromString(cb.PAmt)
	if err != nil {
		return
	}
	window := time.Duration(model.FallbackSearchWindowMinutes) * time.Minute
	candidate, err := s.sessionRepo.FindRecentCreatedByAmount(ctx, paid, window)
	if err != nil {
		return
	}
	logger.Warn("Orphan callback has an amount-matched candidate session", map[string]interface{}{
		"callback_prn":  cb.PRN,
		"candidate_prn": candidate.ReferenceID,
		"amount":        paid.String(),
	})
}

func terminalErrorCode(status model.Status) string {
	switch status {
	case model.StatusFailed:
		return model.RedirectErrPaymentFailed
	default:
		return model.RedirectErrInternal
	}
}
