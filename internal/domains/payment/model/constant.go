package model

// =====================================================
// SETTLEMENT STATUS
// =====================================================

// Status is the externally meaningful settlement state of a payment
// session. It only ever moves forward from StatusCreated; a session that
// reached StatusSuccess is never reverted by a late duplicate callback.
type Status string

const (
	StatusCreated Status = "created"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
	StatusError   Status = "error"
)

func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusSuccess, StatusFailed, StatusPending, StatusError:
		return true
	}
	return false
}

// Terminal reports whether a later callback may still change the status.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusError
}

// =====================================================
// VERIFICATION STATUS
// =====================================================

// VerificationStatus records HOW success was established and doubles as
// the idempotency guard: crediting is only allowed to move this field to
// VerificationSuccess once, via the conditional update in the repository.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationSkipped  VerificationStatus = "skipped"  // S2S unreachable or dev mode, settled on redirect trust
	VerificationBypassed VerificationStatus = "bypassed" // no API credentials configured
	VerificationSuccess  VerificationStatus = "success"
	VerificationFailed   VerificationStatus = "failed"
)

func (v VerificationStatus) Valid() bool {
	switch v {
	case VerificationPending, VerificationSkipped, VerificationBypassed, VerificationSuccess, VerificationFailed:
		return true
	}
	return false
}

// Credited reports whether votes were already granted for this session,
// whichever trust path granted them. The crediting fence only fires when
// this is still false.
func (v VerificationStatus) Credited() bool {
	return v == VerificationSuccess || v == VerificationSkipped || v == VerificationBypassed
}

// =====================================================
// REDIRECT ERROR CODES
// =====================================================

// Error codes surfaced to the frontend status page as ?error=<code>.
// These are a stable contract with the status page; do not rename.
const (
	RedirectErrMissingFields      = "missing_fields"
	RedirectErrUnknownPRN         = "unknown_prn"
	RedirectErrPIDMismatch        = "pid_mismatch"
	RedirectErrDVMismatch         = "dv_mismatch"
	RedirectErrAmountMismatch     = "amount_mismatch"
	RedirectErrAmountManipulation = "amount_manipulation"
	RedirectErrPaymentFailed      = "payment_failed"
	RedirectErrInternal           = "internal"
)

// =====================================================
// INTERNAL ERROR CODES
// =====================================================

const (
	ErrCodeValidation        = "VOTE001"
	ErrCodeContestantUnknown = "VOTE002"
	ErrCodeSessionNotFound   = "VOTE003"
	ErrCodeSignature         = "VOTE004"
	ErrCodeAmount            = "VOTE005"
	ErrCodeGateway           = "VOTE006"
	ErrCodeReplay            = "VOTE007"
	ErrCodeCreditFailed      = "VOTE008"
	ErrCodeInternal          = "VOTE009"
)

// =====================================================
// PAYMENT CONFIGURATION
// =====================================================

const (
	// AmountTolerance is how far the paid amount may drift from
	// voteCount * unitPrice before the session is marked error.
	AmountTolerance = "0.01"

	// PRNPrefix normalizes bare reference ids on lookup.
	PRNPrefix = "prn_"

	// AuxDefault fills R1/R2 when the client sends nothing; the gateway
	// rejects empty auxiliary fields.
	AuxDefault = "N/A"

	// AuxMaxLen is the documented R1/R2 cap. Unverified against the live
	// gateway but treated as hard until confirmed otherwise.
	AuxMaxLen = 50

	// FallbackSearchWindowMinutes bounds the diagnostic search for
	// callbacks whose PRN is unknown.
	FallbackSearchWindowMinutes = 10

	// ResponseCodeSuccess is the RC value the gateway sends on settled
	// transactions.
	ResponseCodeSuccess = "successful"
)
