package model

import (
	"errors"
	"fmt"
)

// =====================================================
// PREDEFINED ERRORS
// =====================================================

var (
	ErrSessionNotFound = errors.New("payment session not found")

	// ErrReplayDetected means the conditional update guarding the credit
	// matched zero rows: another execution already credited this payment.
	// Not an error to the end user, but must be visible in logs/metrics.
	ErrReplayDetected = errors.New("payment already credited")

	// ErrSignatureMismatch is a hard DV failure, i.e. tamper evidence.
	ErrSignatureMismatch = errors.New("response signature mismatch")

	// ErrSignatureUnavailable is the soft skip: the callback is missing a
	// field needed for verification. Not tamper evidence.
	ErrSignatureUnavailable = errors.New("response signature not verifiable")

	ErrAmountMismatch     = errors.New("paid amount does not match expected amount")
	ErrMerchantMismatch   = errors.New("merchant id does not match session")
	ErrMissingFields      = errors.New("callback missing required fields")
	ErrGatewayUnreachable = errors.New("gateway verification API unreachable")

	// ErrTransactionFailure means a bulk credit aborted partway; the whole
	// database transaction was rolled back and no contestant was credited.
	ErrTransactionFailure = errors.New("vote credit transaction failed")
)

// =====================================================
// TYPED PAYMENT ERROR
// =====================================================

type PaymentError struct {
	Code    string
	Message string
	Err     error
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

func NewPaymentError(code, message string, err error) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewSessionNotFoundError(prn string) *PaymentError {
	return NewPaymentError(
		ErrCodeSessionNotFound,
		fmt.Sprintf("Payment session not found: %s", prn),
		ErrSessionNotFound,
	)
}

func NewContestantUnknownError(id string) *PaymentError {
	return NewPaymentError(
		ErrCodeContestantUnknown,
		fmt.Sprintf("Unknown contestant: %s", id),
		nil,
	)
}
