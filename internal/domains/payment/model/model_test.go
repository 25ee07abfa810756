package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePRN(t *testing.T) {
	assert.Equal(t, "prn_1694501123456", NormalizePRN("1694501123456"))
	assert.Equal(t, "prn_1694501123456", NormalizePRN("prn_1694501123456"))
	assert.Equal(t, "prn_abc", NormalizePRN("  abc  "))
	assert.Equal(t, "", NormalizePRN("   "))
}

func TestNewPRN(t *testing.T) {
	now := time.UnixMilli(1694501123456)
	assert.Equal(t, "prn_1694501123456", NewPRN(now))
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusCreated.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusSuccess.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusError.Terminal())
}

func TestVerificationCredited(t *testing.T) {
	assert.False(t, VerificationPending.Credited())
	assert.False(t, VerificationFailed.Credited())
	assert.True(t, VerificationSuccess.Credited())
	assert.True(t, VerificationSkipped.Credited())
	assert.True(t, VerificationBypassed.Credited())
}

func TestReturnCallbackSuccess(t *testing.T) {
	cb := ReturnCallback{PS: "true", RC: "successful"}
	assert.True(t, cb.Success())

	// Both signals must agree; either alone is not a settled payment.
	assert.False(t, ReturnCallback{PS: "true", RC: "failed"}.Success())
	assert.False(t, ReturnCallback{PS: "false", RC: "successful"}.Success())
}

func TestReturnCallbackHasRequiredFields(t *testing.T) {
	full := ReturnCallback{PRN: "prn_1", PID: "MER123", DV: "ABC"}
	assert.True(t, full.HasRequiredFields())

	assert.False(t, ReturnCallback{PID: "MER123", DV: "ABC"}.HasRequiredFields())
	assert.False(t, ReturnCallback{PRN: "prn_1", DV: "ABC"}.HasRequiredFields())
	assert.False(t, ReturnCallback{PRN: "prn_1", PID: "MER123"}.HasRequiredFields())
}

func TestExpectedAmount(t *testing.T) {
	session := &PaymentSession{VoteCount: 7}
	unit := decimal.RequireFromString("1.50")
	assert.True(t, session.ExpectedAmount(unit).Equal(decimal.RequireFromString("10.50")))
}

func TestCreateSessionRequestValidate(t *testing.T) {
	valid := CreateSessionRequest{Amount: "5.00", Vote: 5, Contestant: "C1"}
	assert.NoError(t, valid.Validate())

	assert.Error(t, CreateSessionRequest{Amount: "", Vote: 5, Contestant: "C1"}.Validate())
	assert.Error(t, CreateSessionRequest{Amount: "abc", Vote: 5, Contestant: "C1"}.Validate())
	assert.Error(t, CreateSessionRequest{Amount: "-1", Vote: 5, Contestant: "C1"}.Validate())
	assert.Error(t, CreateSessionRequest{Amount: "5.00", Vote: 0, Contestant: "C1"}.Validate())
	assert.Error(t, CreateSessionRequest{Amount: "5.00", Vote: 5, Contestant: ""}.Validate())
	assert.Error(t, CreateSessionRequest{Amount: "5.00", Vote: 5, Contestant: "C1", PRN: "bad prn!"}.Validate())

	long := make([]byte, AuxMaxLen+1)
	for i := range long {
		long[i] = 'x'
	}
	// R1 over the gateway cap is accepted here; the session layer downgrades
	// it to the fallback payload. R2 has no fallback and stays a hard reject.
	assert.NoError(t, CreateSessionRequest{Amount: "5.00", Vote: 5, Contestant: "C1", R1: string(long)}.Validate())
	assert.Error(t, CreateSessionRequest{Amount: "5.00", Vote: 5, Contestant: "C1", R2: string(long)}.Validate())

	oversized := make([]byte, 513)
	for i := range oversized {
		oversized[i] = 'x'
	}
	assert.Error(t, CreateSessionRequest{Amount: "5.00", Vote: 5, Contestant: "C1", R1: string(oversized)}.Validate())
}
