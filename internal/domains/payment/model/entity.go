package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =====================================================
// PAYMENT SESSION ENTITY
// =====================================================

// PaymentSession is one purchase attempt: created when the voter asks for
// a redirect URL, finalized when the gateway calls back. Field names are
// stable API surface for reconciliation tooling; rename with care.
type PaymentSession struct {
	ID uuid.UUID `json:"id" db:"id"`

	// ReferenceID is the PRN: unique, immutable, the primary business key.
	ReferenceID string `json:"reference_id" db:"reference_id"`
	MerchantID  string `json:"merchant_id" db:"merchant_id"`

	// Primary contestant; bulk payments carry additional targets in Aux1.
	ContestantID   string `json:"contestant_id" db:"contestant_id"`
	ContestantName string `json:"contestant_name" db:"contestant_name"`
	VoteCount      int    `json:"vote_count" db:"vote_count"`

	Amount   decimal.Decimal `json:"amount" db:"amount"`
	Currency string          `json:"currency" db:"currency"`
	Purpose  string          `json:"purpose" db:"purpose"`

	// Opaque strings echoed back by the gateway. Aux1 (R1) carries the bulk
	// vote payload when one payment credits several contestants.
	Aux1 string `json:"aux1" db:"aux1"`
	Aux2 string `json:"aux2" db:"aux2"`

	// Outbound signed-request snapshot
	ReturnURL        string `json:"return_url" db:"return_url"`
	RequestIndicator string `json:"request_indicator" db:"request_indicator"`
	DateToken        string `json:"date_token" db:"date_token"` // MM/DD/YYYY
	ModeToken        string `json:"mode_token" db:"mode_token"`
	RequestSignature string `json:"request_signature" db:"request_signature"`

	// Inbound response snapshot
	GatewaySuccessFlag *string `json:"gateway_success_flag,omitempty" db:"gateway_success_flag"`
	ResponseCode       *string `json:"response_code,omitempty" db:"response_code"`
	TraceID            *string `json:"trace_id,omitempty" db:"trace_id"`
	BankCode           *string `json:"bank_code,omitempty" db:"bank_code"`
	InitiatorCode      *string `json:"initiator_code,omitempty" db:"initiator_code"`
	PaidAmountRaw      *string `json:"paid_amount_raw,omitempty" db:"paid_amount_raw"`
	RefundAmountRaw    *string `json:"refund_amount_raw,omitempty" db:"refund_amount_raw"`
	ResponseSignature  *string `json:"response_signature,omitempty" db:"response_signature"`

	Status             Status             `json:"status" db:"status"`
	VerificationStatus VerificationStatus `json:"verification_status" db:"verification_status"`

	// Raw payload of the S2S confirmation call, kept for audit.
	GatewayAPIResponse map[string]interface{} `json:"gateway_api_response,omitempty" db:"gateway_api_response"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Credited reports whether the idempotency fence already fired for this
// session: replays of the callback must not credit again.
func (p *PaymentSession) Credited() bool {
	return p.Status == StatusSuccess && p.VerificationStatus.Credited()
}

// ExpectedAmount is what the gateway should have collected.
func (p *PaymentSession) ExpectedAmount(unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(p.VoteCount)))
}

// =====================================================
// PRN HELPERS
// =====================================================

// NormalizePRN prefixes bare numeric/alnum reference ids so that lookups
// by "1694501123456" and "prn_1694501123456" hit the same row.
func NormalizePRN(prn string) string {
	prn = strings.TrimSpace(prn)
	if prn == "" {
		return prn
	}
	if !strings.HasPrefix(prn, PRNPrefix) {
		return PRNPrefix + prn
	}
	return prn
}

// NewPRN generates a reference id for clients that did not supply one.
func NewPRN(now time.Time) string {
	return fmt.Sprintf("%s%d", PRNPrefix, now.UnixMilli())
}
