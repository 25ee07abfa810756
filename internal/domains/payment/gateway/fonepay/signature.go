package fonepay

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// =====================================================
// DV SIGNATURE ENGINE
// =====================================================
//
// FonePay signs requests and responses with HMAC-SHA512 over the RAW
// parameter values joined by commas in a fixed order. The values are the
// ones the user sees, not the URL-encoded ones: encoding happens after
// signing, on the way into the query string.

// Delimiter joins the ordered values of the signed message.
const Delimiter = ","

// OutboundFieldOrder is the fixed order the payment request is signed in.
// DV itself is appended to the redirect URL after signing.
var OutboundFieldOrder = []string{"RU", "PID", "PRN", "AMT", "CRN", "DT", "RI", "R1", "R2", "MD"}

// ReturnFieldOrder is the fixed order the gateway signs its redirect
// callback in.
var ReturnFieldOrder = []string{"PRN", "PID", "PS", "RC", "UID", "BC", "INI", "P_AMT", "R_AMT"}

// Sign computes the uppercase hex HMAC-SHA512 digest over the ordered raw
// values. Callers pass values in protocol order; Sign never reorders.
func Sign(secret string, values []string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(strings.Join(values, Delimiter)))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

// SignParams picks values out of params following order and signs them.
// Missing keys sign as empty strings, matching gateway behavior for
// optional fields.
func SignParams(secret string, params map[string]string, order []string) string {
	values := make([]string, 0, len(order))
	for _, key := range order {
		values = append(values, params[key])
	}
	return Sign(secret, values)
}

// =====================================================
// VERIFICATION
// =====================================================

// VerifyResult is the tri-state outcome of a DV check. Skipped is not a
// failure: it means the callback did not carry enough material to verify,
// which happens on some declined-payment redirects.
type VerifyResult int

const (
	VerifyOK VerifyResult = iota
	VerifyMismatch
	VerifySkipped
)

func (r VerifyResult) String() string {
	switch r {
	case VerifyOK:
		return "ok"
	case VerifyMismatch:
		return "mismatch"
	case VerifySkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Verify recomputes the digest over values and compares it to the provided
// DV. The comparison is constant-time and case-insensitive; gateways have
// shipped both hex casings.
func Verify(secret string, values []string, provided string) VerifyResult {
	if provided == "" {
		return VerifySkipped
	}
	expected := Sign(secret, values)
	if constantTimeEqualFold(expected, provided) {
		return VerifyOK
	}
	return VerifyMismatch
}

// VerifyParams verifies a callback parameter map against order. If any
// field the signature covers is absent from the map entirely, verification
// is skipped rather than failed: an absent field and an empty field are
// different things on this gateway.
func VerifyParams(secret string, params map[string]string, order []string, provided string) VerifyResult {
	if provided == "" {
		return VerifySkipped
	}
	values := make([]string, 0, len(order))
	for _, key := range order {
		v, ok := params[key]
		if !ok {
			return VerifySkipped
		}
		values = append(values, v)
	}
	return Verify(secret, values, provided)
}

func constantTimeEqualFold(a, b string) bool {
	x := []byte(strings.ToLower(a))
	y := []byte(strings.ToLower(b))
	if len(x) != len(y) {
		return false
	}
	return subtle.ConstantTimeCompare(x, y) == 1
}
