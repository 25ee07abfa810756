package fonepay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pageant-backend/pkg/logger"

	"github.com/shopspring/decimal"
)

// =====================================================
// S2S VERIFICATION CLIENT
// =====================================================

const clientTimeout = 10 * time.Second

// S2SStatus is the payment state the merchant API reports.
type S2SStatus string

const (
	S2SSuccess S2SStatus = "success"
	S2SFailed  S2SStatus = "failed"
	S2SPending S2SStatus = "pending"
	S2SUnknown S2SStatus = "unknown"
)

// VerificationRequest is the merchant API txnVerification body.
type VerificationRequest struct {
	PRN          string `json:"prn"`
	MerchantCode string `json:"merchantCode"`
	Amount       string `json:"amount"`
}

// VerificationOutcome is what the merchant API said about a transaction,
// plus the raw payload for the audit column. HTTPStatus is informational:
// a non-2xx answer is an outcome, not a transport error.
type VerificationOutcome struct {
	Status       S2SStatus
	HTTPStatus   int
	RemoteAmount *decimal.Decimal
	Raw          map[string]interface{}
}

// Settled reports whether the API confirmed the payment.
func (o *VerificationOutcome) Settled() bool {
	return o != nil && o.HTTPStatus >= 200 && o.HTTPStatus < 300 && o.Status == S2SSuccess
}

// VerificationClient confirms payments server-to-server against the
// FonePay merchant API. It is only constructed when API credentials are
// configured; without it the return handler settles on redirect trust.
type VerificationClient struct {
	config     *Config
	httpClient *http.Client
}

func NewVerificationClient(config *Config) *VerificationClient {
	return &VerificationClient{
		config: config,
		httpClient: &http.Client{
			Timeout: clientTimeout,
		},
	}
}

// VerifyTransaction asks the merchant API whether prn actually settled.
// The request carries HTTP basic auth plus an HMAC auth header computed
// over the credentials, method, content type, resource path and body.
//
// Returns an error only when the API could not be reached at all; every
// HTTP answer, including 4xx/5xx, comes back as an outcome so the caller
// can decide how to degrade.
func (c *VerificationClient) VerifyTransaction(ctx context.Context, prn string, amount decimal.Decimal) (*VerificationOutcome, error) {
	reqBody := VerificationRequest{
		PRN:          prn,
		MerchantCode: c.config.MerchantID,
		Amount:       amount.StringFixed(2),
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal verification request: %w", err)
	}

	endpoint := c.config.VerificationURL()
	resourcePath, err := resourcePathOf(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid merchant API url: %w", err)
	}

	const contentType = "application/json"
	// The auth header signs the exact bytes about to be sent, joined the
	// same way the DV is.
	authDigest := Sign(c.config.Secret, []string{
		c.config.APIUser,
		c.config.APIPass,
		http.MethodPost,
		contentType,
		resourcePath,
		string(body),
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build verification request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Auth", authDigest)
	req.SetBasicAuth(c.config.APIUser, c.config.APIPass)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("FonePay verification API unreachable", err)
		return nil, fmt.Errorf("verification call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read verification response: %w", err)
	}

	outcome := &VerificationOutcome{
		Status:     S2SUnknown,
		HTTPStatus: resp.StatusCode,
	}
	if len(raw) > 0 {
		var payload map[string]interface{}
		if err := json.Unmarshal(raw, &payload); err != nil {
			// Keep the body for audit even when it is not JSON.
			outcome.Raw = map[string]interface{}{"body": string(raw)}
			logger.Warn("FonePay verification response is not JSON", map[string]interface{}{
				"prn":    prn,
				"status": resp.StatusCode,
			})
			return outcome, nil
		}
		outcome.Raw = payload
		outcome.Status = parseStatus(payload)
		outcome.RemoteAmount = parseAmount(payload)
	}

	logger.Debug(fmt.Sprintf("FonePay verification completed: prn=%s http=%d status=%s",
		prn, resp.StatusCode, outcome.Status))

	return outcome, nil
}

// resourcePathOf extracts the path component the auth header must sign.
func resourcePathOf(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	if u.Path == "" {
		return "/", nil
	}
	return u.Path, nil
}

func parseStatus(payload map[string]interface{}) S2SStatus {
	for _, key := range []string{"paymentStatus", "status", "txnStatus"} {
		s, ok := payload[key].(string)
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "success", "successful", "true":
			return S2SSuccess
		case "failed", "failure", "false":
			return S2SFailed
		case "pending":
			return S2SPending
		}
	}
	return S2SUnknown
}

func parseAmount(payload map[string]interface{}) *decimal.Decimal {
	for _, key := range []string{"amount", "txnAmount", "paidAmount"} {
		switch v := payload[key].(type) {
		case string:
			if amt, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
				return &amt
			}
		case float64:
			amt := decimal.NewFromFloat(v)
			return &amt
		}
	}
	return nil
}
