package fonepay

import (
	"fmt"
)

// =====================================================
// FONEPAY CONFIGURATION
// =====================================================

type Config struct {
	MerchantID  string // PID assigned by FonePay
	Secret      string // shared secret for the redirect DV
	GatewayURL  string // browser redirect endpoint
	MerchantAPI string // merchant API base for S2S verification
	APIUser     string // merchant API basic auth user
	APIPass     string // merchant API basic auth password
	DevMode     bool   // sandbox: trust the redirect, never call S2S
	Currency    string // CRN, single fixed currency
}

// NewConfig creates FonePay configuration
func NewConfig(merchantID, secret, gatewayURL, merchantAPI, apiUser, apiPass string) *Config {
	return &Config{
		MerchantID:  merchantID,
		Secret:      secret,
		GatewayURL:  gatewayURL,
		MerchantAPI: merchantAPI,
		APIUser:     apiUser,
		APIPass:     apiPass,
		Currency:    "NPR",
	}
}

// Validate validates configuration
func (c *Config) Validate() error {
	if c.MerchantID == "" {
		return fmt.Errorf("FonePay MerchantID is required")
	}
	if c.Secret == "" {
		return fmt.Errorf("FonePay Secret is required")
	}
	if c.GatewayURL == "" {
		return fmt.Errorf("FonePay GatewayURL is required")
	}
	if c.Currency == "" {
		c.Currency = "NPR"
	}
	return nil
}

// HasAPICredentials reports whether the S2S verification call can be made.
// Without credentials the return handler settles on redirect trust.
func (c *Config) HasAPICredentials() bool {
	return c.APIUser != "" && c.APIPass != ""
}

// VerificationURL is the merchant API endpoint for transaction confirmation.
func (c *Config) VerificationURL() string {
	return c.MerchantAPI + VerificationPath
}

// =====================================================
// PROTOCOL CONSTANTS
// =====================================================

const (
	// ModePayment is the MD token for a payment request.
	ModePayment = "P"

	// RequestIndicator is the RI token identifying the integration.
	RequestIndicator = "merchant"

	// DateLayout renders DT the way the gateway signs it.
	DateLayout = "01/02/2006" // MM/DD/YYYY

	// VerificationPath is the merchant API resource for S2S confirmation.
	VerificationPath = "/merchant/merchantDetailsForThirdParty/txnVerification"
)
