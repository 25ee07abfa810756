package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the whole application configuration, populated from
// environment variables.
type Config struct {
	App     AppConfig
	Redis   RedisConfig
	JWT     JWTConfig
	FonePay FonePayConfig
	Voting  VotingConfig
	Jobs    JobConfig
}

type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Port        string
	Version     string
	// BaseURL is this service's externally reachable address. The gateway
	// return URL is built from it, so behind a proxy it must be the public one.
	BaseURL string
}

type RedisConfig struct {
	Host     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

// =====================================================
// FONEPAY CONFIGURATION
// =====================================================

type FonePayConfig struct {
	MerchantID  string // PID assigned by FonePay, fixed per environment
	Secret      string // shared secret for the redirect DV (HMAC-SHA512)
	GatewayURL  string // browser redirect endpoint
	MerchantAPI string // merchant API base URL for S2S verification
	APIUser     string // basic auth user for the merchant API
	APIPass     string // basic auth password for the merchant API
	DevMode     bool   // sandbox: trust the redirect, skip S2S entirely
}

// HasAPICredentials reports whether S2S verification can be attempted.
// Without credentials the return handler falls back to redirect trust.
func (f FonePayConfig) HasAPICredentials() bool {
	return f.APIUser != "" && f.APIPass != ""
}

type VotingConfig struct {
	// UnitPrice is the NPR price of a single vote; amount checks compare
	// against voteCount * UnitPrice with a 0.01 tolerance.
	UnitPrice         string
	Currency          string
	FrontendStatusURL string // browser lands here after the callback, with ?prn= or ?error=
}

type JobConfig struct {
	// StaleSessionMinutes is how long a session may sit in `created` before
	// the worker marks it failed.
	StaleSessionMinutes int
	ExpiryCronSpec      string
}

// Load reads config from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Pageant Voting API"),
			Environment: getEnv("APP_ENV", "development"),
			Port:        getEnv("APP_PORT", "8080"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			BaseURL:     getEnv("APP_BASE_URL", "http://localhost:8080"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "change-me-in-production"),
		},
		FonePay: FonePayConfig{
			MerchantID:  getEnv("FONEPAY_PID", ""),
			Secret:      getEnv("FONEPAY_SECRET", ""),
			GatewayURL:  getEnv("FONEPAY_GATEWAY_URL", "https://dev-clientapi.fonepay.com/api/merchantRequest"),
			MerchantAPI: getEnv("FONEPAY_MERCHANT_API", "https://dev-merchantapi.fonepay.com/api"),
			APIUser:     getEnv("FONEPAY_API_USER", ""),
			APIPass:     getEnv("FONEPAY_API_PASS", ""),
			DevMode:     getEnv("FONEPAY_DEV_MODE", "false") == "true",
		},
		Voting: VotingConfig{
			UnitPrice:         getEnv("VOTE_UNIT_PRICE", "1.00"),
			Currency:          getEnv("VOTE_CURRENCY", "NPR"),
			FrontendStatusURL: getEnv("FRONTEND_STATUS_URL", "http://localhost:3000/payment/status"),
		},
		Jobs: JobConfig{
			StaleSessionMinutes: getEnvInt("STALE_SESSION_MINUTES", 30),
			ExpiryCronSpec:      getEnv("SESSION_EXPIRY_CRON", "*/10 * * * *"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the config is usable for the current environment.
func (c *Config) Validate() error {
	if c.App.Environment == "production" {
		if c.JWT.Secret == "change-me-in-production" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if c.FonePay.MerchantID == "" || c.FonePay.Secret == "" {
			return fmt.Errorf("FONEPAY_PID and FONEPAY_SECRET must be set in production")
		}
		if c.FonePay.DevMode {
			return fmt.Errorf("FONEPAY_DEV_MODE must not be enabled in production")
		}
		if !c.FonePay.HasAPICredentials() {
			fmt.Println("WARNING: FonePay API credentials not set - payments settle on redirect trust only")
		}
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
