// Package config defines the global configuration structure for the
// CareerVision entitlement service. Configuration is loaded once at process
// initialization and is immutable thereafter, following 12-Factor principles:
// OS environment takes priority over the optional .env file.
//
// Any missing required value or invalid format causes startup to fail
// immediately (fail fast).
package config

import (
	"time"

	"careervision/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// specific config subsets they require.
type Config struct {
	// System metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"careervision-entitlement"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain configurations
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Billing     BillingConfig
	Unlock      UnlockConfig
	Entitlement EntitlementConfig
	Security    SecurityConfig

	// Build metadata (populated from linker-injected variables, not env)
	Build BuildInfo `ignored:"true"`
}

// BuildInfo holds compile-time version metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into the typed Config fields.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// Public URLs for redirects (no trailing slash)
	DashboardURL string `envconfig:"DASHBOARD_URL" validate:"required,url"` // e.g., https://app.careervision.io
	LoginPath    string `envconfig:"LOGIN_PATH" default:"/login"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout  time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
}

// RedisConfig holds the connection settings for the rate-limit store.
type RedisConfig struct {
	Addr     string       `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password SecretString `envconfig:"REDIS_PASSWORD"`
	DB       int          `envconfig:"REDIS_DB" default:"0"`
}

// BillingConfig holds Stripe payment integration credentials and the
// plan-to-price mapping. The price IDs are the only place plan/price
// translation is configured.
type BillingConfig struct {
	StripeSecretKey     SecretString `envconfig:"STRIPE_SECRET_KEY" validate:"required"`
	StripeWebhookSecret SecretString `envconfig:"STRIPE_WEBHOOK_SECRET" validate:"required"`
	PriceIDMonthly      string       `envconfig:"STRIPE_PRICE_MONTHLY" validate:"required"`
	PriceIDYearly       string       `envconfig:"STRIPE_PRICE_YEARLY" validate:"required"`
	// BaseURL overrides the Stripe API base URL; used by tests and local
	// stripe-mock setups. Empty means the production API.
	BaseURL string `envconfig:"STRIPE_BASE_URL"`
}

// UnlockConfig holds the pre-release unlock gate settings. The code is a
// static shared constant: it fences a pre-release build against casual
// visitors and is not a security boundary.
type UnlockConfig struct {
	Code     SecretString  `envconfig:"UNLOCK_CODE" default:"4E21"`
	Duration time.Duration `envconfig:"UNLOCK_DURATION" default:"12h"`
	// StateFile is the durable local file holding the single numeric
	// millisecond-expiry value for the unlock grant.
	StateFile string `envconfig:"UNLOCK_STATE_FILE" default:"dev_unlock_expiry"`
}

// EntitlementConfig selects and configures the subscription oracle.
type EntitlementConfig struct {
	// Mode selects the oracle implementation once at startup: "remote"
	// queries the billing-status endpoint; "local" derives the plan
	// deterministically from durable local state (offline/testing).
	// The two are never mixed mid-session.
	Mode string `envconfig:"ENTITLEMENT_MODE" default:"remote" validate:"oneof=remote local"`
	// StatusURL is the billing-status endpoint the remote oracle POSTs to.
	StatusURL string `envconfig:"SUBSCRIPTION_STATUS_URL" validate:"required_if=Mode remote,omitempty,url"`
	// StatusKey is the bearer credential for the status endpoint.
	StatusKey SecretString `envconfig:"SUBSCRIPTION_STATUS_KEY"`
	// LocalStateFile persists the inferred plan in local mode.
	LocalStateFile string `envconfig:"ENTITLEMENT_LOCAL_STATE_FILE" default:"mock_subscription_plan"`
}

// SecurityConfig holds CORS and rate limit settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	RateLimitPerMinute int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
	RateLimitWindow    time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}
