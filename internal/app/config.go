package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration, loadable from
// environment variables (TWC_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (TWC_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Checkout    CheckoutConfig
	Cashfree    CashfreeConfig
	Verify      VerifyConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// CheckoutConfig controls order placement policy.
type CheckoutConfig struct {
	// DeliveryChargePerItem is the flat per-line delivery charge in rupees.
	// It is recorded for cost reporting and always fully waived.
	DeliveryChargePerItem int `default:"80" usage:"Delivery charge per order line, in rupees" flag:"delivery-charge"`
	// CancelWindow is how long after placement a customer may cancel.
	CancelWindow time.Duration `default:"3h" usage:"Customer cancellation window" flag:"cancel-window"`
}

// CashfreeConfig holds payment gateway credentials and environment settings.
type CashfreeConfig struct {
	BaseURL   string `default:"https://sandbox.cashfree.com/pg" usage:"Cashfree API base URL" flag:"cashfree-base-url"`
	AppID     string `usage:"Cashfree app id (TWC_CASHFREE_APP_ID)" flag:"cashfree-app-id"`
	SecretKey string `usage:"Cashfree secret key (TWC_CASHFREE_SECRET_KEY)" flag:"cashfree-secret-key"`
	ReturnURL string `usage:"Hosted checkout return URL; {order_id} is substituted" flag:"cashfree-return-url"`
	NotifyURL string `usage:"Webhook delivery URL" flag:"cashfree-notify-url"`
	// MaxAmount caps a single order in rupees. Sandbox credentials reject
	// anything above 5000; zero disables the local pre-flight check.
	MaxAmount int `default:"5000" usage:"Max order amount accepted by the gateway, in rupees" flag:"cashfree-max-amount"`
}

// VerifyConfig bounds the synchronous payment verification poll.
type VerifyConfig struct {
	PollInterval    time.Duration `default:"2s" usage:"Delay between gateway status polls" flag:"verify-poll-interval"`
	PollMaxAttempts int           `default:"5"  usage:"Max gateway status polls per verify call" flag:"verify-poll-attempts"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// DeliveryCharge returns the per-line delivery charge as a decimal.
func (c CheckoutConfig) DeliveryCharge() decimal.Decimal {
	return decimal.NewFromInt(int64(c.DeliveryChargePerItem))
}

// MaxOrderAmount returns the gateway amount cap as a decimal.
func (c CashfreeConfig) MaxOrderAmount() decimal.Decimal {
	return decimal.NewFromInt(int64(c.MaxAmount))
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "TWC",
		Files:     []string{"config.yaml", "/etc/twc/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set TWC_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's TWC_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
