package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (STREAMCART_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STREAMCART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	BaseURL     string `default:"http://localhost:8080" usage:"Externally visible origin for payment redirect URLs" flag:"base-url"`
	Currency    string `default:"inr" usage:"ISO currency code for all checkouts"`

	StripeSecretKey string `usage:"Stripe API secret key (STREAMCART_STRIPE_SECRET_KEY)" flag:"stripe-secret-key"`

	AdminUser string `default:"admin" usage:"Basic auth user for /admin endpoints" flag:"admin-user"`
	AdminPass string `usage:"Basic auth password for /admin endpoints" flag:"admin-pass"`

	CookieSecure bool `default:"false" usage:"Mark the cart session cookie Secure" flag:"cookie-secure"`

	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// RateLimitConfig controls the per-client rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"true" usage:"Allow credentials (cookies)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STREAMCART",
		Files:     []string{"config.yaml", "/etc/streamcart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set STREAMCART_DATABASE_URL or DATABASE_URL")
	}
	if cfg.StripeSecretKey == "" {
		return nil, errors.New("stripe secret key is required: set STREAMCART_STRIPE_SECRET_KEY")
	}
	if cfg.AdminPass == "" {
		return nil, errors.New("admin password is required: set STREAMCART_ADMIN_PASS")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) using standard names like DATABASE_URL and PORT
// onto the STREAMCART_-prefixed configuration.
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
