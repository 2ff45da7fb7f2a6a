package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string   `env:"PORT" envDefault:"8080"`
	AppEnv      string   `env:"APP_ENV" envDefault:"development"`
	AppURL      string   `env:"APP_URL" envDefault:"http://localhost:3000"`
	CORSOrigins []string `env:"CORS_ORIGIN" envSeparator:"," envDefault:"http://localhost:3000"`

	DBDriver string `env:"DB_DRIVER" envDefault:"postgres"`
	DBURL    string `env:"DB_URL,required"`

	JWTSecret string `env:"JWT_SECRET,required"`

	GoogleClientID         string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret     string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL      string `env:"GOOGLE_REDIRECT_URL"`
	GoogleFrontendRedirect string `env:"GOOGLE_FRONTEND_REDIRECT"`

	StripeSecretKey       string `env:"STRIPE_SECRET_KEY,required"`
	StripeWebhookSecret   string `env:"STRIPE_WEBHOOK_SECRET,required"`
	StripePriceBasic      string `env:"STRIPE_PRICE_BASIC"`
	StripePricePro        string `env:"STRIPE_PRICE_PRO"`
	StripeRequireTestMode bool   `env:"STRIPE_REQUIRE_TEST_MODE" envDefault:"true"`

	RedisURL string `env:"REDIS_URL"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	BillingConfigPath string `env:"BILLING_CONFIG"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.StripeRequireTestMode && !strings.HasPrefix(c.StripeSecretKey, "sk_test_") {
		return errors.New("STRIPE_SECRET_KEY must be a test key (sk_test_...) unless STRIPE_REQUIRE_TEST_MODE=false")
	}
	return nil
}

func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

func (c Config) CheckoutSuccessURL() string {
	return strings.TrimRight(c.AppURL, "/") + "/dashboard/payment-status?session_id={CHECKOUT_SESSION_ID}"
}

func (c Config) CheckoutCancelURL() string {
	return strings.TrimRight(c.AppURL, "/") + "/dashboard/settings?checkout=cancel"
}

func (c Config) PortalReturnURL() string {
	return strings.TrimRight(c.AppURL, "/") + "/dashboard/settings"
}
