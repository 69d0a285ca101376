package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/pricing"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (STORE_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL for coupon rules (STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Geography   GeographyConfig
	OrderAPI    OrderAPIConfig
	Shipping    ShippingConfig
	Coupons     CouponsConfig
	Session     SessionConfig
	Storefront  StorefrontConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// GeographyConfig locates the location dataset.
type GeographyConfig struct {
	Source  string        `default:"./data" usage:"Dataset base URL (http/https) or directory"`
	Timeout time.Duration `default:"10s" usage:"Timeout of one dataset load"`
}

// OrderAPIConfig points at the remote order service.
type OrderAPIConfig struct {
	BaseURL string        `usage:"Order API base URL (e.g. https://api.example.com/api/v1)" flag:"order-api-url"`
	Timeout time.Duration `default:"15s" usage:"Order API request timeout"`
}

// ShippingConfig is the two-tier shipping table. Amounts are decimal strings.
type ShippingConfig struct {
	PrivilegedDivision string `default:"Dhaka" usage:"Division charged the inside rate"`
	Inside             string `default:"80" usage:"Shipping charge inside the privileged division"`
	Outside            string `default:"150" usage:"Shipping charge elsewhere"`
}

// Table parses the configured amounts.
func (c ShippingConfig) Table() (pricing.ShippingTable, error) {
	inside, err := decimal.NewFromString(c.Inside)
	if err != nil {
		return pricing.ShippingTable{}, errors.Wrap(err, "parse inside rate")
	}
	outside, err := decimal.NewFromString(c.Outside)
	if err != nil {
		return pricing.ShippingTable{}, errors.Wrap(err, "parse outside rate")
	}
	if inside.IsNegative() || outside.IsNegative() {
		return pricing.ShippingTable{}, errors.New("shipping rates must not be negative")
	}
	return pricing.ShippingTable{
		PrivilegedDivision: c.PrivilegedDivision,
		Inside:             inside,
		Outside:            outside,
	}, nil
}

// CouponsConfig controls the known-code filter in front of the coupon table.
type CouponsConfig struct {
	FilterRefresh time.Duration `default:"5m" usage:"Interval of known-code filter rebuilds; zero disables the filter" flag:"coupon-filter-refresh"`
}

// SessionConfig controls the in-memory session registry.
type SessionConfig struct {
	TTL           time.Duration `default:"2h" usage:"Idle time before a session is evicted"`
	SweepInterval time.Duration `default:"1m" usage:"Interval of the idle session sweep" flag:"session-sweep-interval"`
}

// StorefrontConfig is exposed to the UI.
type StorefrontConfig struct {
	ImageHosts []string `usage:"Hosts allowed for item thumbnails; empty allows any" flag:"image-hosts"`
	PixelID    string   `usage:"Analytics pixel id" flag:"pixel-id"`
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

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STORE",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set STORE_DATABASE_URL or DATABASE_URL")
	}
	if c.OrderAPI.BaseURL == "" {
		return errors.New("order API URL is required: set STORE_ORDER_API_BASE_URL")
	}
	if strings.TrimSpace(c.Geography.Source) == "" {
		return errors.New("geography source is required")
	}
	if c.Session.TTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	if _, err := c.Shipping.Table(); err != nil {
		return errors.Wrap(err, "shipping")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STORE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
