package podengine

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

const devJWTSecret = "podengine-dev-only-secret-do-not-use-in-production"

// SiteConfig holds all configuration for a podengine site.
type SiteConfig struct {
	Name        string `koanf:"site_name"`        // Site name (default "Podcast")
	URL         string `koanf:"site_url"`         // Canonical URL (default "http://localhost:3000")
	Description string `koanf:"site_description"` // Site description for RSS and meta tags
	Author      string `koanf:"site_author"`      // Author name for JSON-LD and iTunes tags

	Addr         string `koanf:"addr"`          // Listen address (default ":3000")
	DatabasePath string `koanf:"database_path"` // SQLite path (default "data/podcast.db")
	UploadDir    string `koanf:"upload_dir"`    // Upload directory (default "public/uploads")
	StaticDir    string `koanf:"static_dir"`    // User-owned static assets (default "public")
	Environment  string `koanf:"environment"`   // "development" or "production" (default "development")

	JWTSecret string        `koanf:"jwt_secret"` // Required in production
	TokenTTL  time.Duration `koanf:"token_ttl"`  // Admin token lifetime (default 7 days)

	LoginRateLimit   int           `koanf:"login_rate_limit"`    // Login attempts per window (default 10)
	UploadRateLimit  int           `koanf:"upload_rate_limit"`   // Uploads per window (default 10)
	RateLimitWindow  time.Duration `koanf:"rate_limit_window"`   // Sliding window (default 1min)
	RateLimitMaxKeys int           `koanf:"rate_limit_max_keys"` // Tracked keys per limiter (default 10000)

	CacheTTL time.Duration `koanf:"cache_ttl"` // Public page cache TTL (default 5min)

	LogLevel  string `koanf:"log_level"`  // trace, debug, info, warn, error (default "info")
	LogFormat string `koanf:"log_format"` // json or console (default "json")
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Podcast"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/podcast.db"
	}
	if c.StaticDir == "" {
		c.StaticDir = "public"
	}
	if c.UploadDir == "" {
		c.UploadDir = c.StaticDir + "/uploads"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = 7 * 24 * time.Hour
	}
	if c.LoginRateLimit == 0 {
		c.LoginRateLimit = 10
	}
	if c.UploadRateLimit == 0 {
		c.UploadRateLimit = 10
	}
	if c.RateLimitWindow == 0 {
		c.RateLimitWindow = time.Minute
	}
	if c.RateLimitMaxKeys == 0 {
		c.RateLimitMaxKeys = 10000
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
}

// IsProduction reports whether the site runs with production safeguards
// (internal link rejection, hidden error details, mandatory JWT secret).
func (c SiteConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func (c SiteConfig) validate() error {
	if c.IsProduction() {
		if c.JWTSecret == "" {
			return fmt.Errorf("podengine: JWT_SECRET is required in production")
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("podengine: JWT_SECRET must be at least 32 characters")
		}
	}
	if c.LoginRateLimit < 1 || c.UploadRateLimit < 1 {
		return fmt.Errorf("podengine: rate limits must be positive")
	}
	return nil
}

func (c SiteConfig) jwtSecret() string {
	if c.JWTSecret == "" {
		return devJWTSecret
	}
	return c.JWTSecret
}

// configEnvKeys maps environment variables onto SiteConfig keys.
// NODE_ENV is accepted as an alias for ENVIRONMENT.
var configEnvKeys = map[string]string{
	"SITE_NAME":           "site_name",
	"SITE_URL":            "site_url",
	"SITE_DESCRIPTION":    "site_description",
	"SITE_AUTHOR":         "site_author",
	"ADDR":                "addr",
	"DATABASE_PATH":       "database_path",
	"UPLOAD_DIR":          "upload_dir",
	"STATIC_DIR":          "static_dir",
	"ENVIRONMENT":         "environment",
	"NODE_ENV":            "environment",
	"JWT_SECRET":          "jwt_secret",
	"TOKEN_TTL":           "token_ttl",
	"LOGIN_RATE_LIMIT":    "login_rate_limit",
	"UPLOAD_RATE_LIMIT":   "upload_rate_limit",
	"RATE_LIMIT_WINDOW":   "rate_limit_window",
	"RATE_LIMIT_MAX_KEYS": "rate_limit_max_keys",
	"CACHE_TTL":           "cache_ttl",
	"LOG_LEVEL":           "log_level",
	"LOG_FORMAT":          "log_format",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// LoadConfig builds a SiteConfig from defaults, an optional YAML file and the
// environment, in increasing order of priority. An empty path falls back to
// $CONFIG_PATH and then to ./podengine.yaml when it exists.
func LoadConfig(path string) (SiteConfig, error) {
	k := koanf.New(".")

	var defaults SiteConfig
	defaults.setDefaults()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return SiteConfig{}, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(ConfigPathEnvVar)
	}
	if path == "" {
		if _, err := os.Stat("podengine.yaml"); err == nil {
			path = "podengine.yaml"
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return SiteConfig{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return SiteConfig{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg SiteConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return SiteConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

// envKey returns "" for variables podengine does not own, which koanf skips.
// NODE_ENV is only read when ENVIRONMENT is unset or empty.
func envKey(name string) string {
	switch name {
	case "ENVIRONMENT":
		if os.Getenv("ENVIRONMENT") == "" {
			return ""
		}
	case "NODE_ENV":
		if os.Getenv("ENVIRONMENT") != "" {
			return ""
		}
	}
	return configEnvKeys[name]
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets.
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.Config.StaticDir = dir
	}
}

// WithLogger replaces the logger built from LogLevel and LogFormat.
func WithLogger(l zerolog.Logger) Option {
	return func(a *App) {
		a.Logger = l
		a.customLogger = true
	}
}

// WithClock injects the time source used by rate limiters and tokens.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}
