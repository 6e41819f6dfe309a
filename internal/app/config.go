package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:3000"

// Config holds the complete server configuration, loadable from environment
// variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:3000" usage:"API server listen address"`
	Env         string `default:"development" usage:"Deployment environment; production enables secure cookies"`
	DataDir     string `default:"data" usage:"Directory holding products.json and users.json" flag:"data-dir"`
	DatabaseURL string `usage:"PostgreSQL connection URL; replaces the JSON files when set (STOREFRONT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL    string `usage:"Redis URL for sessions; in-memory sessions when empty (STOREFRONT_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	StaticDir   string `usage:"Directory with the storefront pages served at /" flag:"static-dir"`
	Session     SessionConfig
	Admin       AdminConfig
	Login       LoginConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// SessionConfig controls the login session cookie.
type SessionConfig struct {
	Secret     string        `usage:"Secret signing session cookies (STOREFRONT_SESSION_SECRET or SESSION_SECRET)"`
	CookieName string        `default:"pharma.sid" usage:"Session cookie name" flag:"cookie-name"`
	TTL        time.Duration `default:"24h" usage:"Session lifetime"`
	Secure     bool          `default:"false" usage:"Mark the session cookie Secure" flag:"secure-cookie"`
}

// AdminConfig is the account written to a freshly created users file.
type AdminConfig struct {
	Username string `default:"admin" usage:"Default admin username"`
	Password string `default:"admin123" usage:"Default admin password"`
}

// LoginConfig throttles login attempts per username.
type LoginConfig struct {
	Attempts int           `default:"5" usage:"Login attempts per username before throttling; 0 disables"`
	Every    time.Duration `default:"1m" usage:"Time to regain one login attempt"`
}

// RateLimitConfig controls the per-client sliding window limiter on POST /api/login.
type RateLimitConfig struct {
	Max    int           `default:"20" usage:"Max login requests per window and client"`
	Window time.Duration `default:"1m" usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"http://localhost:3001,http://127.0.0.1:3001,https://pranav221223.github.io" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"true" usage:"Allow credentials (cookies)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// Production reports whether Env is "production".
func (c *Config) Production() bool {
	return c.Env == "production"
}

// LoadConfig loads configuration from environment variables, YAML config
// files and platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT",
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

// applyPlatformDefaults maps the variables hosting platforms set (PORT,
// DATABASE_URL, REDIS_URL, SESSION_SECRET, NODE_ENV) onto the configuration.
func (c *Config) applyPlatformDefaults() {
	fallback := func(dst *string, env string) {
		if *dst == "" {
			*dst = os.Getenv(env)
		}
	}
	fallback(&c.DatabaseURL, "DATABASE_URL")
	fallback(&c.RedisURL, "REDIS_URL")
	fallback(&c.Session.Secret, "SESSION_SECRET")

	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
	if os.Getenv("NODE_ENV") == "production" {
		c.Env = "production"
	}
	if c.Production() {
		c.Session.Secure = true
	}
}

func (c *Config) validate() error {
	if c.Session.TTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	if c.DatabaseURL == "" && c.DataDir == "" {
		return errors.New("data dir is required when no database URL is set")
	}
	if c.Production() && c.Session.Secret == "" {
		return errors.New("session secret is required in production: set STOREFRONT_SESSION_SECRET or SESSION_SECRET")
	}
	return nil
}
