package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv       string `env:"NODE_ENV" envDefault:"development"`
	Port          string `env:"PORT" envDefault:"3000"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:3000"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"console"`

	JWTSecret string `env:"JWT_SECRET"`

	// DownloadURLSecret signs artifact download links. It is not required
	// here; the API binary refuses to start without it and the signer
	// rejects an empty key on every call.
	DownloadURLSecret string        `env:"DOWNLOAD_URL_SECRET"`
	DownloadLinkTTL   time.Duration `env:"DOWNLOAD_LINK_TTL" envDefault:"168h"`

	ArtifactRetentionDays int   `env:"ARTIFACT_RETENTION_DAYS" envDefault:"0"`
	MaxUploadBytes        int64 `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`

	// Origins allowed to call the public API from a browser; empty allows none
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	Database   DatabaseConfig
	Storage    StorageConfig
	Mail       MailConfig
	Recaptcha  RecaptchaConfig
	RateLimit  RateLimitConfig
	Automation AutomationConfig
	Auth       AuthConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL      string `env:"DATABASE_URL"`
	Host     string `env:"PG_HOST" envDefault:"localhost"`
	Port     string `env:"PG_PORT" envDefault:"5432"`
	Username string `env:"PG_USERNAME" envDefault:"postgres"`
	Password string `env:"PG_PASSWORD"`
	Database string `env:"PG_DATABASE" envDefault:"crexpress"`
	LogLevel string `env:"DB_LOG_LEVEL" envDefault:"warn"`
}

// StorageConfig selects and configures the artifact blob backend
type StorageConfig struct {
	Backend        string `env:"STORAGE_BACKEND" envDefault:"local"` // local or s3
	LocalPath      string `env:"STORAGE_LOCAL_PATH" envDefault:"./temp"`
	S3Endpoint     string `env:"S3_ENDPOINT"`
	S3Region       string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Bucket       string `env:"S3_BUCKET"`
	S3AccessKeyID  string `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey    string `env:"S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle bool   `env:"S3_USE_PATH_STYLE" envDefault:"true"`
}

// MailConfig holds the transactional email provider settings
type MailConfig struct {
	ResendAPIKey string   `env:"RESEND_API_KEY"`
	ResendURL    string   `env:"RESEND_API_URL" envDefault:"https://api.resend.com"`
	From         string   `env:"MAIL_FROM" envDefault:"CR Express <contact@forms.crexpressinc.com>"`
	To           []string `env:"MAIL_TO" envSeparator:"," envDefault:"aamro@crexpressinc.com"`
}

// RecaptchaConfig holds bot-protection settings
type RecaptchaConfig struct {
	SecretKey string  `env:"RECAPTCHA_SECRET_KEY"`
	VerifyURL string  `env:"RECAPTCHA_VERIFY_URL" envDefault:"https://www.google.com/recaptcha/api/siteverify"`
	MinScore  float64 `env:"RECAPTCHA_MIN_SCORE" envDefault:"0.3"`
	Bypass    bool    `env:"BYPASS_RECAPTCHA" envDefault:"false"`
}

// RateLimitConfig holds per-IP submission limits
type RateLimitConfig struct {
	RedisURL    string        `env:"REDIS_URL"`
	MaxRequests int           `env:"RATE_LIMIT_MAX" envDefault:"5"`
	Window      time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1h"`
}

// AutomationConfig holds webhook endpoints of the automation tool
type AutomationConfig struct {
	LeadWebhookURL       string `env:"ZAPIER_WEBHOOK_URL"`
	NewsletterWebhookURL string `env:"ZAPIER_NEWSLETTER_WEBHOOK_URL"`
	OnboardingWebhookURL string `env:"ONBOARDING_ZAPIER_WEBHOOK_URL"`
}

// AuthConfig holds admin access settings
type AuthConfig struct {
	AdminEmailDomain string        `env:"ADMIN_EMAIL_DOMAIN" envDefault:"crexpressinc.com"`
	AccessTokenTTL   time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	RefreshTokenTTL  time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"2160h"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg.DownloadURLSecret = strings.TrimSpace(cfg.DownloadURLSecret)
	cfg.PublicBaseURL = strings.TrimSuffix(strings.TrimSpace(cfg.PublicBaseURL), "/")
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))

	switch cfg.Storage.Backend {
	case "local", "s3":
	default:
		return nil, fmt.Errorf("STORAGE_BACKEND must be local or s3, got %q", cfg.Storage.Backend)
	}
	if cfg.DownloadLinkTTL <= 0 {
		return nil, fmt.Errorf("DOWNLOAD_LINK_TTL must be positive")
	}
	if cfg.RateLimit.MaxRequests < 1 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX must be at least 1, got %d", cfg.RateLimit.MaxRequests)
	}
	if cfg.RateLimit.Window <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.NodeEnv == "development"
}

// Addr returns the HTTP listen address
func (c *Config) Addr() string {
	return ":" + c.Port
}
