package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type Config struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	SentryDSN       string        `envconfig:"SENTRY_DSN"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS" default:"*"`

	// Requests per minute per client address on the validation endpoint.
	ValidateRateLimit int `envconfig:"VALIDATE_RATE_LIMIT" default:"60"`
	// Set when running behind a reverse proxy that rewrites X-Forwarded-For.
	TrustProxyHeaders bool `envconfig:"TRUST_PROXY_HEADERS" default:"false"`

	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"sqlite"`
	DatabaseURL    string `envconfig:"DATABASE_URL" default:"licencas.db"`
	StorageFile    string `envconfig:"STORAGE_FILE" default:"licencas.json"`
	RedisAddr      string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD"`
	RedisDB        int    `envconfig:"REDIS_DB" default:"0"`

	PagBankNotificationURL string        `envconfig:"PAGBANK_NOTIFICATION_URL" default:"https://ws.pagseguro.uol.com.br/v3/transactions/notifications"`
	PagBankEmail           string        `envconfig:"PAGBANK_EMAIL"`
	PagBankToken           string        `envconfig:"PAGBANK_TOKEN"`
	PagBankTimeout         time.Duration `envconfig:"PAGBANK_TIMEOUT" default:"10s"`
	PaidStatuses           []string      `envconfig:"PAID_STATUSES" default:"PAID,APPROVED"`
	AllowDirectPayload     bool          `envconfig:"ALLOW_DIRECT_PAYLOAD" default:"false"`

	LicenseDays     int    `envconfig:"LICENCE_DAYS" default:"30"`
	LicensePlan     string `envconfig:"LICENCE_PLAN" default:"mensal"`
	MaxCodeAttempts int    `envconfig:"MAX_CODE_ATTEMPTS" default:"20"`

	// Shared downstream credential mailed to every purchaser.
	MeuDanfeAPIKey string `envconfig:"MEUDANFE_API_KEY"`

	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USER"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	EmailFrom    string `envconfig:"FROM_EMAIL"`
}

func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if cfg.EmailFrom == "" {
		cfg.EmailFrom = cfg.SMTPUsername
	}
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.MeuDanfeAPIKey == "" {
		return errors.New("MEUDANFE_API_KEY environment variable is required")
	}

	// Direct payloads carry their own status, so lookup credentials are optional then.
	if !c.AllowDirectPayload && (c.PagBankEmail == "" || c.PagBankToken == "") {
		return errors.New("PAGBANK_EMAIL and PAGBANK_TOKEN environment variables are required")
	}

	if c.LicenseDays <= 0 {
		return fmt.Errorf("LICENCE_DAYS must be positive, got %d", c.LicenseDays)
	}

	if c.MaxCodeAttempts <= 0 {
		return fmt.Errorf("MAX_CODE_ATTEMPTS must be positive, got %d", c.MaxCodeAttempts)
	}

	switch c.StorageBackend {
	case BackendMemory, BackendFile, BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	return nil
}

// SMTPConfigured reports whether enough SMTP settings are present to send mail.
// Without them license emails are written to the log instead.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPUsername != "" && c.SMTPPassword != "" && c.EmailFrom != ""
}

func (c *Config) ValidityWindow() time.Duration {
	return time.Duration(c.LicenseDays) * 24 * time.Hour
}
