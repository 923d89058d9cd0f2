// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Redis       RedisConfig
	AWS         AWSConfig
	Payment     PaymentConfig
	Email       EmailConfig
	Downloads   DownloadConfig
	I18n        I18nConfig
	Log         LogConfig
}

type ServerConfig struct {
	Port         string   `env:"SERVER_PORT" envDefault:"8080"`
	Host         string   `env:"SERVER_HOST" envDefault:"localhost"`
	ReadTimeout  int      `env:"SERVER_READ_TIMEOUT" envDefault:"15"`
	WriteTimeout int      `env:"SERVER_WRITE_TIMEOUT" envDefault:"15"`
	IdleTimeout  int      `env:"SERVER_IDLE_TIMEOUT" envDefault:"60"`
	CORSOrigins  []string `env:"CORS_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
}

type DatabaseConfig struct {
	Host         string `env:"DB_HOST" envDefault:"localhost"`
	Port         string `env:"DB_PORT" envDefault:"5432"`
	User         string `env:"DB_USER" envDefault:"postgres"`
	Password     string `env:"DB_PASSWORD"`
	Database     string `env:"DB_NAME" envDefault:"bookshop"`
	SSLMode      string `env:"DB_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int    `env:"DB_MAX_IDLE_CONNS" envDefault:"25"`
	MaxLifetime  int    `env:"DB_MAX_LIFETIME" envDefault:"300"`
	LogLevel     string `env:"DB_LOG_LEVEL" envDefault:"warn"`
}

type JWTConfig struct {
	SecretKey string `env:"JWT_SECRET" envDefault:"your-secret-key-change-in-production"`
}

type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     string `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

type AWSConfig struct {
	Region          string `env:"AWS_REGION" envDefault:"eu-central-1"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Bucket        string `env:"AWS_S3_BUCKET" envDefault:"bookshop-digital-files"`
}

type PaymentConfig struct {
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
}

type EmailConfig struct {
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	FromEmail    string `env:"FROM_EMAIL" envDefault:"noreply@bookshop.local"`
	FromName     string `env:"FROM_NAME" envDefault:"Bookshop"`
}

// DownloadConfig drives entitlement issuance and the download endpoint.
type DownloadConfig struct {
	SiteURL            string        `env:"SITE_URL" envDefault:"http://localhost:8080"`
	EntitlementTTL     time.Duration `env:"DOWNLOAD_ENTITLEMENT_TTL" envDefault:"720h"`
	RegeneratedTTL     time.Duration `env:"DOWNLOAD_REGENERATED_TTL" envDefault:"168h"`
	StorageURLTTL      time.Duration `env:"DOWNLOAD_STORAGE_URL_TTL" envDefault:"15m"`
	IssuanceLockTTL    time.Duration `env:"DOWNLOAD_ISSUANCE_LOCK_TTL" envDefault:"2m"`
	BackfillCron       string        `env:"ENTITLEMENT_BACKFILL_CRON" envDefault:"@every 15m"`
	RateLimitPerMinute int           `env:"DOWNLOAD_RATE_LIMIT_PER_MINUTE" envDefault:"10"`
	RateLimitBurst     int           `env:"DOWNLOAD_RATE_LIMIT_BURST" envDefault:"5"`
}

type I18nConfig struct {
	DefaultLocale string `env:"DEFAULT_LOCALE" envDefault:"en"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if c.Payment.StripeWebhookSecret == "" && c.Environment == "production" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required in production")
	}

	if c.Downloads.EntitlementTTL <= 0 || c.Downloads.RegeneratedTTL <= 0 {
		return fmt.Errorf("download TTLs must be positive")
	}

	if c.Downloads.SiteURL == "" {
		return fmt.Errorf("SITE_URL is required")
	}

	return nil
}
