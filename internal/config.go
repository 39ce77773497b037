package internal

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Processor     ProcessorConfig     `mapstructure:"processor"`
	Fees          FeeConfig           `mapstructure:"fees"`
	Notifications NotificationConfig  `mapstructure:"notifications"`
	Reconcile     ReconcileConfig     `mapstructure:"reconcile"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source" validate:"required"`
}

// SecurityConfig describes how tokens minted by the external auth provider are verified.
// Either an RSA public key (RS256) or a shared secret (HS256) must be set.
type SecurityConfig struct {
	JWTPublicKey string `mapstructure:"jwt_public_key"`
	JWTSecret    string `mapstructure:"jwt_secret"`
	Issuer       string `mapstructure:"issuer"`
	Audience     string `mapstructure:"audience"`
	RoleClaim    string `mapstructure:"role_claim"`
}

type ProcessorConfig struct {
	Provider           string        `mapstructure:"provider" validate:"required,oneof=stripe sandbox"`
	SecretKey          string        `mapstructure:"secret_key" validate:"required_if=Provider stripe"`
	WebhookSecret      string        `mapstructure:"webhook_secret" validate:"required"`
	Timeout            time.Duration `mapstructure:"timeout"`
	OnboardingRefresh  string        `mapstructure:"onboarding_refresh_url" validate:"omitempty,url"`
	OnboardingReturn   string        `mapstructure:"onboarding_return_url" validate:"omitempty,url"`
	DefaultCurrency    string        `mapstructure:"default_currency" validate:"omitempty,len=3"`
	SandboxWebhookURL  string        `mapstructure:"sandbox_webhook_url" validate:"required_if=Provider sandbox"`
	SandboxMaxWorkers  int           `mapstructure:"sandbox_max_workers"`
	SandboxQueueSize   int           `mapstructure:"sandbox_queue_size"`
	SandboxSuccessRate float64       `mapstructure:"sandbox_success_rate" validate:"min=0,max=1"`
	SandboxMaxDelay    time.Duration `mapstructure:"sandbox_max_delay"`
}

type FeeConfig struct {
	PlatformFeePercent string `mapstructure:"platform_fee_percent"`
}

type NotificationConfig struct {
	AMQPURL  string `mapstructure:"amqp_url"`
	Exchange string `mapstructure:"exchange"`
}

type ReconcileConfig struct {
	Schedule     string        `mapstructure:"schedule"`
	StaleAfter   time.Duration `mapstructure:"stale_after"`
	AbandonAfter time.Duration `mapstructure:"abandon_after"`
	BatchSize    int           `mapstructure:"batch_size"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json text"`
}

// LoadConfigFromEnv builds the configuration from plain environment variables for container deployments.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("PORT", 8080),
			BaseURL:           getEnv("BASE_URL", "http://localhost:8080"),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: getEnvAsDuration("READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("WRITE_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Security: SecurityConfig{
			JWTPublicKey: getEnv("AUTH_JWT_PUBLIC_KEY", ""),
			JWTSecret:    getEnv("AUTH_JWT_SECRET", ""),
			Issuer:       getEnv("AUTH_ISSUER", ""),
			Audience:     getEnv("AUTH_AUDIENCE", ""),
			RoleClaim:    getEnv("AUTH_ROLE_CLAIM", "role"),
		},
		Processor: ProcessorConfig{
			Provider:           getEnv("PROCESSOR_PROVIDER", "stripe"),
			SecretKey:          getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:      getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Timeout:            getEnvAsDuration("PROCESSOR_TIMEOUT", 10*time.Second),
			OnboardingRefresh:  getEnv("ONBOARDING_REFRESH_URL", ""),
			OnboardingReturn:   getEnv("ONBOARDING_RETURN_URL", ""),
			DefaultCurrency:    getEnv("DEFAULT_CURRENCY", "usd"),
			SandboxWebhookURL:  getEnv("SANDBOX_WEBHOOK_URL", ""),
			SandboxMaxWorkers:  getEnvAsInt("SANDBOX_MAX_WORKERS", 4),
			SandboxQueueSize:   getEnvAsInt("SANDBOX_QUEUE_SIZE", 100),
			SandboxSuccessRate: 0.9,
			SandboxMaxDelay:    getEnvAsDuration("SANDBOX_MAX_DELAY", 4*time.Second),
		},
		Fees: FeeConfig{
			PlatformFeePercent: getEnv("PLATFORM_FEE_PERCENT", "5.0"),
		},
		Notifications: NotificationConfig{
			AMQPURL:  getEnv("AMQP_URL", ""),
			Exchange: getEnv("NOTIFICATION_EXCHANGE", "notifications"),
		},
		Reconcile: ReconcileConfig{
			Schedule:     getEnv("RECONCILE_SCHEDULE", "@every 5m"),
			StaleAfter:   getEnvAsDuration("RECONCILE_STALE_AFTER", 15*time.Minute),
			AbandonAfter: getEnvAsDuration("RECONCILE_ABANDON_AFTER", 24*time.Hour),
			BatchSize:    getEnvAsInt("RECONCILE_BATCH_SIZE", 100),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnv("RATE_LIMIT_ENABLED", "true") == "true",
			RequestsPerSecond: 10,
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := validator.New().Struct(c); err != nil {
		errs = append(errs, err.Error())
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Fees.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("fees config: %v", err))
	}

	if err := c.Reconcile.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("reconcile config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

// Origins splits AllowedOrigins into the list expected by the CORS middleware.
func (c *ServerConfig) Origins() []string {
	if c.AllowedOrigins == "" {
		return []string{"*"}
	}
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if c.JWTPublicKey == "" && c.JWTSecret == "" {
		return errors.New("either jwt_public_key or jwt_secret is required")
	}
	if c.JWTPublicKey != "" {
		if _, err := c.GetPublicKey(); err != nil {
			return fmt.Errorf("invalid JWT public key: %w", err)
		}
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return errors.New("jwt_secret must be at least 32 characters")
	}
	return nil
}

func (c *SecurityConfig) GetPublicKey() (*rsa.PublicKey, error) {
	keyData, err := base64.StdEncoding.DecodeString(c.JWTPublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}
	return jwt.ParseRSAPublicKeyFromPEM(keyData)
}

func (c *FeeConfig) Validate() error {
	_, err := c.Rate()
	return err
}

// Rate parses the configured platform fee percentage, defaulting to 5.0.
func (c *FeeConfig) Rate() (decimal.Decimal, error) {
	if c.PlatformFeePercent == "" {
		return decimal.NewFromFloat(5.0), nil
	}
	rate, err := decimal.NewFromString(c.PlatformFeePercent)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid platform_fee_percent %q: %w", c.PlatformFeePercent, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("platform_fee_percent must be between 0 and 100, got %s", rate)
	}
	return rate, nil
}

func (c *ReconcileConfig) Validate() error {
	if c.StaleAfter > 0 && c.AbandonAfter > 0 && c.AbandonAfter < c.StaleAfter {
		return errors.New("abandon_after must be >= stale_after")
	}
	return nil
}
