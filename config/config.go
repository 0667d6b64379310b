package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV"       envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT"      envDefault:"8080"  validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"  validate:"oneof=debug info warn error"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10" validate:"min=1,max=100"`
	RedisURL    string `env:"REDIS_URL"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	JWTSecret         string        `env:"JWT_SECRET,required"  validate:"required,min=32"`
	SessionCookieName string        `env:"SESSION_COOKIE_NAME"  envDefault:"Auth_Token" validate:"required"`
	SessionTTL        time.Duration `env:"SESSION_TTL"          envDefault:"24h"        validate:"min=1m"`

	OTPTTL       time.Duration `env:"OTP_TTL"       envDefault:"3m"  validate:"min=30s,max=1h"`
	EmailTimeout time.Duration `env:"EMAIL_TIMEOUT" envDefault:"10s" validate:"min=1s,max=1m"`
	BcryptCost   int           `env:"BCRYPT_COST"   envDefault:"12"  validate:"min=4,max=31"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`
	BrandName    string `env:"BRAND_NAME"     envDefault:"Medico Billing"`
	SupportEmail string `env:"SUPPORT_EMAIL"  envDefault:"support@medicobilling.com"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:5173,http://localhost:4173" envSeparator:","`

	ReaperSchedule string `env:"REAPER_SCHEDULE" envDefault:"@every 5m" validate:"required"`

	MaxSigninAttempts int           `env:"MAX_SIGNIN_ATTEMPTS" envDefault:"5"   validate:"min=1,max=100"`
	MaxOTPAttempts    int           `env:"MAX_OTP_ATTEMPTS"    envDefault:"5"   validate:"min=1,max=100"`
	AttemptWindow     time.Duration `env:"ATTEMPT_WINDOW"      envDefault:"15m" validate:"min=1m"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel maps LOG_LEVEL onto a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SecureCookies reports whether session cookies must carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return c.Env != "local"
}
