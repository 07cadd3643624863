package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "chargebook/libs/config"
)

// HTTPConfig holds listener settings.
type HTTPConfig struct {
	Port string `yaml:"port" env:"HTTP_PORT"`
}

// DatabaseConfig holds Postgres settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"POSTGRES_DSN"`
}

// RedisConfig holds cache settings.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB"`
	LiveTTL  time.Duration `yaml:"liveTtl" env:"REDIS_LIVE_TTL"`
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret" env:"JWT_SECRET"`
}

// BookingConfig holds lifecycle timing knobs.
type BookingConfig struct {
	CodeTTL       time.Duration `yaml:"codeTtl" env:"BOOKING_CODE_TTL"`
	GraceWindow   time.Duration `yaml:"graceWindow" env:"BOOKING_GRACE_WINDOW"`
	SweepInterval time.Duration `yaml:"sweepInterval" env:"BOOKING_SWEEP_INTERVAL"`
}

// IngestConfig holds telemetry settings.
type IngestConfig struct {
	QueueSize int `yaml:"queueSize" env:"INGEST_QUEUE_SIZE"`
}

// PaymentConfig holds settlement gateway settings. An empty base URL disables
// the integration.
type PaymentConfig struct {
	BaseURL        string `yaml:"baseUrl" env:"PAYMENT_BASE_URL"`
	CallbackSecret string `yaml:"callbackSecret" env:"PAYMENT_CALLBACK_SECRET"`
}

// NotifyConfig holds the notification queue settings.
type NotifyConfig struct {
	Enabled bool `yaml:"enabled" env:"NOTIFY_ENABLED"`
	QueueDB int  `yaml:"queueDb" env:"NOTIFY_QUEUE_DB"`
}

// Config defines the service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Booking  BookingConfig  `yaml:"booking"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Payment  PaymentConfig  `yaml:"payment"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// Load reads configuration via the shared helper and applies defaults.
func Load() (*Config, error) {
	cfg := &Config{
		HTTP:  HTTPConfig{Port: "8080"},
		Redis: RedisConfig{Addr: "localhost:6379", LiveTTL: time.Hour},
		Booking: BookingConfig{
			CodeTTL:       24 * time.Hour,
			GraceWindow:   15 * time.Minute,
			SweepInterval: time.Minute,
		},
		Ingest: IngestConfig{QueueSize: 16},
		Notify: NotifyConfig{QueueDB: 1},
	}

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, errors.New("config: database dsn required")
	}
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		return nil, errors.New("config: redis addr required")
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("config: jwt secret required")
	}
	return cfg, nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
