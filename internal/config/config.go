package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port          string `envconfig:"PORT" default:"8080"`
	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:5173"`

	DatabaseURL   string `envconfig:"DATABASE_URL"`
	DBMaxConns    int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBAutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"true"`

	RedisAddr                string `envconfig:"REDIS_ADDR"`
	RedisPassword            string `envconfig:"REDIS_PASSWORD"`
	RedisDB                  int    `envconfig:"REDIS_DB" default:"0"`
	DashboardCacheTTLSeconds int    `envconfig:"DASHBOARD_CACHE_TTL_SECONDS" default:"15"`

	AuthSecret            string `envconfig:"AUTH_SECRET"`
	AccessTokenTTLMinutes int    `envconfig:"ACCESS_TOKEN_TTL_MINUTES" default:"480"`
	PaymentCallbackToken  string `envconfig:"PAYMENT_CALLBACK_TOKEN"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"warungpos.events"`

	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment bool   `envconfig:"LOG_DEVELOPMENT" default:"false"`

	SyncMaxAttempts   int `envconfig:"SYNC_MAX_ATTEMPTS" default:"5"`
	SyncBaseBackoffMS int `envconfig:"SYNC_BASE_BACKOFF_MS" default:"500"`
	SyncMaxBackoffMS  int `envconfig:"SYNC_MAX_BACKOFF_MS" default:"60000"`
	SyncQueueCapacity int `envconfig:"SYNC_QUEUE_CAPACITY" default:"1000"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	// A missing .env is the normal production case.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.PaymentCallbackToken = strings.TrimSpace(cfg.PaymentCallbackToken)
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	if cfg.DashboardCacheTTLSeconds < 0 {
		cfg.DashboardCacheTTLSeconds = 0
	}
	if cfg.SyncMaxAttempts < 1 {
		cfg.SyncMaxAttempts = 5
	}
	if cfg.SyncQueueCapacity < 1 {
		cfg.SyncQueueCapacity = 1000
	}

	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) DashboardCacheTTL() time.Duration {
	return time.Duration(c.DashboardCacheTTLSeconds) * time.Second
}

func (c Config) SyncBaseBackoff() time.Duration {
	return time.Duration(c.SyncBaseBackoffMS) * time.Millisecond
}

func (c Config) SyncMaxBackoff() time.Duration {
	return time.Duration(c.SyncMaxBackoffMS) * time.Millisecond
}
