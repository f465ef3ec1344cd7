package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port                   int    `env:"PORT" envDefault:"8080"`
	DatabaseURL            string `env:"DATABASE_URL,required"`
	RedisURL               string `env:"REDIS_URL,required"`
	AuthFreshnessSeconds   int    `env:"AUTH_FRESHNESS_SECONDS" envDefault:"300"`
	KeyCacheTTLSeconds     int    `env:"KEY_CACHE_TTL_SECONDS" envDefault:"3600"`
	OfflineRetentionDays   int    `env:"OFFLINE_RETENTION_DAYS" envDefault:"7"`
	OfflineSafetyBoundDays int    `env:"OFFLINE_SAFETY_BOUND_DAYS" envDefault:"30"`
	ReceiptRetentionDays   int    `env:"RECEIPT_RETENTION_DAYS" envDefault:"30"`
	CleanupIntervalSeconds int    `env:"CLEANUP_INTERVAL_SECONDS" envDefault:"3600"`
	SideEffectWorkers      int    `env:"SIDE_EFFECT_WORKERS" envDefault:"8"`
	SideEffectQueueSize    int    `env:"SIDE_EFFECT_QUEUE_SIZE" envDefault:"1024"`
	// AllowedOrigin restricts browser websocket upgrades to one Origin.
	// Empty accepts any origin and leaves the check to the edge proxy.
	AllowedOrigin string `env:"ALLOWED_ORIGIN"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
}

// AuthFreshness bounds |now - timestamp| on the signed auth challenge. The
// default of 5 minutes matches existing client behavior; replay exposure
// scales with this window, so deployments should narrow it to 1-2 minutes.
func (c *Config) AuthFreshness() time.Duration {
	return time.Duration(c.AuthFreshnessSeconds) * time.Second
}

func (c *Config) KeyCacheTTL() time.Duration {
	return time.Duration(c.KeyCacheTTLSeconds) * time.Second
}

func (c *Config) OfflineRetention() time.Duration {
	return time.Duration(c.OfflineRetentionDays) * 24 * time.Hour
}

func (c *Config) OfflineSafetyBound() time.Duration {
	return time.Duration(c.OfflineSafetyBoundDays) * 24 * time.Hour
}

func (c *Config) ReceiptRetention() time.Duration {
	return time.Duration(c.ReceiptRetentionDays) * 24 * time.Hour
}

func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate() error {
	if c.AuthFreshnessSeconds <= 0 {
		return fmt.Errorf("AUTH_FRESHNESS_SECONDS must be positive")
	}
	if c.SideEffectWorkers <= 0 {
		return fmt.Errorf("SIDE_EFFECT_WORKERS must be positive")
	}
	if c.OfflineRetentionDays <= 0 || c.ReceiptRetentionDays <= 0 {
		return fmt.Errorf("retention windows must be positive")
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
