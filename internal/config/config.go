// Package config defines the top-level configuration for the duel service
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/priceduel/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by DUEL_* environment variables.
type Config struct {
	Store     StoreConfig     `toml:"store"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Archive   ArchiveConfig   `toml:"archive"`
	Duel      DuelConfig      `toml:"duel"`
	Oracle    OracleConfig    `toml:"oracle"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// StoreConfig selects the pool and history backend.
type StoreConfig struct {
	// Driver is "postgres" or "memory". The memory driver keeps state in the
	// process and only suits a single replica.
	Driver string `toml:"driver"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. When disabled, the price
// mirror, sweep lock and cross-replica event bus are replaced by in-process
// equivalents.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	KeyPrefix  string   `toml:"key_prefix"`
	PriceTTL   duration `toml:"price_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls the monthly history export to S3.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// DuelConfig holds the match timings.
type DuelConfig struct {
	MatchDuration   duration `toml:"match_duration"`
	WaitingTimeout  duration `toml:"waiting_timeout"`
	ReopenDelay     duration `toml:"reopen_delay"`
	OverdueAlertTTL duration `toml:"overdue_alert_ttl"`
}

// OracleConfig points the price oracle at a Pyth Hermes deployment.
type OracleConfig struct {
	Endpoint string `toml:"endpoint"`
	// Feeds overrides the Hermes feed id per asset symbol.
	Feeds            map[string]string `toml:"feeds"`
	Timeout          duration          `toml:"timeout"`
	FailureThreshold int               `toml:"failure_threshold"`
}

// SchedulerConfig holds the periodic task intervals.
type SchedulerConfig struct {
	OracleInterval duration `toml:"oracle_interval"`
	SweepInterval  duration `toml:"sweep_interval"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// RateLimit is the number of join/leave/settle requests allowed per client
	// IP per RateWindow. Zero disables limiting.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Store: StoreConfig{Driver: "postgres"},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "priceduel",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "priceduel",
			PriceTTL:   duration{5 * time.Minute},
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "priceduel-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Duel: DuelConfig{
			MatchDuration:   duration{5 * time.Minute},
			WaitingTimeout:  duration{60 * time.Second},
			ReopenDelay:     duration{30 * time.Second},
			OverdueAlertTTL: duration{time.Hour},
		},
		Oracle: OracleConfig{
			Endpoint:         "https://hermes.pyth.network",
			Timeout:          duration{10 * time.Second},
			FailureThreshold: 3,
		},
		Scheduler: SchedulerConfig{
			OracleInterval: duration{5 * time.Second},
			SweepInterval:  duration{10 * time.Second},
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
			RateLimit:   30,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"match_overdue", "history_inconsistent", "oracle_down"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"full":   true,
	"api":    true,
	"worker": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, api, worker)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Store
	switch c.Store.Driver {
	case "postgres":
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	case "memory":
		// Separate processes cannot share in-memory pools.
		if mode != "full" {
			errs = append(errs, fmt.Sprintf("store: driver memory requires mode full, got %q", c.Mode))
		}
	default:
		errs = append(errs, fmt.Sprintf("store: unknown driver %q (valid: postgres, memory)", c.Store.Driver))
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.PriceTTL.Duration <= 0 {
			errs = append(errs, "redis: price_ttl must be > 0")
		}
	} else if mode == "api" || mode == "worker" {
		errs = append(errs, fmt.Sprintf("redis: must be enabled for mode %s so replicas share prices and events", mode))
	}

	// Archive
	if c.Archive.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0")
		}
		if c.Store.Driver != "postgres" {
			errs = append(errs, "archive: requires store driver postgres")
		}
	}

	// Duel
	if c.Duel.MatchDuration.Duration <= 0 {
		errs = append(errs, "duel: match_duration must be > 0")
	}
	if c.Duel.WaitingTimeout.Duration <= 0 {
		errs = append(errs, "duel: waiting_timeout must be > 0")
	}
	if c.Duel.ReopenDelay.Duration < 0 {
		errs = append(errs, "duel: reopen_delay must be >= 0")
	}

	// Oracle
	if c.Oracle.Endpoint == "" {
		errs = append(errs, "oracle: endpoint must not be empty")
	}
	for symbol, id := range c.Oracle.Feeds {
		if _, err := domain.ParseAsset(symbol); err != nil {
			errs = append(errs, fmt.Sprintf("oracle: feeds: %v", err))
		}
		if strings.TrimSpace(id) == "" {
			errs = append(errs, fmt.Sprintf("oracle: feeds: empty feed id for %s", symbol))
		}
	}
	if c.Oracle.FailureThreshold < 1 {
		errs = append(errs, "oracle: failure_threshold must be >= 1")
	}

	// Scheduler
	if c.Scheduler.OracleInterval.Duration <= 0 {
		errs = append(errs, "scheduler: oracle_interval must be > 0")
	}
	if c.Scheduler.SweepInterval.Duration <= 0 {
		errs = append(errs, "scheduler: sweep_interval must be > 0")
	}

	// Server
	if mode != "worker" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// FeedIDs returns the configured feed overrides keyed by asset, or nil when
// none are set.
func (c *Config) FeedIDs() map[domain.Asset]string {
	if len(c.Oracle.Feeds) == 0 {
		return nil
	}
	out := make(map[domain.Asset]string, len(c.Oracle.Feeds))
	for symbol, id := range c.Oracle.Feeds {
		if a, err := domain.ParseAsset(symbol); err == nil {
			out[a] = id
		}
	}
	return out
}
