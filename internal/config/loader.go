package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/alanyoungcy/priceduel/internal/domain"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies DUEL_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known DUEL_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Store ──
	setStr(&cfg.Store.Driver, "DUEL_STORE_DRIVER")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // platform convention
	setStr(&cfg.Postgres.DSN, "DUEL_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "DUEL_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "DUEL_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "DUEL_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "DUEL_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "DUEL_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "DUEL_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "DUEL_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "DUEL_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "DUEL_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "DUEL_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "DUEL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DUEL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DUEL_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DUEL_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "DUEL_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "DUEL_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "DUEL_REDIS_KEY_PREFIX")
	setDuration(&cfg.Redis.PriceTTL, "DUEL_REDIS_PRICE_TTL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "DUEL_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "DUEL_S3_REGION")
	setStr(&cfg.S3.Bucket, "DUEL_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "DUEL_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "DUEL_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "DUEL_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "DUEL_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "DUEL_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "DUEL_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "DUEL_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "DUEL_ARCHIVE_INTERVAL")

	// ── Duel ──
	setDuration(&cfg.Duel.MatchDuration, "DUEL_MATCH_DURATION")
	setDuration(&cfg.Duel.WaitingTimeout, "DUEL_WAITING_TIMEOUT")
	setDuration(&cfg.Duel.ReopenDelay, "DUEL_REOPEN_DELAY")
	setDuration(&cfg.Duel.OverdueAlertTTL, "DUEL_OVERDUE_ALERT_TTL")

	// ── Oracle ──
	setStr(&cfg.Oracle.Endpoint, "DUEL_ORACLE_ENDPOINT")
	setDuration(&cfg.Oracle.Timeout, "DUEL_ORACLE_TIMEOUT")
	setInt(&cfg.Oracle.FailureThreshold, "DUEL_ORACLE_FAILURE_THRESHOLD")
	for _, a := range domain.Assets {
		if v := os.Getenv("DUEL_ORACLE_FEED_" + string(a)); v != "" {
			if cfg.Oracle.Feeds == nil {
				cfg.Oracle.Feeds = make(map[string]string, len(domain.Assets))
			}
			cfg.Oracle.Feeds[string(a)] = v
		}
	}

	// ── Scheduler ──
	setDuration(&cfg.Scheduler.OracleInterval, "DUEL_SCHEDULER_ORACLE_INTERVAL")
	setDuration(&cfg.Scheduler.SweepInterval, "DUEL_SCHEDULER_SWEEP_INTERVAL")

	// ── Server ──
	setInt(&cfg.Server.Port, "PORT") // platform convention
	setInt(&cfg.Server.Port, "DUEL_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "DUEL_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "DUEL_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "DUEL_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "DUEL_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "DUEL_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "DUEL_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "DUEL_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "DUEL_MODE")
	setStr(&cfg.LogLevel, "DUEL_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
