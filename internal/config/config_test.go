package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/priceduel/internal/domain"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Minute, cfg.Duel.MatchDuration.Duration)
	assert.Equal(t, 60*time.Second, cfg.Duel.WaitingTimeout.Duration)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.SweepInterval.Duration)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.OracleInterval.Duration)
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "full"
log_level = "debug"

[store]
driver = "memory"

[duel]
match_duration = "2m"

[oracle.feeds]
btc = "abc123"

[server]
port = 9000
`), 0o600))

	t.Setenv("DUEL_SERVER_PORT", "9100")
	t.Setenv("DUEL_REDIS_ENABLED", "true")
	t.Setenv("DUEL_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DUEL_ORACLE_FEED_SOL", "def456")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 2*time.Minute, cfg.Duel.MatchDuration.Duration)
	assert.Equal(t, 60*time.Second, cfg.Duel.WaitingTimeout.Duration, "unset keys keep defaults")
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, map[domain.Asset]string{domain.AssetBTC: "abc123", domain.AssetSOL: "def456"}, cfg.FeedIDs())
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "full", cfg.Mode)
}

func TestLoadBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[duel]\nmatch_duration = \"soon\"\n"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "api"
	cfg.Store.Driver = "memory"
	cfg.Duel.MatchDuration = duration{}
	cfg.Oracle.Feeds = map[string]string{"DOGE": "x"}
	cfg.Notify.TelegramToken = "token"

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "driver memory requires mode full")
	assert.Contains(t, msg, "redis: must be enabled for mode api")
	assert.Contains(t, msg, "duel: match_duration must be > 0")
	assert.Contains(t, msg, `unknown asset "DOGE"`)
	assert.Contains(t, msg, "telegram_token and telegram_chat_id")
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.S3.SecretKey = "s3cret"
	cfg.Notify.DiscordWebhookURL = "https://discord.example/hook"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "***", out.S3.SecretKey)
	assert.Equal(t, "***", out.Notify.DiscordWebhookURL)
	assert.Empty(t, out.S3.AccessKey, "empty secrets stay empty")
	assert.Equal(t, "hunter2", cfg.Postgres.Password)

	out.Server.CORSOrigins[0] = "changed"
	assert.Equal(t, "http://localhost:3000", cfg.Server.CORSOrigins[0])
}
