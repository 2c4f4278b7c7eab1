package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/priceduel/internal/config"
	"github.com/alanyoungcy/priceduel/internal/domain"
	"github.com/alanyoungcy/priceduel/internal/platform/pyth"
)

func memoryConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Store.Driver = "memory"
	return &cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWireInMemory(t *testing.T) {
	cfg := memoryConfig()
	cfg.Notify.DiscordWebhookURL = "https://discord.example/hook"
	require.NoError(t, cfg.Validate())

	deps, cleanup, err := Wire(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, deps.PoolStore)
	assert.NotNil(t, deps.HistoryStore)
	assert.NotNil(t, deps.AuditStore)
	assert.NotNil(t, deps.RateLimiter)
	assert.NotNil(t, deps.SignalBus)
	assert.Nil(t, deps.PriceMirror)
	assert.Nil(t, deps.LockManager)
	assert.Nil(t, deps.Archiver)
	assert.Empty(t, deps.HealthChecks)
	assert.True(t, deps.Notifier.Enabled())
}

func TestBuildCoreBootstrapsPools(t *testing.T) {
	cfg := memoryConfig()
	a := New(cfg, testLogger())
	deps, cleanup, err := Wire(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer cleanup()

	c, err := a.buildCore(context.Background(), deps, true)
	require.NoError(t, err)
	pools, err := c.engine.ListPools(context.Background())
	require.NoError(t, err)
	assert.Len(t, pools, 9)
	assert.Nil(t, c.alerts)

	sched := a.newScheduler(deps, c, true)
	assert.Equal(t, []string{"oracle_refresh", "timeout_sweep"}, sched.Tasks())
	assert.Equal(t, []string{"oracle_refresh"}, a.newScheduler(deps, c, false).Tasks())
}

func TestBuildCoreNeedsMirrorWithoutUpstream(t *testing.T) {
	cfg := memoryConfig()
	deps, cleanup, err := Wire(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer cleanup()

	_, err = New(cfg, testLogger()).buildCore(context.Background(), deps, false)
	assert.Error(t, err)
}

func TestFeedsMergeOverrides(t *testing.T) {
	cfg := memoryConfig()
	cfg.Oracle.Feeds = map[string]string{"eth": "custom"}
	feeds := New(cfg, testLogger()).feeds()

	assert.Equal(t, "custom", feeds[domain.AssetETH])
	assert.Equal(t, pyth.DefaultFeeds[domain.AssetBTC], feeds[domain.AssetBTC])
	assert.Len(t, feeds, 3)
}
