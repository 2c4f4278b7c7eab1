// Package oracle holds the latest price per asset, refreshed from an external
// feed. Readers always observe one complete snapshot.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/priceduel/internal/domain"
	"github.com/alanyoungcy/priceduel/internal/metrics"
)

// Fetcher returns the current price of each requested asset in one batched
// call. Assets missing from the result are left untouched in the cache.
type Fetcher interface {
	LatestPrices(ctx context.Context, assets []domain.Asset) (map[domain.Asset]float64, error)
}

type snapshot map[domain.Asset]domain.PriceSample

// Option configures optional collaborators of the Cache.
type Option func(*Cache)

// WithMirror writes every refreshed price through to a shared PriceCache.
func WithMirror(pc domain.PriceCache) Option { return func(c *Cache) { c.mirror = pc } }

// WithSignalBus publishes a prices event after each refresh that changed
// anything.
func WithSignalBus(bus domain.SignalBus) Option { return func(c *Cache) { c.bus = bus } }

func WithMetrics(m *metrics.DuelMetrics) Option { return func(c *Cache) { c.metrics = m } }

func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

// Cache is the process price oracle.
type Cache struct {
	fetcher Fetcher
	assets  []domain.Asset
	mirror  domain.PriceCache
	bus     domain.SignalBus
	metrics *metrics.DuelMetrics
	now     func() time.Time
	logger  *slog.Logger

	// mu serializes refreshes across fetch and swap, so an older poll
	// never lands after a newer one.
	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

// NewCache creates an empty Cache polling assets through fetcher.
func NewCache(fetcher Fetcher, assets []domain.Asset, logger *slog.Logger, opts ...Option) *Cache {
	c := &Cache{
		fetcher: fetcher,
		assets:  append([]domain.Asset(nil), assets...),
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger.With(slog.String("component", "price_oracle")),
	}
	for _, opt := range opts {
		opt(c)
	}
	empty := snapshot{}
	c.snap.Store(&empty)
	return c
}

// Refresh polls the fetcher once. Valid prices replace cached ones; a failed
// poll keeps the whole cache and returns an error wrapping
// domain.ErrUpstreamUnavailable.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prices, err := c.fetcher.LatestPrices(ctx, c.assets)
	if err != nil {
		c.metrics.ObserveOracleRefresh("failed")
		c.logger.WarnContext(ctx, "price refresh failed, keeping cached prices",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("oracle: refresh: %w: %w", domain.ErrUpstreamUnavailable, err)
	}

	now := c.now()
	current := *c.snap.Load()
	next := make(snapshot, len(current)+len(prices))
	for a, s := range current {
		next[a] = s
	}
	var updated []domain.PriceSample
	for _, asset := range c.assets {
		price, ok := prices[asset]
		if !ok || !validPrice(price) {
			continue
		}
		s := domain.PriceSample{Asset: asset, Price: price, UpdatedAt: now}
		next[asset] = s
		updated = append(updated, s)
	}
	c.snap.Store(&next)

	result := "ok"
	if len(updated) < len(c.assets) {
		result = "partial"
		c.logger.DebugContext(ctx, "price refresh partial",
			slog.Int("updated", len(updated)),
			slog.Int("requested", len(c.assets)),
		)
	}
	c.metrics.ObserveOracleRefresh(result)
	for _, s := range updated {
		c.metrics.SetPrice(string(s.Asset), s.Price, float64(s.UpdatedAt.Unix()))
	}
	c.propagate(ctx, updated)
	return nil
}

func (c *Cache) propagate(ctx context.Context, updated []domain.PriceSample) {
	if len(updated) == 0 {
		return
	}
	if c.mirror != nil {
		for _, s := range updated {
			if err := c.mirror.SetPrice(ctx, s.Asset, s.Price, s.UpdatedAt); err != nil {
				c.logger.WarnContext(ctx, "price mirror write failed",
					slog.String("asset", string(s.Asset)),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	if c.bus != nil {
		payload, err := json.Marshal(map[string]any{"event": "prices", "prices": updated})
		if err != nil {
			return
		}
		if err := c.bus.Publish(ctx, domain.ChannelPrices, payload); err != nil {
			c.logger.WarnContext(ctx, "publish prices failed", slog.String("error", err.Error()))
		}
	}
}

// Get returns the last cached price for asset.
func (c *Cache) Get(asset domain.Asset) (float64, bool) {
	s, ok := c.Sample(asset)
	return s.Price, ok
}

// Sample returns the last cached sample for asset, including its timestamp.
func (c *Cache) Sample(asset domain.Asset) (domain.PriceSample, bool) {
	s, ok := (*c.snap.Load())[asset]
	return s, ok
}

// Samples returns every cached sample in asset order.
func (c *Cache) Samples() []domain.PriceSample {
	snap := *c.snap.Load()
	out := make([]domain.PriceSample, 0, len(snap))
	for _, a := range c.assets {
		if s, ok := snap[a]; ok {
			out = append(out, s)
		}
	}
	return out
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}
