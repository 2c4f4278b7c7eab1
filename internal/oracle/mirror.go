package oracle

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/priceduel/internal/domain"
)

// MirrorFetcher reads prices another replica wrote to the shared PriceCache.
// API-only replicas use it in place of the upstream feed.
type MirrorFetcher struct {
	cache domain.PriceCache
}

// NewMirrorFetcher wraps a shared PriceCache as a Fetcher.
func NewMirrorFetcher(cache domain.PriceCache) *MirrorFetcher {
	return &MirrorFetcher{cache: cache}
}

// LatestPrices implements Fetcher.
func (m *MirrorFetcher) LatestPrices(ctx context.Context, assets []domain.Asset) (map[domain.Asset]float64, error) {
	prices, err := m.cache.GetPrices(ctx, assets)
	if err != nil {
		return nil, fmt.Errorf("oracle: read mirror: %w", err)
	}
	return prices, nil
}
