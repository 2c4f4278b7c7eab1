package domain

import (
	"context"
	"time"
)

// PriceCache is a shared copy of the oracle's latest prices, readable by
// replicas that do not poll the feed themselves.
type PriceCache interface {
	SetPrice(ctx context.Context, asset Asset, price float64, ts time.Time) error
	GetPrice(ctx context.Context, asset Asset) (float64, time.Time, error)
	GetPrices(ctx context.Context, assets []Asset) (map[Asset]float64, error)
}

// RateLimiter provides per-key request limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// Bus channels and streams.
const (
	ChannelPools  = "pools"
	ChannelPrices = "prices"
	StreamPools   = "stream:pools"
)
