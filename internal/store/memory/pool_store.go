// Package memory implements the domain store interfaces in process memory.
// Pools live in a fixed arena indexed by slot, each guarded by its own mutex,
// so updates to different pools never contend.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/priceduel/internal/domain"
)

type poolCell struct {
	mu      sync.Mutex
	pool    domain.Pool
	present bool
}

// PoolStore implements domain.PoolStore over a fixed slot arena.
type PoolStore struct {
	cells []poolCell
	now   func() time.Time
}

// PoolStoreOption configures a PoolStore.
type PoolStoreOption func(*PoolStore)

// WithClock replaces the clock that stamps UpdatedAt.
func WithClock(now func() time.Time) PoolStoreOption {
	return func(s *PoolStore) { s.now = now }
}

// NewPoolStore creates an empty PoolStore. Call Bootstrap before use.
func NewPoolStore(opts ...PoolStoreOption) *PoolStore {
	s := &PoolStore{
		cells: make([]poolCell, len(domain.AllSlots())),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PoolStore) cell(id string) (*poolCell, error) {
	slot, err := domain.ParsePoolID(id)
	if err != nil {
		return nil, err
	}
	return &s.cells[slot.Index()], nil
}

// Bootstrap creates every missing slot as an empty waiting pool and repairs
// malformed ones in place.
func (s *PoolStore) Bootstrap(_ context.Context, slots []domain.Slot, now time.Time) error {
	for _, slot := range slots {
		idx := slot.Index()
		if idx < 0 {
			return fmt.Errorf("memory: bootstrap unknown slot %s", slot.PoolID())
		}
		c := &s.cells[idx]
		c.mu.Lock()
		if !c.present {
			c.pool = domain.NewPool(slot, now)
			c.present = true
		} else if c.pool.Repair(now) {
			c.pool.UpdatedAt = now
		}
		c.mu.Unlock()
	}
	return nil
}

// Seed stores p as-is without validation. Tests use it to plant malformed
// persisted state.
func (s *PoolStore) Seed(p domain.Pool) error {
	c, err := s.cell(p.ID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.pool = p.Clone()
	c.present = true
	c.mu.Unlock()
	return nil
}

// Get returns a copy of the pool with the given id.
func (s *PoolStore) Get(_ context.Context, id string) (domain.Pool, error) {
	c, err := s.cell(id)
	if err != nil {
		return domain.Pool{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.present {
		return domain.Pool{}, domain.ErrPoolNotFound
	}
	return c.pool.Clone(), nil
}

// List returns every bootstrapped pool in slot order.
func (s *PoolStore) List(_ context.Context) ([]domain.Pool, error) {
	out := make([]domain.Pool, 0, len(s.cells))
	for i := range s.cells {
		c := &s.cells[i]
		c.mu.Lock()
		if c.present {
			out = append(out, c.pool.Clone())
		}
		c.mu.Unlock()
	}
	return out, nil
}

// Update applies fn to a private copy of the pool while holding the pool's
// lock and commits the copy only if fn succeeds and the result is valid.
func (s *PoolStore) Update(_ context.Context, id string, fn domain.PoolUpdateFunc) (domain.Pool, error) {
	c, err := s.cell(id)
	if err != nil {
		return domain.Pool{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.present {
		return domain.Pool{}, domain.ErrPoolNotFound
	}

	next := c.pool.Clone()
	if err := fn(&next); err != nil {
		if errors.Is(err, domain.ErrNoChange) {
			return c.pool.Clone(), nil
		}
		return c.pool.Clone(), err
	}
	if err := next.CheckInvariants(); err != nil {
		return c.pool.Clone(), fmt.Errorf("memory: update %s: %w", id, err)
	}
	next.UpdatedAt = s.now()
	c.pool = next
	return next.Clone(), nil
}

// Compile-time interface check.
var _ domain.PoolStore = (*PoolStore)(nil)
