package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/priceduel/internal/domain"
)

// HistoryStore implements domain.HistoryStore as an append-only slice with a
// per-wallet index.
type HistoryStore struct {
	mu       sync.RWMutex
	records  []domain.HistoryRecord
	byWallet map[string][]int
}

// NewHistoryStore creates an empty HistoryStore.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{byWallet: make(map[string][]int)}
}

// Append stores rec. Records are never updated or removed.
func (s *HistoryStore) Append(_ context.Context, rec domain.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.byWallet[rec.Wallet] {
		if s.records[i].ID == rec.ID {
			return domain.ErrAlreadyExists
		}
	}
	s.records = append(s.records, rec)
	s.byWallet[rec.Wallet] = append(s.byWallet[rec.Wallet], len(s.records)-1)
	return nil
}

// ListByWallet returns the wallet's records newest first.
func (s *HistoryStore) ListByWallet(_ context.Context, wallet string, opts domain.ListOpts) ([]domain.HistoryRecord, error) {
	s.mu.RLock()
	idx := s.byWallet[wallet]
	out := make([]domain.HistoryRecord, 0, len(idx))
	for k := len(idx) - 1; k >= 0; k-- {
		r := s.records[idx[k]]
		if opts.Since != nil && r.Date.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && r.Date.After(*opts.Until) {
			continue
		}
		out = append(out, r)
	}
	s.mu.RUnlock()

	// Walked newest append first; the stable sort keeps that order for ties.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return page(out, opts), nil
}

// ListBefore returns records dated before the cutoff, oldest first.
func (s *HistoryStore) ListBefore(_ context.Context, before time.Time) ([]domain.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.HistoryRecord
	for _, r := range s.records {
		if r.Date.Before(before) {
			out = append(out, r)
		}
	}
	return out, nil
}

func page[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return items[:0]
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

// Compile-time interface check.
var _ domain.HistoryStore = (*HistoryStore)(nil)
