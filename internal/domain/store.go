package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// PoolUpdateFunc mutates a pool inside an atomic read-modify-write. Returning
// ErrNoChange aborts the write and yields the unchanged pool; any other error
// aborts the write and is returned to the caller.
type PoolUpdateFunc func(p *Pool) error

// PoolStore persists the fixed set of pools, one per slot.
type PoolStore interface {
	// Bootstrap creates missing slots and repairs malformed ones. Idempotent.
	Bootstrap(ctx context.Context, slots []Slot, now time.Time) error
	Get(ctx context.Context, id string) (Pool, error)
	List(ctx context.Context) ([]Pool, error)
	// Update runs fn against the current pool with no interleaved writer for
	// the same id and commits the result.
	Update(ctx context.Context, id string, fn PoolUpdateFunc) (Pool, error)
}

// HistoryStore persists append-only settlement records.
type HistoryStore interface {
	Append(ctx context.Context, rec HistoryRecord) error
	// ListByWallet returns the wallet's records, newest first.
	ListByWallet(ctx context.Context, wallet string, opts ListOpts) ([]HistoryRecord, error)
	// ListBefore returns all records dated strictly before the cutoff, oldest first.
	ListBefore(ctx context.Context, before time.Time) ([]HistoryRecord, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
