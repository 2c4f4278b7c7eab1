package domain

import (
	"errors"
	"fmt"
	"time"
)

// PoolStatus is the lifecycle state of a pool's current round.
type PoolStatus string

const (
	PoolWaiting   PoolStatus = "waiting"
	PoolActive    PoolStatus = "active"
	PoolCompleted PoolStatus = "completed"
)

// Valid reports whether s is a known status.
func (s PoolStatus) Valid() bool {
	switch s {
	case PoolWaiting, PoolActive, PoolCompleted:
		return true
	}
	return false
}

// DrawWinner is stored in Pool.Winner when both predictions are equally close.
const DrawWinner = "draw"

// Pool is the recyclable record holding the current round of a slot. There is
// exactly one Pool per slot; it is mutated in place and reopened after each
// completed round.
type Pool struct {
	ID     string     `json:"poolId"`
	Asset  Asset      `json:"asset"`
	Tier   Tier       `json:"tier"`
	Status PoolStatus `json:"status"`
	Round  uint64     `json:"round"`

	Player1           string   `json:"player1,omitempty"`
	Player2           string   `json:"player2,omitempty"`
	Player1Prediction *float64 `json:"player1Prediction,omitempty"`
	Player2Prediction *float64 `json:"player2Prediction,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`

	Winner     string   `json:"winner,omitempty"`
	FinalPrice *float64 `json:"finalPrice,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// Slot returns the slot this pool occupies.
func (p Pool) Slot() Slot {
	return Slot{Asset: p.Asset, Tier: p.Tier}
}

// NewPool returns an empty waiting pool for the slot.
func NewPool(s Slot, now time.Time) Pool {
	return Pool{
		ID:        s.PoolID(),
		Asset:     s.Asset,
		Tier:      s.Tier,
		Status:    PoolWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Reset clears every round field and returns the pool to an empty waiting
// state stamped at now. Identity and round counter are kept.
func (p *Pool) Reset(now time.Time) {
	p.Status = PoolWaiting
	p.Player1, p.Player2 = "", ""
	p.Player1Prediction, p.Player2Prediction = nil, nil
	p.StartTime, p.EndTime = nil, nil
	p.Winner = ""
	p.FinalPrice = nil
	p.CreatedAt = now
}

// Lone reports whether the pool holds a single waiting player.
func (p Pool) Lone() bool {
	return p.Status == PoolWaiting && p.Player1 != "" && p.Player2 == ""
}

// Clone returns a deep copy so callers cannot alias stored pointers.
func (p Pool) Clone() Pool {
	out := p
	out.Player1Prediction = cloneFloat(p.Player1Prediction)
	out.Player2Prediction = cloneFloat(p.Player2Prediction)
	out.FinalPrice = cloneFloat(p.FinalPrice)
	out.StartTime = cloneTime(p.StartTime)
	out.EndTime = cloneTime(p.EndTime)
	return out
}

// CheckInvariants validates the structural rules every stored pool must obey.
func (p Pool) CheckInvariants() error {
	var errs []error
	if !p.Status.Valid() {
		errs = append(errs, fmt.Errorf("unknown status %q", p.Status))
	}
	if p.Player2 != "" && p.Player1 == "" {
		errs = append(errs, errors.New("player2 without player1"))
	}
	if p.Player1 != "" && p.Player1 == p.Player2 {
		errs = append(errs, errors.New("player1 and player2 are the same wallet"))
	}
	if (p.Player1 != "") != (p.Player1Prediction != nil) {
		errs = append(errs, errors.New("player1 prediction presence mismatch"))
	}
	if (p.Player2 != "") != (p.Player2Prediction != nil) {
		errs = append(errs, errors.New("player2 prediction presence mismatch"))
	}
	switch p.Status {
	case PoolActive:
		if p.Player1 == "" || p.Player2 == "" {
			errs = append(errs, errors.New("active pool missing a player"))
		}
		if p.StartTime == nil || p.EndTime == nil {
			errs = append(errs, errors.New("active pool missing start/end time"))
		}
	case PoolCompleted:
		if p.Winner == "" || p.FinalPrice == nil {
			errs = append(errs, errors.New("completed pool missing winner or final price"))
		}
	case PoolWaiting:
		if p.Player2 != "" {
			errs = append(errs, errors.New("waiting pool holds two players"))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("pool %s: %w", p.ID, errors.Join(errs...))
	}
	return nil
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Repair brings a persisted pool back to a valid state. A missing status or
// creation time is filled in; a pool that still violates its invariants is
// reset to an empty waiting round. It reports whether anything changed.
func (p *Pool) Repair(now time.Time) bool {
	changed := false
	if !p.Status.Valid() {
		p.Status = PoolWaiting
		changed = true
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
		changed = true
	}
	if p.CheckInvariants() != nil {
		p.Reset(now)
		changed = true
	}
	return changed
}

// ResultFor returns the outcome of a completed round for one of its players.
func (p Pool) ResultFor(wallet string) Result {
	switch p.Winner {
	case DrawWinner:
		return ResultDraw
	case wallet:
		return ResultWin
	}
	return ResultLose
}
