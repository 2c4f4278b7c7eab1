package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fptr(v float64) *float64 { return &v }

func tptr(v time.Time) *time.Time { return &v }

func TestPoolCheckInvariants(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	base := NewPool(Slot{AssetBTC, Tier100}, now)

	active := base
	active.Status = PoolActive
	active.Player1, active.Player1Prediction = "A", fptr(100)
	active.Player2, active.Player2Prediction = "B", fptr(110)
	active.StartTime, active.EndTime = tptr(now), tptr(now.Add(5*time.Minute))

	completed := active.Clone()
	completed.Status = PoolCompleted
	completed.Winner = "B"
	completed.FinalPrice = fptr(108)

	tests := []struct {
		name    string
		mutate  func(p *Pool)
		from    Pool
		wantErr bool
	}{
		{"empty waiting", func(p *Pool) {}, base, false},
		{"lone waiting", func(p *Pool) { p.Player1, p.Player1Prediction = "A", fptr(1) }, base, false},
		{"active", func(p *Pool) {}, active, false},
		{"completed", func(p *Pool) {}, completed, false},
		{"player2 without player1", func(p *Pool) { p.Player1, p.Player1Prediction = "", nil }, active, true},
		{"prediction without player", func(p *Pool) { p.Player1Prediction = fptr(1) }, base, true},
		{"player without prediction", func(p *Pool) { p.Player2Prediction = nil }, active, true},
		{"active without times", func(p *Pool) { p.EndTime = nil }, active, true},
		{"completed without price", func(p *Pool) { p.FinalPrice = nil }, completed, true},
		{"completed without winner", func(p *Pool) { p.Winner = "" }, completed, true},
		{"same wallet twice", func(p *Pool) { p.Player2 = "A" }, active, true},
		{"unknown status", func(p *Pool) { p.Status = "paused" }, base, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := tc.from.Clone()
			tc.mutate(&p)
			err := p.CheckInvariants()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPoolResetKeepsIdentity(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	p := NewPool(Slot{AssetSOL, Tier500}, now)
	p.Round = 3
	p.Status = PoolCompleted
	p.Player1, p.Player1Prediction = "A", fptr(1)
	p.Player2, p.Player2Prediction = "B", fptr(2)
	p.Winner, p.FinalPrice = DrawWinner, fptr(1.5)

	later := now.Add(time.Hour)
	p.Reset(later)

	assert.Equal(t, "SOL_500", p.ID)
	assert.Equal(t, uint64(3), p.Round)
	assert.Equal(t, PoolWaiting, p.Status)
	assert.Equal(t, later, p.CreatedAt)
	assert.Empty(t, p.Player1)
	assert.Nil(t, p.FinalPrice)
	assert.NoError(t, p.CheckInvariants())
}

func TestPoolCloneDoesNotAlias(t *testing.T) {
	p := NewPool(Slot{AssetETH, Tier100}, time.Now())
	p.Player1, p.Player1Prediction = "A", fptr(10)
	c := p.Clone()
	*c.Player1Prediction = 20
	assert.Equal(t, 10.0, *p.Player1Prediction)
}

func TestPoolRepair(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()

	t.Run("missing status and created_at", func(t *testing.T) {
		p := Pool{ID: "BTC_100", Asset: AssetBTC, Tier: Tier100}
		assert.True(t, p.Repair(now))
		assert.Equal(t, PoolWaiting, p.Status)
		assert.Equal(t, now, p.CreatedAt)
	})

	t.Run("keeps a valid lone player", func(t *testing.T) {
		p := Pool{ID: "BTC_100", Asset: AssetBTC, Tier: Tier100, Player1: "A", Player1Prediction: fptr(5)}
		assert.True(t, p.Repair(now))
		assert.Equal(t, "A", p.Player1)
		assert.Equal(t, now, p.CreatedAt)
	})

	t.Run("resets an inconsistent round", func(t *testing.T) {
		p := NewPool(Slot{AssetBTC, Tier100}, now.Add(-time.Hour))
		p.Status = PoolActive
		p.Player1, p.Player1Prediction = "A", fptr(5)
		assert.True(t, p.Repair(now))
		assert.Equal(t, PoolWaiting, p.Status)
		assert.Empty(t, p.Player1)
		assert.Equal(t, now, p.CreatedAt)
	})

	t.Run("valid pool untouched", func(t *testing.T) {
		p := NewPool(Slot{AssetBTC, Tier100}, now)
		assert.False(t, p.Repair(now.Add(time.Minute)))
		assert.Equal(t, now, p.CreatedAt)
	})
}
