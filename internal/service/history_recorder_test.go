package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/priceduel/internal/domain"
	"github.com/alanyoungcy/priceduel/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func settledPool(winner string) domain.Pool {
	p1, p2, final := 100.0, 110.0, 108.0
	start := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	end := start.Add(5 * time.Minute)
	return domain.Pool{
		ID:                "ETH_500",
		Asset:             domain.AssetETH,
		Tier:              domain.Tier500,
		Status:            domain.PoolCompleted,
		Round:             3,
		Player1:           "0xA",
		Player2:           "0xB",
		Player1Prediction: &p1,
		Player2Prediction: &p2,
		CreatedAt:         start,
		StartTime:         &start,
		EndTime:           &end,
		Winner:            winner,
		FinalPrice:        &final,
	}
}

func TestRecordSettlementWritesBothPlayers(t *testing.T) {
	store := memory.NewHistoryStore()
	rec := NewHistoryRecorder(store, testLogger())
	ctx := context.Background()

	require.NoError(t, rec.RecordSettlement(ctx, settledPool("0xB")))

	a, err := rec.ListByWallet(ctx, "0xA", domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, a, 1)
	assert.Equal(t, domain.ResultLose, a[0].Result)
	assert.Equal(t, 100.0, a[0].Prediction)
	assert.Equal(t, 110.0, a[0].OpponentPrediction)
	assert.Equal(t, 108.0, a[0].FinalPrice)
	assert.Equal(t, 500.0, a[0].Amount)
	assert.Equal(t, uint64(3), a[0].Round)
	assert.NotEmpty(t, a[0].ID)

	b, err := rec.ListByWallet(ctx, "0xB", domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, b, 1)
	assert.Equal(t, domain.ResultWin, b[0].Result)
	assert.NotEqual(t, a[0].ID, b[0].ID)
}

func TestRecordSettlementDraw(t *testing.T) {
	store := memory.NewHistoryStore()
	rec := NewHistoryRecorder(store, testLogger())
	ctx := context.Background()

	require.NoError(t, rec.RecordSettlement(ctx, settledPool(domain.DrawWinner)))
	for _, w := range []string{"0xA", "0xB"} {
		got, err := rec.ListByWallet(ctx, w, domain.ListOpts{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, domain.ResultDraw, got[0].Result)
	}
}

func TestRecordSettlementRejectsUnsettledPool(t *testing.T) {
	rec := NewHistoryRecorder(memory.NewHistoryStore(), testLogger())
	p := settledPool("0xB")
	p.Status = domain.PoolActive
	assert.Error(t, rec.RecordSettlement(context.Background(), p))
}

type failingHistory struct {
	*memory.HistoryStore
	failWallet string
}

func (f failingHistory) Append(ctx context.Context, rec domain.HistoryRecord) error {
	if rec.Wallet == f.failWallet {
		return errors.New("disk full")
	}
	return f.HistoryStore.Append(ctx, rec)
}

func TestRecordSettlementAttemptsBothWrites(t *testing.T) {
	inner := memory.NewHistoryStore()
	rec := NewHistoryRecorder(failingHistory{HistoryStore: inner, failWallet: "0xA"}, testLogger())
	ctx := context.Background()

	err := rec.RecordSettlement(ctx, settledPool("0xB"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ETH_500 round 3")

	b, err := inner.ListByWallet(ctx, "0xB", domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, b, 1)
}

func TestListByWalletRequiresWallet(t *testing.T) {
	rec := NewHistoryRecorder(memory.NewHistoryStore(), testLogger())
	_, err := rec.ListByWallet(context.Background(), "  ", domain.ListOpts{})
	assert.ErrorIs(t, err, domain.ErrWalletRequired)
}
