package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/priceduel/internal/domain"
)

func TestHistoryStoreListByWalletNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewHistoryStore()
	base := time.Unix(1700000000, 0).UTC()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Append(ctx, domain.HistoryRecord{
			ID: string(rune('a' + i)), Wallet: "A", Date: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.Append(ctx, domain.HistoryRecord{ID: "z", Wallet: "B", Date: base}))

	recs, err := s.ListByWallet(ctx, "A", domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "c", recs[0].ID)
	assert.Equal(t, "a", recs[2].ID)

	paged, err := s.ListByWallet(ctx, "A", domain.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "b", paged[0].ID)

	none, err := s.ListByWallet(ctx, "C", domain.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHistoryStoreRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := NewHistoryStore()
	rec := domain.HistoryRecord{ID: "x", Wallet: "A", Date: time.Now()}
	require.NoError(t, s.Append(ctx, rec))
	assert.ErrorIs(t, s.Append(ctx, rec), domain.ErrAlreadyExists)
}

func TestHistoryStoreListBefore(t *testing.T) {
	ctx := context.Background()
	s := NewHistoryStore()
	base := time.Unix(1700000000, 0).UTC()
	require.NoError(t, s.Append(ctx, domain.HistoryRecord{ID: "old", Wallet: "A", Date: base}))
	require.NoError(t, s.Append(ctx, domain.HistoryRecord{ID: "new", Wallet: "A", Date: base.Add(time.Hour)}))

	recs, err := s.ListBefore(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "old", recs[0].ID)
}
