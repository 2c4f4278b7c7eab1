package pyth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/priceduel/internal/domain"
)

const hermesBody = `{
  "binary": {"encoding": "hex", "data": []},
  "parsed": [
    {"id": "e62df6c8b4a85fe1a67db44dc12de5db330f7ac66b72dc658afedf0f4a415b43",
     "price": {"price": "6512345678900", "conf": "1000", "expo": -8, "publish_time": 1760000000}},
    {"id": "ff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace",
     "price": {"price": "not-a-number", "conf": "1", "expo": -8, "publish_time": 1760000000}}
  ]
}`

func TestLatestPrices(t *testing.T) {
	var gotIDs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/updates/price/latest", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("parsed"))
		gotIDs = r.URL.Query()["ids[]"]
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(hermesBody))
	}))
	defer srv.Close()

	feeds := map[domain.Asset]string{}
	for a, id := range DefaultFeeds {
		feeds[a] = "0x" + id
	}
	c := NewClient(srv.URL, feeds, time.Second)
	prices, err := c.LatestPrices(context.Background(), domain.Assets)
	require.NoError(t, err)

	assert.Len(t, gotIDs, 3)
	assert.InDelta(t, 65123.456789, prices[domain.AssetBTC], 1e-9)
	_, ok := prices[domain.AssetETH]
	assert.False(t, ok, "unparseable price is skipped")
	_, ok = prices[domain.AssetSOL]
	assert.False(t, ok, "missing update is skipped")
}

func TestLatestPricesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil, time.Second).LatestPrices(context.Background(), domain.Assets)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestScale(t *testing.T) {
	v, err := scale("15012345", -5)
	require.NoError(t, err)
	assert.InDelta(t, 150.12345, v, 1e-12)
}
