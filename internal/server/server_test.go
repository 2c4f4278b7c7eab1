package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/priceduel/internal/domain"
	"github.com/alanyoungcy/priceduel/internal/duel"
	"github.com/alanyoungcy/priceduel/internal/oracle"
	"github.com/alanyoungcy/priceduel/internal/server/handler"
	"github.com/alanyoungcy/priceduel/internal/service"
	"github.com/alanyoungcy/priceduel/internal/store/memory"
)

const (
	walletA = "0x00000000000000000000000000000000000000aa"
	walletB = "0x00000000000000000000000000000000000000bb"
)

type stubFetcher struct {
	mu     sync.Mutex
	prices map[domain.Asset]float64
}

func (s *stubFetcher) LatestPrices(context.Context, []domain.Asset) (map[domain.Asset]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Asset]float64, len(s.prices))
	for k, v := range s.prices {
		out[k] = v
	}
	return out, nil
}

type apiHarness struct {
	handler http.Handler
	fetcher *stubFetcher
	oracle  *oracle.Cache
}

func newAPIHarness(t *testing.T, checks map[string]handler.HealthCheck) *apiHarness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	fetcher := &stubFetcher{prices: map[domain.Asset]float64{}}
	prices := oracle.NewCache(fetcher, domain.Assets, logger)
	recorder := service.NewHistoryRecorder(memory.NewHistoryStore(), logger)
	engine := duel.New(memory.NewPoolStore(), prices, recorder, duel.DefaultConfig(), logger)
	require.NoError(t, engine.Bootstrap(ctx))

	h := Routes(Config{}, Handlers{
		Health: handler.NewHealthHandler(checks, logger),
		Pools:  handler.NewPoolHandler(engine, recorder, prices, logger),
	}, Deps{Gatherer: prometheus.NewRegistry()}, logger)
	return &apiHarness{handler: h, fetcher: fetcher, oracle: prices}
}

func (a *apiHarness) setPrice(t *testing.T, asset domain.Asset, price float64) {
	t.Helper()
	a.fetcher.mu.Lock()
	a.fetcher.prices[asset] = price
	a.fetcher.mu.Unlock()
	require.NoError(t, a.oracle.Refresh(context.Background()))
}

func (a *apiHarness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func checksum(addr string) string { return common.HexToAddress(addr).Hex() }

func TestListAndGetPools(t *testing.T) {
	api := newAPIHarness(t, nil)

	rec := api.do(t, http.MethodGet, "/api/pools", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pools := decode[[]domain.Pool](t, rec)
	require.Len(t, pools, 9)
	assert.Equal(t, "BTC_100", pools[0].ID)
	assert.Equal(t, "SOL_1000", pools[8].ID)

	rec = api.do(t, http.MethodGet, "/api/pools/ETH_500", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PoolWaiting, decode[domain.Pool](t, rec).Status)

	rec = api.do(t, http.MethodGet, "/api/pools/DOGE_100", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apiError{Error: "Pool not found", Code: "pool_not_found"}, decode[apiError](t, rec))
}

func TestDuelRoundTripOverHTTP(t *testing.T) {
	api := newAPIHarness(t, nil)

	rec := api.do(t, http.MethodPost, "/api/pools/BTC_100/join", map[string]any{"wallet": walletA, "prediction": 100.0})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pool := decode[domain.Pool](t, rec)
	assert.Equal(t, checksum(walletA), pool.Player1)
	assert.Equal(t, domain.PoolWaiting, pool.Status)

	// Same wallet in different case is the same identity.
	rec = api.do(t, http.MethodPost, "/api/pools/BTC_100/join", map[string]any{"wallet": strings.ToUpper("0x" + walletA[2:]), "prediction": 105.0})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "pool_full", decode[apiError](t, rec).Code)

	rec = api.do(t, http.MethodPost, "/api/pools/BTC_100/settle", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not_ready", decode[apiError](t, rec).Code)

	rec = api.do(t, http.MethodPost, "/api/pools/BTC_100/join", map[string]any{"wallet": walletB, "prediction": 110.0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PoolActive, decode[domain.Pool](t, rec).Status)

	rec = api.do(t, http.MethodPost, "/api/pools/BTC_100/settle", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "price_unavailable", decode[apiError](t, rec).Code)

	api.setPrice(t, domain.AssetBTC, 108)
	rec = api.do(t, http.MethodPost, "/api/pools/BTC_100/settle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pool = decode[domain.Pool](t, rec)
	assert.Equal(t, domain.PoolCompleted, pool.Status)
	assert.Equal(t, checksum(walletB), pool.Winner)

	rec = api.do(t, http.MethodPost, "/api/pools/BTC_100/leave", map[string]any{"wallet": walletA})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "cannot_leave", decode[apiError](t, rec).Code)

	rec = api.do(t, http.MethodGet, "/api/pools/user/"+walletB+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]domain.HistoryRecord](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, domain.ResultWin, history[0].Result)
	assert.Equal(t, 110.0, history[0].Prediction)
	assert.Equal(t, 100.0, history[0].OpponentPrediction)
	assert.Equal(t, 108.0, history[0].FinalPrice)
}

func TestJoinValidation(t *testing.T) {
	api := newAPIHarness(t, nil)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"missing prediction", "/api/pools/BTC_100/join", map[string]any{"wallet": walletA}, http.StatusBadRequest, "wallet_and_prediction_required"},
		{"missing wallet", "/api/pools/BTC_100/join", map[string]any{"prediction": 1.0}, http.StatusBadRequest, "wallet_and_prediction_required"},
		{"bad wallet", "/api/pools/BTC_100/join", map[string]any{"wallet": "alice", "prediction": 1.0}, http.StatusBadRequest, "invalid_wallet"},
		{"negative prediction", "/api/pools/BTC_100/join", map[string]any{"wallet": walletA, "prediction": -5.0}, http.StatusConflict, "invalid_prediction"},
		{"unknown pool", "/api/pools/BTC_7/join", map[string]any{"wallet": walletA, "prediction": 1.0}, http.StatusNotFound, "pool_not_found"},
		{"leave without wallet", "/api/pools/BTC_100/leave", map[string]any{}, http.StatusBadRequest, "wallet_required"},
		{"leave when not seated", "/api/pools/BTC_100/leave", map[string]any{"wallet": walletA}, http.StatusConflict, "cannot_leave"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, tt.path, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[apiError](t, rec).Code)
		})
	}

	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/pools/BTC_100/join", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_body", decode[apiError](t, rec).Code)
}

func TestPriceEndpoint(t *testing.T) {
	api := newAPIHarness(t, nil)

	rec := api.do(t, http.MethodGet, "/api/pools/price/BTC", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "price_not_found", decode[apiError](t, rec).Code)

	api.setPrice(t, domain.AssetETH, 3120.5)
	rec = api.do(t, http.MethodGet, "/api/pools/price/eth", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ETH", body["asset"])
	assert.Equal(t, 3120.5, body["price"])
	assert.Contains(t, body, "updated_at")
	assert.GreaterOrEqual(t, body["age_seconds"].(float64), 0.0)

	rec = api.do(t, http.MethodGet, "/api/pools/price/DOGE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryRequiresValidWallet(t *testing.T) {
	api := newAPIHarness(t, nil)

	rec := api.do(t, http.MethodGet, "/api/pools/user/nobody/history", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_wallet", decode[apiError](t, rec).Code)

	rec = api.do(t, http.MethodGet, "/api/pools/user/"+walletA+"/history?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestHealthAndMetrics(t *testing.T) {
	api := newAPIHarness(t, map[string]handler.HealthCheck{
		"postgres": func(context.Context) error { return nil },
	})
	for _, path := range []string{"/health", "/api/health"} {
		rec := api.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", decode[map[string]any](t, rec)["status"])
	}

	rec := api.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	down := newAPIHarness(t, map[string]handler.HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	rec = down.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "connection refused", body["dependencies"].(map[string]any)["redis"])
}
