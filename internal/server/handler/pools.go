package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/priceduel/internal/crypto"
	"github.com/alanyoungcy/priceduel/internal/domain"
)

// PoolService is the subset of the duel engine the pool handler drives.
type PoolService interface {
	ListPools(ctx context.Context) ([]domain.Pool, error)
	GetPool(ctx context.Context, poolID string) (domain.Pool, error)
	Join(ctx context.Context, poolID, wallet string, prediction float64) (domain.Pool, error)
	Leave(ctx context.Context, poolID, wallet string) (domain.Pool, error)
	Settle(ctx context.Context, poolID string) (domain.Pool, error)
}

// HistoryService lists settled rounds for a wallet.
type HistoryService interface {
	ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.HistoryRecord, error)
}

// PriceReader exposes the oracle cache.
type PriceReader interface {
	Sample(asset domain.Asset) (domain.PriceSample, bool)
}

// PoolHandler serves the /api/pools endpoints.
type PoolHandler struct {
	pools   PoolService
	history HistoryService
	prices  PriceReader
	now     func() time.Time
	logger  *slog.Logger
}

// NewPoolHandler creates a PoolHandler.
func NewPoolHandler(pools PoolService, history HistoryService, prices PriceReader, logger *slog.Logger) *PoolHandler {
	return &PoolHandler{
		pools:   pools,
		history: history,
		prices:  prices,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logHandler(logger, "pools"),
	}
}

type joinRequest struct {
	Wallet     string   `json:"wallet"`
	Prediction *float64 `json:"prediction"`
}

type leaveRequest struct {
	Wallet string `json:"wallet"`
}

type priceResponse struct {
	Asset      domain.Asset `json:"asset"`
	Price      float64      `json:"price"`
	UpdatedAt  time.Time    `json:"updated_at"`
	AgeSeconds float64      `json:"age_seconds"`
}

// ListPools returns every pool in slot order.
// GET /api/pools
func (h *PoolHandler) ListPools(w http.ResponseWriter, r *http.Request) {
	pools, err := h.pools.ListPools(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, "list pools", err)
		return
	}
	if pools == nil {
		pools = []domain.Pool{}
	}
	writeJSON(w, http.StatusOK, pools)
}

// GetPool returns a single pool.
// GET /api/pools/{poolId}
func (h *PoolHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	pool, err := h.pools.GetPool(r.Context(), pathParam(r, "poolId"))
	if err != nil {
		writeDomainError(w, r, h.logger, "get pool", err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

// Join seats a wallet with its prediction.
// POST /api/pools/{poolId}/join
func (h *PoolHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "invalid_body")
		return
	}
	if req.Wallet == "" || req.Prediction == nil {
		writeDomainError(w, r, h.logger, "join", domain.ErrJoinInputRequired)
		return
	}
	wallet, err := crypto.NormalizeWallet(req.Wallet)
	if err != nil {
		writeDomainError(w, r, h.logger, "join", err)
		return
	}

	pool, err := h.pools.Join(r.Context(), pathParam(r, "poolId"), wallet, *req.Prediction)
	if err != nil {
		writeDomainError(w, r, h.logger, "join", err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

// Leave removes the waiting player from a pool.
// POST /api/pools/{poolId}/leave
func (h *PoolHandler) Leave(w http.ResponseWriter, r *http.Request) {
	var req leaveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "invalid_body")
		return
	}
	wallet, err := crypto.NormalizeWallet(req.Wallet)
	if err != nil {
		writeDomainError(w, r, h.logger, "leave", err)
		return
	}

	pool, err := h.pools.Leave(r.Context(), pathParam(r, "poolId"), wallet)
	if err != nil {
		writeDomainError(w, r, h.logger, "leave", err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

// Settle resolves an active match against the cached price.
// POST /api/pools/{poolId}/settle
func (h *PoolHandler) Settle(w http.ResponseWriter, r *http.Request) {
	pool, err := h.pools.Settle(r.Context(), pathParam(r, "poolId"))
	if err != nil {
		writeDomainError(w, r, h.logger, "settle", err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

// History returns a wallet's settled rounds, newest first.
// GET /api/pools/user/{wallet}/history?limit=50&offset=0
func (h *PoolHandler) History(w http.ResponseWriter, r *http.Request) {
	wallet, err := crypto.NormalizeWallet(pathParam(r, "wallet"))
	if err != nil {
		writeDomainError(w, r, h.logger, "history", err)
		return
	}

	records, err := h.history.ListByWallet(r.Context(), wallet, parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, "history", err)
		return
	}
	if records == nil {
		records = []domain.HistoryRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// Price returns the cached price of an asset and its age.
// GET /api/pools/price/{asset}
func (h *PoolHandler) Price(w http.ResponseWriter, r *http.Request) {
	asset, err := domain.ParseAsset(pathParam(r, "asset"))
	if err != nil {
		writeDomainError(w, r, h.logger, "price", domain.ErrPriceNotFound)
		return
	}
	sample, ok := h.prices.Sample(asset)
	if !ok {
		writeDomainError(w, r, h.logger, "price", domain.ErrPriceNotFound)
		return
	}
	writeJSON(w, http.StatusOK, priceResponse{
		Asset:      sample.Asset,
		Price:      sample.Price,
		UpdatedAt:  sample.UpdatedAt,
		AgeSeconds: sample.Age(h.now()).Seconds(),
	})
}
