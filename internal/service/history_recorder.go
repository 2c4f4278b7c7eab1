package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/priceduel/internal/domain"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// HistoryRecorder derives the per-participant history of settled rounds and
// serves it back per wallet.
type HistoryRecorder struct {
	store  domain.HistoryStore
	logger *slog.Logger
}

// NewHistoryRecorder creates a HistoryRecorder backed by store.
func NewHistoryRecorder(store domain.HistoryStore, logger *slog.Logger) *HistoryRecorder {
	return &HistoryRecorder{
		store:  store,
		logger: logger.With(slog.String("component", "history_recorder")),
	}
}

// RecordSettlement writes one record per player of a completed pool. Both
// writes are always attempted; a failure of either leaves the round's history
// inconsistent and is reported as an error naming the round.
func (r *HistoryRecorder) RecordSettlement(ctx context.Context, p domain.Pool) error {
	if p.Status != domain.PoolCompleted || p.FinalPrice == nil ||
		p.Player1Prediction == nil || p.Player2Prediction == nil {
		return fmt.Errorf("history_recorder: pool %s round %d is not a settled match", p.ID, p.Round)
	}

	date := p.UpdatedAt
	if p.EndTime != nil {
		date = *p.EndTime
	}
	records := []domain.HistoryRecord{
		r.record(p, p.Player1, *p.Player1Prediction, *p.Player2Prediction, date),
		r.record(p, p.Player2, *p.Player2Prediction, *p.Player1Prediction, date),
	}

	var errs []error
	for _, rec := range records {
		if err := r.store.Append(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("wallet %s: %w", rec.Wallet, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("history_recorder: pool %s round %d: %w", p.ID, p.Round, err)
	}

	r.logger.DebugContext(ctx, "settlement recorded",
		slog.String("pool_id", p.ID),
		slog.Uint64("round", p.Round),
	)
	return nil
}

func (r *HistoryRecorder) record(p domain.Pool, wallet string, own, opponent float64, date time.Time) domain.HistoryRecord {
	return domain.HistoryRecord{
		ID:                 uuid.New().String(),
		Wallet:             wallet,
		PoolID:             p.ID,
		Round:              p.Round,
		Asset:              p.Asset,
		Tier:               p.Tier,
		Prediction:         own,
		OpponentPrediction: opponent,
		FinalPrice:         *p.FinalPrice,
		Result:             p.ResultFor(wallet),
		Amount:             float64(p.Tier),
		Date:               date,
	}
}

// ListByWallet returns the wallet's records, newest first. The limit defaults
// to 50 and is capped at 500.
func (r *HistoryRecorder) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.HistoryRecord, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return nil, domain.ErrWalletRequired
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultHistoryLimit
	}
	if opts.Limit > maxHistoryLimit {
		opts.Limit = maxHistoryLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	recs, err := r.store.ListByWallet(ctx, wallet, opts)
	if err != nil {
		return nil, fmt.Errorf("history_recorder: list %s: %w", wallet, err)
	}
	return recs, nil
}
