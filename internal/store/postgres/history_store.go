package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/priceduel/internal/domain"
)

const uniqueViolation = "23505"

// HistoryStore implements domain.HistoryStore using PostgreSQL. Rows are
// insert-only.
type HistoryStore struct {
	pool *pgxpool.Pool
}

// NewHistoryStore creates a new HistoryStore backed by the given connection pool.
func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

const historyColumns = `id, wallet, pool_id, round, asset, tier, prediction,
	opponent_prediction, final_price, result, amount, date`

// Append inserts rec. A duplicate id yields domain.ErrAlreadyExists.
func (s *HistoryStore) Append(ctx context.Context, rec domain.HistoryRecord) error {
	const query = `INSERT INTO history_records (` + historyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.Wallet, rec.PoolID, int64(rec.Round), string(rec.Asset), int(rec.Tier),
		rec.Prediction, rec.OpponentPrediction, rec.FinalPrice, string(rec.Result),
		rec.Amount, rec.Date,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: append history %s: %w", rec.ID, err)
	}
	return nil
}

// ListByWallet returns the wallet's records newest first.
func (s *HistoryStore) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.HistoryRecord, error) {
	var f filter
	f.where("wallet = $%d", wallet)
	f.window("date", opts)
	query, args := f.build(`SELECT `+historyColumns+` FROM history_records`, "date DESC, id DESC", opts)
	recs, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list history for %s: %w", wallet, err)
	}
	return recs, nil
}

// ListBefore returns every record dated before the cutoff, oldest first.
func (s *HistoryStore) ListBefore(ctx context.Context, before time.Time) ([]domain.HistoryRecord, error) {
	var f filter
	f.where("date < $%d", before)
	query, args := f.build(`SELECT `+historyColumns+` FROM history_records`, "date ASC, id ASC", domain.ListOpts{})
	recs, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list history before %s: %w", before.Format(time.RFC3339), err)
	}
	return recs, nil
}

func (s *HistoryStore) query(ctx context.Context, query string, args ...any) ([]domain.HistoryRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.HistoryRecord, error) {
		var (
			rec    domain.HistoryRecord
			round  int64
			asset  string
			tier   int
			result string
		)
		err := row.Scan(&rec.ID, &rec.Wallet, &rec.PoolID, &round, &asset, &tier,
			&rec.Prediction, &rec.OpponentPrediction, &rec.FinalPrice, &result,
			&rec.Amount, &rec.Date)
		rec.Round = uint64(round)
		rec.Asset = domain.Asset(asset)
		rec.Tier = domain.Tier(tier)
		rec.Result = domain.Result(result)
		return rec, err
	})
}

// Compile-time interface check.
var _ domain.HistoryStore = (*HistoryStore)(nil)
