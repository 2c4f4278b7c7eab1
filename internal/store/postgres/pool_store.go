package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/priceduel/internal/domain"
)

// PoolStore implements domain.PoolStore. Updates hold a row lock for the
// whole read-modify-write, so writers of one pool serialize while different
// pools proceed independently.
type PoolStore struct {
	pool *pgxpool.Pool
}

// NewPoolStore creates a new PoolStore backed by the given connection pool.
func NewPoolStore(pool *pgxpool.Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

const poolColumns = `id, asset, tier, status, round, player1, player2,
	player1_prediction, player2_prediction, created_at, start_time, end_time,
	winner, final_price, updated_at`

// scanPool reads a row into a Pool. Columns that may be missing in legacy
// rows are nullable and come back as zero values for Repair to fix.
func scanPool(row pgx.Row) (domain.Pool, error) {
	var (
		p                   domain.Pool
		asset               string
		tier                int
		status              *string
		player1, player2    *string
		winner              *string
		createdAt           *time.Time
		round               int64
		pred1, pred2, final *float64
	)
	err := row.Scan(&p.ID, &asset, &tier, &status, &round, &player1, &player2,
		&pred1, &pred2, &createdAt, &p.StartTime, &p.EndTime,
		&winner, &final, &p.UpdatedAt)
	if err != nil {
		return domain.Pool{}, err
	}
	p.Asset = domain.Asset(asset)
	p.Tier = domain.Tier(tier)
	p.Round = uint64(round)
	p.Status = domain.PoolStatus(deref(status))
	p.Player1 = deref(player1)
	p.Player2 = deref(player2)
	p.Winner = deref(winner)
	p.Player1Prediction = pred1
	p.Player2Prediction = pred2
	p.FinalPrice = final
	if createdAt != nil {
		p.CreatedAt = *createdAt
	}
	return p, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *PoolStore) selectForUpdate(ctx context.Context, tx pgx.Tx, id string) (domain.Pool, error) {
	row := tx.QueryRow(ctx, `SELECT `+poolColumns+` FROM pools WHERE id = $1 FOR UPDATE`, id)
	p, err := scanPool(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Pool{}, domain.ErrPoolNotFound
	}
	if err != nil {
		return domain.Pool{}, fmt.Errorf("postgres: lock pool %s: %w", id, err)
	}
	return p, nil
}

func (s *PoolStore) write(ctx context.Context, tx pgx.Tx, p domain.Pool) error {
	const query = `
		UPDATE pools SET
			status = $2, round = $3, player1 = $4, player2 = $5,
			player1_prediction = $6, player2_prediction = $7,
			created_at = $8, start_time = $9, end_time = $10,
			winner = $11, final_price = $12, updated_at = $13
		WHERE id = $1`
	_, err := tx.Exec(ctx, query,
		p.ID, string(p.Status), int64(p.Round), nullable(p.Player1), nullable(p.Player2),
		p.Player1Prediction, p.Player2Prediction,
		p.CreatedAt, p.StartTime, p.EndTime,
		nullable(p.Winner), p.FinalPrice, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: write pool %s: %w", p.ID, err)
	}
	return nil
}

// Bootstrap inserts missing slots and repairs malformed rows in place.
func (s *PoolStore) Bootstrap(ctx context.Context, slots []domain.Slot, now time.Time) error {
	for _, slot := range slots {
		fresh := domain.NewPool(slot, now)
		err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			const insert = `
				INSERT INTO pools (id, asset, tier, status, round, created_at, updated_at)
				VALUES ($1, $2, $3, $4, 0, $5, $5)
				ON CONFLICT (id) DO NOTHING`
			if _, err := tx.Exec(ctx, insert, fresh.ID, string(fresh.Asset), int(fresh.Tier), string(fresh.Status), now); err != nil {
				return fmt.Errorf("postgres: insert pool %s: %w", fresh.ID, err)
			}
			p, err := s.selectForUpdate(ctx, tx, fresh.ID)
			if err != nil {
				return err
			}
			if !p.Repair(now) {
				return nil
			}
			p.UpdatedAt = now
			return s.write(ctx, tx, p)
		})
		if err != nil {
			return fmt.Errorf("postgres: bootstrap %s: %w", fresh.ID, err)
		}
	}
	return nil
}

// Get returns the pool with the given id.
func (s *PoolStore) Get(ctx context.Context, id string) (domain.Pool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+poolColumns+` FROM pools WHERE id = $1`, id)
	p, err := scanPool(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Pool{}, domain.ErrPoolNotFound
	}
	if err != nil {
		return domain.Pool{}, fmt.Errorf("postgres: get pool %s: %w", id, err)
	}
	return p, nil
}

// List returns every pool row.
func (s *PoolStore) List(ctx context.Context) ([]domain.Pool, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+poolColumns+` FROM pools ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pools: %w", err)
	}
	defer rows.Close()

	var pools []domain.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan pool: %w", err)
		}
		pools = append(pools, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list pools rows: %w", err)
	}
	return pools, nil
}

// Update runs fn against the row-locked pool and commits its result.
func (s *PoolStore) Update(ctx context.Context, id string, fn domain.PoolUpdateFunc) (domain.Pool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("postgres: begin update %s: %w", id, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := s.selectForUpdate(ctx, tx, id)
	if err != nil {
		return domain.Pool{}, err
	}

	next := current.Clone()
	if err := fn(&next); err != nil {
		if errors.Is(err, domain.ErrNoChange) {
			return current, nil
		}
		return current, err
	}
	if err := next.CheckInvariants(); err != nil {
		return current, fmt.Errorf("postgres: update %s: %w", id, err)
	}
	next.UpdatedAt = time.Now().UTC()
	if err := s.write(ctx, tx, next); err != nil {
		return current, err
	}
	if err := tx.Commit(ctx); err != nil {
		return current, fmt.Errorf("postgres: commit update %s: %w", id, err)
	}
	return next, nil
}

// Compile-time interface check.
var _ domain.PoolStore = (*PoolStore)(nil)
