package duel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/priceduel/internal/domain"
	"github.com/alanyoungcy/priceduel/internal/notify"
)

// SweepReport lists the pool ids each sweep action touched.
type SweepReport struct {
	Evicted  []string
	Reopened []string
	Overdue  []string
}

// SweepTimeouts evicts lone players whose waiting room expired, reopens
// completed rounds after the reopen delay, and flags active matches that ran
// past their end time without a settlement. Overdue matches are never
// mutated; assigning a winner always takes an explicit Settle.
func (e *Engine) SweepTimeouts(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	pools, err := e.pools.List(ctx)
	if err != nil {
		return report, fmt.Errorf("duel: sweep: %w", err)
	}
	e.overdue.Cleanup()

	var errs []error
	for _, p := range pools {
		switch p.Status {
		case domain.PoolWaiting:
			if !p.Lone() || e.now().Sub(p.CreatedAt) <= e.cfg.WaitingTimeout {
				continue
			}
			ok, err := e.evict(ctx, p.ID)
			if err != nil {
				errs = append(errs, err)
			} else if ok {
				report.Evicted = append(report.Evicted, p.ID)
			}
		case domain.PoolCompleted:
			if !e.reopenDue(p) {
				continue
			}
			ok, err := e.reopen(ctx, p.ID)
			if err != nil {
				errs = append(errs, err)
			} else if ok {
				report.Reopened = append(report.Reopened, p.ID)
			}
		case domain.PoolActive:
			if p.EndTime == nil || !e.now().After(*p.EndTime) {
				continue
			}
			report.Overdue = append(report.Overdue, p.ID)
			e.flagOverdue(ctx, p)
		}
	}
	return report, errors.Join(errs...)
}

func (e *Engine) reopenDue(p domain.Pool) bool {
	if p.EndTime == nil {
		return true
	}
	return e.now().Sub(*p.EndTime) >= e.cfg.ReopenDelay
}

func (e *Engine) evict(ctx context.Context, poolID string) (bool, error) {
	var wallet string
	updated, err := e.pools.Update(ctx, poolID, func(p *domain.Pool) error {
		wallet = ""
		now := e.now()
		if !p.Lone() || now.Sub(p.CreatedAt) <= e.cfg.WaitingTimeout {
			return domain.ErrNoChange
		}
		wallet = p.Player1
		p.Reset(now)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("duel: evict %s: %w", poolID, err)
	}
	if wallet == "" {
		return false, nil
	}

	e.metrics.ObserveEviction(poolID)
	e.logger.InfoContext(ctx, "waiting player evicted",
		slog.String("pool_id", poolID),
		slog.String("wallet", wallet),
	)
	e.auditLog(ctx, "pool_evicted", map[string]any{
		"pool_id": poolID,
		"wallet":  wallet,
	})
	e.emit(ctx, domain.EventEvicted, updated, wallet)
	return true, nil
}

func (e *Engine) reopen(ctx context.Context, poolID string) (bool, error) {
	reopened := false
	updated, err := e.pools.Update(ctx, poolID, func(p *domain.Pool) error {
		reopened = false
		if p.Status != domain.PoolCompleted || !e.reopenDue(*p) {
			return domain.ErrNoChange
		}
		p.Reset(e.now())
		p.Round++
		reopened = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("duel: reopen %s: %w", poolID, err)
	}
	if !reopened {
		return false, nil
	}

	e.logger.InfoContext(ctx, "pool reopened",
		slog.String("pool_id", poolID),
		slog.Uint64("round", updated.Round),
	)
	e.auditLog(ctx, "pool_reopened", map[string]any{
		"pool_id": poolID,
		"round":   updated.Round,
	})
	e.emit(ctx, domain.EventReopened, updated, "")
	return true, nil
}

func (e *Engine) flagOverdue(ctx context.Context, p domain.Pool) {
	key := fmt.Sprintf("%s#%d", p.ID, p.Round)
	if e.overdue.IsDuplicate(key) {
		return
	}
	late := e.now().Sub(*p.EndTime)
	e.metrics.ObserveOverdue(p.ID)
	e.logger.WarnContext(ctx, "match overdue for settlement",
		slog.String("pool_id", p.ID),
		slog.Uint64("round", p.Round),
		slog.Duration("late_by", late),
	)
	e.alert(ctx, notify.EventMatchOverdue, "Match overdue",
		fmt.Sprintf("pool %s round %d ended %s ago without a settlement", p.ID, p.Round, late.Round(time.Second)))
	e.emit(ctx, domain.EventOverdue, p, "")
}
