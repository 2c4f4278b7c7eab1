package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/priceduel/internal/domain"
	"github.com/alanyoungcy/priceduel/internal/duel"
	"github.com/alanyoungcy/priceduel/internal/notify"
)

// Task names.
const (
	TaskOracleRefresh  = "oracle_refresh"
	TaskTimeoutSweep   = "timeout_sweep"
	TaskHistoryArchive = "history_archive"
)

// Refresher is the oracle's refresh entry point.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Alerter forwards operator notifications.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// OracleRefreshTask polls the price feed every interval, starting at once.
// After failureThreshold consecutive failures one alert is sent until the
// feed recovers.
func OracleRefreshTask(r Refresher, interval time.Duration, alerts Alerter, failureThreshold int, logger *slog.Logger) Task {
	var (
		mu       sync.Mutex
		failures int
		alerted  bool
	)
	return Task{
		Name:       TaskOracleRefresh,
		Interval:   interval,
		RunAtStart: true,
		Run: func(ctx context.Context) error {
			err := r.Refresh(ctx)

			mu.Lock()
			if err == nil {
				if alerted {
					logger.InfoContext(ctx, "price feed recovered", slog.Int("failures", failures))
				}
				failures, alerted = 0, false
				mu.Unlock()
				return nil
			}
			failures++
			raise := alerts != nil && failureThreshold > 0 && failures >= failureThreshold && !alerted
			if raise {
				alerted = true
			}
			n := failures
			mu.Unlock()

			if raise {
				msg := fmt.Sprintf("price refresh failed %d times in a row: %v", n, err)
				if aerr := alerts.Notify(ctx, notify.EventOracleDown, "Price feed unavailable", msg); aerr != nil {
					logger.WarnContext(ctx, "oracle alert failed", slog.String("error", aerr.Error()))
				}
			}
			return err
		},
	}
}

// SweepTask runs the engine's timeout sweep under a distributed lock.
func SweepTask(e *duel.Engine, interval time.Duration, logger *slog.Logger) Task {
	return Task{
		Name:     TaskTimeoutSweep,
		Interval: interval,
		LockKey:  TaskTimeoutSweep,
		LockTTL:  interval,
		Run: func(ctx context.Context) error {
			report, err := e.SweepTimeouts(ctx)
			if n := len(report.Evicted) + len(report.Reopened) + len(report.Overdue); n > 0 {
				logger.InfoContext(ctx, "sweep applied",
					slog.Any("evicted", report.Evicted),
					slog.Any("reopened", report.Reopened),
					slog.Any("overdue", report.Overdue),
				)
			}
			return err
		},
	}
}

// ArchiveTask exports history older than retention to cold storage.
func ArchiveTask(a domain.Archiver, interval, retention time.Duration, logger *slog.Logger) Task {
	return Task{
		Name:     TaskHistoryArchive,
		Interval: interval,
		LockKey:  TaskHistoryArchive,
		LockTTL:  interval,
		Run: func(ctx context.Context) error {
			n, err := a.ArchiveHistory(ctx, time.Now().UTC().Add(-retention))
			if n > 0 {
				logger.InfoContext(ctx, "history archived", slog.Int64("records", n))
			}
			return err
		},
	}
}
