package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/priceduel/internal/domain"
	"github.com/alanyoungcy/priceduel/internal/duel"
	"github.com/alanyoungcy/priceduel/internal/oracle"
	"github.com/alanyoungcy/priceduel/internal/platform/pyth"
	"github.com/alanyoungcy/priceduel/internal/scheduler"
	"github.com/alanyoungcy/priceduel/internal/server"
	"github.com/alanyoungcy/priceduel/internal/server/handler"
	"github.com/alanyoungcy/priceduel/internal/server/ws"
	"github.com/alanyoungcy/priceduel/internal/service"
)

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// core holds the services shared by every mode.
type core struct {
	prices   *oracle.Cache
	recorder *service.HistoryRecorder
	engine   *duel.Engine
	alerts   duel.Alerter
}

// buildCore creates the oracle cache, history recorder and engine, and
// bootstraps the nine pools. Replicas that poll Hermes write every price to
// the shared mirror; API-only replicas read the mirror instead.
func (a *App) buildCore(ctx context.Context, deps *Dependencies, pollUpstream bool) (*core, error) {
	c := &core{}
	if deps.Notifier != nil {
		c.alerts = deps.Notifier
	}

	oracleOpts := []oracle.Option{
		oracle.WithSignalBus(deps.SignalBus),
		oracle.WithMetrics(deps.Metrics),
	}
	var fetcher oracle.Fetcher
	if pollUpstream {
		fetcher = pyth.NewClient(a.cfg.Oracle.Endpoint, a.feeds(), a.cfg.Oracle.Timeout.Duration)
		if deps.PriceMirror != nil {
			oracleOpts = append(oracleOpts, oracle.WithMirror(deps.PriceMirror))
		}
	} else {
		if deps.PriceMirror == nil {
			return nil, fmt.Errorf("app: price mirror required when not polling the feed")
		}
		fetcher = oracle.NewMirrorFetcher(deps.PriceMirror)
	}
	c.prices = oracle.NewCache(fetcher, domain.Assets, a.logger, oracleOpts...)

	c.recorder = service.NewHistoryRecorder(deps.HistoryStore, a.logger)

	engineOpts := []duel.Option{
		duel.WithSignalBus(deps.SignalBus),
		duel.WithAudit(deps.AuditStore),
		duel.WithMetrics(deps.Metrics),
	}
	if c.alerts != nil {
		engineOpts = append(engineOpts, duel.WithAlerter(c.alerts))
	}
	c.engine = duel.New(deps.PoolStore, c.prices, c.recorder, duel.Config{
		MatchDuration:   a.cfg.Duel.MatchDuration.Duration,
		WaitingTimeout:  a.cfg.Duel.WaitingTimeout.Duration,
		ReopenDelay:     a.cfg.Duel.ReopenDelay.Duration,
		OverdueAlertTTL: a.cfg.Duel.OverdueAlertTTL.Duration,
	}, a.logger, engineOpts...)

	if err := c.engine.Bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return c, nil
}

// feeds merges configured feed ids over the defaults.
func (a *App) feeds() map[domain.Asset]string {
	out := make(map[domain.Asset]string, len(pyth.DefaultFeeds))
	for asset, id := range pyth.DefaultFeeds {
		out[asset] = id
	}
	for asset, id := range a.cfg.FeedIDs() {
		out[asset] = id
	}
	return out
}

// newScheduler registers the oracle refresh, and optionally the timeout sweep
// and history archive.
func (a *App) newScheduler(deps *Dependencies, c *core, withSweep bool) *scheduler.Scheduler {
	s := scheduler.New(deps.LockManager, deps.Metrics, a.logger)

	var alerts scheduler.Alerter
	if c.alerts != nil {
		alerts = c.alerts
	}
	s.Add(scheduler.OracleRefreshTask(c.prices, a.cfg.Scheduler.OracleInterval.Duration,
		alerts, a.cfg.Oracle.FailureThreshold, a.logger))

	if withSweep {
		s.Add(scheduler.SweepTask(c.engine, a.cfg.Scheduler.SweepInterval.Duration, a.logger))
		if deps.Archiver != nil {
			retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
			s.Add(scheduler.ArchiveTask(deps.Archiver, a.cfg.Archive.Interval.Duration, retention, a.logger))
		}
	}
	return s
}

// FullMode runs the API and every periodic task in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	c, err := a.buildCore(ctx, deps, true)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	sched := a.newScheduler(deps, c, true)
	g.Go(func() error {
		return sched.Run(ctx)
	})
	a.startHTTPServer(ctx, g, deps, c)
	return g.Wait()
}

// APIMode serves HTTP only. Prices come from the shared mirror and the
// sweep is left to a worker replica.
func (a *App) APIMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting api mode")

	c, err := a.buildCore(ctx, deps, false)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	sched := a.newScheduler(deps, c, false)
	g.Go(func() error {
		return sched.Run(ctx)
	})
	a.startHTTPServer(ctx, g, deps, c)
	return g.Wait()
}

// WorkerMode polls the feed, publishes prices to the mirror and runs the
// sweep and archive without serving HTTP.
func (a *App) WorkerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting worker mode")

	c, err := a.buildCore(ctx, deps, true)
	if err != nil {
		return err
	}
	return a.newScheduler(deps, c, true).Run(ctx)
}

// startHTTPServer adds the HTTP server and WebSocket hub to the errgroup. The
// server is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, c *core) {
	hub := ws.NewHub(deps.SignalBus, a.cfg.Server.CORSOrigins, ws.Config{
		StartedAt: time.Now().UTC(),
		Pools:     c.engine.ListPools,
		Prices:    c.prices.Samples,
	}, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, server.Handlers{
		Health: handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Pools:  handler.NewPoolHandler(c.engine, c.recorder, c.prices, a.logger),
	}, server.Deps{
		Limiter: deps.RateLimiter,
		Hub:     hub,
	}, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			a.logger.Warn("http shutdown incomplete", slog.String("error", err.Error()))
			return err
		}
		return nil
	})
}
