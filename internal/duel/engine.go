// Package duel implements the pool lifecycle: joining, leaving, settling and
// the periodic timeout sweep. Every mutation is a single atomic
// read-modify-write on one pool through domain.PoolStore.
package duel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/priceduel/internal/domain"
	"github.com/alanyoungcy/priceduel/internal/metrics"
	"github.com/alanyoungcy/priceduel/internal/notify"
)

// PriceSource returns the latest cached price for an asset.
type PriceSource interface {
	Get(asset domain.Asset) (float64, bool)
}

// Recorder writes the per-participant history of a settled round.
type Recorder interface {
	RecordSettlement(ctx context.Context, pool domain.Pool) error
}

// Alerter forwards operator notifications. *notify.Notifier satisfies it.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config holds the engine timings.
type Config struct {
	MatchDuration   time.Duration
	WaitingTimeout  time.Duration
	ReopenDelay     time.Duration
	// OverdueAlertTTL bounds how long an overdue round stays deduplicated.
	OverdueAlertTTL time.Duration
}

// DefaultConfig returns the standard five minute match with a sixty second
// waiting room.
func DefaultConfig() Config {
	return Config{
		MatchDuration:   5 * time.Minute,
		WaitingTimeout:  60 * time.Second,
		ReopenDelay:     30 * time.Second,
		OverdueAlertTTL: time.Hour,
	}
}

// Option configures optional collaborators.
type Option func(*Engine)

// WithSignalBus publishes committed transitions as pool events.
func WithSignalBus(bus domain.SignalBus) Option { return func(e *Engine) { e.bus = bus } }

// WithAudit records evictions, settlements and history failures.
func WithAudit(audit domain.AuditStore) Option { return func(e *Engine) { e.audit = audit } }

func WithAlerter(a Alerter) Option { return func(e *Engine) { e.alerts = a } }

func WithMetrics(m *metrics.DuelMetrics) Option { return func(e *Engine) { e.metrics = m } }

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// Engine owns every status transition of the pools.
type Engine struct {
	pools   domain.PoolStore
	prices  PriceSource
	history Recorder
	bus     domain.SignalBus
	audit   domain.AuditStore
	alerts  Alerter
	metrics *metrics.DuelMetrics
	cfg     Config
	now     func() time.Time
	overdue *Dedup
	logger  *slog.Logger
}

// New creates an Engine. Zero config durations fall back to DefaultConfig.
func New(pools domain.PoolStore, prices PriceSource, history Recorder, cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.MatchDuration <= 0 {
		cfg.MatchDuration = def.MatchDuration
	}
	if cfg.WaitingTimeout <= 0 {
		cfg.WaitingTimeout = def.WaitingTimeout
	}
	if cfg.ReopenDelay < 0 {
		cfg.ReopenDelay = def.ReopenDelay
	}
	if cfg.OverdueAlertTTL <= 0 {
		cfg.OverdueAlertTTL = def.OverdueAlertTTL
	}
	e := &Engine{
		pools:   pools,
		prices:  prices,
		history: history,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger.With(slog.String("component", "duel_engine")),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.overdue = NewDedup(cfg.OverdueAlertTTL, e.now)
	return e
}

// Bootstrap creates or repairs the pool of every slot.
func (e *Engine) Bootstrap(ctx context.Context) error {
	if err := e.pools.Bootstrap(ctx, domain.AllSlots(), e.now()); err != nil {
		return fmt.Errorf("duel: bootstrap: %w", err)
	}
	return nil
}

// ListPools returns all pools in slot order.
func (e *Engine) ListPools(ctx context.Context) ([]domain.Pool, error) {
	pools, err := e.pools.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("duel: list pools: %w", err)
	}
	sort.SliceStable(pools, func(i, j int) bool {
		return pools[i].Slot().Index() < pools[j].Slot().Index()
	})
	return pools, nil
}

// GetPool returns one pool by id.
func (e *Engine) GetPool(ctx context.Context, poolID string) (domain.Pool, error) {
	if _, err := domain.ParsePoolID(poolID); err != nil {
		return domain.Pool{}, err
	}
	p, err := e.pools.Get(ctx, poolID)
	if err != nil {
		return domain.Pool{}, e.wrap("get pool", err)
	}
	return p, nil
}

// Join seats wallet in the pool with its prediction. The first joiner takes
// player1 and restarts the waiting room; the second distinct wallet takes
// player2 and starts the match.
func (e *Engine) Join(ctx context.Context, poolID, wallet string, prediction float64) (domain.Pool, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return domain.Pool{}, e.reject("join", domain.ErrJoinInputRequired)
	}
	if math.IsNaN(prediction) || math.IsInf(prediction, 0) || prediction <= 0 {
		return domain.Pool{}, e.reject("join", domain.ErrInvalidPrediction)
	}
	if _, err := domain.ParsePoolID(poolID); err != nil {
		return domain.Pool{}, e.reject("join", err)
	}

	var event domain.PoolEventType
	updated, err := e.pools.Update(ctx, poolID, func(p *domain.Pool) error {
		now := e.now()
		switch {
		case p.Status == domain.PoolCompleted:
			return domain.ErrPoolCompleted
		case p.Status != domain.PoolWaiting:
			return domain.ErrPoolFull
		case p.Player1 == "":
			pred := prediction
			p.Player1 = wallet
			p.Player1Prediction = &pred
			p.CreatedAt = now
			event = domain.EventJoined
		case p.Player2 == "" && p.Player1 != wallet:
			pred := prediction
			start := now
			end := now.Add(e.cfg.MatchDuration)
			p.Player2 = wallet
			p.Player2Prediction = &pred
			p.Status = domain.PoolActive
			p.StartTime = &start
			p.EndTime = &end
			event = domain.EventStarted
		default:
			return domain.ErrPoolFull
		}
		return nil
	})
	if err != nil {
		return domain.Pool{}, e.reject("join", e.wrap("join", err))
	}

	e.logger.InfoContext(ctx, "pool joined",
		slog.String("pool_id", poolID),
		slog.String("wallet", wallet),
		slog.String("status", string(updated.Status)),
	)
	e.emit(ctx, event, updated, wallet)
	return updated, nil
}

// Leave withdraws the lone waiting player from the pool.
func (e *Engine) Leave(ctx context.Context, poolID, wallet string) (domain.Pool, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return domain.Pool{}, e.reject("leave", domain.ErrWalletRequired)
	}
	if _, err := domain.ParsePoolID(poolID); err != nil {
		return domain.Pool{}, e.reject("leave", err)
	}

	updated, err := e.pools.Update(ctx, poolID, func(p *domain.Pool) error {
		if !p.Lone() || p.Player1 != wallet {
			return domain.ErrCannotLeave
		}
		p.Reset(e.now())
		return nil
	})
	if err != nil {
		return domain.Pool{}, e.reject("leave", e.wrap("leave", err))
	}

	e.logger.InfoContext(ctx, "pool left",
		slog.String("pool_id", poolID),
		slog.String("wallet", wallet),
	)
	e.emit(ctx, domain.EventLeft, updated, wallet)
	return updated, nil
}

// Settle resolves an active match against the cached price of its asset.
// Settling an already completed pool returns it unchanged.
func (e *Engine) Settle(ctx context.Context, poolID string) (domain.Pool, error) {
	if _, err := domain.ParsePoolID(poolID); err != nil {
		return domain.Pool{}, e.reject("settle", err)
	}

	settled := false
	updated, err := e.pools.Update(ctx, poolID, func(p *domain.Pool) error {
		settled = false
		if p.Status == domain.PoolCompleted {
			return domain.ErrNoChange
		}
		if p.Status != domain.PoolActive ||
			p.Player1 == "" || p.Player2 == "" ||
			p.Player1Prediction == nil || p.Player2Prediction == nil {
			return domain.ErrNotReady
		}
		price, ok := e.prices.Get(p.Asset)
		if !ok {
			return domain.ErrPriceUnavailable
		}
		now := e.now()
		final := price
		p.Status = domain.PoolCompleted
		p.EndTime = &now
		p.FinalPrice = &final
		p.Winner = decideWinner(*p, final)
		settled = true
		return nil
	})
	if err != nil {
		return domain.Pool{}, e.reject("settle", e.wrap("settle", err))
	}
	if !settled {
		return updated, nil
	}

	outcome := "winner"
	if updated.Winner == domain.DrawWinner {
		outcome = domain.DrawWinner
	}
	e.metrics.ObserveSettlement(string(updated.Asset), outcome)
	e.logger.InfoContext(ctx, "pool settled",
		slog.String("pool_id", poolID),
		slog.Uint64("round", updated.Round),
		slog.String("winner", updated.Winner),
		slog.Float64("final_price", *updated.FinalPrice),
	)
	e.auditLog(ctx, "pool_settled", map[string]any{
		"pool_id":     updated.ID,
		"round":       updated.Round,
		"winner":      updated.Winner,
		"final_price": *updated.FinalPrice,
	})
	e.emit(ctx, domain.EventSettled, updated, "")
	e.recordHistory(ctx, updated)
	return updated, nil
}

func (e *Engine) recordHistory(ctx context.Context, p domain.Pool) {
	if e.history == nil || p.Player1Prediction == nil || p.Player2Prediction == nil {
		return
	}
	err := e.history.RecordSettlement(ctx, p)
	if err == nil {
		return
	}
	e.metrics.IncHistoryFailure()
	e.logger.ErrorContext(ctx, "settlement history inconsistent",
		slog.String("pool_id", p.ID),
		slog.Uint64("round", p.Round),
		slog.String("error", err.Error()),
	)
	e.auditLog(ctx, "history_inconsistent", map[string]any{
		"pool_id": p.ID,
		"round":   p.Round,
		"error":   err.Error(),
	})
	e.alert(ctx, notify.EventHistoryInconsistent, "Settlement history incomplete",
		fmt.Sprintf("pool %s round %d settled but history write failed: %v", p.ID, p.Round, err))
}

// reject counts coded business-rule rejections and passes err through.
func (e *Engine) reject(op string, err error) error {
	if de, ok := domain.AsDuelError(err); ok {
		e.metrics.ObserveRejection(op, de.Code)
	}
	return err
}

// wrap keeps coded rejections bare and prefixes store failures.
func (e *Engine) wrap(op string, err error) error {
	if _, ok := domain.AsDuelError(err); ok {
		return err
	}
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrPoolNotFound
	}
	return fmt.Errorf("duel: %s: %w", op, err)
}

func (e *Engine) emit(ctx context.Context, typ domain.PoolEventType, p domain.Pool, wallet string) {
	e.metrics.ObserveTransition(p.ID, string(typ))
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(domain.PoolEvent{Type: typ, Pool: p, Wallet: wallet, At: e.now()})
	if err != nil {
		e.logger.WarnContext(ctx, "marshal pool event failed", slog.String("error", err.Error()))
		return
	}
	if err := e.bus.Publish(ctx, domain.ChannelPools, payload); err != nil {
		e.logger.WarnContext(ctx, "publish pool event failed",
			slog.String("pool_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := e.bus.StreamAppend(ctx, domain.StreamPools, payload); err != nil {
		e.logger.WarnContext(ctx, "append pool event failed",
			slog.String("pool_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) auditLog(ctx context.Context, event string, detail map[string]any) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Log(ctx, event, detail); err != nil {
		e.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) alert(ctx context.Context, event, title, message string) {
	if e.alerts == nil {
		return
	}
	if err := e.alerts.Notify(ctx, event, title, message); err != nil {
		e.logger.WarnContext(ctx, "operator alert failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
