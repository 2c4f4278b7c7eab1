// Package scheduler runs independent periodic tasks. Each task has its own
// ticker, so a slow task never delays another, and every tick works on the
// time it fired rather than an ideal schedule.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/priceduel/internal/domain"
	"github.com/alanyoungcy/priceduel/internal/metrics"
)

// Task is one named periodic activity.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
	// RunAtStart fires the task once before the first tick.
	RunAtStart bool
	// LockKey, when set, makes each run take a distributed lock so only one
	// replica executes the tick.
	LockKey string
	LockTTL time.Duration
}

// Scheduler owns a set of tasks.
type Scheduler struct {
	tasks   []Task
	locks   domain.LockManager
	metrics *metrics.DuelMetrics
	logger  *slog.Logger
}

// New creates a Scheduler. locks and m may be nil.
func New(locks domain.LockManager, m *metrics.DuelMetrics, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		locks:   locks,
		metrics: m,
		logger:  logger.With(slog.String("component", "scheduler")),
	}
}

// Add registers a task. Tasks with a non-positive interval are ignored.
func (s *Scheduler) Add(t Task) {
	if t.Interval <= 0 || t.Run == nil {
		s.logger.Warn("task skipped, no interval or func", slog.String("task", t.Name))
		return
	}
	if t.LockTTL <= 0 {
		t.LockTTL = t.Interval
	}
	s.tasks = append(s.tasks, t)
}

// Tasks returns the registered task names.
func (s *Scheduler) Tasks() []string {
	names := make([]string, len(s.tasks))
	for i, t := range s.tasks {
		names[i] = t.Name
	}
	return names
}

// Run blocks until ctx is cancelled. A task error is logged and the task
// keeps its schedule; a run in flight when ctx ends is allowed to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range s.tasks {
		g.Go(func() error {
			s.loop(gctx, t)
			return nil
		})
	}
	s.logger.InfoContext(ctx, "scheduler started", slog.Any("tasks", s.Tasks()))
	err := g.Wait()
	s.logger.InfoContext(ctx, "scheduler stopped")
	return err
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	if t.RunAtStart {
		s.tick(ctx, t)
	}
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, t)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, t Task) {
	if ctx.Err() != nil {
		return
	}
	if t.LockKey != "" && s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, t.LockKey, t.LockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			s.logger.DebugContext(ctx, "task lock held elsewhere", slog.String("task", t.Name))
			return
		}
		if err != nil {
			s.metrics.ObserveTick(t.Name, false)
			s.logger.WarnContext(ctx, "task lock failed",
				slog.String("task", t.Name),
				slog.String("error", err.Error()),
			)
			return
		}
		defer unlock()
	}

	// Work already started finishes even if shutdown begins mid-run.
	runCtx := context.WithoutCancel(ctx)
	start := time.Now()
	err := t.Run(runCtx)
	s.metrics.ObserveTick(t.Name, err == nil)
	if err != nil {
		s.logger.WarnContext(ctx, "task failed",
			slog.String("task", t.Name),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.DebugContext(ctx, "task done",
		slog.String("task", t.Name),
		slog.Duration("elapsed", time.Since(start)),
	)
}
