package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/priceduel/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type heldLocks struct{}

func (heldLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

func TestSchedulerRunsTasksIndependently(t *testing.T) {
	var fast, slow atomic.Int64
	s := New(nil, nil, discardLogger())
	s.Add(Task{Name: "fast", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
		fast.Add(1)
		return nil
	}})
	s.Add(Task{Name: "slow", Interval: 5 * time.Millisecond, RunAtStart: true, Run: func(context.Context) error {
		slow.Add(1)
		time.Sleep(200 * time.Millisecond)
		return errors.New("still failing")
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	assert.GreaterOrEqual(t, fast.Load(), int64(5), "slow task must not block the fast one")
	assert.Equal(t, int64(1), slow.Load())
}

func TestSchedulerSkipsWhenLockHeld(t *testing.T) {
	var runs atomic.Int64
	s := New(heldLocks{}, nil, discardLogger())
	s.Add(Task{Name: "locked", Interval: 5 * time.Millisecond, RunAtStart: true, LockKey: "locked", Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))
	assert.Zero(t, runs.Load())
}

func TestAddIgnoresInvalidTasks(t *testing.T) {
	s := New(nil, nil, discardLogger())
	s.Add(Task{Name: "no-interval", Run: func(context.Context) error { return nil }})
	s.Add(Task{Name: "no-func", Interval: time.Second})
	assert.Empty(t, s.Tasks())
}

type flakyRefresher struct {
	errs []error
	i    int
}

func (f *flakyRefresher) Refresh(context.Context) error {
	err := f.errs[f.i%len(f.errs)]
	f.i++
	return err
}

type countingAlerter struct {
	mu     sync.Mutex
	events []string
}

func (c *countingAlerter) Notify(_ context.Context, event, _, _ string) error {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	return nil
}

func TestOracleRefreshTaskAlertsOncePerOutage(t *testing.T) {
	down := errors.New("hermes down")
	r := &flakyRefresher{errs: []error{down, down, down, down, nil, down, down}}
	alerts := &countingAlerter{}
	task := OracleRefreshTask(r, time.Second, alerts, 2, discardLogger())
	assert.True(t, task.RunAtStart)

	for i := 0; i < 7; i++ {
		_ = task.Run(context.Background())
	}
	assert.Equal(t, []string{"oracle_down", "oracle_down"}, alerts.events)
}
