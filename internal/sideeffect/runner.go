// Package sideeffect runs best-effort work detached from the request that triggered it.
package sideeffect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/smallbiznis/payrelay/internal/observability/logger"
	"github.com/smallbiznis/payrelay/internal/observability/metrics"
)

const defaultTimeout = 15 * time.Second

var ErrClosed = errors.New("side effect runner closed")

// Task is one unit of background work.
type Task func(ctx context.Context) error

// FailureHook observes a failed task. It must not block.
type FailureHook func(ctx context.Context, task string, err error)

type Runner struct {
	log     *zap.Logger
	metrics *metrics.SideEffectMetrics
	timeout time.Duration
	hooks   []FailureHook
	wg      sync.WaitGroup
	closed  atomic.Bool
}

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
	Metrics   *metrics.SideEffectMetrics `optional:"true"`
}

func New(p Params) *Runner {
	r := NewRunner(p.Log, p.Metrics, p.Config.SideEffectTimeout)
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return r.Drain(ctx)
		},
	})
	return r
}

func NewRunner(log *zap.Logger, m *metrics.SideEffectMetrics, timeout time.Duration, hooks ...FailureHook) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Runner{
		log:     log.Named("sideeffect"),
		metrics: m,
		timeout: timeout,
		hooks:   hooks,
	}
}

// Go runs task in the background. The task keeps ctx's values but not its
// cancellation, so it outlives the HTTP request. Tasks started after Drain
// are dropped.
func (r *Runner) Go(ctx context.Context, name string, task Task) {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.closed.Load() {
		r.metrics.IncFailure(name, ErrClosed)
		logger.WithContext(ctx, r.log).Warn("side effect dropped, runner closed", zap.String("task", name))
		return
	}
	detached := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		taskCtx, cancel := context.WithTimeout(detached, r.timeout)
		defer cancel()

		r.metrics.IncRun(name)
		start := time.Now()
		err := r.run(taskCtx, task)
		r.metrics.ObserveDuration(name, time.Since(start))

		if err != nil {
			r.fail(detached, name, err)
		}
	}()
}

// Wait blocks until every started task has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Closed reports whether Drain has been called.
func (r *Runner) Closed() bool {
	return r.closed.Load()
}

// Drain stops accepting tasks and waits for in-flight ones or until ctx is done.
func (r *Runner) Drain(ctx context.Context) error {
	r.closed.Store(true)
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.log.Warn("side effects still running at shutdown")
		return ctx.Err()
	}
}

func (r *Runner) run(ctx context.Context, task Task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("side effect panic: %v", rec)
		}
	}()
	return task(ctx)
}

func (r *Runner) fail(ctx context.Context, name string, err error) {
	r.metrics.IncFailure(name, err)

	fields := []zap.Field{
		zap.String("task", name),
		zap.String("reason", metrics.ClassifySideEffectReason(err)),
		zap.Error(err),
	}
	if errors.Is(err, context.DeadlineExceeded) {
		fields = append(fields, zap.Duration("timeout", r.timeout))
	}
	logger.WithContext(ctx, r.log).Warn("side effect failed", fields...)

	for _, hook := range r.hooks {
		hook(ctx, name, err)
	}
}
