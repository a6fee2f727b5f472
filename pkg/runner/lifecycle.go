package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrDrainTimeout      = errors.New("drain timeout")
)

// LifecycleRunner blocks in Run until its context ends or Stop is called,
// then drains exactly once. Stop may race with Run or come before it; a Run
// after Stop returns ErrInvalidTransition.
type LifecycleRunner struct {
	state   atomic.Int32
	hooks   Hooks
	drainer Drainer
	timeout time.Duration

	stopReq  chan struct{}
	reqOnce  sync.Once
	drainOne sync.Once
	stopErr  error
}

func NewLifecycleRunner(drainer Drainer, hooks Hooks, timeout time.Duration) *LifecycleRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	r := &LifecycleRunner{
		hooks:   hooks,
		drainer: drainer,
		timeout: timeout,
		stopReq: make(chan struct{}),
	}
	r.state.Store(int32(StateNew))
	return r
}

func (r *LifecycleRunner) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !r.state.CompareAndSwap(int32(StateNew), int32(StateStarting)) {
		return ErrInvalidTransition
	}
	PrintBanner(r.hooks.Banner)
	if r.hooks.OnStart != nil {
		r.hooks.OnStart()
	}
	r.state.CompareAndSwap(int32(StateStarting), int32(StateRunning))
	select {
	case <-ctx.Done():
	case <-r.stopReq:
	}
	return r.stop()
}

// Stop ends Run and drains; every call returns the same result.
func (r *LifecycleRunner) Stop() error {
	r.reqOnce.Do(func() { close(r.stopReq) })
	return r.stop()
}

func (r *LifecycleRunner) State() State {
	return State(r.state.Load())
}

func (r *LifecycleRunner) stop() error {
	r.drainOne.Do(func() {
		r.state.Store(int32(StateDraining))
		if r.drainer != nil {
			r.stopErr = r.drain()
		}
		if r.hooks.OnStop != nil {
			r.hooks.OnStop()
		}
		r.state.Store(int32(StateStopped))
	})
	return r.stopErr
}

func (r *LifecycleRunner) drain() error {
	done := make(chan error, 1)
	go func() { done <- r.drainer.Drain() }()
	timer := time.NewTimer(r.timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("drain: %w", err)
		}
		return nil
	case <-timer.C:
		slog.Warn("drain_timeout", slog.Duration("timeout", r.timeout))
		return ErrDrainTimeout
	}
}
