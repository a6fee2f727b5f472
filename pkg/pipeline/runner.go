package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harunnryd/scenecue/pkg/logging"
	"github.com/harunnryd/scenecue/pkg/runner"
)

// DrainStep is one ordered stage of shutdown.
type DrainStep struct {
	Name string
	Fn   func(ctx context.Context) error
}

// DrainSequence runs its steps in order under one shared deadline. A failed
// step is recorded and the rest still run so nothing is left open.
type DrainSequence struct {
	steps   []DrainStep
	timeout time.Duration
	logger  *slog.Logger
}

func NewDrainSequence(timeout time.Duration, logger *slog.Logger, steps ...DrainStep) *DrainSequence {
	return &DrainSequence{steps: steps, timeout: timeout, logger: logging.NewComponentLogger(logger, "drain")}
}

func (d *DrainSequence) Drain() error {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	var errs error
	for _, step := range d.steps {
		start := time.Now()
		err := step.Fn(ctx)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("%s: %w", step.Name, err))
		}
		d.logger.Info("drain_step",
			slog.String("step", step.Name),
			slog.Duration("took", time.Since(start)),
			slog.Bool("ok", err == nil))
	}
	return errs
}

// Runner ties the service to a LifecycleRunner and its drain sequence.
type Runner struct {
	lc *runner.LifecycleRunner
}

func (r *Runner) Run(ctx context.Context) error { return r.lc.Run(ctx) }
func (r *Runner) Stop() error                   { return r.lc.Stop() }
func (r *Runner) State() runner.State           { return r.lc.State() }

// NewDrainRunner gives the lifecycle one extra second over the sequence
// deadline so step errors are reported before ErrDrainTimeout would be.
func NewDrainRunner(seq *DrainSequence, hooks runner.Hooks) *Runner {
	return &Runner{lc: runner.NewLifecycleRunner(seq, hooks, seq.timeout+time.Second)}
}
