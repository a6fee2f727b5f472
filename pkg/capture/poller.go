// Package capture feeds audio into the classification pipeline, either by
// recording the local microphone on a timer or by reading clips off a
// client stream.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/harunnryd/scenecue/pkg/adapters/audio"
	"github.com/harunnryd/scenecue/pkg/errorsx"
	"github.com/harunnryd/scenecue/pkg/frames"
	"github.com/harunnryd/scenecue/pkg/logging"
	"github.com/harunnryd/scenecue/pkg/metrics"
	"github.com/harunnryd/scenecue/pkg/pipeline"
	"github.com/harunnryd/scenecue/pkg/redact"
	"github.com/harunnryd/scenecue/pkg/state"
)

// SampleHandler classifies PCM captures.
type SampleHandler interface {
	HandleSamples(ctx context.Context, f frames.PCMFrame) pipeline.Outcome
}

type PollerConfig struct {
	ClipSeconds float64       `mapstructure:"clip_seconds"`
	Interval    time.Duration `mapstructure:"interval"`
}

func (c PollerConfig) withDefaults() PollerConfig {
	if c.ClipSeconds <= 0 {
		c.ClipSeconds = 10
	}
	if c.Interval < 0 {
		c.Interval = 0
	}
	return c
}

func (c PollerConfig) clipDuration() time.Duration {
	return time.Duration(c.ClipSeconds * float64(time.Second))
}

// Poller records a clip, classifies it into the global slot, sleeps, and
// repeats until its context ends. Cycles never overlap.
type Poller struct {
	cfg      PollerConfig
	recorder audio.Recorder
	handler  SampleHandler
	obs      metrics.Observer
	pts      *frames.PTSGen
	logger   *slog.Logger
}

func NewPoller(cfg PollerConfig, recorder audio.Recorder, handler SampleHandler, obs metrics.Observer, logger *slog.Logger) (*Poller, error) {
	if recorder == nil || handler == nil {
		return nil, errors.New("capture: recorder and handler are required")
	}
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	return &Poller{
		cfg:      cfg.withDefaults(),
		recorder: recorder,
		handler:  handler,
		obs:      obs,
		pts:      frames.NewPTSGen(),
		logger:   logging.NewComponentLogger(logger, "poller"),
	}, nil
}

// Run blocks until ctx is cancelled. It only returns an error when the
// recorder cannot be started.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.recorder.Start(ctx); err != nil {
		return errorsx.Wrap(fmt.Errorf("start %s: %w", p.recorder.Name(), err), errorsx.ReasonCaptureRecord)
	}
	defer func() {
		if err := p.recorder.Close(); err != nil {
			p.logger.Warn("recorder_close_failed", slog.String("error", err.Error()))
		}
	}()
	p.logger.Info("poller_started",
		slog.String("recorder", p.recorder.Name()),
		slog.Duration("clip", p.cfg.clipDuration()),
		slog.Duration("interval", p.cfg.Interval))

	for {
		p.Cycle(ctx)
		if ctx.Err() != nil {
			p.logger.Info("poller_stopped")
			return nil
		}
		if p.cfg.Interval > 0 {
			timer := time.NewTimer(p.cfg.Interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				p.logger.Info("poller_stopped")
				return nil
			case <-timer.C:
			}
		}
	}
}

// Cycle runs one record-and-classify pass. Failures are logged only.
func (p *Poller) Cycle(ctx context.Context) pipeline.Outcome {
	start := time.Now()
	traceID := uuid.NewString()
	samples, err := p.recorder.Record(ctx, p.cfg.clipDuration())
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("poll_record_failed",
				slog.String("trace_id", traceID),
				slog.String("error", redact.Error(err)))
		}
		metrics.Emit(p.obs, metrics.EventPollCycle, metrics.Since(start), map[string]string{"status": "record_failed"}, nil)
		return pipeline.Outcome{Err: errorsx.Wrap(err, errorsx.ReasonCaptureRecord)}
	}
	f := frames.NewPCMFrame(state.GlobalSlot, p.pts.Next(state.GlobalSlot), samples, p.recorder.SampleRate(), map[string]string{
		frames.MetaTraceID: traceID,
		frames.MetaSource:  frames.SourcePoll,
	})
	out := p.handler.HandleSamples(ctx, f)
	status := "ok"
	if out.Err != nil {
		status = string(errorsx.Reason(out.Err))
	}
	metrics.Emit(p.obs, metrics.EventPollCycle, metrics.Since(start), map[string]string{"status": status}, nil)
	return out
}
