// Package portaudio records fixed-length clips from the default input
// device.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pa "github.com/gordonklaus/portaudio"

	"github.com/harunnryd/scenecue/pkg/adapters/audio"
	"github.com/harunnryd/scenecue/pkg/errorsx"
	"github.com/harunnryd/scenecue/pkg/logging"
)

type Config struct {
	SampleRate      int `mapstructure:"sample_rate"`
	FramesPerBuffer int `mapstructure:"frames_per_buffer"`
}

// Recorder opens a fresh input stream for every clip so no audio buffers
// up between polls.
type Recorder struct {
	cfg     Config
	logger  *slog.Logger
	mu      sync.Mutex
	started bool
}

// Validate rejects capture rates the model cannot consume.
func (c Config) Validate() error {
	if c.SampleRate != 0 && c.SampleRate != audio.SampleRate {
		return fmt.Errorf("portaudio: sample_rate must be %d, got %d", audio.SampleRate, c.SampleRate)
	}
	return nil
}

func New(cfg Config) *Recorder {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.SampleRate
	}
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = 800
	}
	return &Recorder{cfg: cfg, logger: logging.NewComponentLogger(slog.Default(), "portaudio")}
}

func (r *Recorder) Name() string { return "portaudio" }

func (r *Recorder) SampleRate() int { return r.cfg.SampleRate }

func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	if err := pa.Initialize(); err != nil {
		return errorsx.Wrap(fmt.Errorf("portaudio init: %w", err), errorsx.ReasonCaptureRecord)
	}
	r.started = true
	if dev, err := pa.DefaultInputDevice(); err == nil {
		r.logger.Info("input_device", slog.String("name", dev.Name), slog.Int("sample_rate", r.cfg.SampleRate))
	}
	return nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return nil
	}
	r.started = false
	return pa.Terminate()
}

// Record blocks until d of mono audio has been captured or ctx ends.
func (r *Recorder) Record(ctx context.Context, d time.Duration) ([]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return nil, errorsx.Newf(errorsx.ReasonCaptureRecord, "portaudio: recorder not started")
	}
	total := int(d.Seconds() * float64(r.cfg.SampleRate))
	if total <= 0 {
		return nil, errorsx.Newf(errorsx.ReasonCaptureRecord, "portaudio: clip duration %s too short", d)
	}

	buf := make([]float32, r.cfg.FramesPerBuffer)
	stream, err := pa.OpenDefaultStream(1, 0, float64(r.cfg.SampleRate), len(buf), buf)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("open stream: %w", err), errorsx.ReasonCaptureRecord)
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("start stream: %w", err), errorsx.ReasonCaptureRecord)
	}
	defer stream.Stop()

	out := make([]float32, 0, total)
	for len(out) < total {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil && !errors.Is(err, pa.InputOverflowed) {
			return nil, errorsx.Wrap(fmt.Errorf("read stream: %w", err), errorsx.ReasonCaptureRecord)
		}
		n := total - len(out)
		if n > len(buf) {
			n = len(buf)
		}
		out = append(out, buf[:n]...)
	}
	return out, nil
}

var _ audio.Recorder = (*Recorder)(nil)
