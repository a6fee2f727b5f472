package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/harunnryd/scenecue/pkg/adapters/audio"
)

type RecorderConfig struct {
	Samples []float32
	// Rate defaults to audio.SampleRate.
	Rate int
	// Errs is consumed one per Record call before Samples are served.
	Errs []error
}

type Recorder struct {
	mu      sync.Mutex
	cfg     RecorderConfig
	started bool
	calls   int
}

func NewRecorder(cfg RecorderConfig) *Recorder { return &Recorder{cfg: cfg} }

func (r *Recorder) Name() string { return "mock_recorder" }

func (r *Recorder) SampleRate() int {
	if r.cfg.Rate > 0 {
		return r.cfg.Rate
	}
	return audio.SampleRate
}

func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	r.started = false
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *Recorder) Record(ctx context.Context, d time.Duration) ([]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return nil, errors.New("not started")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.calls++
	if len(r.cfg.Errs) > 0 {
		err := r.cfg.Errs[0]
		r.cfg.Errs = r.cfg.Errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return append([]float32(nil), r.cfg.Samples...), nil
}

var _ audio.Recorder = (*Recorder)(nil)
