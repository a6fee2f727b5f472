package mock

import (
	"context"
	"os"
	"sync/atomic"

	"github.com/harunnryd/scenecue/pkg/transcode"
)

type TranscoderConfig struct {
	// Samples are written to the output path as f32le.
	Samples []float32
	// Raw overrides Samples when set, for malformed output.
	Raw []byte
	Err error
}

// Transcoder fakes ffmpeg. It still writes its output file so cleanup paths
// are exercised.
type Transcoder struct {
	cfg   TranscoderConfig
	calls atomic.Int32
}

func NewTranscoder(cfg TranscoderConfig) *Transcoder { return &Transcoder{cfg: cfg} }

func (t *Transcoder) Calls() int { return int(t.calls.Load()) }

func (t *Transcoder) Transcode(ctx context.Context, in, out string) error {
	t.calls.Add(1)
	if _, err := os.Stat(in); err != nil {
		return err
	}
	payload := t.cfg.Raw
	if payload == nil {
		payload = transcode.EncodeF32LE(t.cfg.Samples)
	}
	if err := os.WriteFile(out, payload, 0o600); err != nil {
		return err
	}
	return t.cfg.Err
}

var _ transcode.Transcoder = (*Transcoder)(nil)
