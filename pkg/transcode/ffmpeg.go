// Package transcode normalizes arbitrary audio containers to mono 16 kHz
// float32 PCM by shelling out to ffmpeg.
package transcode

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/harunnryd/scenecue/pkg/adapters/audio"
	"github.com/harunnryd/scenecue/pkg/errorsx"
	"github.com/harunnryd/scenecue/pkg/logging"
)

// Transcoder converts the clip at in to raw f32le mono PCM at out.
type Transcoder interface {
	Transcode(ctx context.Context, in, out string) error
}

type Config struct {
	Binary     string        `mapstructure:"binary"`
	Timeout    time.Duration `mapstructure:"timeout"`
	SampleRate int           `mapstructure:"sample_rate"`
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Binary) == "" {
		c.Binary = "ffmpeg"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.SampleRate <= 0 {
		c.SampleRate = audio.SampleRate
	}
	return c
}

// ExitError carries ffmpeg's stderr alongside the process error.
type ExitError struct {
	Err    error
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return "ffmpeg: " + e.Err.Error()
	}
	return fmt.Sprintf("ffmpeg: %v: %s", e.Err, e.Stderr)
}

func (e *ExitError) Unwrap() error { return e.Err }

type FFmpeg struct {
	cfg    Config
	logger *slog.Logger
}

func NewFFmpeg(cfg Config) *FFmpeg {
	return &FFmpeg{
		cfg:    cfg.withDefaults(),
		logger: logging.NewComponentLogger(slog.Default(), "ffmpeg"),
	}
}

// Args returns the ffmpeg argument list for one conversion. The input
// format is left to ffmpeg's probe, which is reliable for whole clips.
func (f *FFmpeg) Args(in, out string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", in,
		"-ac", "1",
		"-ar", strconv.Itoa(f.cfg.SampleRate),
		"-f", "f32le",
		out,
	}
}

func (f *FFmpeg) Transcode(ctx context.Context, in, out string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, f.cfg.Binary, f.Args(in, out)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w (%v)", ctx.Err(), err)
		}
		return errorsx.Wrap(&ExitError{Err: err, Stderr: strings.TrimSpace(stderr.String())}, errorsx.ReasonTranscode)
	}
	f.logger.Debug("transcode_done",
		slog.String("in", in),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

var _ Transcoder = (*FFmpeg)(nil)
