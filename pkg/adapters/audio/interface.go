package audio

import (
	"context"
	"time"
)

// SampleRate is the rate every model input is normalized to.
const SampleRate = 16000

// Model defines the contract for an audio event classifier.
type Model interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Scores runs the model over a mono 16 kHz waveform and returns one
	// row of class probabilities per analysis frame.
	Scores(ctx context.Context, samples []float32) ([][]float32, error)
}

// Recorder captures a fixed-length mono 16 kHz clip from a local device.
type Recorder interface {
	Name() string
	Start(ctx context.Context) error
	Close() error
	Record(ctx context.Context, d time.Duration) ([]float32, error)
	// SampleRate reports the rate Record captures at.
	SampleRate() int
}
