// Package mock provides deterministic stand-ins for the model, vision,
// recorder and transcoder adapters.
package mock

import (
	"context"
	"sync/atomic"

	"github.com/harunnryd/scenecue/pkg/adapters/audio"
)

type ModelConfig struct {
	// Scores is returned verbatim for every call.
	Scores [][]float32
	Err    error
}

type Model struct {
	cfg   ModelConfig
	calls atomic.Int32
}

func NewModel(cfg ModelConfig) *Model { return &Model{cfg: cfg} }

// OneHot builds a model that always favours class idx out of width.
func OneHot(width, idx int) *Model {
	row := make([]float32, width)
	if idx >= 0 && idx < width {
		row[idx] = 1
	}
	return NewModel(ModelConfig{Scores: [][]float32{row}})
}

func (m *Model) Name() string { return "mock_model" }

func (m *Model) Calls() int { return int(m.calls.Load()) }

func (m *Model) Scores(ctx context.Context, samples []float32) ([][]float32, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.cfg.Err != nil {
		return nil, m.cfg.Err
	}
	return m.cfg.Scores, nil
}

var _ audio.Model = (*Model)(nil)
