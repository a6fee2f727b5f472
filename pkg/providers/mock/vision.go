package mock

import (
	"context"
	"sync/atomic"

	"github.com/harunnryd/scenecue/pkg/adapters/vision"
)

type ClassifierConfig struct {
	Keywords []string
	Err      error
	// Gate, when set, holds Classify until it is closed or ctx ends.
	Gate chan struct{}
}

type Classifier struct {
	cfg   ClassifierConfig
	calls atomic.Int32
}

func NewClassifier(cfg ClassifierConfig) *Classifier { return &Classifier{cfg: cfg} }

func (c *Classifier) Name() string { return "mock_vision" }

func (c *Classifier) Calls() int { return int(c.calls.Load()) }

func (c *Classifier) Classify(ctx context.Context, image []byte) ([]vision.Keyword, error) {
	c.calls.Add(1)
	if c.cfg.Gate != nil {
		select {
		case <-c.cfg.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.cfg.Err != nil {
		return nil, c.cfg.Err
	}
	out := make([]vision.Keyword, 0, len(c.cfg.Keywords))
	for i, kw := range c.cfg.Keywords {
		out = append(out, vision.Keyword{Keyword: kw, Score: 1 / float64(i+1)})
	}
	return out, nil
}

var _ vision.Classifier = (*Classifier)(nil)
