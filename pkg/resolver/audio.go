// Package resolver turns raw captures into scene labels through the
// configured model and vision adapters.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/harunnryd/scenecue/pkg/adapters/audio"
	"github.com/harunnryd/scenecue/pkg/classmap"
	"github.com/harunnryd/scenecue/pkg/errorsx"
)

// Scored is one vocabulary entry with its clip-level mean score.
type Scored struct {
	Index int
	Label string
	Score float32
}

// AudioResolver maps a waveform to the most likely class-map label.
type AudioResolver struct {
	model   audio.Model
	classes *classmap.ClassMap
}

func NewAudioResolver(model audio.Model, classes *classmap.ClassMap) (*AudioResolver, error) {
	if model == nil {
		return nil, errors.New("resolver: audio model is required")
	}
	if classes == nil || classes.Len() == 0 {
		return nil, errors.New("resolver: class map is required")
	}
	return &AudioResolver{model: model, classes: classes}, nil
}

// Resolve returns the top label for samples.
func (r *AudioResolver) Resolve(ctx context.Context, samples []float32) (Scored, error) {
	top, err := r.TopK(ctx, samples, 1)
	if err != nil {
		return Scored{}, err
	}
	return top[0], nil
}

// TopK returns the k best labels by mean score, best first. Ties keep
// vocabulary order.
func (r *AudioResolver) TopK(ctx context.Context, samples []float32, k int) ([]Scored, error) {
	means, err := r.means(ctx, samples)
	if err != nil {
		return nil, err
	}
	ranked := make([]Scored, len(means))
	for i, m := range means {
		name, _ := r.classes.Name(i)
		ranked[i] = Scored{Index: i, Label: name, Score: m}
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].Score > ranked[b].Score })
	if k <= 0 || k > len(ranked) {
		k = len(ranked)
	}
	return ranked[:k], nil
}

func (r *AudioResolver) means(ctx context.Context, samples []float32) ([]float32, error) {
	if len(samples) == 0 {
		return nil, errorsx.Newf(errorsx.ReasonAudioDecode, "resolver: empty waveform")
	}
	scores, err := r.model.Scores(ctx, samples)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("%s: %w", r.model.Name(), err), errorsx.ReasonAudioModel)
	}
	return ColumnMean(scores, r.classes.Len())
}

// ColumnMean averages a frames x classes matrix over frames. Every row must
// be exactly width wide.
func ColumnMean(scores [][]float32, width int) ([]float32, error) {
	if len(scores) == 0 {
		return nil, errorsx.Newf(errorsx.ReasonAudioModel, "resolver: empty score matrix")
	}
	sums := make([]float64, width)
	for i, row := range scores {
		if len(row) != width {
			return nil, errorsx.Newf(errorsx.ReasonAudioModel, "resolver: frame %d has %d scores, vocabulary has %d", i, len(row), width)
		}
		for j, v := range row {
			sums[j] += float64(v)
		}
	}
	out := make([]float32, width)
	n := float64(len(scores))
	for j, s := range sums {
		out[j] = float32(s / n)
	}
	return out, nil
}
