package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/harunnryd/scenecue/pkg/adapters/vision"
	"github.com/harunnryd/scenecue/pkg/errorsx"
	"github.com/harunnryd/scenecue/pkg/resilience"
)

// ImageResolver asks a vision vendor for scene keywords. Repeated rate
// limits trip the breaker and later calls fail fast without a request.
type ImageResolver struct {
	classifier vision.Classifier
	breaker    *resilience.CircuitBreaker
}

func NewImageResolver(classifier vision.Classifier, breaker *resilience.CircuitBreaker) (*ImageResolver, error) {
	if classifier == nil {
		return nil, errors.New("resolver: vision classifier is required")
	}
	return &ImageResolver{classifier: classifier, breaker: breaker}, nil
}

func (r *ImageResolver) Name() string { return r.classifier.Name() }

// Resolve returns keywords in vendor rank order; an empty slice is valid.
func (r *ImageResolver) Resolve(ctx context.Context, image []byte) ([]string, error) {
	if len(image) == 0 {
		return nil, errorsx.Newf(errorsx.ReasonVisionClassify, "resolver: empty image")
	}
	var result []vision.Keyword
	err := r.breaker.Do(func() error {
		var err error
		result, err = r.classifier.Classify(ctx, image)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, resilience.ErrCircuitOpen):
			return nil, errorsx.Wrap(fmt.Errorf("%s: %w", r.classifier.Name(), err), errorsx.ReasonVisionCircuitOpen)
		case resilience.IsRateLimit(err):
			return nil, errorsx.Wrap(err, errorsx.ReasonVisionRateLimit)
		default:
			return nil, errorsx.Wrap(err, errorsx.ReasonVisionClassify)
		}
	}
	keywords := make([]string, 0, len(result))
	for _, kw := range result {
		keywords = append(keywords, kw.Keyword)
	}
	return keywords, nil
}
