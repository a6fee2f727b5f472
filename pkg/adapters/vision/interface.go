package vision

import "context"

// Keyword is one ranked entry returned by an image classification service.
type Keyword struct {
	Keyword string
	Score   float64
	Root    string
}

// Classifier defines the contract for any image classification vendor.
type Classifier interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Classify returns keywords in rank order. An empty result is not an error.
	Classify(ctx context.Context, image []byte) ([]Keyword, error)
}
