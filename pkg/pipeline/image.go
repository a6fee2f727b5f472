package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/harunnryd/scenecue/pkg/errorsx"
	"github.com/harunnryd/scenecue/pkg/frames"
	"github.com/harunnryd/scenecue/pkg/logging"
	"github.com/harunnryd/scenecue/pkg/metrics"
	"github.com/harunnryd/scenecue/pkg/recommend"
	"github.com/harunnryd/scenecue/pkg/redact"
	"github.com/harunnryd/scenecue/pkg/resolver"
	"github.com/harunnryd/scenecue/pkg/state"
)

type ImageConfig struct {
	Resolver *resolver.ImageResolver
	Policy   *recommend.ImagePolicy
	Store    *state.Store
	Observer metrics.Observer
	Logger   *slog.Logger
}

type ImageResult struct {
	Keywords       []string
	Recommendation recommend.Recommendation
	Stored         bool
}

type ImagePipeline struct {
	cfg    ImageConfig
	logger *slog.Logger
}

func NewImagePipeline(cfg ImageConfig) (*ImagePipeline, error) {
	if cfg.Resolver == nil || cfg.Policy == nil || cfg.Store == nil {
		return nil, errors.New("pipeline: resolver, policy and store are required")
	}
	if cfg.Observer == nil {
		cfg.Observer = metrics.NoopObserver{}
	}
	return &ImagePipeline{cfg: cfg, logger: logging.NewComponentLogger(cfg.Logger, "image_pipeline")}, nil
}

// HandleImage classifies f and, when persist is set, stores the result under
// the frame's user id before returning. Vendor errors leave state untouched.
func (p *ImagePipeline) HandleImage(ctx context.Context, f frames.ImageFrame, persist bool) (ImageResult, error) {
	tags := clipTags(f.Meta())
	start := time.Now()
	keywords, err := p.cfg.Resolver.Resolve(ctx, f.RawPayload())
	latency := metrics.Since(start)
	if err != nil {
		reason := string(errorsx.Reason(err))
		metrics.Emit(p.cfg.Observer, metrics.EventVisionCall, latency, withTag(tags, "status", reason), nil)
		p.logger.Warn("vision_failed",
			slog.String("user_id", f.UserID()),
			slog.String("reason_code", reason),
			slog.String("error", redact.Error(err)))
		return ImageResult{}, err
	}
	metrics.Emit(p.cfg.Observer, metrics.EventVisionCall, latency, withTag(tags, "status", "ok"), map[string]any{"keywords": len(keywords)})

	rec := p.cfg.Policy.Recommend(keywords)
	res := ImageResult{Keywords: keywords, Recommendation: rec}
	if persist {
		label := ""
		if len(keywords) > 0 {
			label = keywords[0]
		}
		p.cfg.Store.Set(f.UserID(), rec, frames.SourceUpload, label)
		res.Stored = true
		metrics.Emit(p.cfg.Observer, metrics.EventRecommendationStore, 1, withTag(tags, "recommendation", rec.String()), nil)
	}
	p.logger.Info("image_recommendation",
		slog.String("user_id", f.UserID()),
		slog.Any("keywords", keywords),
		slog.String("recommend", rec.String()),
		slog.Bool("stored", res.Stored))
	return res, nil
}
