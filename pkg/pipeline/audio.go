package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/scenecue/pkg/adapters/audio"
	"github.com/harunnryd/scenecue/pkg/errorsx"
	"github.com/harunnryd/scenecue/pkg/frames"
	"github.com/harunnryd/scenecue/pkg/logging"
	"github.com/harunnryd/scenecue/pkg/metrics"
	"github.com/harunnryd/scenecue/pkg/recommend"
	"github.com/harunnryd/scenecue/pkg/redact"
	"github.com/harunnryd/scenecue/pkg/resolver"
	"github.com/harunnryd/scenecue/pkg/state"
	"github.com/harunnryd/scenecue/pkg/transcode"
)

type AudioConfig struct {
	Workspace  *transcode.Workspace
	Transcoder transcode.Transcoder
	Resolver   *resolver.AudioResolver
	Policy     *recommend.AudioPolicy
	Store      *state.Store
	Observer   metrics.Observer
	Logger     *slog.Logger
	// LogTopK ranked labels are logged per clip; only the first is used.
	LogTopK int
}

// Outcome describes what happened to one capture. Err is set when the
// capture was discarded, in which case state is untouched.
type Outcome struct {
	Label          string
	Score          float32
	Recommendation recommend.Recommendation
	Stored         bool
	Err            error
}

// AudioPipeline runs clip -> transcode -> resolve -> policy -> store.
type AudioPipeline struct {
	cfg    AudioConfig
	logger *slog.Logger
}

func NewAudioPipeline(cfg AudioConfig) (*AudioPipeline, error) {
	if cfg.Resolver == nil || cfg.Policy == nil || cfg.Store == nil {
		return nil, errors.New("pipeline: resolver, policy and store are required")
	}
	if cfg.Observer == nil {
		cfg.Observer = metrics.NoopObserver{}
	}
	if cfg.LogTopK <= 0 {
		cfg.LogTopK = 1
	}
	return &AudioPipeline{cfg: cfg, logger: logging.NewComponentLogger(cfg.Logger, "audio_pipeline")}, nil
}

// HandleClip classifies one encoded clip. Failures are logged and reported
// in the Outcome; temp files are removed on every path.
func (p *AudioPipeline) HandleClip(ctx context.Context, f frames.AudioFrame) Outcome {
	meta := f.Meta()
	tags := clipTags(meta)
	metrics.Emit(p.cfg.Observer, metrics.EventClipReceived, float64(len(f.RawPayload())), tags, nil)

	if p.cfg.Workspace == nil || p.cfg.Transcoder == nil {
		return p.discard(tags, errorsx.Newf(errorsx.ReasonTranscode, "pipeline: transcoder not configured"))
	}
	clip, err := p.cfg.Workspace.Write(f.RawPayload(), clipExt(meta))
	defer p.cfg.Workspace.Remove(clip)
	if err != nil {
		return p.discard(tags, errorsx.Wrap(err, errorsx.ReasonTranscode))
	}
	if err := p.cfg.Transcoder.Transcode(ctx, clip.In, clip.Out); err != nil {
		return p.discard(tags, errorsx.Wrap(err, errorsx.ReasonTranscode))
	}
	samples, err := transcode.ReadF32LE(clip.Out)
	if err != nil {
		return p.discard(tags, err)
	}
	return p.classify(ctx, f.UserID(), samples, tags)
}

// HandleSamples classifies mono PCM. Frames not at audio.SampleRate are
// discarded.
func (p *AudioPipeline) HandleSamples(ctx context.Context, f frames.PCMFrame) Outcome {
	tags := clipTags(f.Meta())
	metrics.Emit(p.cfg.Observer, metrics.EventClipReceived, float64(len(f.Samples())), tags, nil)
	if f.Rate() != audio.SampleRate {
		return p.discard(tags, errorsx.Newf(errorsx.ReasonAudioDecode, "pipeline: pcm at %d Hz, want %d Hz", f.Rate(), audio.SampleRate))
	}
	return p.classify(ctx, f.UserID(), f.Samples(), tags)
}

func (p *AudioPipeline) classify(ctx context.Context, userID string, samples []float32, tags map[string]string) Outcome {
	start := time.Now()
	top, err := p.cfg.Resolver.TopK(ctx, samples, p.cfg.LogTopK)
	if err != nil {
		return p.discard(tags, err)
	}
	if p.cfg.LogTopK > 1 {
		ranked := make([]string, 0, len(top))
		for _, s := range top {
			ranked = append(ranked, s.Label)
		}
		p.logger.Info("audio_top_labels",
			slog.String("user_id", userID),
			slog.String("labels", strings.Join(ranked, " | ")))
	}
	best := top[0]
	metrics.Emit(p.cfg.Observer, metrics.EventLabelResolved, metrics.Since(start), withTag(tags, "label", best.Label), map[string]any{"score": best.Score})

	rec := p.cfg.Policy.Recommend(best.Label)
	p.cfg.Store.Set(userID, rec, tags[frames.MetaSource], best.Label)
	metrics.Emit(p.cfg.Observer, metrics.EventRecommendationStore, 1, withTag(tags, "recommendation", rec.String()), nil)

	p.logger.Info("audio_recommendation",
		slog.String("user_id", userID),
		slog.String("label", best.Label),
		slog.String("recommend", rec.String()))
	return Outcome{Label: best.Label, Score: best.Score, Recommendation: rec, Stored: true}
}

func (p *AudioPipeline) discard(tags map[string]string, err error) Outcome {
	reason := errorsx.Reason(err)
	if errors.Is(err, context.Canceled) {
		reason = "canceled"
	}
	metrics.Emit(p.cfg.Observer, metrics.EventClipDiscarded, 1, withTag(tags, "reason", string(reason)), nil)
	p.logger.Warn("clip_discarded",
		slog.String("user_id", tags[frames.MetaUserID]),
		slog.String("reason_code", string(reason)),
		slog.String("error", redact.Error(err)))
	return Outcome{Err: err}
}

func clipTags(meta map[string]string) map[string]string {
	return map[string]string{
		frames.MetaUserID:  meta[frames.MetaUserID],
		frames.MetaTraceID: meta[frames.MetaTraceID],
		frames.MetaSource:  meta[frames.MetaSource],
	}
}

func withTag(tags map[string]string, k, v string) map[string]string {
	out := make(map[string]string, len(tags)+1)
	for key, val := range tags {
		out[key] = val
	}
	out[k] = v
	return out
}

// clipExt guesses a file extension from the frame's MIME type. ffmpeg
// probes the content anyway, so this only keeps temp names readable.
func clipExt(meta map[string]string) string {
	mime := strings.ToLower(meta[frames.MetaMIME])
	switch {
	case strings.Contains(mime, "webm"):
		return ".webm"
	case strings.Contains(mime, "wav"):
		return ".wav"
	case strings.Contains(mime, "mpeg"), strings.Contains(mime, "mp3"):
		return ".mp3"
	case strings.Contains(mime, "mp4"), strings.Contains(mime, "aac"):
		return ".m4a"
	default:
		return ".ogg"
	}
}
