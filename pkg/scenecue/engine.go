package scenecue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/scenecue/pkg/capture"
	"github.com/harunnryd/scenecue/pkg/classmap"
	"github.com/harunnryd/scenecue/pkg/logging"
	"github.com/harunnryd/scenecue/pkg/metrics"
	"github.com/harunnryd/scenecue/pkg/observers"
	"github.com/harunnryd/scenecue/pkg/pipeline"
	"github.com/harunnryd/scenecue/pkg/recommend"
	"github.com/harunnryd/scenecue/pkg/redact"
	"github.com/harunnryd/scenecue/pkg/resilience"
	"github.com/harunnryd/scenecue/pkg/resolver"
	"github.com/harunnryd/scenecue/pkg/runner"
	"github.com/harunnryd/scenecue/pkg/state"
	"github.com/harunnryd/scenecue/pkg/transcode"
	"github.com/harunnryd/scenecue/pkg/transports"
	"github.com/harunnryd/scenecue/pkg/transports/httpapi"
)

type Engine struct {
	cfg       Config
	logger    *slog.Logger
	store     *state.Store
	sessions  *pipeline.SessionRegistry
	stats     *observers.StatsObserver
	asyncObs  *metrics.AsyncObserver
	eventLog  *metrics.JSONLObserver
	audio     *pipeline.AudioPipeline
	image     *pipeline.ImagePipeline
	server    *httpapi.Server
	transport transports.Transport
	poller    *capture.Poller
	runner    *pipeline.Runner
	providers *ProviderRegistry

	mu         sync.Mutex
	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

type EngineOptions struct {
	Config    Config
	Providers *ProviderRegistry
	// Transcoder replaces the ffmpeg subprocess when set.
	Transcoder transcode.Transcoder
	Logger     *slog.Logger
	// Banner receives the startup banner; nil disables it.
	Banner io.Writer
	// OnStart and OnStop wrap the lifecycle.
	OnStart func()
	OnStop  func()
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.applyModeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	redact.SetEnabled(cfg.Privacy.RedactSecrets)
	base := opts.Logger
	if base == nil {
		base = slog.Default()
	}
	providers := opts.Providers
	if providers == nil {
		providers = NewProviderRegistry()
	}

	e := &Engine{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(base, "engine"),
		store:     state.NewStore(),
		sessions:  pipeline.NewSessionRegistry(),
		stats:     observers.NewStatsObserver(),
		providers: providers,
	}
	e.logger.Info("scenecue_init",
		slog.String("environment", cfg.Environment),
		slog.String("mode", cfg.Mode),
		slog.String("audio_model", cfg.Vendors.AudioModel.Provider),
		slog.String("vision", cfg.Vendors.Vision.Provider),
		slog.String("recorder", cfg.Vendors.Recorder.Provider),
	)

	obs, err := e.buildObservers(base)
	if err != nil {
		return nil, err
	}
	if err := e.buildAudio(opts, base, obs); err != nil {
		e.closeObservers()
		return nil, err
	}
	if err := e.buildImage(base, obs); err != nil {
		e.closeObservers()
		return nil, err
	}

	deps := httpapi.Deps{
		Store:    e.store,
		Sessions: e.sessions,
		Stats:    e.stats,
		Logger:   base,
	}
	// Leave the interfaces nil when a pipeline is off so the server
	// answers 503 for it.
	if e.audio != nil {
		deps.Clips = e.audio
	}
	if e.image != nil {
		deps.Images = e.image
	}
	e.server, err = httpapi.New(httpapi.Config{
		Addr:           cfg.Server.Addr,
		Mode:           httpapi.Mode(cfg.Mode),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		MaxClipBytes:   cfg.Server.MaxClipBytes,
	}, deps)
	if err != nil {
		e.closeObservers()
		return nil, err
	}
	e.transport = e.server

	if cfg.Mode == ModePoll {
		rec, err := providers.BuildRecorder(cfg.Vendors.Recorder)
		if err != nil {
			e.closeObservers()
			return nil, fmt.Errorf("build recorder: %w", err)
		}
		e.poller, err = capture.NewPoller(capture.PollerConfig{
			ClipSeconds: cfg.Poll.ClipSeconds,
			Interval:    cfg.Poll.Interval,
		}, rec, e.audio, obs, base)
		if err != nil {
			e.closeObservers()
			return nil, err
		}
	}

	drainTimeout := cfg.Server.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = 20 * time.Second
	}
	e.cfg.Server.DrainTimeout = drainTimeout
	hooks := runner.Hooks{OnStart: opts.OnStart, OnStop: opts.OnStop, Banner: opts.Banner}
	seq := pipeline.NewDrainSequence(drainTimeout, base,
		pipeline.DrainStep{Name: e.transport.Name(), Fn: e.stopTransport},
		pipeline.DrainStep{Name: "streams", Fn: e.waitStreams},
		pipeline.DrainStep{Name: "poller", Fn: e.stopPoller},
		pipeline.DrainStep{Name: "observers", Fn: func(context.Context) error {
			e.closeObservers()
			return nil
		}},
	)
	e.runner = pipeline.NewDrainRunner(seq, hooks)
	return e, nil
}

// buildObservers keeps stats synchronous so /stats reflects every finished
// request; log and file sinks go through the async queue.
func (e *Engine) buildObservers(base *slog.Logger) (metrics.Observer, error) {
	var sinks []metrics.Observer
	if e.cfg.Observability.LogEvents {
		sinks = append(sinks, observers.NewLoggerObserver(logging.NewComponentLogger(base, "metrics")))
	}
	if dir := strings.TrimSpace(e.cfg.Observability.MetricsDir); dir != "" {
		jl, err := metrics.OpenJSONLFile(dir, "events.jsonl")
		if err != nil {
			return nil, fmt.Errorf("open event log: %w", err)
		}
		e.eventLog = jl
		sinks = append(sinks, jl)
	}
	if len(sinks) == 0 {
		return e.stats, nil
	}
	e.asyncObs = metrics.NewAsyncObserver(observers.NewMultiObserver(sinks...), 2048)
	return observers.NewMultiObserver(e.stats, e.asyncObs), nil
}

func (e *Engine) buildAudio(opts EngineOptions, base *slog.Logger, obs metrics.Observer) error {
	cfg := e.cfg
	if !cfg.Vendors.AudioModel.Enabled() {
		return nil
	}
	classes, err := classmap.Load(cfg.ClassMapPath)
	if err != nil {
		return fmt.Errorf("load class map: %w", err)
	}
	model, err := e.providers.BuildAudioModel(cfg.Vendors.AudioModel)
	if err != nil {
		return fmt.Errorf("build audio model: %w", err)
	}
	res, err := resolver.NewAudioResolver(model, classes)
	if err != nil {
		return err
	}
	rules, err := recommend.AudioRules(cfg.Policy.AudioRules)
	if err != nil {
		return err
	}

	ws, err := transcode.NewWorkspace(cfg.Transcoder.TempDir, logging.NewComponentLogger(base, "workspace"))
	if err != nil {
		return err
	}
	if n, err := transcode.PurgeStale(ws.Dir(), cfg.Transcoder.StaleAfter); err != nil {
		e.logger.Warn("purge_stale_failed", slog.String("dir", ws.Dir()), slog.String("error", err.Error()))
	} else if n > 0 {
		e.logger.Info("purge_stale", slog.String("dir", ws.Dir()), slog.Int("removed", n))
	}
	tc := opts.Transcoder
	if tc == nil {
		tc = transcode.NewFFmpeg(transcode.Config{
			Binary:  cfg.Transcoder.Binary,
			Timeout: cfg.Transcoder.Timeout,
		})
	}

	// Ranked labels are only logged for the microphone poller.
	topK := 1
	if cfg.Mode == ModePoll {
		topK = cfg.Poll.TopK
	}
	e.audio, err = pipeline.NewAudioPipeline(pipeline.AudioConfig{
		Workspace:  ws,
		Transcoder: tc,
		Resolver:   res,
		Policy:     recommend.NewAudioPolicy(rules.Override(cfg.Policy.Audio)),
		Store:      e.store,
		Observer:   obs,
		Logger:     base,
		LogTopK:    topK,
	})
	if err != nil {
		return err
	}
	e.logger.Info("audio_ready",
		slog.String("model", model.Name()),
		slog.Int("classes", classes.Len()),
		slog.String("rules", cfg.Policy.AudioRules))
	return nil
}

func (e *Engine) buildImage(base *slog.Logger, obs metrics.Observer) error {
	cfg := e.cfg
	if !cfg.Vendors.Vision.Enabled() {
		return nil
	}
	classifier, err := e.providers.BuildVision(cfg.Vendors.Vision)
	if err != nil {
		return fmt.Errorf("build vision: %w", err)
	}
	breaker := resilience.NewCircuitBreaker(cfg.Vision.BreakerThreshold, cfg.Vision.BreakerCooldown)
	res, err := resolver.NewImageResolver(classifier, breaker)
	if err != nil {
		return err
	}
	variant, err := recommend.ParseImageVariant(cfg.Policy.ImageVariant)
	if err != nil {
		return err
	}
	var fallback recommend.Recommendation
	if strings.TrimSpace(cfg.Policy.ImageDefault) != "" {
		if fallback, err = recommend.Parse(cfg.Policy.ImageDefault); err != nil {
			return err
		}
	}
	policy, err := recommend.NewImagePolicy(recommend.ImagePolicyConfig{
		Variant: variant,
		Rules:   cfg.Policy.Image,
		Default: fallback,
	})
	if err != nil {
		return err
	}
	e.image, err = pipeline.NewImagePipeline(pipeline.ImageConfig{
		Resolver: res,
		Policy:   policy,
		Store:    e.store,
		Observer: obs,
		Logger:   base,
	})
	if err != nil {
		return err
	}
	e.logger.Info("vision_ready",
		slog.String("classifier", classifier.Name()),
		slog.String("variant", string(policy.Variant())),
		slog.String("default", policy.Default().String()))
	return nil
}

// Start binds the HTTP listener, launches the poller in poll mode and runs
// the lifecycle in the background. Bind errors are returned.
func (e *Engine) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := e.transport.Start(ctx); err != nil {
		return err
	}
	if e.poller != nil {
		pctx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		e.mu.Lock()
		e.pollCancel, e.pollDone = cancel, done
		e.mu.Unlock()
		go func() {
			defer close(done)
			if err := e.poller.Run(pctx); err != nil {
				e.logger.Error("poller_failed", slog.String("error", redact.Error(err)))
			}
		}()
	}
	go func() {
		_ = e.runner.Run(ctx)
	}()
	return nil
}

// Stop closes the listener and open streams, stops the poller and flushes
// observers. Safe to call more than once.
func (e *Engine) Stop() error {
	return e.runner.Stop()
}

func (e *Engine) stopTransport(ctx context.Context) error {
	if err := e.transport.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (e *Engine) waitStreams(ctx context.Context) error {
	if !e.sessions.WaitForEmpty(ctx, 50*time.Millisecond) {
		return fmt.Errorf("%d streams still open", e.sessions.Count())
	}
	return nil
}

func (e *Engine) stopPoller(ctx context.Context) error {
	e.mu.Lock()
	cancel, done := e.pollCancel, e.pollDone
	e.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("poller did not stop")
	}
}

func (e *Engine) closeObservers() {
	if e.asyncObs != nil {
		e.asyncObs.Close()
	}
	if e.eventLog != nil {
		if err := e.eventLog.Close(); err != nil {
			e.logger.Warn("event_log_close_failed", slog.String("error", err.Error()))
		}
	}
}

func (e *Engine) Config() Config                      { return e.cfg }
func (e *Engine) Store() *state.Store                 { return e.store }
func (e *Engine) Sessions() *pipeline.SessionRegistry { return e.sessions }
func (e *Engine) Stats() observers.Snapshot           { return e.stats.Snapshot() }
func (e *Engine) ProviderRegistry() *ProviderRegistry { return e.providers }
func (e *Engine) Handler() http.Handler               { return e.server.Handler() }
func (e *Engine) Addr() string                        { return e.transport.Addr() }
func (e *Engine) State() runner.State                 { return e.runner.State() }
func (e *Engine) Poller() *capture.Poller             { return e.poller }
