package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/harunnryd/scenecue/pkg/adapters/audio"
	"github.com/harunnryd/scenecue/pkg/adapters/vision"
	"github.com/harunnryd/scenecue/pkg/configutil"
	"github.com/harunnryd/scenecue/pkg/providers/baidu"
	"github.com/harunnryd/scenecue/pkg/providers/mock"
	"github.com/harunnryd/scenecue/pkg/providers/portaudio"
	"github.com/harunnryd/scenecue/pkg/providers/tfserving"
	"github.com/harunnryd/scenecue/pkg/scenecue"
)

var (
	tfservingSchema = configutil.Schema{
		Required: []string{"base_url"},
		Optional: []string{"model", "signature", "input", "output", "timeout"},
	}
	baiduSchema = configutil.Schema{
		Required: []string{"api_key", "secret_key"},
		Optional: []string{"base_url", "timeout"},
		Secrets:  []string{"api_key", "secret_key"},
	}
	portaudioSchema = configutil.Schema{
		Optional: []string{"sample_rate", "frames_per_buffer"},
	}
	mockModelSchema = configutil.Schema{
		Optional: []string{"classes", "index"},
	}
	mockVisionSchema = configutil.Schema{
		Optional: []string{"keywords"},
	}
	mockRecorderSchema = configutil.Schema{
		Optional: []string{"samples"},
	}
)

type mockModelSettings struct {
	Classes int `mapstructure:"classes"`
	Index   int `mapstructure:"index"`
}

type mockVisionSettings struct {
	Keywords []string `mapstructure:"keywords"`
}

type mockRecorderSettings struct {
	Samples int `mapstructure:"samples"`
}

func registerProviders(reg *scenecue.ProviderRegistry, logger *slog.Logger) {
	reg.RegisterAudioModel("tfserving", func(settings map[string]any) (audio.Model, error) {
		var cfg tfserving.Config
		if err := configutil.Decode("tfserving", settings, tfservingSchema, &cfg); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(cfg.BaseURL, "vendors.audio_model.settings.base_url"); err != nil {
			return nil, err
		}
		logger.Info("provider_configured", slog.String("provider", "tfserving"), slog.Any("settings", tfservingSchema.Redacted(settings)))
		return tfserving.New(cfg), nil
	})

	reg.RegisterAudioModel("mock", func(settings map[string]any) (audio.Model, error) {
		var cfg mockModelSettings
		if err := configutil.Decode("mock model", settings, mockModelSchema, &cfg); err != nil {
			return nil, err
		}
		if cfg.Classes <= 0 {
			cfg.Classes = 521
		}
		if cfg.Index < 0 || cfg.Index >= cfg.Classes {
			return nil, fmt.Errorf("mock model index %d outside [0,%d)", cfg.Index, cfg.Classes)
		}
		return mock.OneHot(cfg.Classes, cfg.Index), nil
	})

	reg.RegisterVision("baidu", func(settings map[string]any) (vision.Classifier, error) {
		var cfg baidu.Config
		if err := configutil.Decode("baidu", settings, baiduSchema, &cfg); err != nil {
			return nil, err
		}
		logger.Info("provider_configured", slog.String("provider", "baidu"), slog.Any("settings", baiduSchema.Redacted(settings)))
		return baidu.New(cfg)
	})

	reg.RegisterVision("mock", func(settings map[string]any) (vision.Classifier, error) {
		var cfg mockVisionSettings
		if err := configutil.Decode("mock vision", settings, mockVisionSchema, &cfg); err != nil {
			return nil, err
		}
		return mock.NewClassifier(mock.ClassifierConfig{Keywords: cfg.Keywords}), nil
	})

	reg.RegisterRecorder("portaudio", func(settings map[string]any) (audio.Recorder, error) {
		var cfg portaudio.Config
		if err := configutil.Decode("portaudio", settings, portaudioSchema, &cfg); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return portaudio.New(cfg), nil
	})

	reg.RegisterRecorder("mock", func(settings map[string]any) (audio.Recorder, error) {
		var cfg mockRecorderSettings
		if err := configutil.Decode("mock recorder", settings, mockRecorderSchema, &cfg); err != nil {
			return nil, err
		}
		if cfg.Samples <= 0 {
			cfg.Samples = audio.SampleRate
		}
		return &pacedRecorder{Recorder: mock.NewRecorder(mock.RecorderConfig{Samples: make([]float32, cfg.Samples)})}, nil
	})
}

// pacedRecorder makes the mock recorder take as long as a real capture so a
// poll loop with no interval does not spin.
type pacedRecorder struct {
	*mock.Recorder
}

func (p *pacedRecorder) Record(ctx context.Context, d time.Duration) ([]float32, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}
	return p.Recorder.Record(ctx, d)
}
