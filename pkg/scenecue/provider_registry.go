package scenecue

import (
	"fmt"
	"strings"

	"github.com/harunnryd/scenecue/pkg/adapters/audio"
	"github.com/harunnryd/scenecue/pkg/adapters/vision"
)

// Factories receive the vendor's settings block, already env-expanded.
type AudioModelFactory func(settings map[string]any) (audio.Model, error)
type VisionFactory func(settings map[string]any) (vision.Classifier, error)
type RecorderFactory func(settings map[string]any) (audio.Recorder, error)

// ProviderRegistry resolves vendor names from config into adapters. The
// library registers nothing itself so that device and cgo-backed providers
// stay out of packages that do not need them.
type ProviderRegistry struct {
	models    map[string]AudioModelFactory
	vision    map[string]VisionFactory
	recorders map[string]RecorderFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		models:    make(map[string]AudioModelFactory),
		vision:    make(map[string]VisionFactory),
		recorders: make(map[string]RecorderFactory),
	}
}

func providerKey(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

func (r *ProviderRegistry) RegisterAudioModel(name string, factory AudioModelFactory) {
	r.models[providerKey(name)] = factory
}

func (r *ProviderRegistry) RegisterVision(name string, factory VisionFactory) {
	r.vision[providerKey(name)] = factory
}

func (r *ProviderRegistry) RegisterRecorder(name string, factory RecorderFactory) {
	r.recorders[providerKey(name)] = factory
}

func (r *ProviderRegistry) BuildAudioModel(vc VendorConfig) (audio.Model, error) {
	fn := r.models[providerKey(vc.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("audio model provider not registered: %s", vc.Provider)
	}
	return fn(vc.Settings)
}

func (r *ProviderRegistry) BuildVision(vc VendorConfig) (vision.Classifier, error) {
	fn := r.vision[providerKey(vc.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("vision provider not registered: %s", vc.Provider)
	}
	return fn(vc.Settings)
}

func (r *ProviderRegistry) BuildRecorder(vc VendorConfig) (audio.Recorder, error) {
	fn := r.recorders[providerKey(vc.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("recorder provider not registered: %s", vc.Provider)
	}
	return fn(vc.Settings)
}
