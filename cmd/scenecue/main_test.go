package main

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/harunnryd/scenecue/pkg/runner"
	"github.com/harunnryd/scenecue/pkg/scenecue"
)

func testRegistry() *scenecue.ProviderRegistry {
	reg := scenecue.NewProviderRegistry()
	registerProviders(reg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return reg
}

func TestRegisteredAudioModels(t *testing.T) {
	reg := testRegistry()
	m, err := reg.BuildAudioModel(scenecue.VendorConfig{
		Provider: "tfserving",
		Settings: map[string]any{"base_url": "http://tf:8501", "model": "yamnet", "timeout": "5s"},
	})
	if err != nil {
		t.Fatalf("tfserving: %v", err)
	}
	if m.Name() != "tfserving:yamnet" {
		t.Fatalf("unexpected name %q", m.Name())
	}
	if _, err := reg.BuildAudioModel(scenecue.VendorConfig{Provider: "tfserving"}); err == nil {
		t.Fatalf("expected base_url to be required")
	}
	if _, err := reg.BuildAudioModel(scenecue.VendorConfig{
		Provider: "TFServing",
		Settings: map[string]any{"base_url": "http://tf", "bogus": 1},
	}); err == nil {
		t.Fatalf("expected unknown key error")
	}
	if _, err := reg.BuildAudioModel(scenecue.VendorConfig{
		Provider: "mock",
		Settings: map[string]any{"classes": 3, "index": 5},
	}); err == nil {
		t.Fatalf("expected index range error")
	}
}

func TestRegisteredVision(t *testing.T) {
	reg := testRegistry()
	if _, err := reg.BuildVision(scenecue.VendorConfig{Provider: "baidu", Settings: map[string]any{"api_key": "k"}}); err == nil {
		t.Fatalf("expected secret_key to be required")
	}
	c, err := reg.BuildVision(scenecue.VendorConfig{
		Provider: "baidu",
		Settings: map[string]any{"api_key": "k", "secret_key": "s"},
	})
	if err != nil || c.Name() == "" {
		t.Fatalf("baidu: %v", err)
	}
	c, err = reg.BuildVision(scenecue.VendorConfig{
		Provider: "mock",
		Settings: map[string]any{"keywords": "地铁站,站台"},
	})
	if err != nil || c.Name() != "mock_vision" {
		t.Fatalf("mock vision: %v", err)
	}
}

func TestRegisteredRecorders(t *testing.T) {
	reg := testRegistry()
	r, err := reg.BuildRecorder(scenecue.VendorConfig{Provider: "portaudio", Settings: map[string]any{"sample_rate": 16000}})
	if err != nil || r.Name() != "portaudio" {
		t.Fatalf("portaudio: %v", err)
	}
	if _, err := reg.BuildRecorder(scenecue.VendorConfig{Provider: "portaudio", Settings: map[string]any{"sample_rate": 44100}}); err == nil {
		t.Fatalf("expected portaudio to refuse 44100 Hz")
	}
	if _, err := reg.BuildRecorder(scenecue.VendorConfig{Provider: "mock"}); err != nil {
		t.Fatalf("mock recorder: %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), "scenecue "+runner.Version) {
		t.Fatalf("unexpected version output %q", out.String())
	}
}
