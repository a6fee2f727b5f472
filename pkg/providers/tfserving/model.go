// Package tfserving calls an audio event model exported to TensorFlow
// Serving through its REST predict API.
package tfserving

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/scenecue/pkg/adapters/audio"
)

type Config struct {
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	Signature string        `mapstructure:"signature"`
	Input     string        `mapstructure:"input"`
	Output    string        `mapstructure:"output"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type Model struct {
	cfg    Config
	Client *http.Client
}

func New(cfg Config) *Model {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8501"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "yamnet"
	}
	if cfg.Signature == "" {
		cfg.Signature = "serving_default"
	}
	if cfg.Input == "" {
		cfg.Input = "waveform"
	}
	if cfg.Output == "" {
		cfg.Output = "output_0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Model{cfg: cfg, Client: &http.Client{Timeout: cfg.Timeout}}
}

func (m *Model) Name() string { return "tfserving:" + m.cfg.Model }

func (m *Model) endpoint() string {
	return fmt.Sprintf("%s/v1/models/%s:predict", m.cfg.BaseURL, m.cfg.Model)
}

type predictRequest struct {
	Signature string                     `json:"signature_name"`
	Inputs    map[string]json.RawMessage `json:"inputs"`
}

type predictResponse struct {
	Outputs json.RawMessage `json:"outputs"`
	Error   string          `json:"error"`
}

// Scores posts the waveform and returns the frames x classes score matrix.
func (m *Model) Scores(ctx context.Context, samples []float32) ([][]float32, error) {
	wave, err := json.Marshal(samples)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(predictRequest{
		Signature: m.cfg.Signature,
		Inputs:    map[string]json.RawMessage{m.cfg.Input: wave},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var payload predictResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode predict response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || payload.Error != "" {
		msg := payload.Error
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return nil, fmt.Errorf("predict status %d: %s", resp.StatusCode, msg)
	}
	return m.extract(payload.Outputs)
}

// extract accepts both the named-output map and a bare tensor, since
// single-output signatures are flattened by the server.
func (m *Model) extract(outputs json.RawMessage) ([][]float32, error) {
	if len(outputs) == 0 {
		return nil, errors.New("predict response has no outputs")
	}
	if outputs[0] == '{' {
		var named map[string]json.RawMessage
		if err := json.Unmarshal(outputs, &named); err != nil {
			return nil, err
		}
		tensor, ok := named[m.cfg.Output]
		if !ok {
			return nil, fmt.Errorf("predict response missing output %q", m.cfg.Output)
		}
		outputs = tensor
	}
	return decodeMatrix(outputs)
}

func decodeMatrix(raw json.RawMessage) ([][]float32, error) {
	var matrix [][]float32
	if err := json.Unmarshal(raw, &matrix); err == nil {
		return matrix, nil
	}
	var row []float32
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("unexpected score tensor shape: %w", err)
	}
	return [][]float32{row}, nil
}

var _ audio.Model = (*Model)(nil)
