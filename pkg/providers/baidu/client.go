// Package baidu classifies scene images with Baidu AIP advanced_general.
package baidu

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harunnryd/scenecue/pkg/adapters/vision"
	"github.com/harunnryd/scenecue/pkg/errorsx"
	"github.com/harunnryd/scenecue/pkg/logging"
	"github.com/harunnryd/scenecue/pkg/redact"
	"github.com/harunnryd/scenecue/pkg/resilience"
)

const providerName = "baidu"

// Error codes Baidu uses for quota and QPS exhaustion.
var rateLimitCodes = map[int]bool{4: true, 17: true, 18: true}

type Config struct {
	APIKey    string        `mapstructure:"api_key"`
	SecretKey string        `mapstructure:"secret_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Client exchanges credentials for a token on every call; nothing is cached.
type Client struct {
	cfg    Config
	Client *http.Client
	logger *slog.Logger
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("baidu: api_key and secret_key are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://aip.baidubce.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:    cfg,
		Client: &http.Client{Timeout: cfg.Timeout},
		logger: logging.NewComponentLogger(slog.Default(), "baidu"),
	}, nil
}

func (c *Client) Name() string { return providerName }

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type classifyResponse struct {
	LogID     int64          `json:"log_id"`
	ErrorCode int            `json:"error_code"`
	ErrorMsg  string         `json:"error_msg"`
	Result    []resultRecord `json:"result"`
}

type resultRecord struct {
	Keyword string  `json:"keyword"`
	Score   float64 `json:"score"`
	Root    string  `json:"root"`
}

// Classify returns the vendor's keywords in rank order.
func (c *Client) Classify(ctx context.Context, image []byte) ([]vision.Keyword, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("image", base64.StdEncoding.EncodeToString(image))

	endpoint := c.cfg.BaseURL + "/rest/2.0/image-classify/v2/advanced_general?access_token=" + url.QueryEscape(token)
	var payload classifyResponse
	if err := c.post(ctx, endpoint, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), &payload); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonVisionClassify)
	}
	if payload.ErrorCode != 0 {
		if rateLimitCodes[payload.ErrorCode] {
			return nil, errorsx.Wrap(resilience.RateLimitError{
				Provider: providerName,
				Code:     payload.ErrorCode,
				Message:  payload.ErrorMsg,
			}, errorsx.ReasonVisionRateLimit)
		}
		return nil, errorsx.Newf(errorsx.ReasonVisionClassify, "baidu: classify error %d: %s", payload.ErrorCode, payload.ErrorMsg)
	}
	out := make([]vision.Keyword, 0, len(payload.Result))
	for _, r := range payload.Result {
		out = append(out, vision.Keyword{Keyword: r.Keyword, Score: r.Score, Root: r.Root})
	}
	c.logger.Debug("classify_done", slog.Int64("log_id", payload.LogID), slog.Int("keywords", len(out)))
	return out, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	q := url.Values{}
	q.Set("grant_type", "client_credentials")
	q.Set("client_id", c.cfg.APIKey)
	q.Set("client_secret", c.cfg.SecretKey)
	endpoint := c.cfg.BaseURL + "/oauth/2.0/token?" + q.Encode()

	var payload tokenResponse
	if err := c.post(ctx, endpoint, "application/json", nil, &payload); err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonVisionAuth)
	}
	if payload.Error != "" {
		return "", errorsx.Newf(errorsx.ReasonVisionAuth, "baidu: token error %s: %s", payload.Error, payload.ErrorDescription)
	}
	if payload.AccessToken == "" {
		return "", errorsx.Newf(errorsx.ReasonVisionAuth, "baidu: token response has no access_token")
	}
	return payload.AccessToken, nil
}

// post decodes the JSON body regardless of status; Baidu reports most
// failures inside a 200 body and auth failures with 400/401 plus JSON.
func (c *Client) post(ctx context.Context, endpoint, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return errors.New(redact.Error(err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	resp, err := c.Client.Do(req)
	if err != nil {
		return errors.New("baidu: " + redact.Error(err))
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return resilience.RateLimitError{Provider: providerName, Code: resp.StatusCode, Message: "http 429"}
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("baidu: read response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("baidu: status %d: %s", resp.StatusCode, redact.Text(truncate(string(raw), 256)))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ vision.Classifier = (*Client)(nil)
