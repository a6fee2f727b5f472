package scenecue

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harunnryd/scenecue/pkg/adapters/audio"
	"github.com/harunnryd/scenecue/pkg/adapters/vision"
	"github.com/harunnryd/scenecue/pkg/frames"
	"github.com/harunnryd/scenecue/pkg/metrics"
	"github.com/harunnryd/scenecue/pkg/providers/mock"
	"github.com/harunnryd/scenecue/pkg/recommend"
	"github.com/harunnryd/scenecue/pkg/runner"
	"github.com/harunnryd/scenecue/pkg/state"
)

const testClasses = "index,mid,display_name\n0,/m/09x0r,Speech\n1,/m/07jdr,Train\n2,/m/0316dw,Typing\n"

func testProviders(labelIdx int) *ProviderRegistry {
	r := NewProviderRegistry()
	r.RegisterAudioModel("mock", func(map[string]any) (audio.Model, error) {
		return mock.OneHot(3, labelIdx), nil
	})
	r.RegisterVision("mock", func(map[string]any) (vision.Classifier, error) {
		return mock.NewClassifier(mock.ClassifierConfig{Keywords: []string{"地铁站", "站台"}}), nil
	})
	r.RegisterRecorder("mock", func(map[string]any) (audio.Recorder, error) {
		return mock.NewRecorder(mock.RecorderConfig{Samples: []float32{0.1, 0.2, 0.3}}), nil
	})
	return r
}

func testConfig(t *testing.T, mode string) Config {
	t.Helper()
	dir := t.TempDir()
	classes := filepath.Join(dir, "classes.csv")
	if err := os.WriteFile(classes, []byte(testClasses), 0o600); err != nil {
		t.Fatalf("write classes: %v", err)
	}
	cfg := Config{
		Mode:         mode,
		Environment:  "test",
		ClassMapPath: classes,
		Server:       ServerConfig{Addr: "127.0.0.1:0", DrainTimeout: 2 * time.Second},
		Vendors: VendorsConfig{
			AudioModel: VendorConfig{Provider: "mock"},
			Vision:     VendorConfig{Provider: "mock"},
		},
		Transcoder: TranscoderConfig{TempDir: filepath.Join(dir, "clips"), StaleAfter: time.Hour},
		Poll:       PollConfig{ClipSeconds: 0.01, Interval: 10 * time.Millisecond, TopK: 3},
		Vision:     VisionConfig{BreakerThreshold: 3, BreakerCooldown: time.Second},
		Privacy:    PrivacyConfig{RedactSecrets: true},
	}
	if mode == ModePoll {
		cfg.Vendors.Recorder = VendorConfig{Provider: "mock"}
	}
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, labelIdx int) *Engine {
	t.Helper()
	e, err := NewEngine(EngineOptions{
		Config:     cfg,
		Providers:  testProviders(labelIdx),
		Transcoder: mock.NewTranscoder(mock.TranscoderConfig{Samples: []float32{0.5, -0.5}}),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func startEngine(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := e.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool { return e.State() == runner.StateRunning })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEngineImageUploadUpdatesLatest(t *testing.T) {
	e := newTestEngine(t, testConfig(t, ModePush), 0)
	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "scene.jpg")
	_, _ = fw.Write([]byte("\xff\xd8jpeg"))
	_ = mw.Close()
	resp, err := http.Post(srv.URL+"/recognize_image_scene?user_id=alice", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/get_latest_recommend?user_id=alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		Recommend string `json:"recommend"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Recommend != recommend.OutlineOnly.Text() {
		t.Fatalf("expected outline text, got %q", out.Recommend)
	}
	if n := e.Stats().Events[metrics.EventVisionCall]; n != 1 {
		t.Fatalf("expected one vision_call event, got %d", n)
	}
}

func TestEngineStreamAndShutdown(t *testing.T) {
	e := newTestEngine(t, testConfig(t, ModePush), 1)
	startEngine(t, e)

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+e.Addr()+"/stream_audio?user_id=bob", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("OggS-clip")); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, func() bool {
		entry, ok := e.Store().Get("bob")
		return ok && entry.Recommendation == recommend.OutlineOnly && entry.Label == "Train"
	})

	if err := e.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if e.State() != runner.StateStopped {
		t.Fatalf("expected stopped, got %s", e.State())
	}
	if n := e.Sessions().Count(); n != 0 {
		t.Fatalf("expected no open sessions, got %d", n)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected stream to be closed by shutdown")
	}
	entries, _ := os.ReadDir(e.Config().Transcoder.TempDir)
	if len(entries) != 0 {
		t.Fatalf("expected temp clips removed, found %d", len(entries))
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestEnginePollModeWritesGlobalSlot(t *testing.T) {
	e := newTestEngine(t, testConfig(t, ModePoll), 2)
	if e.Poller() == nil {
		t.Fatalf("poll mode must build a poller")
	}
	startEngine(t, e)
	waitFor(t, func() bool {
		entry, ok := e.Store().Get(state.GlobalSlot)
		return ok && entry.Source == frames.SourcePoll && entry.Recommendation == recommend.FullDetail
	})
	if err := e.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestEngineTopLabelsLoggedOnlyWhenPolling(t *testing.T) {
	newLogged := func(mode string) (*Engine, *syncWriter) {
		buf := &syncWriter{}
		e, err := NewEngine(EngineOptions{
			Config:     testConfig(t, mode),
			Providers:  testProviders(2),
			Transcoder: mock.NewTranscoder(mock.TranscoderConfig{Samples: []float32{0.5, -0.5}}),
			Logger:     slog.New(slog.NewTextHandler(buf, nil)),
		})
		if err != nil {
			t.Fatalf("new engine %s: %v", mode, err)
		}
		return e, buf
	}

	push, pushLog := newLogged(ModePush)
	srv := httptest.NewServer(push.Handler())
	defer srv.Close()
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/stream_audio?user_id=erin", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp.Body != nil {
		resp.Body.Close()
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("OggS-clip")); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, func() bool { _, ok := push.Store().Get("erin"); return ok })
	_ = conn.Close()
	if err := push.Stop(); err != nil {
		t.Fatalf("stop push: %v", err)
	}
	if strings.Contains(pushLog.String(), "audio_top_labels") {
		t.Fatalf("push clips must not log ranked labels")
	}

	poll, pollLog := newLogged(ModePoll)
	startEngine(t, poll)
	waitFor(t, func() bool { return strings.Contains(pollLog.String(), "audio_top_labels") })
	if err := poll.Stop(); err != nil {
		t.Fatalf("stop poll: %v", err)
	}
}

type syncWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncWriter) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestEngineEventLog(t *testing.T) {
	cfg := testConfig(t, ModePush)
	cfg.Observability.MetricsDir = t.TempDir()
	e := newTestEngine(t, cfg, 0)
	srv := httptest.NewServer(e.Handler())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "scene.jpg")
	_, _ = fw.Write([]byte("jpeg"))
	_ = mw.Close()
	resp, err := http.Post(srv.URL+"/recognize_image_scene?user_id=carol", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	srv.Close()

	if err := e.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(cfg.Observability.MetricsDir, "events.jsonl"))
	if err != nil {
		t.Fatalf("read event log: %v", err)
	}
	if !bytes.Contains(data, []byte(metrics.EventVisionCall)) {
		t.Fatalf("expected vision_call in event log, got %s", data)
	}
}

func TestNewEngineErrors(t *testing.T) {
	cfg := testConfig(t, ModePush)
	cfg.Vendors.AudioModel.Provider = "tfserving"
	if _, err := NewEngine(EngineOptions{Config: cfg, Providers: testProviders(0)}); err == nil {
		t.Fatalf("expected unregistered provider error")
	}

	cfg = testConfig(t, ModePush)
	cfg.ClassMapPath = filepath.Join(t.TempDir(), "missing.csv")
	if _, err := NewEngine(EngineOptions{Config: cfg, Providers: testProviders(0)}); err == nil {
		t.Fatalf("expected class map error")
	}

	cfg = testConfig(t, "batch")
	if _, err := NewEngine(EngineOptions{Config: cfg, Providers: testProviders(0)}); err == nil {
		t.Fatalf("expected validation error")
	}
}
