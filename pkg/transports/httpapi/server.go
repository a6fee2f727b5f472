// Package httpapi exposes the recommendation store and capture endpoints
// over HTTP and WebSocket.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harunnryd/scenecue/pkg/capture"
	"github.com/harunnryd/scenecue/pkg/errorsx"
	"github.com/harunnryd/scenecue/pkg/frames"
	"github.com/harunnryd/scenecue/pkg/logging"
	"github.com/harunnryd/scenecue/pkg/observers"
	"github.com/harunnryd/scenecue/pkg/pipeline"
	"github.com/harunnryd/scenecue/pkg/redact"
	"github.com/harunnryd/scenecue/pkg/state"
	"github.com/harunnryd/scenecue/pkg/transports"
)

// Mode selects how requests without a user_id are treated.
type Mode string

const (
	// ModePush keys everything by the caller's user_id.
	ModePush Mode = "push"
	// ModePoll serves the microphone poller's global slot to anonymous callers.
	ModePoll Mode = "poll"
)

// Placeholder texts returned before any recommendation exists.
const (
	NoRecommendationUser   = "暂无"
	NoRecommendationGlobal = "暂无推荐"
)

// ImageHandler classifies one uploaded image.
type ImageHandler interface {
	HandleImage(ctx context.Context, f frames.ImageFrame, persist bool) (pipeline.ImageResult, error)
}

type Config struct {
	Addr              string        `mapstructure:"addr"`
	Mode              Mode          `mapstructure:"mode"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
	MaxUploadBytes    int64         `mapstructure:"max_upload_bytes"`
	MaxClipBytes      int64         `mapstructure:"max_clip_bytes"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8000"
	}
	if c.Mode == "" {
		c.Mode = ModePush
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 10 << 20
	}
	if c.MaxClipBytes <= 0 {
		c.MaxClipBytes = 8 << 20
	}
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = 5 * time.Second
	}
	return c
}

type Deps struct {
	Store    *state.Store
	Clips    capture.ClipHandler
	Images   ImageHandler
	Sessions *pipeline.SessionRegistry
	Stats    *observers.StatsObserver
	Logger   *slog.Logger
}

type Server struct {
	cfg      Config
	deps     Deps
	cors     corsPolicy
	upgrader websocket.Upgrader
	pts      *frames.PTSGen
	logger   *slog.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

var (
	_ transports.Transport       = (*Server)(nil)
	_ transports.HandlerProvider = (*Server)(nil)
)

func New(cfg Config, deps Deps) (*Server, error) {
	cfg = cfg.withDefaults()
	if cfg.Mode != ModePush && cfg.Mode != ModePoll {
		return nil, fmt.Errorf("httpapi: unknown mode %q", cfg.Mode)
	}
	if deps.Store == nil {
		return nil, errors.New("httpapi: store is required")
	}
	if deps.Sessions == nil {
		deps.Sessions = pipeline.NewSessionRegistry()
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		cors:   newCORSPolicy(cfg.AllowedOrigins),
		pts:    frames.NewPTSGen(),
		logger: logging.NewComponentLogger(deps.Logger, "httpapi"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.cors.checkOrigin,
	}
	return s, nil
}

func (s *Server) Name() string { return "httpapi" }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /get_latest_recommend", s.handleLatest)
	mux.HandleFunc("POST /recognize_image_scene", s.handleImage)
	mux.HandleFunc("GET /stream_audio", s.handleStream)
	mux.HandleFunc("GET /ws_echo", s.handleEcho)
	mux.HandleFunc("GET /stats", s.handleStats)
	return recoverer(s.logger, accessLog(s.logger, s.cors.wrap(mux)))
}

// Start binds the listener and serves in the background. Bind errors are
// returned; later serve errors are logged. Requests inherit ctx values but
// not its cancellation; Shutdown drains them.
func (s *Server) Start(ctx context.Context) error {
	base := context.WithoutCancel(ctx)
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http_server_error", slog.String("error", err.Error()))
		}
	}()
	s.logger.Info("http_listening", slog.String("addr", ln.Addr().String()), slog.String("mode", string(s.cfg.Mode)))
	return nil
}

// Addr reports the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// Shutdown stops accepting streams, closes the open ones and then stops
// the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.deps.Sessions.SetDraining(true)
	s.deps.Sessions.CloseAll()
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

type healthResponse struct {
	OK        bool    `json:"ok"`
	UserID    *string `json:"user_id"`
	Recommend *string `json:"recommend"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{OK: true}
	userID, hasUser := userIDFrom(r)
	key := userID
	lookup := hasUser
	if hasUser {
		resp.UserID = &userID
	} else if s.cfg.Mode == ModePoll {
		key, lookup = state.GlobalSlot, true
	}
	if lookup {
		if entry, ok := s.deps.Store.Get(key); ok {
			text := entry.Recommendation.Text()
			resp.Recommend = &text
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type latestResponse struct {
	Recommend string `json:"recommend"`
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	userID, hasUser := userIDFrom(r)
	if !hasUser {
		if s.cfg.Mode != ModePoll {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "user_id is required"})
			return
		}
		text := NoRecommendationGlobal
		if entry, ok := s.deps.Store.Get(state.GlobalSlot); ok {
			text = entry.Recommendation.Text()
		}
		writeJSON(w, http.StatusOK, latestResponse{Recommend: text})
		return
	}
	text := NoRecommendationUser
	if entry, ok := s.deps.Store.Get(userID); ok {
		text = entry.Recommendation.Text()
	}
	writeJSON(w, http.StatusOK, latestResponse{Recommend: text})
}

type imageResponse struct {
	SceneKeywords []string `json:"scene_keywords"`
	Recommend     string   `json:"recommend"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Images == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "image recognition is not configured"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "upload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "multipart form with a file field is required"})
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "file is required"})
		return
	}
	data, err := io.ReadAll(file)
	_ = file.Close()
	if err != nil || len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "file is empty or unreadable"})
		return
	}

	userID, hasUser := userIDFrom(r)
	persist := hasUser
	if !hasUser {
		userID = state.GlobalSlot
		persist = s.cfg.Mode == ModePoll
	}
	meta := map[string]string{
		frames.MetaSource:   frames.SourceUpload,
		frames.MetaFilename: header.Filename,
	}
	f := frames.NewImageFrame(userID, s.pts.Next(userID), data, header.Header.Get("Content-Type"), meta)
	res, err := s.deps.Images.HandleImage(r.Context(), f, persist)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:  redact.Error(err),
			Reason: string(errorsx.Reason(err)),
		})
		return
	}
	keywords := res.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	writeJSON(w, http.StatusOK, imageResponse{SceneKeywords: keywords, Recommend: res.Recommendation.Text()})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.deps.Clips == nil {
		http.Error(w, "audio streaming is not configured", http.StatusServiceUnavailable)
		return
	}
	if s.deps.Sessions.Draining() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	userID, ok := userIDFrom(r)
	if !ok {
		userID = state.AnonymousUser
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws_upgrade_failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.cfg.MaxClipBytes)

	sess, err := s.deps.Sessions.Register(userID, r.RemoteAddr, func() { closeConn(conn, "server shutting down") })
	if err != nil {
		closeConn(conn, "server shutting down")
		return
	}
	defer s.deps.Sessions.Remove(sess.ID)

	s.logger.Info("stream_opened", slog.String("session_id", sess.ID), slog.String("user_id", userID))
	stream := capture.NewStream(userID, s.deps.Clips, s.logger)
	stream.OnClip = func(pipeline.Outcome) { sess.AddClip() }
	stats, err := stream.Serve(r.Context(), conn)
	if err != nil {
		s.logger.Warn("stream_ended_with_error",
			slog.String("session_id", sess.ID),
			slog.String("reason_code", string(errorsx.Reason(err))),
			slog.String("error", err.Error()))
	}
	s.logger.Info("stream_finished",
		slog.String("session_id", sess.ID),
		slog.Int("clips", stats.Clips),
		slog.Int("stored", stats.Stored),
		slog.Int("discarded", stats.Discarded),
		slog.Int("ignored", stats.Ignored))
}

// handleEcho is a connectivity probe for browser clients.
func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.cfg.MaxClipBytes)
	for {
		mt, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		switch mt {
		case websocket.TextMessage:
			err = conn.WriteMessage(websocket.TextMessage, payload)
		case websocket.BinaryMessage:
			err = conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("got %d bytes", len(payload))))
		}
		if err != nil {
			return
		}
	}
}

type statsResponse struct {
	observers.Snapshot
	Sessions int64 `json:"sessions"`
	Users    int   `json:"users"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{
		Sessions: s.deps.Sessions.Count(),
		Users:    s.deps.Store.Len(),
	}
	if s.deps.Stats != nil {
		resp.Snapshot = s.deps.Stats.Snapshot()
	}
	writeJSON(w, http.StatusOK, resp)
}

// userIDFrom reads user_id from the query or a parsed form. Blank is absent.
func userIDFrom(r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.FormValue("user_id"))
	return id, id != ""
}

func closeConn(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = conn.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
