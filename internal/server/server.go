// Package server exposes the daemon control surface over HTTP and WebSocket
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/umbradim/umbra/internal/dimmer"
	"github.com/umbradim/umbra/internal/errors"
	"github.com/umbradim/umbra/internal/history"
	"github.com/umbradim/umbra/internal/trace"
)

// Engine is the slice of the dimmer manager the control surface needs.
type Engine interface {
	Snapshot() dimmer.Status
	SetActiveMonitors(ctx context.Context, ids []int) error
	Pause()
	Resume()
	SetStrength(v float64) error
	Feed() *history.Feed
}

// HistoryQuerier serves persisted samples. Optional; without it the
// history endpoint falls back to the in-memory feed.
type HistoryQuerier interface {
	Query(ctx context.Context, monitor int, since time.Time, limit int) ([]history.Sample, error)
}

// Message types.
type Message struct {
	Type string `json:"type"`
}

type StatusMessage struct {
	Type  string        `json:"type"`
	Batch history.Batch `json:"batch"`
}

type PongMessage struct {
	Type string `json:"type"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type monitorsRequest struct {
	Monitors []int `json:"monitors"`
}

type strengthRequest struct {
	Strength float64 `json:"strength"`
}

type monitorsResponse struct {
	Displays int   `json:"displays"`
	Active   []int `json:"active"`
}

// Server handles the daemon HTTP API and status websocket.
type Server struct {
	engine  Engine
	samples HistoryQuerier

	mu    sync.RWMutex
	conns map[*websocket.Conn]*rate.Limiter
}

// New creates a server around the engine. samples may be nil.
func New(engine Engine, samples HistoryQuerier) *Server {
	s := &Server{
		engine:  engine,
		samples: samples,
		conns:   make(map[*websocket.Conn]*rate.Limiter),
	}
	go s.broadcastStatus()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws/status", s.handleWebSocket)

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/monitors", s.handleMonitorsGet)
	mux.HandleFunc("PUT /api/monitors", s.handleMonitorsSet)
	mux.HandleFunc("POST /api/pause", s.handlePause)
	mux.HandleFunc("POST /api/resume", s.handleResume)
	mux.HandleFunc("PUT /api/strength", s.handleStrength)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	appErr := errors.FromError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus())
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": appErr.Message,
		"code":  string(appErr.Code),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.Snapshot())
}

func (s *Server) handleMonitorsGet(w http.ResponseWriter, r *http.Request) {
	st := s.engine.Snapshot()
	active := make([]int, 0, len(st.Sessions))
	for _, sess := range st.Sessions {
		active = append(active, sess.MonitorID)
	}
	writeJSON(w, monitorsResponse{Displays: st.Displays, Active: active})
}

func (s *Server) handleMonitorsSet(w http.ResponseWriter, r *http.Request) {
	var req monitorsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(err, errors.CodeInvalidArgument, "parse monitors body"))
		return
	}

	log := trace.Logger(r.Context())
	log.Info("active monitor set requested", "monitors", req.Monitors)

	if err := s.engine.SetActiveMonitors(r.Context(), req.Monitors); err != nil {
		writeError(w, err)
		return
	}
	s.handleMonitorsGet(w, r)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.engine.Pause()
	writeJSON(w, map[string]string{"status": "paused"})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.engine.Resume()
	writeJSON(w, map[string]string{"status": "resumed"})
}

func (s *Server) handleStrength(w http.ResponseWriter, r *http.Request) {
	var req strengthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(err, errors.CodeInvalidArgument, "parse strength body"))
		return
	}
	if err := s.engine.SetStrength(req.Strength); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]float64{"strength": req.Strength})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	monitor := 0
	if v := r.URL.Query().Get("monitor"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, errors.Wrapf(err, errors.CodeInvalidArgument, "parse monitor %q", v))
			return
		}
		monitor = n
	}

	window := DefaultHistorySince
	if v := r.URL.Query().Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			writeError(w, errors.Wrapf(err, errors.CodeInvalidArgument, "parse since %q", v))
			return
		}
		window = d
	}

	limit := DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > MaxHistoryLimit {
			writeError(w, errors.Newf(errors.CodeInvalidArgument, "limit %q must be in [1,%d]", v, MaxHistoryLimit))
			return
		}
		limit = n
	}

	if s.samples == nil {
		writeJSON(w, feedSamples(s.engine.Feed().Recent(window), monitor, limit))
		return
	}

	samples, err := s.samples.Query(r.Context(), monitor, time.Now().Add(-window), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if samples == nil {
		samples = []history.Sample{}
	}
	writeJSON(w, samples)
}

// feedSamples flattens live feed batches into sample rows, newest
// first, matching the store's query ordering.
func feedSamples(batches []history.Batch, monitor, limit int) []history.Sample {
	out := []history.Sample{}
	for i := len(batches) - 1; i >= 0 && len(out) < limit; i-- {
		b := batches[i]
		for _, rep := range b.Reports {
			if monitor > 0 && rep.MonitorID != monitor {
				continue
			}
			out = append(out, history.Sample{
				Time:       b.Time,
				MonitorID:  rep.MonitorID,
				Brightness: rep.Brightness,
				Opacity:    rep.Opacity,
				Dimmed:     rep.Dimmed,
			})
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		trace.Logger(r.Context()).Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	limiter := rate.NewLimiter(rate.Limit(RateLimitPerSecond), RateLimitBurst)

	s.mu.Lock()
	s.conns[conn] = limiter
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	ctx := r.Context()
	log := trace.Logger(ctx)
	log.Info("status client connected", "remote", r.RemoteAddr)

	// Prime the client with the latest known batch so it does not wait a
	// full status interval for the first paint.
	if batch, ok := s.engine.Feed().Latest(); ok {
		_ = wsjson.Write(ctx, conn, StatusMessage{Type: "status", Batch: batch})
	}

	for {
		var msg json.RawMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !limiter.Allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(ctx, conn, ErrorMessage{Type: "error", Message: "rate limit exceeded"})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		switch base.Type {
		case "ping":
			_ = wsjson.Write(ctx, conn, PongMessage{Type: "pong"})
		case "pause":
			s.engine.Pause()
		case "resume":
			s.engine.Resume()
		}
	}
}

// broadcastStatus fans each status batch out to every connected client.
// A client that cannot keep up within the write timeout is dropped.
func (s *Server) broadcastStatus() {
	for batch := range s.engine.Feed().Events() {
		msg := StatusMessage{Type: "status", Batch: batch}

		s.mu.RLock()
		conns := make([]*websocket.Conn, 0, len(s.conns))
		for conn := range s.conns {
			conns = append(conns, conn)
		}
		s.mu.RUnlock()

		for _, conn := range conns {
			go func(c *websocket.Conn) {
				ctx, cancel := context.WithTimeout(context.Background(), StatusWriteTimeout)
				defer cancel()
				if err := wsjson.Write(ctx, c, msg); err != nil {
					_ = c.Close(websocket.StatusPolicyViolation, "write timeout")
				}
			}(conn)
		}
	}
}
