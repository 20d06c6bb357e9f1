// Package api serves a running simulation over HTTP: a JSON status
// endpoint, the recorded run from the run database, and a websocket stream of
// frames for live viewers. The server is an output sink; frames are
// broadcast to connected viewers and dropped for viewers that fall behind.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/crowd-sim/internal/output"
	"github.com/talgya/crowd-sim/internal/persistence"
)

const (
	maxStreamConns = 8
	clientBuffer   = 32
	writeTimeout   = 5 * time.Second
)

// Message is the websocket envelope.
type Message struct {
	Type string `json:"type"` // "header", "frame" or "final"
	Data any    `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server streams simulation output to HTTP clients.
type Server struct {
	Addr string
	DB   *persistence.DB // optional, enables /api/v1/run

	mu        sync.Mutex
	header    *output.Header
	headerMsg []byte
	finalMsg  []byte
	tick      uint64
	simTime   float64
	people    int
	completed int
	clients   map[*client]struct{}

	streamConns int32
	dropped     atomic.Uint64

	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// NewServer creates a server listening on addr once started.
func NewServer(addr string, db *persistence.DB) *Server {
	origins := allowedOrigins()
	return &Server{
		Addr:    addr,
		DB:      db,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins[origin]
			},
		},
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	connectLimiter := NewRateLimiter(30, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/run", s.handleRun)
	mux.HandleFunc("/api/v1/stream", RateLimitMiddleware(connectLimiter, s.handleStream))
	return corsMiddleware(mux)
}

// Start begins serving in a goroutine.
func (s *Server) Start() {
	s.httpServer = &http.Server{Addr: s.Addr, Handler: s.Handler()}
	slog.Info("HTTP API starting", "addr", s.Addr, "recording", s.DB != nil)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// allowedOrigins reads CROWDSIM_CORS_ORIGINS, a comma-separated origin list.
// Localhost dev servers are always allowed.
func allowedOrigins() map[string]bool {
	allowed := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CROWDSIM_CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowed[origin] = true
			}
		}
	}
	return allowed
}

func corsMiddleware(next http.Handler) http.Handler {
	allowed := allowedOrigins()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status := map[string]any{
		"name":      "crowdsim",
		"tick":      s.tick,
		"time":      s.simTime,
		"people":    s.people,
		"completed": s.completed,
		"viewers":   len(s.clients),
		"dropped":   s.dropped.Load(),
		"finished":  s.finalMsg != nil,
	}
	if s.header != nil {
		status["run_id"] = s.header.RunID
		status["scene"] = s.header.SceneFile
		status["mode"] = s.header.Mode
		status["width"] = s.header.Width
		status["height"] = s.header.Height
		status["scale"] = s.header.Scale
	}
	s.mu.Unlock()

	writeJSON(w, status)
}

// handleRun returns the run being recorded with its statistics so far.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "run database disabled", http.StatusNotFound)
		return
	}
	run, err := s.DB.CurrentRun()
	if err != nil {
		http.Error(w, "no run recorded", http.StatusNotFound)
		return
	}
	statistics, err := s.DB.Statistics(run.ID)
	if err != nil {
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	frames, _ := s.DB.FrameCount(run.ID)
	writeJSON(w, map[string]any{
		"run":        run,
		"statistics": statistics,
		"frames":     frames,
	})
}

// handleStream upgrades to a websocket and streams header, frames and the
// final statistics as JSON messages.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	current := atomic.AddInt32(&s.streamConns, 1)
	if current > maxStreamConns {
		atomic.AddInt32(&s.streamConns, -1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		atomic.AddInt32(&s.streamConns, -1)
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	if s.headerMsg != nil {
		c.send <- s.headerMsg
	}
	if s.finalMsg != nil {
		c.send <- s.finalMsg
	}
	s.mu.Unlock()

	slog.Info("viewer connected", "remote", r.RemoteAddr)

	go s.writeLoop(c)
	s.readLoop(c)
}

func (s *Server) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.remove(c)
			for range c.send {
			}
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"),
		time.Now().Add(time.Second))
}

// readLoop discards incoming messages until the viewer goes away.
func (s *Server) readLoop(c *client) {
	defer atomic.AddInt32(&s.streamConns, -1)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			s.remove(c)
			slog.Info("viewer disconnected")
			return
		}
	}
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

// broadcast queues msg for every viewer. Viewers with a full queue miss it.
func (s *Server) broadcast(msg []byte) {
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			s.dropped.Add(1)
		}
	}
}

func encode(kind string, data any) ([]byte, error) {
	return json.Marshal(Message{Type: kind, Data: data})
}

func (s *Server) Init(h output.Header) error {
	msg, err := encode("header", h)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header = &h
	s.headerMsg = msg
	s.broadcast(msg)
	return nil
}

func (s *Server) WriteFrame(f *output.Frame) error {
	s.mu.Lock()
	s.tick = f.Tick
	s.simTime = f.Time
	s.people = len(f.People)
	s.completed += f.Completed
	viewers := len(s.clients)
	s.mu.Unlock()

	if viewers == 0 {
		return nil
	}
	msg, err := encode("frame", f)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcast(msg)
	return nil
}

func (s *Server) WriteStatistics(f output.Final) error {
	msg, err := encode("final", f)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalMsg = msg
	s.broadcast(msg)
	return nil
}

// Close disconnects every viewer and stops the HTTP server.
func (s *Server) Close() error {
	s.mu.Lock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
