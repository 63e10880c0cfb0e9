package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/carlink/internal/config"
	"github.com/muurk/carlink/internal/logging"
	"github.com/muurk/carlink/internal/session"
)

const (
	// writeWait bounds a single frame write to a client.
	writeWait = 10 * time.Second
	// clientBuffer is the per-client event queue; a client that falls
	// this far behind is dropped.
	clientBuffer = 64

	mdnsService  = "_carlink._tcp"
	mdnsInstance = "CarLink Bridge"
)

// Controls is the slice of the session the HTTP API may drive.
type Controls interface {
	SendKey(name string) error
}

// Envelope wraps an event for the wire.
type Envelope struct {
	Time  time.Time     `json:"time"`
	Event session.Event `json:"event"`
}

// Server streams session events to WebSocket clients and accepts
// control requests.
type Server struct {
	cfg      config.MonitorConfig
	controls Controls
	upgrader websocket.Upgrader

	mu       sync.Mutex
	clients  map[*client]struct{}
	snapshot map[session.EventKind]Envelope

	httpSrv *http.Server
	mdns    *zeroconf.Server
}

type client struct {
	conn *websocket.Conn
	send chan Envelope
}

// New returns a Server for the given monitor configuration. controls
// may be nil, disabling the control API.
func New(cfg config.MonitorConfig, controls Controls) *Server {
	return &Server{
		cfg:      cfg,
		controls: controls,
		upgrader: websocket.Upgrader{
			// Frontends run on other origins (file://, dev servers).
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients:  make(map[*client]struct{}),
		snapshot: make(map[session.EventKind]Envelope),
	}
}

// Handler returns the server's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/key", s.handleKey)
	return mux
}

// Start begins serving on the configured address and, if enabled,
// advertises the service over mDNS. Non-blocking.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listening on %s: %w", s.cfg.Addr, err)
	}

	s.httpSrv = &http.Server{Handler: s.Handler()}
	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Monitor server stopped", zap.Error(err))
		}
	}()
	logging.Info("Monitor server listening", zap.String("addr", listener.Addr().String()))

	if s.cfg.MDNS {
		if err := s.advertise(listener.Addr()); err != nil {
			// The server still works; frontends just need the address.
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		}
	}
	return nil
}

func (s *Server) advertise(addr net.Addr) error {
	_, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return err
	}

	mdns, err := zeroconf.Register(mdnsInstance, mdnsService, "local.", port, nil, nil)
	if err != nil {
		return err
	}
	s.mdns = mdns
	logging.Info("Advertising over mDNS",
		zap.String("instance", mdnsInstance),
		zap.String("service", mdnsService),
		zap.Int("port", port),
	)
	return nil
}

// Publish broadcasts an event to all connected clients and folds it
// into the status snapshot. Wire this into the session's OnEvent and
// the supervisor's OnStatus.
func (s *Server) Publish(ev session.Event) {
	env := Envelope{Time: time.Now(), Event: ev}

	s.mu.Lock()
	s.snapshot[ev.Kind] = env
	for c := range s.clients {
		select {
		case c.send <- env:
		default:
			// Slow client; drop it rather than block the session.
			delete(s.clients, c)
			close(c.send)
		}
	}
	s.mu.Unlock()
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan Envelope, clientBuffer)}

	// New subscribers start from the current state.
	s.mu.Lock()
	for _, env := range s.snapshot {
		c.send <- env
	}
	s.clients[c] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()

	logging.Info("Monitor client connected",
		zap.String("remote_addr", conn.RemoteAddr().String()),
		zap.Int("clients", count),
	)

	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) writePump(c *client) {
	for env := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(env); err != nil {
			s.drop(c)
			return
		}
	}
	// Channel closed by drop or Publish; finish the handshake.
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
	_ = c.conn.Close()
}

// readPump discards client frames; it exists to notice disconnects and
// answer pings.
func (s *Server) readPump(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			s.drop(c)
			return
		}
	}
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	_, present := s.clients[c]
	if present {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
	_ = c.conn.Close()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	events := make([]Envelope, 0, len(s.snapshot))
	for _, env := range s.snapshot {
		events = append(events, env)
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"events": events})
}

func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.controls == nil {
		http.Error(w, "control API disabled", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "expected {\"name\": \"...\"}", http.StatusBadRequest)
		return
	}

	if err := s.controls.SendKey(req.Name); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Shutdown stops advertising, disconnects clients, and closes the
// listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.mdns != nil {
		s.mdns.Shutdown()
		s.mdns = nil
	}

	s.mu.Lock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()

	if s.httpSrv != nil {
		return s.httpSrv.Shutdown(ctx)
	}
	return nil
}
