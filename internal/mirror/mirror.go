// Package mirror serves the client's current state over local HTTP: a JSON
// snapshot and a server-sent event stream of state changes.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/zsprackett/streamsim/internal/events"
	"github.com/zsprackett/streamsim/internal/telemetry"
	"github.com/zsprackett/streamsim/internal/view"
)

type Config struct {
	Enabled bool
	Port    int
	Host    string
}

// Source is the state the mirror exposes.
type Source interface {
	Counter() int
	Records() []telemetry.Record
}

type Server struct {
	src     Source
	cfg     Config
	logger  *slog.Logger
	mu      sync.Mutex
	clients map[chan events.Event]struct{}
	httpSrv *http.Server
	addr    string
}

func New(src Source, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		src:     src,
		cfg:     cfg,
		logger:  logger,
		clients: make(map[chan events.Event]struct{}),
	}
}

// Broadcast implements events.Broadcaster.
func (s *Server) Broadcast(e events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.clients {
		select {
		case ch <- e:
		default:
		}
	}
}

// Observe forwards a view change to connected clients. It has the shape of
// a view.ClientView observer.
func (s *Server) Observe(c view.Change) {
	counter := c.Counter
	switch c.Kind {
	case view.CounterChanged:
		s.Broadcast(events.Event{Type: events.TypeCounterChanged, Counter: &counter})
	case view.RecordsReplaced:
		n := c.Records
		s.Broadcast(events.Event{Type: events.TypeRecordsUpdated, Counter: &counter, Records: &n})
	}
}

func (s *Server) addClient(ch chan events.Event) {
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) removeClient(ch chan events.Event) {
	s.mu.Lock()
	delete(s.clients, ch)
	s.mu.Unlock()
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /events", s.handleSSE)
	return mux
}

// Start listens in the background. It is a no-op when the mirror is
// disabled.
func (s *Server) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.httpSrv = &http.Server{Addr: addr, Handler: s.Handler()}
	srv := s.httpSrv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("mirror server stopped", "err", err)
		}
	}()
	s.logger.Info("mirror listening", "addr", s.addr)
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

type stateResponse struct {
	Counter int                `json:"counter"`
	Records []telemetry.Record `json:"records"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stateResponse{Counter: s.src.Counter(), Records: s.src.Records()})
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", 500)
		return
	}

	ch := make(chan events.Event, 16)
	s.addClient(ch)
	defer s.removeClient(ch)

	counter := s.src.Counter()
	size := len(s.src.Records())
	writeSSE(w, flusher, events.Event{Type: events.TypeSnapshot, Counter: &counter, Records: &size})

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-ch:
			writeSSE(w, flusher, e)
		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, f http.Flusher, e events.Event) {
	data, _ := json.Marshal(e)
	fmt.Fprintf(w, "data: %s\n\n", data)
	f.Flush()
}
