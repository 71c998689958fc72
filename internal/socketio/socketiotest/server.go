// Package socketiotest provides an in-process Socket.IO server for tests.
package socketiotest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is an event received from a client.
type Event struct {
	Name    string
	Payload json.RawMessage
}

// Reply is sent back to the emitting client by a Handler. A zero Reply
// sends nothing.
type Reply struct {
	Event   string
	Payload any
}

type Handler func(payload json.RawMessage) Reply

type peer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (p *peer) write(frame string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

// Server speaks just enough Engine.IO v4 / Socket.IO v5 over WebSocket
// for client tests: handshake, default namespace, events, ping/pong.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]Handler
	received []Event
	peers    []*peer
	pongs    int
	ended    int
	stalled  bool

	release   chan struct{}
	closeOnce sync.Once
}

func NewServer() *Server {
	s := &Server{handlers: make(map[string]Handler), release: make(chan struct{})}
	mux := http.NewServeMux()
	mux.HandleFunc("/socket.io/", s.handleWS)
	s.Server = httptest.NewServer(mux)
	return s
}

// Close releases stalled connections and shuts the server down.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.release) })
	s.Server.Close()
}

// Stall makes every connection stop reading once its namespace is
// connected, so client writes eventually block on a full socket.
func (s *Server) Stall() {
	s.mu.Lock()
	s.stalled = true
	s.mu.Unlock()
}

// Endpoint returns the server address as host:port.
func (s *Server) Endpoint() string {
	return strings.TrimPrefix(s.URL, "http://")
}

// Handle registers fn for event.
func (s *Server) Handle(event string, fn Handler) {
	s.mu.Lock()
	s.handlers[event] = fn
	s.mu.Unlock()
}

// Received returns the events received so far, in arrival order.
func (s *Server) Received() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.received...)
}

// ReceivedNamed returns the payloads of received events named name.
func (s *Server) ReceivedNamed(name string) []json.RawMessage {
	var out []json.RawMessage
	for _, e := range s.Received() {
		if e.Name == name {
			out = append(out, e.Payload)
		}
	}
	return out
}

func (s *Server) Pongs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pongs
}

// Ended counts client connections that have gone away.
func (s *Server) Ended() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *Server) Peers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Emit sends event to every connected client.
func (s *Server) Emit(event string, payload any) error {
	data, err := json.Marshal([]any{event, payload})
	if err != nil {
		return err
	}
	return s.broadcast("42" + string(data))
}

// EmitRaw sends a raw Engine.IO frame to every connected client.
func (s *Server) EmitRaw(frame string) error {
	return s.broadcast(frame)
}

// Ping sends an Engine.IO ping to every connected client.
func (s *Server) Ping() error {
	return s.broadcast("2")
}

// Kick closes every client connection from the server side.
func (s *Server) Kick() {
	s.mu.Lock()
	peers := s.peers
	s.peers = nil
	s.mu.Unlock()
	for _, p := range peers {
		p.conn.Close()
	}
}

// WaitFor polls cond until it holds or timeout elapses.
func WaitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func (s *Server) broadcast(frame string) error {
	s.mu.Lock()
	peers := append([]*peer(nil), s.peers...)
	s.mu.Unlock()
	for _, p := range peers {
		if err := p.write(frame); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("EIO") != "4" || r.URL.Query().Get("transport") != "websocket" {
		http.Error(w, "unsupported transport", 400)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	p := &peer{conn: conn}
	sid := uuid.NewString()
	open := fmt.Sprintf(`0{"sid":%q,"upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`, sid)
	if err := p.write(open); err != nil {
		return
	}
	s.mu.Lock()
	s.peers = append(s.peers, p)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.ended++
		s.mu.Unlock()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frame := string(raw)
		switch {
		case frame == "3":
			s.mu.Lock()
			s.pongs++
			s.mu.Unlock()
		case frame == "40":
			p.write(fmt.Sprintf(`40{"sid":%q}`, uuid.NewString()))
			s.mu.Lock()
			stalled := s.stalled
			s.mu.Unlock()
			if stalled {
				<-s.release
				return
			}
		case frame == "41":
			return
		case strings.HasPrefix(frame, "42"):
			s.handleEvent(p, frame[2:])
		}
	}
}

func (s *Server) handleEvent(p *peer, body string) {
	var args []json.RawMessage
	if err := json.Unmarshal([]byte(body), &args); err != nil || len(args) == 0 {
		return
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return
	}
	var payload json.RawMessage
	if len(args) > 1 {
		payload = args[1]
	}

	s.mu.Lock()
	s.received = append(s.received, Event{Name: name, Payload: payload})
	h := s.handlers[name]
	s.mu.Unlock()

	if h == nil {
		return
	}
	reply := h(payload)
	if reply.Event == "" {
		return
	}
	data, err := json.Marshal([]any{reply.Event, reply.Payload})
	if err != nil {
		return
	}
	p.write("42" + string(data))
}
