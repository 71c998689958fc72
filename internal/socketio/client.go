// Package socketio adapts a Socket.IO client connection to the small
// event interface the session needs: named handlers receiving raw JSON,
// fire-and-forget emits, and a Done channel for connection loss.
package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zishang520/engine.io/v2/types"
	sio "github.com/zishang520/socket.io-client-go/socket"
)

var ErrClosed = errors.New("socketio: connection closed")

// ConnectEvent is dispatched locally when the server acknowledges the
// namespace connection.
const ConnectEvent = "connection"

type Config struct {
	// Endpoint is host:port or a http(s)/ws(s) URL.
	Endpoint         string
	Namespace        string
	Path             string
	HandshakeTimeout time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	out.Endpoint = strings.TrimSpace(out.Endpoint)
	if out.Endpoint == "" {
		out.Endpoint = "localhost:8000"
	}
	if out.Namespace == "" {
		out.Namespace = "/"
	}
	if out.Path == "" {
		out.Path = "/socket.io"
	}
	if out.HandshakeTimeout <= 0 {
		out.HandshakeTimeout = 10 * time.Second
	}
	return out
}

// URL returns the server origin for the configured endpoint. WebSocket
// schemes map to their HTTP equivalents.
func (c Config) URL() (string, error) {
	c = c.withDefaults()
	raw := c.Endpoint
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", c.Endpoint, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "http"
	case "https", "wss":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("endpoint %q has no host", c.Endpoint)
	}
	u.Path = ""
	u.RawQuery = ""
	return u.String(), nil
}

// Handler receives the first argument of an inbound event, or nil when the
// event carried none.
type Handler func(payload json.RawMessage)

// Client is a Socket.IO connection over the WebSocket transport with
// reconnection disabled. Emit is safe for concurrent use and never blocks;
// emits made before the namespace is connected are held and sent in order
// once it is. Handlers run on the client library's goroutines.
type Client struct {
	cfg    Config
	origin string
	urlErr error
	logger *slog.Logger

	manager *sio.Manager
	sock    *sio.Socket

	mu       sync.Mutex
	handlers map[string][]Handler
	err      error

	ready      chan struct{}
	readyOnce  sync.Once
	failed     chan error
	done       chan struct{}
	finishOnce sync.Once
	closeOnce  sync.Once
	connected  atomic.Bool
	closing    atomic.Bool
}

func New(cfg Config, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:      cfg,
		logger:   logger,
		handlers: make(map[string][]Handler),
		ready:    make(chan struct{}),
		failed:   make(chan error, 1),
		done:     make(chan struct{}),
	}
	c.origin, c.urlErr = cfg.URL()

	opts := sio.DefaultOptions()
	opts.SetTransports(types.NewSet(sio.WebSocket))
	opts.SetPath(cfg.Path)
	opts.SetReconnection(false)
	opts.SetAutoConnect(false)
	opts.SetTimeout(cfg.HandshakeTimeout)

	c.manager = sio.NewManager(c.origin, opts)
	c.sock = c.manager.Socket(cfg.Namespace, opts)
	c.sock.On("connect", c.onConnect)
	c.sock.On("connect_error", c.onConnectError)
	c.sock.On("disconnect", c.onDisconnect)
	return c
}

// On registers h for event. Registration after Connect is allowed.
func (c *Client) On(event string, h Handler) {
	c.mu.Lock()
	first := len(c.handlers[event]) == 0
	c.handlers[event] = append(c.handlers[event], h)
	c.mu.Unlock()

	if first && event != ConnectEvent {
		c.sock.On(types.EventName(event), func(args ...any) {
			c.dispatch(event, args)
		})
	}
}

// Emit sends event with payload, or queues it until the namespace is
// connected.
func (c *Client) Emit(event string, payload any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	return c.sock.Emit(event, payload)
}

// Connect opens the connection and waits for the namespace to be
// acknowledged. Cancelling ctx after Connect returns closes the client.
func (c *Client) Connect(ctx context.Context) error {
	if c.urlErr != nil {
		return c.urlErr
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.sock.Connect()

	timer := time.NewTimer(c.cfg.HandshakeTimeout)
	defer timer.Stop()
	select {
	case <-c.ready:
	case err := <-c.failed:
		c.abort()
		return fmt.Errorf("connect %s: %w", c.origin, err)
	case <-timer.C:
		c.abort()
		return fmt.Errorf("connect %s: no namespace ack after %s", c.origin, c.cfg.HandshakeTimeout)
	case <-ctx.Done():
		c.abort()
		return ctx.Err()
	case <-c.done:
		return fmt.Errorf("connect %s: %w", c.origin, c.Err())
	}

	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()
	return nil
}

// Connected reports whether the server acknowledged the namespace.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// SID returns the namespace session id assigned by the server.
func (c *Client) SID() string {
	return c.sock.Id()
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the connection ended, or nil if it was closed
// locally or is still open.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close disconnects from the namespace without waiting for queued packets
// to drain. Safe to call more than once and from a Handler.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		c.sock.Disconnect()
		c.finish(nil)
	})
	return nil
}

func (c *Client) abort() {
	c.closing.Store(true)
	c.sock.Disconnect()
}

func (c *Client) finish(cause error) {
	c.finishOnce.Do(func() {
		c.mu.Lock()
		c.err = cause
		c.mu.Unlock()
		c.connected.Store(false)
		close(c.done)
	})
}

func (c *Client) onConnect(...any) {
	c.connected.Store(true)
	c.readyOnce.Do(func() { close(c.ready) })
	c.logger.Debug("namespace connected", "namespace", c.cfg.Namespace, "sid", c.sock.Id())

	ack, _ := json.Marshal(map[string]string{"sid": c.sock.Id()})
	c.mu.Lock()
	hs := c.handlers[ConnectEvent]
	c.mu.Unlock()
	for _, h := range hs {
		h(ack)
	}
}

func (c *Client) onConnectError(args ...any) {
	err := errors.New("connect error")
	if len(args) > 0 {
		if e, ok := args[0].(error); ok && e != nil {
			err = e
		}
	}
	select {
	case c.failed <- err:
	default:
	}
}

func (c *Client) onDisconnect(args ...any) {
	if c.closing.Load() {
		c.finish(nil)
		return
	}
	reason := "disconnected"
	if len(args) > 0 {
		if s, ok := args[0].(string); ok {
			reason = s
		}
	}
	var cause error = errors.New(reason)
	if len(args) > 1 {
		if e, ok := args[1].(error); ok && e != nil {
			cause = fmt.Errorf("%s: %w", reason, e)
		}
	}
	c.logger.Warn("socket disconnected", "reason", cause)
	c.finish(cause)
}

func (c *Client) dispatch(event string, args []any) {
	c.mu.Lock()
	hs := c.handlers[event]
	c.mu.Unlock()

	var payload json.RawMessage
	if len(args) > 0 {
		raw, err := json.Marshal(args[0])
		if err != nil {
			c.logger.Debug("drop event with unencodable payload", "event", event, "err", err)
			return
		}
		payload = raw
	}
	for _, h := range hs {
		h(payload)
	}
}
