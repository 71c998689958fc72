// Package session owns one connection to the simulator server together
// with everything whose lifetime is tied to it: the heartbeat ticker, the
// inbound channel subscriptions and the client view they feed.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/zsprackett/streamsim/internal/events"
	"github.com/zsprackett/streamsim/internal/heartbeat"
	"github.com/zsprackett/streamsim/internal/socketio"
	"github.com/zsprackett/streamsim/internal/telemetry"
	"github.com/zsprackett/streamsim/internal/view"
)

// Transport is the realtime connection a Session drives.
type Transport interface {
	events.Emitter
	On(event string, h socketio.Handler)
	Connect(ctx context.Context) error
	Done() <-chan struct{}
	Err() error
	Close() error
}

// BatchRecorder persists each received record list.
type BatchRecorder interface {
	SaveBatch(counter int, records []telemetry.Record) (string, error)
}

type Options struct {
	HeartbeatInterval time.Duration
	History           BatchRecorder
	Logger            *slog.Logger
}

type Session struct {
	transport Transport
	view      *view.ClientView
	beat      *heartbeat.Ticker
	history   BatchRecorder
	logger    *slog.Logger

	mu         sync.Mutex
	lastUpdate time.Time
	closeOnce  sync.Once
}

func New(t Transport, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		transport: t,
		view:      view.New(t, logger),
		beat:      heartbeat.New(t, opts.HeartbeatInterval, logger),
		history:   opts.History,
		logger:    logger,
	}
	t.On(events.Connection, s.onConnection)
	t.On(events.MyResponse, s.onMyResponse)
	t.On(events.RecordsUpdated, s.onRecords)
	return s
}

func (s *Session) View() *view.ClientView { return s.view }

// Start connects the transport and starts the heartbeat.
func (s *Session) Start(ctx context.Context) error {
	if err := s.transport.Connect(ctx); err != nil {
		return err
	}
	s.beat.Start()
	return nil
}

// Done is closed when the underlying connection ends.
func (s *Session) Done() <-chan struct{} { return s.transport.Done() }

// Err reports why the connection ended, nil after a local Close.
func (s *Session) Err() error { return s.transport.Err() }

// LastUpdate returns when the record list was last replaced, or the zero
// time if no update has arrived.
func (s *Session) LastUpdate() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdate
}

// Close stops the heartbeat and closes the connection. Safe to call more
// than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.beat.Stop()
		err = s.transport.Close()
	})
	return err
}

func (s *Session) onConnection(payload json.RawMessage) {
	s.logger.Info("connected", "payload", string(payload))
}

func (s *Session) onMyResponse(payload json.RawMessage) {
	s.logger.Info("my response", "payload", string(payload))
}

func (s *Session) onRecords(payload json.RawMessage) {
	records, err := telemetry.DecodeList(payload)
	if err != nil {
		s.logger.Debug("ignore records update", "err", err)
		return
	}
	s.mu.Lock()
	s.lastUpdate = time.Now()
	s.mu.Unlock()

	s.view.OnRecordsReceived(records)

	if s.history == nil {
		return
	}
	if _, err := s.history.SaveBatch(s.view.Counter(), records); err != nil {
		s.logger.Warn("history save failed", "err", err)
	}
}
