package session_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/zsprackett/streamsim/internal/events"
	"github.com/zsprackett/streamsim/internal/session"
	"github.com/zsprackett/streamsim/internal/socketio"
	"github.com/zsprackett/streamsim/internal/socketio/socketiotest"
	"github.com/zsprackett/streamsim/internal/telemetry"
)

type memHistory struct {
	mu      sync.Mutex
	batches [][]telemetry.Record
	counter []int
}

func (m *memHistory) SaveBatch(counter int, records []telemetry.Record) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, records)
	m.counter = append(m.counter, counter)
	return "batch", nil
}

func (m *memHistory) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

func startSession(t *testing.T, srv *socketiotest.Server, opts session.Options) *session.Session {
	t.Helper()
	client := socketio.New(socketio.Config{Endpoint: srv.Endpoint()}, nil)
	s := session.New(client, opts)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// simulator answers each request with counter+1 records.
func simulator(srv *socketiotest.Server) {
	srv.Handle(events.RequestRecords, func(p json.RawMessage) socketiotest.Reply {
		var n int
		json.Unmarshal(p, &n)
		if n < 0 {
			n = 0
		}
		recs := make([]map[string]any, 0, n)
		for i := 0; i < n; i++ {
			recs = append(recs, map[string]any{"vts": i, "vtype": "car", "vlon": float64(i), "vlat": 2.5})
		}
		return socketiotest.Reply{Event: events.RecordsUpdated, Payload: recs}
	})
}

func TestSession_IncrementRequestsRecordsAndRendersReply(t *testing.T) {
	srv := socketiotest.NewServer()
	defer srv.Close()
	simulator(srv)

	hist := &memHistory{}
	s := startSession(t, srv, session.Options{HeartbeatInterval: time.Hour, History: hist})

	v := s.View()
	steps := []func(){v.Increment, v.Increment, v.Decrement}
	for i, step := range steps {
		step()
		ok := socketiotest.WaitFor(2*time.Second, func() bool { return hist.len() == i+1 })
		if !ok {
			t.Fatalf("step %d: expected %d record batches, got %d", i, i+1, hist.len())
		}
	}
	got := srv.ReceivedNamed(events.RequestRecords)
	for i, want := range []string{"1", "2", "1"} {
		if string(got[i]) != want {
			t.Errorf("request %d: got %s want %s", i, got[i], want)
		}
	}
	table := v.Render()
	if table.Counter != 1 {
		t.Errorf("counter: got %d want 1", table.Counter)
	}
	if len(table.Rows) != 1 || table.Rows[0][0] != "0" || table.Rows[0][2] != "0.0" {
		t.Errorf("rows: got %v", table.Rows)
	}
	if s.LastUpdate().IsZero() {
		t.Error("expected LastUpdate to be set")
	}
}

func TestSession_HeartbeatEmitsIncrementingInts(t *testing.T) {
	srv := socketiotest.NewServer()
	defer srv.Close()
	startSession(t, srv, session.Options{HeartbeatInterval: 10 * time.Millisecond})

	ok := socketiotest.WaitFor(2*time.Second, func() bool {
		return len(srv.ReceivedNamed(events.Heartbeat)) >= 3
	})
	if !ok {
		t.Fatal("heartbeats not received")
	}
	beats := srv.ReceivedNamed(events.Heartbeat)
	for i, want := range []string{"0", "1", "2"} {
		if string(beats[i]) != want {
			t.Errorf("beat %d: got %s want %s", i, beats[i], want)
		}
	}
}

func TestSession_CloseStopsHeartbeat(t *testing.T) {
	srv := socketiotest.NewServer()
	defer srv.Close()
	s := startSession(t, srv, session.Options{HeartbeatInterval: 5 * time.Millisecond})

	socketiotest.WaitFor(2*time.Second, func() bool {
		return len(srv.ReceivedNamed(events.Heartbeat)) >= 1
	})
	s.Close()
	s.Close()

	before := len(srv.ReceivedNamed(events.Heartbeat))
	time.Sleep(30 * time.Millisecond)
	if after := len(srv.ReceivedNamed(events.Heartbeat)); after != before {
		t.Errorf("heartbeats after close: %d -> %d", before, after)
	}
	select {
	case <-s.Done():
	default:
		t.Error("expected Done after Close")
	}
}

func TestSession_MalformedPayloadLeavesTable(t *testing.T) {
	srv := socketiotest.NewServer()
	defer srv.Close()
	s := startSession(t, srv, session.Options{HeartbeatInterval: time.Hour})
	socketiotest.WaitFor(2*time.Second, func() bool { return srv.Peers() == 1 })

	srv.Emit(events.RecordsUpdated, []map[string]any{{"vts": "t1", "vtype": "A", "vlon": 1, "vlat": 2}})
	socketiotest.WaitFor(2*time.Second, func() bool { return len(s.View().Records()) == 1 })

	stamped := s.LastUpdate()

	srv.Emit(events.RecordsUpdated, map[string]any{"10": "not a list"})
	srv.Emit(events.RecordsUpdated, nil)
	srv.EmitRaw(`42["` + events.RecordsUpdated + `"]`)
	srv.Emit(events.MyResponse, map[string]any{"data1": 3})
	time.Sleep(50 * time.Millisecond)

	if got := s.View().Records(); len(got) != 1 || got[0].String() != "t1 | A | 1.0 | 2.0" {
		t.Errorf("records: got %v", got)
	}
	if got := s.LastUpdate(); !got.Equal(stamped) {
		t.Errorf("rejected payloads moved LastUpdate from %v to %v", stamped, got)
	}
}

func TestSession_EmptyUpdateClears(t *testing.T) {
	srv := socketiotest.NewServer()
	defer srv.Close()
	s := startSession(t, srv, session.Options{HeartbeatInterval: time.Hour})
	socketiotest.WaitFor(2*time.Second, func() bool { return srv.Peers() == 1 })

	srv.Emit(events.RecordsUpdated, []map[string]any{{"vts": "t1"}, {"vts": "t2"}})
	socketiotest.WaitFor(2*time.Second, func() bool { return len(s.View().Records()) == 2 })
	srv.Emit(events.RecordsUpdated, []any{})

	if !socketiotest.WaitFor(2*time.Second, func() bool { return len(s.View().Records()) == 0 }) {
		t.Errorf("expected cleared table, got %v", s.View().Records())
	}
}

func TestSession_StartFailsWithoutServer(t *testing.T) {
	srv := socketiotest.NewServer()
	endpoint := srv.Endpoint()
	srv.Close()

	client := socketio.New(socketio.Config{Endpoint: endpoint, HandshakeTimeout: time.Second}, nil)
	s := session.New(client, session.Options{})
	if err := s.Start(context.Background()); err == nil {
		s.Close()
		t.Fatal("expected start error")
	}
}
