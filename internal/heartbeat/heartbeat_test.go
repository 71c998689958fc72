package heartbeat_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zsprackett/streamsim/internal/events"
	"github.com/zsprackett/streamsim/internal/heartbeat"
)

type recorder struct {
	mu       sync.Mutex
	names    []string
	payloads []int
	err      error
}

func (r *recorder) Emit(event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, event)
	r.payloads = append(r.payloads, payload.(int))
	return r.err
}

func (r *recorder) snapshot() ([]string, []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...), append([]int(nil), r.payloads...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestTicker_EmitsIncrementingCounter(t *testing.T) {
	rec := &recorder{}
	tk := heartbeat.New(rec, 10*time.Millisecond, nil)
	tk.Start()
	waitFor(t, func() bool { return tk.Beats() >= 3 })
	tk.Stop()

	names, payloads := rec.snapshot()
	if len(payloads) < 3 {
		t.Fatalf("expected at least 3 beats, got %d", len(payloads))
	}
	for i, p := range payloads {
		if p != i {
			t.Errorf("beat %d: payload %d want %d", i, p, i)
		}
		if names[i] != events.Heartbeat {
			t.Errorf("beat %d: event %q want %q", i, names[i], events.Heartbeat)
		}
	}
}

func TestTicker_StopHaltsEmission(t *testing.T) {
	rec := &recorder{}
	tk := heartbeat.New(rec, 5*time.Millisecond, nil)
	tk.Start()
	waitFor(t, func() bool { return tk.Beats() >= 1 })
	tk.Stop()

	_, before := rec.snapshot()
	time.Sleep(30 * time.Millisecond)
	_, after := rec.snapshot()
	if len(after) != len(before) {
		t.Errorf("emissions after stop: before %d after %d", len(before), len(after))
	}
}

func TestTicker_StopIsIdempotent(t *testing.T) {
	tk := heartbeat.New(&recorder{}, time.Hour, nil)
	tk.Start()
	tk.Stop()
	tk.Stop()
}

func TestTicker_KeepsCountingThroughEmitErrors(t *testing.T) {
	rec := &recorder{err: errors.New("not connected")}
	tk := heartbeat.New(rec, 5*time.Millisecond, nil)
	tk.Start()
	waitFor(t, func() bool { return tk.Beats() >= 2 })
	tk.Stop()

	_, payloads := rec.snapshot()
	if payloads[0] != 0 || payloads[1] != 1 {
		t.Errorf("payloads: got %v", payloads)
	}
}

func TestNew_DefaultInterval(t *testing.T) {
	if heartbeat.DefaultInterval != 2*time.Second {
		t.Errorf("default interval: got %v", heartbeat.DefaultInterval)
	}
}
