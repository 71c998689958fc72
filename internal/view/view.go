// Package view holds the client's presentational state: a signed click
// counter and the latest list of telemetry records pushed by the server.
package view

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/zsprackett/streamsim/internal/events"
	"github.com/zsprackett/streamsim/internal/telemetry"
)

// ChangeKind identifies which part of the state a Change touched.
type ChangeKind int

const (
	CounterChanged ChangeKind = iota
	RecordsReplaced
)

// Change is passed to observers after a state update has been committed.
type Change struct {
	Kind    ChangeKind
	Counter int
	Records int
}

// ClientView owns the counter and the record list. Every mutation is
// committed before its outbound emission is handed to the emitter, and
// both happen under the same lock so emissions leave in mutation order.
type ClientView struct {
	mu        sync.Mutex
	emitter   events.Emitter
	counter   int
	records   []telemetry.Record
	observers []func(Change)
	logger    *slog.Logger
}

func New(emitter events.Emitter, logger *slog.Logger) *ClientView {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClientView{emitter: emitter, logger: logger}
}

// OnChange registers fn to run after each committed update. Observers run
// outside the view's lock and must not block.
func (v *ClientView) OnChange(fn func(Change)) {
	v.mu.Lock()
	v.observers = append(v.observers, fn)
	v.mu.Unlock()
}

// StartStream asks the server for records using the current counter.
// State is not modified.
func (v *ClientView) StartStream() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.requestRecords(v.counter)
}

func (v *ClientView) Increment() { v.step(1) }

func (v *ClientView) Decrement() { v.step(-1) }

func (v *ClientView) step(delta int) {
	v.mu.Lock()
	v.counter += delta
	n := v.counter
	v.requestRecords(n)
	observers := v.observers
	v.mu.Unlock()

	notify(observers, Change{Kind: CounterChanged, Counter: n})
}

// OnRecordsReceived replaces the record list with records. The slice is
// copied; no validation is performed.
func (v *ClientView) OnRecordsReceived(records []telemetry.Record) {
	replaced := make([]telemetry.Record, len(records))
	copy(replaced, records)

	v.mu.Lock()
	v.records = replaced
	change := Change{Kind: RecordsReplaced, Counter: v.counter, Records: len(replaced)}
	observers := v.observers
	v.mu.Unlock()

	notify(observers, change)
}

func (v *ClientView) Counter() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.counter
}

// Records returns a copy of the current record list.
func (v *ClientView) Records() []telemetry.Record {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]telemetry.Record, len(v.records))
	copy(out, v.records)
	return out
}

// Render returns a snapshot of the counter and the records table.
func (v *ClientView) Render() Table {
	v.mu.Lock()
	defer v.mu.Unlock()
	t := Table{
		Counter: v.counter,
		Header:  append([]string(nil), telemetry.Columns...),
		Rows:    make([][]string, 0, len(v.records)),
	}
	for _, r := range v.records {
		t.Rows = append(t.Rows, r.Row())
	}
	return t
}

// requestRecords must be called with v.mu held.
func (v *ClientView) requestRecords(n int) {
	if v.emitter == nil {
		return
	}
	if err := v.emitter.Emit(events.RequestRecords, n); err != nil {
		v.logger.Warn("request records emit failed", "counter", n, "err", err)
	}
}

func notify(observers []func(Change), c Change) {
	for _, fn := range observers {
		fn(c)
	}
}

// Table is a rendered view of ClientView state.
type Table struct {
	Counter int
	Header  []string
	Rows    [][]string
}

// String renders the table as pipe-separated lines: the counter, the
// header, then one line per row.
func (t Table) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d\n", t.Counter)
	b.WriteString(strings.Join(t.Header, " | "))
	for _, row := range t.Rows {
		b.WriteString("\n")
		b.WriteString(strings.Join(row, " | "))
	}
	return b.String()
}
