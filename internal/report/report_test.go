package report_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/zsprackett/streamsim/internal/history"
	"github.com/zsprackett/streamsim/internal/report"
	"github.com/zsprackett/streamsim/internal/telemetry"
	"github.com/zsprackett/streamsim/internal/view"
)

func TestRecords(t *testing.T) {
	var buf bytes.Buffer
	report.Records(&buf, view.Table{
		Counter: 2,
		Header:  telemetry.Columns,
		Rows: [][]string{
			telemetry.New("t1", "A", 1.0, 2.0).Row(),
			telemetry.New("t2", "B", 3.5, 4.25).Row(),
		},
	})

	out := buf.String()
	if !strings.HasPrefix(out, "counter: 2  records: 2\n") {
		t.Errorf("missing counter line:\n%s", out)
	}
	for _, want := range []string{"TIMESTAMP", "LATITUDE", "t1", "1.0", "t2", "4.25"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "t1") > strings.Index(out, "t2") {
		t.Error("rows out of order")
	}
}

func TestRecordsEmpty(t *testing.T) {
	var buf bytes.Buffer
	report.Records(&buf, view.Table{Header: telemetry.Columns})
	if !strings.Contains(buf.String(), "records: 0") {
		t.Errorf("got:\n%s", buf.String())
	}
}

func TestBatches(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	report.Batches(&buf, []history.Batch{
		{ID: "b-1", ReceivedAt: now.Add(-2 * time.Minute), Counter: 3, Size: 5},
	}, now)

	out := buf.String()
	for _, want := range []string{"RECEIVED", "b-1", "2 minutes ago", "3", "5"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestBatchesEmpty(t *testing.T) {
	var buf bytes.Buffer
	report.Batches(&buf, nil, time.Now())
	if got := buf.String(); got != "no batches recorded\n" {
		t.Errorf("got %q", got)
	}
}

func TestBatch(t *testing.T) {
	store, err := history.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		t.Fatal(err)
	}
	id, err := store.SaveBatch(9, []telemetry.Record{
		telemetry.New("t1", "A", 1.5, 2),
		{Timestamp: "t2", Type: "B"},
	})
	if err != nil {
		t.Fatal(err)
	}

	b, err := store.Batch(id)
	if err != nil {
		t.Fatal(err)
	}
	records, err := store.BatchRecords(id)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	report.Batch(&buf, b, records)
	out := buf.String()
	if !strings.HasPrefix(out, "batch: "+id+"  received: ") {
		t.Errorf("missing batch line:\n%s", out)
	}
	for _, want := range []string{"counter: 9  records: 2", "TIMESTAMP", "t1", "1.5", "t2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "t1") > strings.Index(out, "t2") {
		t.Error("rows out of order")
	}
}
