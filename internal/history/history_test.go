package history_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/zsprackett/streamsim/internal/history"
	"github.com/zsprackett/streamsim/internal/telemetry"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return store
}

func TestMigrateTwice(t *testing.T) {
	store := openStore(t)
	if err := store.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestSaveBatchRoundTrip(t *testing.T) {
	store := openStore(t)

	in := []telemetry.Record{
		telemetry.New("t2", "bus", -79.4, 43.7),
		{Timestamp: "t1", Type: "A"},
		telemetry.New("t3", "car", 1, 2),
	}
	id, err := store.SaveBatch(4, in)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id == "" {
		t.Fatal("expected batch id")
	}

	got, err := store.BatchRecords(id)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("expected %d records, got %d", len(in), len(got))
	}
	for i := range in {
		if got[i].String() != in[i].String() {
			t.Errorf("record %d: got %q want %q", i, got[i].String(), in[i].String())
		}
	}
	if got[1].Longitude != nil || got[1].Latitude != nil {
		t.Error("missing coordinates should stay missing")
	}
}

func TestRecentBatchesNewestFirst(t *testing.T) {
	store := openStore(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		store.SetNow(func() time.Time { return at })
		recs := make([]telemetry.Record, i)
		if _, err := store.SaveBatch(i, recs); err != nil {
			t.Fatal(err)
		}
	}

	batches, err := store.RecentBatches(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	for i, want := range []int{4, 3, 2} {
		if batches[i].Counter != want || batches[i].Size != want {
			t.Errorf("batch %d: counter %d size %d want %d", i, batches[i].Counter, batches[i].Size, want)
		}
	}
	if !batches[0].ReceivedAt.Equal(base.Add(4 * time.Second)) {
		t.Errorf("received_at: got %v", batches[0].ReceivedAt)
	}
}

func TestEmptyBatch(t *testing.T) {
	store := openStore(t)
	id, err := store.SaveBatch(0, nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := store.BatchRecords(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected no records, got %d", len(got))
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Migrate(); err != nil {
		t.Fatal(err)
	}
	if _, err := store.SaveBatch(1, []telemetry.Record{telemetry.New("t1", "A", 1, 2)}); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := history.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	batches, err := reopened.RecentBatches(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(batches) != 1 {
		t.Errorf("expected 1 batch after reopen, got %d", len(batches))
	}
}

func TestBatchLookup(t *testing.T) {
	store := openStore(t)
	at := time.UnixMilli(1700000000000)
	store.SetNow(func() time.Time { return at })

	id, err := store.SaveBatch(7, []telemetry.Record{
		telemetry.New("t1", "A", 1, 2),
		telemetry.New("t2", "B", 3, 4),
	})
	if err != nil {
		t.Fatal(err)
	}

	b, err := store.Batch(id)
	if err != nil {
		t.Fatal(err)
	}
	if b.ID != id || b.Counter != 7 || b.Size != 2 || !b.ReceivedAt.Equal(at) {
		t.Errorf("got %+v", b)
	}
}

func TestBatchNotFound(t *testing.T) {
	store := openStore(t)
	if _, err := store.Batch("missing"); !errors.Is(err, history.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}
