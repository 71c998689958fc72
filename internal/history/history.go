package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/zsprackett/streamsim/internal/telemetry"
)

// ErrNotFound is returned when no batch has the requested id.
var ErrNotFound = errors.New("batch not found")

// Batch is one stored records update.
type Batch struct {
	ID         string
	ReceivedAt time.Time
	Counter    int
	Size       int
}

// Store is an append-only sqlite log of received record lists.
type Store struct {
	sql *sql.DB
	now func() time.Time
}

func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, err
	}
	return &Store{sql: conn, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.sql.Close()
}

// SetNow replaces the time source. Used in tests only.
func (s *Store) SetNow(fn func() time.Time) {
	s.now = fn
}

func (s *Store) Migrate() error {
	_, err := s.sql.Exec(`
		CREATE TABLE IF NOT EXISTS batches (
			id          TEXT PRIMARY KEY,
			received_at INTEGER NOT NULL,
			counter     INTEGER NOT NULL DEFAULT 0,
			size        INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("create batches: %w", err)
	}

	_, err = s.sql.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			batch_id TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
			idx      INTEGER NOT NULL,
			ts       TEXT NOT NULL DEFAULT '',
			type     TEXT NOT NULL DEFAULT '',
			lon      REAL,
			lat      REAL,
			PRIMARY KEY (batch_id, idx)
		)
	`)
	if err != nil {
		return fmt.Errorf("create records: %w", err)
	}

	if _, err := s.sql.Exec(`CREATE INDEX IF NOT EXISTS idx_batches_received_at ON batches(received_at DESC)`); err != nil {
		return fmt.Errorf("index batches: %w", err)
	}
	return nil
}

// SaveBatch stores records as one batch and returns its id.
func (s *Store) SaveBatch(counter int, records []telemetry.Record) (string, error) {
	id := uuid.NewString()
	tx, err := s.sql.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO batches (id, received_at, counter, size) VALUES (?,?,?,?)",
		id, s.now().UnixMilli(), counter, len(records),
	); err != nil {
		return "", fmt.Errorf("insert batch: %w", err)
	}
	for i, r := range records {
		if _, err := tx.Exec(
			"INSERT INTO records (batch_id, idx, ts, type, lon, lat) VALUES (?,?,?,?,?,?)",
			id, i, r.Timestamp, r.Type, nullFloat(r.Longitude), nullFloat(r.Latitude),
		); err != nil {
			return "", fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// RecentBatches returns up to limit batches, newest first.
func (s *Store) RecentBatches(limit int) ([]Batch, error) {
	rows, err := s.sql.Query(
		`SELECT id, received_at, counter, size
		 FROM batches
		 ORDER BY received_at DESC, rowid DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		var ts int64
		if err := rows.Scan(&b.ID, &ts, &b.Counter, &b.Size); err != nil {
			return nil, err
		}
		b.ReceivedAt = time.UnixMilli(ts)
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// Batch returns the stored batch with the given id.
func (s *Store) Batch(id string) (Batch, error) {
	var b Batch
	var ts int64
	err := s.sql.QueryRow(
		"SELECT id, received_at, counter, size FROM batches WHERE id = ?",
		id,
	).Scan(&b.ID, &ts, &b.Counter, &b.Size)
	if errors.Is(err, sql.ErrNoRows) {
		return Batch{}, ErrNotFound
	}
	if err != nil {
		return Batch{}, err
	}
	b.ReceivedAt = time.UnixMilli(ts)
	return b, nil
}

// BatchRecords returns the records of batch id in their received order.
func (s *Store) BatchRecords(id string) ([]telemetry.Record, error) {
	rows, err := s.sql.Query(
		"SELECT ts, type, lon, lat FROM records WHERE batch_id = ? ORDER BY idx",
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []telemetry.Record
	for rows.Next() {
		var r telemetry.Record
		var lon, lat sql.NullFloat64
		if err := rows.Scan(&r.Timestamp, &r.Type, &lon, &lat); err != nil {
			return nil, err
		}
		if lon.Valid {
			r.Longitude = &lon.Float64
		}
		if lat.Valid {
			r.Latitude = &lat.Float64
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
