package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Clawue884/sidra-monitoring/pkg/alerting"
	"github.com/Clawue884/sidra-monitoring/pkg/errors"
	"github.com/Clawue884/sidra-monitoring/pkg/inventory"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
  id TEXT PRIMARY KEY,
  taken_at INTEGER NOT NULL,
  host_count INTEGER NOT NULL,
  reachable_count INTEGER NOT NULL,
  document TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS alert_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  host TEXT NOT NULL,
  metric TEXT NOT NULL,
  kind TEXT NOT NULL,
  severity TEXT NOT NULL,
  previous TEXT NOT NULL,
  value REAL NOT NULL,
  version INTEGER NOT NULL,
  at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alert_events_host_metric ON alert_events(host, metric);
`

// Store persists discovery snapshots and alert transitions to SQLite
// for audit and reporting.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed initializes) the database at path. Use
// ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "opening audit database", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrCodeInternal, "initializing audit schema", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot persists one discovery snapshot as a JSON document.
func (s *Store) SaveSnapshot(ctx context.Context, snap *inventory.Snapshot) error {
	doc, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "encoding snapshot", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshots (id, taken_at, host_count, reachable_count, document)
		 VALUES (?, ?, ?, ?, ?)`,
		snap.ID, snap.TakenAt.UnixNano(),
		snap.HostCount(), snap.ReachableCount(), string(doc))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "persisting snapshot", err)
	}
	return nil
}

// LatestSnapshot returns the most recently taken snapshot, or false if
// none has been persisted yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*inventory.Snapshot, bool, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM snapshots ORDER BY taken_at DESC LIMIT 1`).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInternal, "querying snapshot", err)
	}

	var snap inventory.Snapshot
	if err := json.Unmarshal([]byte(doc), &snap); err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInternal, "decoding snapshot", err)
	}
	return &snap, true, nil
}

// RecordEvent appends one alert transition to the audit log. Satisfies
// the ingest server's AuditLog interface.
func (s *Store) RecordEvent(ctx context.Context, ev alerting.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_events (host, metric, kind, severity, previous, value, version, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.Host, ev.Metric, string(ev.Kind), string(ev.Severity), string(ev.Previous),
		ev.Value, ev.Version, ev.At.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "persisting alert event", err)
	}
	return nil
}

// EventHistory returns the transitions recorded for one (host, metric)
// key, oldest first.
func (s *Store) EventHistory(ctx context.Context, host, metric string) ([]alerting.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT host, metric, kind, severity, previous, value, version, at
		 FROM alert_events WHERE host = ? AND metric = ? ORDER BY id`,
		host, metric)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "querying alert events", err)
	}
	defer rows.Close()

	var events []alerting.Event
	for rows.Next() {
		var ev alerting.Event
		var kind, severity, previous, at string
		if err := rows.Scan(&ev.Host, &ev.Metric, &kind, &severity, &previous,
			&ev.Value, &ev.Version, &at); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, "scanning alert event", err)
		}
		ev.Kind = alerting.EventKind(kind)
		ev.Severity = alerting.Severity(severity)
		ev.Previous = alerting.Severity(previous)
		if ts, err := time.Parse(time.RFC3339Nano, at); err == nil {
			ev.At = ts
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
