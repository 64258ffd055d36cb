// Package journal keeps an append-only SQLite record of dispatched actions
// and entity staleness transitions.
//
// The journal exists for post-hoc debugging of a headless panel: what was
// pressed, what was sent, and which sensors dropped out. Writes are best
// effort; the engine logs journal failures and carries on, a broken journal
// must never affect the control loop.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	dirPermissions  = 0750
	filePermissions = 0600

	msPerSecond = 1000

	connectionTimeout = 5 * time.Second
)

const schema = `
CREATE TABLE IF NOT EXISTS dispatches (
	id          TEXT PRIMARY KEY,
	button      INTEGER NOT NULL,
	action_kind TEXT NOT NULL,
	service     TEXT NOT NULL,
	target      TEXT NOT NULL,
	attempts    INTEGER NOT NULL,
	ok          INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	enqueued_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS entity_events (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_id TEXT NOT NULL,
	event     TEXT NOT NULL,
	at        TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dispatches_finished ON dispatches(finished_at);
CREATE INDEX IF NOT EXISTS idx_entity_events_at ON entity_events(at);
`

// Config contains journal storage options.
type Config struct {
	// Path is the SQLite database file. The directory is created if
	// missing.
	Path string

	// BusyTimeout is the maximum wait for a database lock, in seconds.
	BusyTimeout int
}

// DispatchRecord is one journaled action outcome.
type DispatchRecord struct {
	ID         uuid.UUID
	Button     int
	ActionKind string
	Service    string
	Target     string
	Attempts   int
	OK         bool
	Error      string
	EnqueuedAt time.Time
	FinishedAt time.Time
}

// EntityEvent marks an entity crossing into or out of staleness.
type EntityEvent struct {
	EntityID string
	Event    string
	At       time.Time
}

// Entity event kinds.
const (
	EventStale     = "stale"
	EventRecovered = "recovered"
)

// Journal is an append-only dispatch and staleness log.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal database and applies the schema.
func Open(cfg Config) (*Journal, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("journal: path is required")
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
		return nil, fmt.Errorf("journal: creating directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL",
		cfg.Path, cfg.BusyTimeout*msPerSecond)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("journal: opening database: %w", err)
	}

	// One writer keeps SQLite happy; the panel has no concurrent readers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: verifying connection: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: applying schema: %w", err)
	}
	_ = os.Chmod(cfg.Path, filePermissions)

	return &Journal{db: db}, nil
}

// RecordDispatch appends one action outcome.
func (j *Journal) RecordDispatch(ctx context.Context, rec DispatchRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO dispatches
			(id, button, action_kind, service, target, attempts, ok, error, enqueued_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.Button, rec.ActionKind, rec.Service, rec.Target,
		rec.Attempts, rec.OK, rec.Error, rec.EnqueuedAt.UTC(), rec.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("journal: recording dispatch %s: %w", rec.ID, err)
	}
	return nil
}

// RecordEntityEvent appends one staleness transition.
func (j *Journal) RecordEntityEvent(ctx context.Context, ev EntityEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO entity_events (entity_id, event, at) VALUES (?, ?, ?)`,
		ev.EntityID, ev.Event, at.UTC())
	if err != nil {
		return fmt.Errorf("journal: recording event for %s: %w", ev.EntityID, err)
	}
	return nil
}

// RecentDispatches returns the latest n outcomes, newest first.
func (j *Journal) RecentDispatches(ctx context.Context, n int) ([]DispatchRecord, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, button, action_kind, service, target, attempts, ok, error, enqueued_at, finished_at
		FROM dispatches ORDER BY finished_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("journal: querying dispatches: %w", err)
	}
	defer rows.Close()

	var out []DispatchRecord
	for rows.Next() {
		var rec DispatchRecord
		var id string
		if err := rows.Scan(&id, &rec.Button, &rec.ActionKind, &rec.Service, &rec.Target,
			&rec.Attempts, &rec.OK, &rec.Error, &rec.EnqueuedAt, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("journal: scanning dispatch: %w", err)
		}
		rec.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("journal: parsing dispatch id %q: %w", id, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterating dispatches: %w", err)
	}
	return out, nil
}

// RecentEntityEvents returns the latest n staleness transitions, newest
// first.
func (j *Journal) RecentEntityEvents(ctx context.Context, n int) ([]EntityEvent, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT entity_id, event, at
		FROM entity_events ORDER BY at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("journal: querying entity events: %w", err)
	}
	defer rows.Close()

	var out []EntityEvent
	for rows.Next() {
		var ev EntityEvent
		if err := rows.Scan(&ev.EntityID, &ev.Event, &ev.At); err != nil {
			return nil, fmt.Errorf("journal: scanning entity event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterating entity events: %w", err)
	}
	return out, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}
