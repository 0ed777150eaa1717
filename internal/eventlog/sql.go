package eventlog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"chirper/internal/domain"
)

// Schema statements run one by one so both drivers accept them.
var schemaPostgres = []string{
	`CREATE TABLE IF NOT EXISTS events (
		position    BIGSERIAL PRIMARY KEY,
		stream_id   TEXT      NOT NULL,
		version     BIGINT    NOT NULL,
		event_id    TEXT      NOT NULL UNIQUE,
		kind        SMALLINT  NOT NULL,
		occurred_at BIGINT    NOT NULL,
		payload     TEXT      NOT NULL,
		UNIQUE (stream_id, version)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_global ON events (occurred_at, position)`,
}

var schemaSQLite = []string{
	`CREATE TABLE IF NOT EXISTS events (
		position    INTEGER PRIMARY KEY AUTOINCREMENT,
		stream_id   TEXT    NOT NULL,
		version     INTEGER NOT NULL,
		event_id    TEXT    NOT NULL UNIQUE,
		kind        INTEGER NOT NULL,
		occurred_at INTEGER NOT NULL,
		payload     TEXT    NOT NULL,
		UNIQUE (stream_id, version)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_global ON events (occurred_at, position)`,
}

// storedEvent is the row shape of the events table. occurred_at is unix
// nanoseconds so the global order never depends on driver time parsing.
type storedEvent struct {
	Position   int64  `db:"position"`
	StreamID   string `db:"stream_id"`
	Version    uint64 `db:"version"`
	EventID    string `db:"event_id"`
	Kind       uint8  `db:"kind"`
	OccurredAt int64  `db:"occurred_at"`
	Payload    []byte `db:"payload"`
}

// SQLLog persists events in PostgreSQL or SQLite. The driver is picked
// off the DSN: postgres:// URLs use lib/pq, anything else is treated as
// a SQLite path (optionally prefixed sqlite://).
type SQLLog struct {
	db     *sqlx.DB
	driver string
}

// OpenSQL connects, applies pragmas for SQLite, and ensures the schema.
func OpenSQL(databaseURL string) (*SQLLog, error) {
	driver, dsn := detectDriver(databaseURL)

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}

	schema := schemaPostgres
	if driver == "sqlite" {
		schema = schemaSQLite
		// SQLite wants WAL mode and a single writer.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
		if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set busy_timeout: %w", err)
		}
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure event log schema: %w", err)
		}
	}

	return &SQLLog{db: db, driver: driver}, nil
}

func detectDriver(u string) (driver, dsn string) {
	if strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://") {
		return "postgres", u
	}
	if strings.HasPrefix(u, "sqlite://") {
		return "sqlite", strings.TrimPrefix(u, "sqlite://")
	}
	// Bare paths are SQLite files.
	return "sqlite", u
}

func (l *SQLLog) Append(ctx context.Context, aggregateID string, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var last uint64
	query := tx.Rebind(`SELECT COALESCE(MAX(version), 0) FROM events WHERE stream_id = ?`)
	if err := tx.GetContext(ctx, &last, query, aggregateID); err != nil {
		return fmt.Errorf("read stream version: %w", err)
	}

	insert := tx.Rebind(`INSERT INTO events (stream_id, version, event_id, kind, occurred_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)`)
	for i, e := range events {
		head := e.Head()
		if head.AggregateID != aggregateID {
			return fmt.Errorf("append to %s: event %s belongs to stream %s", aggregateID, head.EventID, head.AggregateID)
		}
		if head.Version != last+uint64(i)+1 {
			return fmt.Errorf("append to %s at version %d: %w", aggregateID, head.Version, ErrVersionConflict)
		}
		payload, err := domain.EncodePayload(e)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insert,
			aggregateID, head.Version, head.EventID, uint8(e.Kind()), head.OccurredAt.UnixNano(), payload); err != nil {
			if isUniqueViolation(err) {
				// Lost the race between the MAX read and the insert.
				return fmt.Errorf("append to %s at version %d: %w", aggregateID, head.Version, ErrVersionConflict)
			}
			return fmt.Errorf("insert event %s: %w", head.EventID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// isUniqueViolation matches both drivers without importing their error
// types: lib/pq reports "duplicate key value violates unique
// constraint", modernc reports "UNIQUE constraint failed".
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

func (l *SQLLog) Read(ctx context.Context, aggregateID string) ([]domain.Event, error) {
	var rows []storedEvent
	query := l.db.Rebind(`SELECT position, stream_id, version, event_id, kind, occurred_at, payload
		FROM events WHERE stream_id = ? ORDER BY version`)
	if err := l.db.SelectContext(ctx, &rows, query, aggregateID); err != nil {
		return nil, fmt.Errorf("read stream %s: %w", aggregateID, err)
	}
	return decodeRows(rows)
}

func (l *SQLLog) ReadAll(ctx context.Context) ([]domain.Event, error) {
	var rows []storedEvent
	if err := l.db.SelectContext(ctx, &rows,
		`SELECT position, stream_id, version, event_id, kind, occurred_at, payload
		 FROM events ORDER BY occurred_at, position`); err != nil {
		return nil, fmt.Errorf("read all events: %w", err)
	}
	return decodeRows(rows)
}

func (l *SQLLog) Exists(ctx context.Context, aggregateID string) (bool, error) {
	var exists bool
	query := l.db.Rebind(`SELECT EXISTS (SELECT 1 FROM events WHERE stream_id = ?)`)
	if err := l.db.GetContext(ctx, &exists, query, aggregateID); err != nil {
		return false, fmt.Errorf("check stream %s: %w", aggregateID, err)
	}
	return exists, nil
}

func (l *SQLLog) Close() error { return l.db.Close() }

func decodeRows(rows []storedEvent) ([]domain.Event, error) {
	out := make([]domain.Event, 0, len(rows))
	for _, row := range rows {
		head := domain.Header{
			EventID:     row.EventID,
			AggregateID: row.StreamID,
			Version:     row.Version,
			OccurredAt:  time.Unix(0, row.OccurredAt).UTC(),
		}
		e, err := domain.DecodeEvent(domain.EventKind(row.Kind), head, row.Payload)
		if err != nil {
			return nil, fmt.Errorf("decode stored event %s: %w", row.EventID, err)
		}
		out = append(out, e)
	}
	return out, nil
}
