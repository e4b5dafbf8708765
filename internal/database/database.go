package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/vincentbai/shadowtrace/internal/models"
	_ "modernc.org/sqlite" // CGO-free SQLite
)

var actionPattern = regexp.MustCompile(`^[A-Z][A-Z_]*$`)

type Database struct {
	db *sql.DB
}

func NewDatabase(databasePath string) (*Database, error) {
	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", databasePath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Database{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS events(
	  id            INTEGER PRIMARY KEY,
	  session_id    TEXT NOT NULL,
	  action        TEXT NOT NULL,
	  page          TEXT NOT NULL,
	  previous_page TEXT NOT NULL DEFAULT '',
	  ts            TEXT NOT NULL,
	  element_json  TEXT CHECK (element_json IS NULL OR json_valid(element_json))
	);
	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
	CREATE INDEX IF NOT EXISTS idx_events_ts      ON events(ts);
	CREATE INDEX IF NOT EXISTS idx_events_action  ON events(action);

	CREATE TABLE IF NOT EXISTS kv(
	  key   TEXT PRIMARY KEY,
	  value TEXT NOT NULL
	);
	`)
	if err != nil {
		return fmt.Errorf("failed to create database tables: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) ValidateEvent(event models.Event) error {
	if event.SessionID == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if event.Page == "" {
		return fmt.Errorf("page cannot be empty")
	}
	if !actionPattern.MatchString(event.Action) {
		return fmt.Errorf("invalid action: %q", event.Action)
	}
	if _, err := time.Parse(time.RFC3339, event.Timestamp); err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", event.Timestamp, err)
	}
	return nil
}

// InsertEvents stores events atomically: one invalid event rejects the
// whole batch.
func (d *Database) InsertEvents(ctx context.Context, events []models.Event) error {
	transaction, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	statement, err := transaction.PrepareContext(ctx, `INSERT INTO events(session_id, action, page, previous_page, ts, element_json) VALUES(?,?,?,?,?,json(?))`)
	if err != nil {
		_ = transaction.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer statement.Close()

	for _, event := range events {
		if err := d.ValidateEvent(event); err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("invalid event: %w", err)
		}

		var element any
		if event.Element != nil {
			jsonData, err := json.Marshal(event.Element)
			if err != nil {
				_ = transaction.Rollback()
				return fmt.Errorf("failed to marshal element: %w", err)
			}
			element = string(jsonData)
		}
		if _, err := statement.ExecContext(ctx, event.SessionID, event.Action, event.Page, event.PreviousPage, event.Timestamp, element); err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}
	if err := transaction.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// EventsForSession returns the events stored for sessionID in insertion
// order.
func (d *Database) EventsForSession(ctx context.Context, sessionID string) ([]models.Event, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT session_id, action, page, previous_page, ts, element_json FROM events WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var event models.Event
		var element sql.NullString
		if err := rows.Scan(&event.SessionID, &event.Action, &event.Page, &event.PreviousPage, &event.Timestamp, &element); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if element.Valid {
			event.Element = &models.ElementDescriptor{}
			if err := json.Unmarshal([]byte(element.String), event.Element); err != nil {
				return nil, fmt.Errorf("failed to unmarshal element: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}

// Get implements session.Store.
func (d *Database) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

// Set implements session.Store.
func (d *Database) Set(ctx context.Context, key, value string) error {
	_, err := d.db.ExecContext(ctx, `INSERT INTO kv(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
