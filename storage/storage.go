package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = errors.New("not found")

// JournalEntry is one recorded moderation action.
type JournalEntry struct {
	ID             string
	ChatID         int64
	MessageID      int
	EventType      string
	MatchReason    string
	Profile        string
	Action         string
	Error          string
	NotifiedOK     int
	NotifiedFailed int
	CreatedAt      time.Time
}

// DB wraps the SQLite database connection and provides storage operations.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// chat workers write concurrently; SQLite serializes writers anyway
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS moderation_journal (
		id TEXT PRIMARY KEY,
		chat_id INTEGER NOT NULL,
		message_id INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		match_reason TEXT NOT NULL,
		profile TEXT NOT NULL,
		action TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		notified_ok INTEGER NOT NULL DEFAULT 0,
		notified_failed INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_journal_created_at ON moderation_journal(created_at);
	CREATE INDEX IF NOT EXISTS idx_journal_chat_id ON moderation_journal(chat_id);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// RecordEntry appends an entry to the moderation journal.
func (db *DB) RecordEntry(ctx context.Context, e *JournalEntry) error {
	query := `
	INSERT INTO moderation_journal
		(id, chat_id, message_id, event_type, match_reason, profile, action, error, notified_ok, notified_failed, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.conn.ExecContext(ctx, query,
		e.ID,
		e.ChatID,
		e.MessageID,
		e.EventType,
		e.MatchReason,
		e.Profile,
		e.Action,
		e.Error,
		e.NotifiedOK,
		e.NotifiedFailed,
		e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// GetEntry retrieves a journal entry by ID.
func (db *DB) GetEntry(ctx context.Context, id string) (*JournalEntry, error) {
	query := `
	SELECT id, chat_id, message_id, event_type, match_reason, profile, action, error, notified_ok, notified_failed, created_at
	FROM moderation_journal WHERE id = ?
	`

	e, err := scanEntry(db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// RecentEntries returns up to limit entries, newest first. A non-zero chatID
// restricts the result to one chat.
func (db *DB) RecentEntries(ctx context.Context, chatID int64, limit int) ([]JournalEntry, error) {
	query := `
	SELECT id, chat_id, message_id, event_type, match_reason, profile, action, error, notified_ok, notified_failed, created_at
	FROM moderation_journal
	WHERE (? = 0 OR chat_id = ?)
	ORDER BY created_at DESC
	LIMIT ?
	`

	rows, err := db.conn.QueryContext(ctx, query, chatID, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// CountActionsSince counts journal entries per action recorded at or after since.
func (db *DB) CountActionsSince(ctx context.Context, since time.Time) (map[string]int, error) {
	query := `SELECT action, COUNT(*) FROM moderation_journal WHERE created_at >= ? GROUP BY action`

	rows, err := db.conn.QueryContext(ctx, query, since.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, err
		}
		counts[action] = n
	}
	return counts, rows.Err()
}

// PruneEntriesBefore deletes journal entries older than cutoff and returns
// how many were removed.
func (db *DB) PruneEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM moderation_journal WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*JournalEntry, error) {
	e := &JournalEntry{}
	var createdAt int64
	err := row.Scan(
		&e.ID,
		&e.ChatID,
		&e.MessageID,
		&e.EventType,
		&e.MatchReason,
		&e.Profile,
		&e.Action,
		&e.Error,
		&e.NotifiedOK,
		&e.NotifiedFailed,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	e.CreatedAt = time.UnixMilli(createdAt).UTC()
	return e, nil
}

// GetSetting retrieves a setting value by key.
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	query := `SELECT value FROM settings WHERE key = ?`
	var value string
	err := db.conn.QueryRowContext(ctx, query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

// SetSetting stores or updates a setting.
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO settings (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	_, err := db.conn.ExecContext(ctx, query, key, value)
	return err
}

// AllSettings returns every stored setting.
func (db *DB) AllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}
