package session

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteSlot is a Slot persisted in a SQLite database file.
//
// Several processes may open the same file; each Read observes the
// latest committed write, which is how a sign-in in one process rotates
// the session seen by another.
type SQLiteSlot struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteSlot creates or opens a slot database at path.
// Use ":memory:" for an ephemeral slot.
//
// The database is configured with:
//   - WAL mode for concurrent readers across processes
//   - 5-second busy timeout for lock contention
func OpenSQLiteSlot(path string) (*SQLiteSlot, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteSlot{db: db, now: time.Now}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteSlot) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Read implements Slot. Expired rows are skipped but not deleted.
func (s *SQLiteSlot) Read(ctx context.Context) (string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, value FROM slot_entries
		WHERE expires_at IS NULL OR expires_at > ?
		ORDER BY name COLLATE BINARY ASC
	`, s.now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("query slot entries: %w", err)
	}
	defer rows.Close()

	var pairs [][2]string
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return "", fmt.Errorf("scan slot entry: %w", err)
		}
		pairs = append(pairs, [2]string{name, value})
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate slot entries: %w", err)
	}
	return formatEntries(pairs), nil
}

// Write implements Slot.
func (s *SQLiteSlot) Write(ctx context.Context, e Entry) error {
	now := s.now()
	if e.Expired(now) {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM slot_entries WHERE name = ?`, e.Name); err != nil {
			return fmt.Errorf("delete slot entry %q: %w", e.Name, err)
		}
		return nil
	}

	path := e.Path
	if path == "" {
		path = "/"
	}
	var expires sql.NullInt64
	if !e.Expires.IsZero() {
		expires = sql.NullInt64{Int64: e.Expires.UnixMilli(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO slot_entries (name, value, path, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			value = excluded.value,
			path = excluded.path,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, e.Name, e.Value, path, expires, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("write slot entry %q: %w", e.Name, err)
	}
	return nil
}
