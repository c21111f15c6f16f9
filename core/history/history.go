// Package history stores submitted command lines and the directory they
// were run from in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoEntry is returned when an offset is past the oldest stored entry.
var ErrNoEntry = errors.New("no history entry")

// Entry is one stored command.
type Entry struct {
	Command   string
	Location  string
	CreatedAt time.Time
}

// Store persists history in SQLite.
type Store struct {
	sqlDB *sql.DB

	// now is replaced in tests.
	now func() time.Time
}

// Open opens the database at path, creating it and its schema if needed.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Add records command as run in dir. Command and location rows are shared
// between entries.
func (s *Store) Add(ctx context.Context, command, dir string) (err error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	commandID, err := upsertID(ctx, tx, "command", "command", command)
	if err != nil {
		return err
	}
	locationID, err := upsertID(ctx, tx, "location", "location", dir)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		"INSERT INTO command_location (created_at, command_id, location_id) VALUES (?, ?, ?)",
		s.now().UTC().UnixMilli(), commandID, locationID,
	); err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// upsertID returns the id of the row holding value, inserting it if needed.
// table and column are never user input.
func upsertID(ctx context.Context, tx *sql.Tx, table, column, value string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT id FROM %s WHERE %s = ?", table, column), value).Scan(&id)
	switch {
	case err == nil:
		return id, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("lookup %s: %w", table, err)
	}

	res, err := tx.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (?)", table, column), value)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	return res.LastInsertId()
}

const selectEntries = `
SELECT command.command, location.location, command_location.created_at
FROM command_location
JOIN command ON command_location.command_id = command.id
JOIN location ON command_location.location_id = location.id
`

const newestFirst = " ORDER BY command_location.created_at DESC, command_location.id DESC"

// Nth returns the entry offset places back from the newest, 0 being the
// newest.
func (s *Store) Nth(ctx context.Context, offset int) (Entry, error) {
	return s.nth(ctx, offset, selectEntries+newestFirst+" LIMIT 1 OFFSET ?", offset)
}

// NthIn is Nth restricted to commands run in dir.
func (s *Store) NthIn(ctx context.Context, offset int, dir string) (Entry, error) {
	return s.nth(ctx, offset, selectEntries+" WHERE location.location = ?"+newestFirst+" LIMIT 1 OFFSET ?", dir, offset)
}

func (s *Store) nth(ctx context.Context, offset int, query string, args ...interface{}) (Entry, error) {
	if offset < 0 {
		return Entry{}, ErrNoEntry
	}

	entries, err := s.query(ctx, query, args...)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, ErrNoEntry
	}
	return entries[0], nil
}

// List returns up to limit entries, newest first. A non-empty dir restricts
// the result to commands run there. A limit of 0 or less returns all.
func (s *Store) List(ctx context.Context, limit int, dir string) ([]Entry, error) {
	query := selectEntries
	var args []interface{}
	if dir != "" {
		query += " WHERE location.location = ?"
		args = append(args, dir)
	}
	query += newestFirst
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM command_location").Scan(&count); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return count, nil
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) ([]Entry, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			createdAt int64
		)
		if err := rows.Scan(&e.Command, &e.Location, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return out, nil
}
