package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on lines(run_id, key, id)
const currentSchemaVersion = 1

// SQLiteBackend stores runs in a single SQLite database.
// Uses WAL mode so readers can poll while a run is being written.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func OpenSQLite(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

// Close closes the database connection.
func (b *SQLiteBackend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *SQLiteBackend) ensureRun(ctx context.Context, tx *sql.Tx, runID string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO runs (run_id) VALUES (?) ON CONFLICT(run_id) DO NOTHING`, runID)
	return err
}

func (b *SQLiteBackend) Put(ctx context.Context, runID, key string, data []byte) error {
	if err := checkKey(runID, key); err != nil {
		return err
	}
	return b.inTx(ctx, func(tx *sql.Tx) error {
		if err := b.ensureRun(ctx, tx, runID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (run_id, key, data) VALUES (?, ?, ?)
			ON CONFLICT(run_id, key) DO UPDATE SET
				data = excluded.data,
				updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
			runID, key, data)
		return err
	})
}

func (b *SQLiteBackend) Get(ctx context.Context, runID, key string) ([]byte, error) {
	if err := checkKey(runID, key); err != nil {
		return nil, err
	}
	var data []byte
	err := b.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE run_id = ? AND key = ?`, runID, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return data, nil
}

func (b *SQLiteBackend) Append(ctx context.Context, runID, key string, line []byte) error {
	if err := checkKey(runID, key); err != nil {
		return err
	}
	return b.inTx(ctx, func(tx *sql.Tx) error {
		if err := b.ensureRun(ctx, tx, runID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO lines (run_id, key, data) VALUES (?, ?, ?)`, runID, key, line)
		return err
	})
}

func (b *SQLiteBackend) Lines(ctx context.Context, runID, key string, max int) ([][]byte, error) {
	if err := checkKey(runID, key); err != nil {
		return nil, err
	}
	limit := max
	if limit <= 0 {
		limit = -1
	}
	rows, err := b.db.QueryContext(ctx, `
		SELECT data FROM (
			SELECT id, data FROM lines
			WHERE run_id = ? AND key = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC`, runID, key, limit)
	if err != nil {
		return nil, fmt.Errorf("lines %s: %w", key, err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		out = append(out, data)
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) Exists(ctx context.Context, runID string) (bool, error) {
	var n int
	err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return n > 0, nil
}

func (b *SQLiteBackend) List(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT run_id FROM runs ORDER BY run_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (b *SQLiteBackend) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV1 indexes line logs for tail reads.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_lines_run_key ON lines(run_id, key, id)`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (b *SQLiteBackend) verifyPragma(name, expected string) error {
	var value string
	if err := b.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
