package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/arcplan/internal/store"
)

// Store backends.
const (
	BackendFS     = "fs"
	BackendSQLite = "sqlite"
)

// SQLiteFile is the database name inside the store directory.
const SQLiteFile = "runs.db"

// openStore opens the run store selected by the global flags.
func openStore(opts *RootOptions) (*store.RunStore, error) {
	var b store.Backend
	var err error
	switch opts.Backend {
	case BackendSQLite:
		b, err = openSQLite(opts.Store)
	default:
		b, err = store.NewFSBackend(opts.Store)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open run store", err)
	}
	return store.New(b), nil
}

func openSQLite(dir string) (store.Backend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	b, err := store.OpenSQLite(filepath.Join(dir, SQLiteFile))
	if err != nil {
		return nil, fmt.Errorf("sqlite store: %w", err)
	}
	return b, nil
}
