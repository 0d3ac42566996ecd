package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// ErrNotFound is returned when a run or document does not exist.
var ErrNotFound = errors.New("not found")

// Backend stores named documents and append-only line logs per run.
type Backend interface {
	// Put replaces a document.
	Put(ctx context.Context, runID, key string, data []byte) error
	// Get reads a document, returning ErrNotFound if absent.
	Get(ctx context.Context, runID, key string) ([]byte, error)
	// Append adds one line to a line log.
	Append(ctx context.Context, runID, key string, line []byte) error
	// Lines returns the last max lines of a line log, oldest first. A max
	// of zero or less returns every line. A missing log has no lines.
	Lines(ctx context.Context, runID, key string, max int) ([][]byte, error)
	// Exists reports whether anything was stored for the run.
	Exists(ctx context.Context, runID string) (bool, error)
	// List returns run ids in ascending order.
	List(ctx context.Context) ([]string, error)
	Close() error
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

func checkName(kind, name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid %s %q", kind, name)
	}
	return nil
}

func checkKey(runID, key string) error {
	if err := checkName("run id", runID); err != nil {
		return err
	}
	return checkName("key", key)
}
