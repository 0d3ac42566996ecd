package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// FSBackend stores each run as a directory of files under Root.
type FSBackend struct {
	Root string
}

// NewFSBackend creates root if needed.
func NewFSBackend(root string) (*FSBackend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &FSBackend{Root: root}, nil
}

func (b *FSBackend) path(runID, key string) string {
	return filepath.Join(b.Root, runID, key)
}

// Put writes to a temp file in the run directory and renames it over key.
func (b *FSBackend) Put(_ context.Context, runID, key string, data []byte) error {
	if err := checkKey(runID, key); err != nil {
		return err
	}
	dir := filepath.Join(b.Root, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+key+".*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(name, b.path(runID, key)); err != nil {
		os.Remove(name)
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

func (b *FSBackend) Get(_ context.Context, runID, key string) ([]byte, error) {
	if err := checkKey(runID, key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.path(runID, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (b *FSBackend) Append(_ context.Context, runID, key string, line []byte) error {
	if err := checkKey(runID, key); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(b.Root, runID), 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}
	f, err := os.OpenFile(b.path(runID, key), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", key, err)
	}
	buf := make([]byte, 0, len(line)+1)
	buf = append(append(buf, line...), '\n')
	if _, err := f.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("append %s: %w", key, err)
	}
	return f.Close()
}

func (b *FSBackend) Lines(ctx context.Context, runID, key string, max int) ([][]byte, error) {
	data, err := b.Get(ctx, runID, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSuffix(data, []byte("\n"))
	if len(data) == 0 {
		return nil, nil
	}
	lines := bytes.Split(data, []byte("\n"))
	if max > 0 && len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	return lines, nil
}

func (b *FSBackend) Exists(_ context.Context, runID string) (bool, error) {
	if err := checkName("run id", runID); err != nil {
		return false, err
	}
	info, err := os.Stat(filepath.Join(b.Root, runID))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func (b *FSBackend) List(context.Context) ([]string, error) {
	entries, err := os.ReadDir(b.Root)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() && namePattern.MatchString(e.Name()) {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (b *FSBackend) Close() error { return nil }
