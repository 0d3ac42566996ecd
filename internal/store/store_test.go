package store

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends returns a constructor per backend so every contract test runs
// against both.
func backends() map[string]func(t *testing.T) Backend {
	return map[string]func(t *testing.T) Backend{
		"fs": func(t *testing.T) Backend {
			b, err := NewFSBackend(t.TempDir())
			require.NoError(t, err)
			return b
		},
		"sqlite": func(t *testing.T) Backend {
			b, err := OpenSQLite(filepath.Join(t.TempDir(), "runs.db"))
			require.NoError(t, err)
			t.Cleanup(func() { b.Close() })
			return b
		},
	}
}

func TestBackend_PutGet(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := open(t)

			_, err := b.Get(ctx, "run-1", "config.json")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, b.Put(ctx, "run-1", "config.json", []byte(`{"a":1}`)))
			require.NoError(t, b.Put(ctx, "run-1", "config.json", []byte(`{"a":2}`)))

			data, err := b.Get(ctx, "run-1", "config.json")
			require.NoError(t, err)
			assert.Equal(t, `{"a":2}`, string(data))
		})
	}
}

func TestBackend_LinesTail(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := open(t)

			lines, err := b.Lines(ctx, "run-1", "run.log", 10)
			require.NoError(t, err)
			assert.Empty(t, lines)

			for _, l := range []string{"one", "two", "three", "four"} {
				require.NoError(t, b.Append(ctx, "run-1", "run.log", []byte(l)))
			}

			lines, err = b.Lines(ctx, "run-1", "run.log", 2)
			require.NoError(t, err)
			assert.Equal(t, [][]byte{[]byte("three"), []byte("four")}, lines)

			all, err := b.Lines(ctx, "run-1", "run.log", 0)
			require.NoError(t, err)
			assert.Len(t, all, 4)
		})
	}
}

func TestBackend_ExistsList(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := open(t)

			ok, err := b.Exists(ctx, "run-b")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, b.Put(ctx, "run-b", "logs.json", []byte("{}")))
			require.NoError(t, b.Append(ctx, "run-a", "run.log", []byte("x")))

			ok, err = b.Exists(ctx, "run-b")
			require.NoError(t, err)
			assert.True(t, ok)

			ids, err := b.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"run-a", "run-b"}, ids)
		})
	}
}

func TestBackend_RejectsPathNames(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			b := open(t)
			assert.Error(t, b.Put(context.Background(), "../escape", "config.json", nil))
			assert.Error(t, b.Put(context.Background(), "run-1", "a/b", nil))
		})
	}
}

func TestOpenSQLite_Pragmas(t *testing.T) {
	b, err := OpenSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer b.Close()

	assert.NoError(t, b.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, b.verifyPragma("synchronous", "1"))
	assert.NoError(t, b.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, b.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, b.verifyPragma("user_version", "1"))
}

func TestOpenSQLite_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	b1, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, b1.Put(ctx, "run-1", "logs.json", []byte("{}")))
	require.NoError(t, b1.Close())

	for i := 0; i < 3; i++ {
		b, err := OpenSQLite(path)
		require.NoError(t, err, "open iteration %d", i)
		ids, err := b.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"run-1"}, ids)
		b.Close()
	}
}

func TestNPZRoundTrip(t *testing.T) {
	dose := []float64{0, 1.5, 2.25, 60.125}
	var buf bytes.Buffer
	require.NoError(t, EncodeNPZ(&buf, map[string][]float64{DoseKey: dose}, DoseKey))

	got, err := DecodeNPZ(buf.Bytes(), DoseKey)
	require.NoError(t, err)
	assert.Equal(t, dose, got)

	_, err = DecodeNPZ(buf.Bytes(), "missing")
	assert.Error(t, err)
}
