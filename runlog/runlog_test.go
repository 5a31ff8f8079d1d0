package runlog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixed = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.jsonl")
	rec, err := NewJSONL(path)
	require.NoError(t, err)
	rec.now = func() time.Time { return fixed }

	ctx := context.Background()
	require.NoError(t, rec.Log(ctx, Record{"task": "write", "output": "ü"}))
	require.NoError(t, rec.Log(ctx, Record{"task": "run", "ts": "custom"}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "2026-01-02T03:04:05Z", lines[0]["ts"])
	assert.Equal(t, "ü", lines[0]["output"])
	assert.Equal(t, "custom", lines[1]["ts"])
}

func TestJSONLDefaultPath(t *testing.T) {
	rec, err := NewJSONL("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPath, rec.Path())
}

func TestSQLite(t *testing.T) {
	store, err := NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()
	store.now = func() time.Time { return fixed }

	ctx := context.Background()
	for _, task := range []string{"a", "b", "c"} {
		require.NoError(t, store.Log(ctx, Record{"task": task}))
	}

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0]["task"])
	assert.Equal(t, "b", recent[1]["task"])
	assert.Equal(t, "2026-01-02T03:04:05Z", recent[0]["ts"])
}

type failing struct{ calls int }

func (f *failing) Log(context.Context, Record) error {
	f.calls++
	return errors.New("disk full")
}

func TestMulti(t *testing.T) {
	assert.NoError(t, Multi().Log(context.Background(), Record{}))
	assert.NoError(t, Multi(nil, Nop()).Log(context.Background(), Record{}))

	f := &failing{}
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	j, err := NewJSONL(path)
	require.NoError(t, err)

	err = Multi(f, j).Log(context.Background(), Record{"task": "x"})
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, 1, f.calls)
	assert.FileExists(t, path)
}
