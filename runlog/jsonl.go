package runlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultPath is used when NewJSONL gets an empty path.
const DefaultPath = "runs.jsonl"

// JSONL appends records as JSON lines to a file.
type JSONL struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewJSONL creates the parent directory of path and returns a recorder that
// appends to it.
func NewJSONL(path string) (*JSONL, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create run log dir: %w", err)
	}
	return &JSONL{path: path, now: time.Now}, nil
}

// Path returns the file the recorder writes to.
func (j *JSONL) Path() string { return j.path }

// Log appends rec with a "ts" field.
func (j *JSONL) Log(_ context.Context, rec Record) error {
	line, err := json.Marshal(stamp(rec, j.now()))
	if err != nil {
		return fmt.Errorf("encode run record: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("write run log: %w", err)
	}
	return f.Close()
}
