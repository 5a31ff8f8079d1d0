// Package runlog records one entry per executed task so runs can be inspected
// after the fact.
package runlog

import (
	"context"
	"errors"
	"time"
)

// Record is a single run-log entry.
type Record map[string]any

// Recorder persists records.
type Recorder interface {
	Log(ctx context.Context, rec Record) error
}

// stamp returns a copy of rec with "ts" set unless the caller provided one.
func stamp(rec Record, now time.Time) Record {
	out := make(Record, len(rec)+1)
	out["ts"] = now.UTC().Format(time.RFC3339Nano)
	for k, v := range rec {
		out[k] = v
	}
	return out
}

type nop struct{}

func (nop) Log(context.Context, Record) error { return nil }

// Nop returns a recorder that discards every record.
func Nop() Recorder { return nop{} }

type multi []Recorder

func (m multi) Log(ctx context.Context, rec Record) error {
	var errs []error
	for _, r := range m {
		if err := r.Log(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Multi fans a record out to every recorder. Nil recorders are skipped.
func Multi(recorders ...Recorder) Recorder {
	var m multi
	for _, r := range recorders {
		if r != nil {
			m = append(m, r)
		}
	}
	if len(m) == 0 {
		return Nop()
	}
	return m
}
