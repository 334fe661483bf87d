package sim

import (
	"context"
	"errors"
	"io"

	"geoactor-sim/internal/actor"
	"geoactor-sim/internal/telemetry"
)

// MultiWriter fans snapshots out to multiple writers.
type MultiWriter struct {
	writers []SnapshotWriter
}

// NewMultiWriter creates a new MultiWriter. Nil writers are skipped.
func NewMultiWriter(ws ...SnapshotWriter) *MultiWriter {
	mw := &MultiWriter{}
	for _, w := range ws {
		if w != nil {
			mw.writers = append(mw.writers, w)
		}
	}
	return mw
}

// Write sends a snapshot to all writers. Every writer is attempted; the first
// error is returned.
func (mw *MultiWriter) Write(ctx context.Context, s telemetry.Snapshot) error {
	var first error
	for _, w := range mw.writers {
		if err := w.Write(ctx, s); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// WriteBatch sends multiple snapshots to all writers, using batch if supported.
func (mw *MultiWriter) WriteBatch(ctx context.Context, snaps []telemetry.Snapshot) error {
	var first error
	for _, w := range mw.writers {
		if err := WriteAll(ctx, w, snaps); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ActorTerminated forwards the termination to writers that track actors.
func (mw *MultiWriter) ActorTerminated(t actor.Termination) {
	for _, w := range mw.writers {
		if n, ok := w.(TerminationNotifier); ok {
			n.ActorTerminated(t)
		}
	}
}

// SetSpawner forwards the spawn hook to writers that support it.
func (mw *MultiWriter) SetSpawner(fn func(int) error) {
	for _, w := range mw.writers {
		if s, ok := w.(SpawnSetter); ok {
			s.SetSpawner(fn)
		}
	}
}

// SetAdminStatus forwards the admin server state to writers that display it.
func (mw *MultiWriter) SetAdminStatus(listening bool) {
	for _, w := range mw.writers {
		if a, ok := w.(AdminStatusWriter); ok {
			a.SetAdminStatus(listening)
		}
	}
}

// LogWriter returns the log destinations of writers that display logs, or nil
// when none does.
func (mw *MultiWriter) LogWriter() io.Writer {
	var outs []io.Writer
	for _, w := range mw.writers {
		if d, ok := w.(LogDisplay); ok {
			outs = append(outs, d.LogWriter())
		}
	}
	switch len(outs) {
	case 0:
		return nil
	case 1:
		return outs[0]
	}
	return io.MultiWriter(outs...)
}

// Close closes every writer that holds resources.
func (mw *MultiWriter) Close() error {
	var errs []error
	for _, w := range mw.writers {
		if c, ok := w.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
