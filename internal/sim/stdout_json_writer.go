package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"geoactor-sim/internal/telemetry"
)

// JSONStdoutWriter prints one JSON object per snapshot.
type JSONStdoutWriter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to out.
func NewJSONStdoutWriter(out io.Writer) *JSONStdoutWriter {
	return &JSONStdoutWriter{out: out}
}

// Write outputs a snapshot in JSON format.
func (w *JSONStdoutWriter) Write(_ context.Context, s telemetry.Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}

// WriteBatch outputs multiple snapshots in JSON format.
func (w *JSONStdoutWriter) WriteBatch(ctx context.Context, snaps []telemetry.Snapshot) error {
	for _, s := range snaps {
		if err := w.Write(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
