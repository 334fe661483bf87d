package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"geoactor-sim/internal/telemetry"
)

// FileOptions controls rotation of the snapshot log.
type FileOptions struct {
	MaxSizeMB  int
	MaxBackups int
	Compress   bool
}

// FileWriter appends snapshots to a JSONL log, rotating it by size. The log can
// be fed back through ReplayLog.
type FileWriter struct {
	mu  sync.Mutex
	log *lumberjack.Logger
}

// NewFileWriter opens (or creates) the log at path.
func NewFileWriter(path string, opts FileOptions) (*FileWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open snapshot log: %w", err)
	}
	f.Close()
	return &FileWriter{log: &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		Compress:   opts.Compress,
	}}, nil
}

// Write logs a single snapshot.
func (f *FileWriter) Write(_ context.Context, s telemetry.Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err = f.log.Write(data)
	return err
}

// WriteBatch logs multiple snapshots.
func (f *FileWriter) WriteBatch(ctx context.Context, snaps []telemetry.Snapshot) error {
	for _, s := range snaps {
		if err := f.Write(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying file.
func (f *FileWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.log.Close()
}
