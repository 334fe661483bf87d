package sim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"geoactor-sim/internal/telemetry"
)

// replayBatchSize caps the snapshots flushed at once when replaying without delays.
const replayBatchSize = 500

// ReplayLog replays snapshots from r to writer, spacing them by the difference of
// their event timestamps. A speed >0 accelerates playback. If speed <= 0, no
// artificial delay is inserted and snapshots are flushed in batches. Delivery
// errors are returned; the caller decides whether they are fatal.
func ReplayLog(ctx context.Context, r io.Reader, writer SnapshotWriter, speed float64) (int, error) {
	if speed <= 0 {
		return replayBatched(ctx, json.NewDecoder(r), writer)
	}
	dec := json.NewDecoder(r)
	var prev time.Time
	n := 0
	for {
		var s telemetry.Snapshot
		if err := dec.Decode(&s); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, fmt.Errorf("snapshot %d: %w", n+1, err)
		}
		ts := s.Time()
		if !prev.IsZero() && !ts.IsZero() {
			diff := ts.Sub(prev)
			if speed != 1 {
				diff = time.Duration(float64(diff) / speed)
			}
			if diff > 0 {
				if err := sleepContext(ctx, diff); err != nil {
					return n, err
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := writer.Write(ctx, s); err != nil {
			return n, err
		}
		n++
		if !ts.IsZero() {
			prev = ts
		}
	}
}

func replayBatched(ctx context.Context, dec *json.Decoder, writer SnapshotWriter) (int, error) {
	n := 0
	batch := make([]telemetry.Snapshot, 0, replayBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := WriteAll(ctx, writer, batch); err != nil {
			return err
		}
		n += len(batch)
		batch = batch[:0]
		return nil
	}
	for {
		var s telemetry.Snapshot
		if err := dec.Decode(&s); err != nil {
			if errors.Is(err, io.EOF) {
				return n, flush()
			}
			if ferr := flush(); ferr != nil {
				return n, ferr
			}
			return n, fmt.Errorf("snapshot %d: %w", n+1, err)
		}
		batch = append(batch, s)
		if len(batch) == replayBatchSize {
			if err := flush(); err != nil {
				return n, err
			}
		}
	}
}

// ReplayLogFile opens a file and replays its snapshots.
func ReplayLogFile(ctx context.Context, path string, writer SnapshotWriter, speed float64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return ReplayLog(ctx, f, writer, speed)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
