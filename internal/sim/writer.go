package sim

import (
	"context"
	"io"

	"geoactor-sim/internal/actor"
	"geoactor-sim/internal/telemetry"
)

// SnapshotWriter delivers actor snapshots to a sink. Implementations are shared
// by every actor of a fleet and must be safe for concurrent use.
type SnapshotWriter interface {
	Write(ctx context.Context, s telemetry.Snapshot) error
}

// batchWriter is implemented by writers that deliver many snapshots at once.
type batchWriter interface {
	WriteBatch(ctx context.Context, snaps []telemetry.Snapshot) error
}

// TerminationNotifier is implemented by writers that track actor lifetimes.
type TerminationNotifier interface {
	ActorTerminated(t actor.Termination)
}

// SpawnSetter is implemented by writers that can ask the fleet for more actors.
type SpawnSetter interface {
	SetSpawner(fn func(n int) error)
}

// AdminStatusWriter is implemented by writers that display the admin server state.
type AdminStatusWriter interface {
	SetAdminStatus(listening bool)
}

// LogDisplay is implemented by writers that show process logs themselves, so
// the logger must not write to the terminal directly.
type LogDisplay interface {
	LogWriter() io.Writer
}

// WriteAll writes snaps through w, using batch mode when w supports it.
func WriteAll(ctx context.Context, w SnapshotWriter, snaps []telemetry.Snapshot) error {
	if bw, ok := w.(batchWriter); ok {
		return bw.WriteBatch(ctx, snaps)
	}
	for _, s := range snaps {
		if err := w.Write(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
