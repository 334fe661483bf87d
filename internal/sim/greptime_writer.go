package sim

import (
	"context"
	"encoding/json"
	"errors"

	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"

	"geoactor-sim/internal/logging"
	"geoactor-sim/internal/telemetry"
)

// greptimeClient is the subset of the ingester client used by the writer.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes snapshots to GreptimeDB via the ingester client.
// Schema-learned fields are stored as one JSON string column because their
// set differs between deployments.
type GreptimeDBWriter struct {
	client greptimeClient
	table  string
}

// NewGreptimeDBWriter connects to the GreptimeDB gRPC endpoint. The table is
// created on first write.
func NewGreptimeDBWriter(endpoint string, port int, database, tableName string) (*GreptimeDBWriter, error) {
	cfg := greptime.NewConfig(endpoint).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if tableName == "" {
		tableName = telemetry.SnapshotTableName
	}
	return &GreptimeDBWriter{client: client, table: tableName}, nil
}

// Write inserts a single snapshot.
func (w *GreptimeDBWriter) Write(ctx context.Context, s telemetry.Snapshot) error {
	return w.WriteBatch(ctx, []telemetry.Snapshot{s})
}

// WriteBatch inserts multiple snapshots in one request.
func (w *GreptimeDBWriter) WriteBatch(ctx context.Context, snaps []telemetry.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	tbl, err := table.New(w.table)
	if err != nil {
		return err
	}
	if err := errors.Join(
		tbl.AddTagColumn("uuid", types.INT64),
		tbl.AddFieldColumn("id", types.INT64),
		tbl.AddFieldColumn("lat", types.FLOAT64),
		tbl.AddFieldColumn("lon", types.FLOAT64),
		tbl.AddFieldColumn("route_length", types.INT64),
		tbl.AddFieldColumn("fields", types.STRING),
		tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND),
	); err != nil {
		return err
	}

	for _, s := range snaps {
		fields, err := fieldsJSON(s.Fields)
		if err != nil {
			return err
		}
		if err := tbl.AddRow(s.UUID, s.ID, s.Location.Lat, s.Location.Lon, s.RouteLength, fields, s.Time()); err != nil {
			return err
		}
	}

	if _, err := w.client.Write(ctx, tbl); err != nil {
		logging.FromContext(ctx).Error("greptime write failed", "table", w.table, "err", err)
		return err
	}
	logging.FromContext(ctx).Debug("greptime rows written", "table", w.table, "rows", len(snaps))
	return nil
}

func fieldsJSON(fields []telemetry.Value) (string, error) {
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Name] = f.Value
	}
	b, err := json.Marshal(m)
	return string(b), err
}
