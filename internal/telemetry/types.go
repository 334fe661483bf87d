// Actor state and the snapshot rows written to sinks
package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"geoactor-sim/internal/geo"
)

// Reserved field names. The lifecycle owns these; schema generation never writes them.
const (
	FieldID             = "id"
	FieldEventTimestamp = "event_timestamp"
	FieldLocation       = "location"
	FieldRouteLength    = "route_length"
	FieldUUID           = "uuid"
)

// TimestampLayout is the wire format of event_timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// SnapshotTableName holds the table name used when writing to GreptimeDB.
// It defaults to "actor_snapshots" but can be overridden via the
// GREPTIMEDB_TABLE environment variable.
var SnapshotTableName = func() string {
	if env := os.Getenv("GREPTIMEDB_TABLE"); env != "" {
		return env
	}
	return "actor_snapshots"
}()

// Value is one schema-learned field.
type Value struct {
	Name  string
	Value any
}

// Snapshot is an immutable copy of an actor's state, written to sinks as one flat JSON object.
type Snapshot struct {
	ID             int64
	EventTimestamp string
	Location       geo.Point
	RouteLength    int64
	UUID           int64
	Fields         []Value

	// ActorID is the supervisor handle of the emitting actor. It is not part of
	// the wire format, so replayed snapshots leave it empty.
	ActorID string
}

// Key identifies the emitting actor: its handle when known, otherwise its uuid.
func (s Snapshot) Key() string {
	if s.ActorID != "" {
		return s.ActorID
	}
	return strconv.FormatInt(s.UUID, 10)
}

func (Snapshot) TableName() string {
	return SnapshotTableName
}

// Time parses EventTimestamp. It returns the zero time when the timestamp is malformed.
func (s Snapshot) Time() time.Time {
	ts, err := time.Parse(TimestampLayout, s.EventTimestamp)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// Field returns the value of a schema-learned field.
func (s Snapshot) Field(name string) (any, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// MarshalJSON writes reserved keys first, then schema fields in declaration order.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(first bool, key string, v any) error {
		if !first {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		buf.Write(b)
		return nil
	}
	_ = write(true, FieldID, s.ID)
	_ = write(false, FieldEventTimestamp, s.EventTimestamp)
	_ = write(false, FieldLocation, s.Location.String())
	_ = write(false, FieldRouteLength, s.RouteLength)
	_ = write(false, FieldUUID, s.UUID)
	for _, f := range s.Fields {
		if err := write(false, f.Name, f.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a snapshot written by MarshalJSON. Non-reserved keys keep
// their order of appearance.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("snapshot: expected object, got %v", tok)
	}
	var out Snapshot
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key := tok.(string)
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("snapshot field %s: %w", key, err)
		}
		switch key {
		case FieldID:
			out.ID, err = asInt(raw)
		case FieldEventTimestamp:
			out.EventTimestamp, _ = raw.(string)
		case FieldLocation:
			str, _ := raw.(string)
			out.Location, err = geo.ParsePoint(str)
		case FieldRouteLength:
			out.RouteLength, err = asInt(raw)
		case FieldUUID:
			out.UUID, err = asInt(raw)
		default:
			out.Fields = append(out.Fields, Value{Name: key, Value: plain(raw)})
		}
		if err != nil {
			return fmt.Errorf("snapshot field %s: %w", key, err)
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

func asInt(v any) (int64, error) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("expected number, got %T", v)
	}
	return n.Int64()
}

// plain turns json.Number values back into int64 or float64.
func plain(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, _ := n.Float64()
	return f
}
