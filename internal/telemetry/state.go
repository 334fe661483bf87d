package telemetry

import (
	"math"
	"time"

	"geoactor-sim/internal/geo"
)

// State is the mutable record owned by one actor. Reserved fields are typed;
// schema-learned fields live in an ordered extension list set once at birth.
type State struct {
	ID             int64
	EventTimestamp string
	Location       geo.Point
	RouteLength    int64
	UUID           int64

	fields []Value
	index  map[string]int
}

// NewState returns a state at the given location with route_length 0.
func NewState(uuid int64, location geo.Point) *State {
	return &State{UUID: uuid, Location: location, index: make(map[string]int)}
}

// Owns reports whether name is a reserved field of the record.
func (s *State) Owns(name string) bool {
	switch name {
	case FieldID, FieldEventTimestamp, FieldLocation, FieldRouteLength, FieldUUID:
		return true
	}
	return false
}

// Set stores a schema-learned field. Reserved names are ignored and Set reports false.
// Setting an existing field replaces its value in place.
func (s *State) Set(name string, v any) bool {
	if s.Owns(name) {
		return false
	}
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[name]; ok {
		s.fields[i].Value = v
		return true
	}
	s.index[name] = len(s.fields)
	s.fields = append(s.fields, Value{Name: name, Value: v})
	return true
}

// Get returns a schema-learned field.
func (s *State) Get(name string) (any, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.fields[i].Value, true
}

// Stamp refreshes id and event_timestamp from now.
func (s *State) Stamp(now time.Time) {
	s.ID = now.UnixMilli()
	s.EventTimestamp = now.UTC().Format(TimestampLayout)
}

// MoveTo replaces the location and adds the rounded distance travelled to route_length.
// It returns the meters added.
func (s *State) MoveTo(p geo.Point) int64 {
	meters := int64(math.RoundToEven(geo.HaversineMeters(s.Location, p)))
	s.RouteLength += meters
	s.Location = p
	return meters
}

// Snapshot returns a copy that is safe to hand to other goroutines.
func (s *State) Snapshot() Snapshot {
	fields := make([]Value, len(s.fields))
	copy(fields, s.fields)
	return Snapshot{
		ID:             s.ID,
		EventTimestamp: s.EventTimestamp,
		Location:       s.Location,
		RouteLength:    s.RouteLength,
		UUID:           s.UUID,
		Fields:         fields,
	}
}
