package telemetry

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"geoactor-sim/internal/geo"
	"geoactor-sim/internal/schema"
)

// Bounds is an inclusive integer range.
type Bounds struct {
	Min int
	Max int
}

// GeneratorConfig holds the ranges used for well-known fields.
type GeneratorConfig struct {
	IDLength int
	Age      Bounds
	Temp     Bounds
	Speed    Bounds
}

// DefaultGeneratorConfig mirrors the defaults of the configuration layer.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		IDLength: 6,
		Age:      Bounds{Min: 16, Max: 60},
		Temp:     Bounds{Min: 50, Max: 100},
		Speed:    Bounds{Min: 10, Max: 120},
	}
}

// FieldTypeError is returned for a field whose declared type is not recognized.
type FieldTypeError struct {
	Field string
	Type  schema.Type
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("field %q: unrecognized type %q", e.Field, e.Type)
}

// ErrOwnedField is returned by Value for names whose value the lifecycle maintains.
var ErrOwnedField = errors.New("field is maintained by the actor lifecycle")

// statusChoices is weighted toward HEALTHY by repetition.
var statusChoices = []string{"HEALTHY", "NEEDS SERVICE", "DATA ERRORS", "HEALTHY", "HEALTHY", "HEALTHY"}

// rule produces a realistic value for a well-known field name.
type rule func(g *Generator, st *State) any

var nameRules = map[string]rule{
	"uuid":            identifier,
	"carid":           identifier,
	"age":             func(g *Generator, _ *State) any { return g.between(g.cfg.Age) },
	"name":            func(g *Generator, _ *State) any { return g.fake.Name() },
	"driver":          func(g *Generator, _ *State) any { return g.fake.Name() },
	"country":         func(g *Generator, _ *State) any { return g.fake.Country() },
	"observationTime": func(g *Generator, _ *State) any { return g.now().Unix() },
	"passengerCount":  func(g *Generator, _ *State) any { return g.between(Bounds{Min: 1, Max: 6}) },
	"motortemp":       func(g *Generator, _ *State) any { return g.between(g.cfg.Temp) },
	"speed":           func(g *Generator, _ *State) any { return g.between(g.cfg.Speed) },
	"status":          func(g *Generator, _ *State) any { return statusChoices[g.rand.Intn(len(statusChoices))] },
	"geometry":        func(_ *Generator, st *State) any { return st.Location.String() },
	FieldLocation:     nil,
	FieldRouteLength:  nil,
}

var typeRules = map[schema.Type]rule{
	schema.TypeString:  func(g *Generator, _ *State) any { return g.fake.BS() },
	schema.TypeBoolean: func(g *Generator, _ *State) any { return g.rand.Intn(2) == 1 },
	schema.TypeInteger: func(g *Generator, _ *State) any { return g.digits(2) },
	schema.TypeLong:    func(g *Generator, _ *State) any { return g.digits(5) },
	schema.TypeDouble: func(g *Generator, _ *State) any {
		r := float64(g.digits(7))
		return -r + g.rand.Float64()*2*r
	},
	schema.TypeLocation: func(g *Generator, _ *State) any {
		return geo.Point{Lat: g.fake.Latitude(), Lon: g.fake.Longitude()}.Round6().String()
	},
	schema.TypeDateTime: func(g *Generator, _ *State) any {
		return g.fake.Date().UTC().Truncate(time.Millisecond).Format(TimestampLayout)
	},
}

// Generator produces field values for one actor. It is not safe for concurrent use;
// each actor owns its own.
type Generator struct {
	cfg  GeneratorConfig
	rand *rand.Rand
	fake *gofakeit.Faker
	now  func() time.Time
}

// NewGenerator creates a generator drawing from rng. A nil now uses time.Now.
func NewGenerator(cfg GeneratorConfig, rng *rand.Rand, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	if cfg.IDLength <= 0 {
		cfg.IDLength = DefaultGeneratorConfig().IDLength
	}
	return &Generator{cfg: cfg, rand: rng, fake: gofakeit.New(rng.Uint64()), now: now}
}

// Identifier returns a random integer with exactly IDLength digits.
func (g *Generator) Identifier() int64 {
	return g.digits(g.cfg.IDLength)
}

// Value generates a value for f. Well-known names win over the declared type.
func (g *Generator) Value(f schema.Field, st *State) (any, error) {
	if r, ok := nameRules[f.Name]; ok {
		if r == nil {
			return nil, ErrOwnedField
		}
		return r(g, st), nil
	}
	if r, ok := typeRules[schema.NormalizeType(string(f.Type))]; ok {
		return r(g, st), nil
	}
	return nil, &FieldTypeError{Field: f.Name, Type: f.Type}
}

// Populate fills every non-reserved field of st. Fields with an unrecognized type are
// stored as null; their errors are joined and returned after all fields are processed.
func (g *Generator) Populate(st *State, fields []schema.Field) error {
	var errs []error
	for _, f := range fields {
		if st.Owns(f.Name) {
			continue
		}
		v, err := g.Value(f, st)
		if errors.Is(err, ErrOwnedField) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
		}
		st.Set(f.Name, v)
	}
	return errors.Join(errs...)
}

func identifier(g *Generator, _ *State) any {
	return g.Identifier()
}

func (g *Generator) between(b Bounds) int64 {
	if b.Max <= b.Min {
		return int64(b.Min)
	}
	return int64(b.Min) + g.rand.Int63n(int64(b.Max-b.Min)+1)
}

func (g *Generator) digits(n int) int64 {
	lo := int64(1)
	for i := 1; i < n; i++ {
		lo *= 10
	}
	hi := lo*10 - 1
	return lo + g.rand.Int63n(hi-lo+1)
}
