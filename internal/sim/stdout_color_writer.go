// ColorStdoutWriter prints human-friendly, colorized snapshots to STDOUT.
package sim

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"geoactor-sim/internal/actor"
	"geoactor-sim/internal/telemetry"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

var actorPalette = []string{colorRed, colorGreen, colorYellow, colorBlue, colorMagenta, colorCyan}

// ColorStdoutWriter prints snapshots using ANSI colors, one color per actor.
type ColorStdoutWriter struct {
	mu       sync.Mutex
	out      io.Writer
	colors   map[string]string
	colorIdx int
}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to out.
func NewColorStdoutWriter(out io.Writer) *ColorStdoutWriter {
	return &ColorStdoutWriter{out: out, colors: make(map[string]string)}
}

func (w *ColorStdoutWriter) actorColor(key string) string {
	if c, ok := w.colors[key]; ok {
		return c
	}
	c := actorPalette[w.colorIdx%len(actorPalette)]
	w.colors[key] = c
	w.colorIdx++
	return c
}

// Write outputs a single snapshot in colorized format.
func (w *ColorStdoutWriter) Write(_ context.Context, s telemetry.Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "%s[%s]%s ", colorGray, s.EventTimestamp, colorReset)
	fmt.Fprintf(&b, "%suuid=%d%s ", w.actorColor(s.Key()), s.UUID, colorReset)
	fmt.Fprintf(&b, "%sloc=%s%s ", colorGreen, s.Location, colorReset)
	fmt.Fprintf(&b, "%sroute=%dm%s", colorYellow, s.RouteLength, colorReset)
	for _, f := range s.Fields {
		fmt.Fprintf(&b, " %s%s=%v%s", colorCyan, f.Name, f.Value, colorReset)
	}
	_, err := fmt.Fprintln(w.out, b.String())
	return err
}

// ActorTerminated releases the color of a dead actor.
func (w *ColorStdoutWriter) ActorTerminated(t actor.Termination) {
	w.mu.Lock()
	delete(w.colors, t.Key())
	w.mu.Unlock()
}
