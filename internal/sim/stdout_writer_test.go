package sim

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"geoactor-sim/internal/actor"
)

func TestStdoutWriterJSONFallback(t *testing.T) {
	buf := &bytes.Buffer{}
	w := newStdoutWriter(buf, false)
	if _, ok := w.(*JSONStdoutWriter); !ok {
		t.Fatalf("expected *JSONStdoutWriter, got %T", w)
	}
	if err := w.Write(context.Background(), sampleSnapshot(1, time.Unix(0, 0))); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	out := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(out, `{"id":0,"event_timestamp":"1970-01-01T00:00:00.000Z"`) {
		t.Fatalf("expected JSON output, got %q", out)
	}
}

func TestStdoutWriterColorized(t *testing.T) {
	buf := &bytes.Buffer{}
	w := newStdoutWriter(buf, true)
	if err := w.Write(context.Background(), sampleSnapshot(111111, time.Unix(0, 0))); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := w.Write(context.Background(), sampleSnapshot(222222, time.Unix(0, 0))); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %q", buf.String())
	}
	if !strings.Contains(lines[0], colorRed+"uuid=111111") || !strings.Contains(lines[1], colorGreen+"uuid=222222") {
		t.Fatalf("actors should get distinct colors: %q", lines)
	}
	if !strings.Contains(lines[0], "age=30") || !strings.Contains(lines[0], "route=12m") {
		t.Fatalf("fields missing: %q", lines[0])
	}
}

func TestColorStdoutWriterReleasesColors(t *testing.T) {
	w := NewColorStdoutWriter(&bytes.Buffer{})
	s := sampleSnapshot(111111, time.Unix(0, 0))
	s.ActorID = "a1"
	if err := w.Write(context.Background(), s); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if len(w.colors) != 1 {
		t.Fatalf("expected one color entry, got %d", len(w.colors))
	}
	w.ActorTerminated(actor.Termination{ActorID: "a1", UUID: 111111})
	if len(w.colors) != 0 {
		t.Fatalf("color of terminated actor kept: %v", w.colors)
	}
}
