package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"geoactor-sim/internal/actor"
)

type stubHookWriter struct {
	collectWriter
	spawn      func(int) error
	admin      bool
	terminated []actor.Termination
	closed     bool
}

func (s *stubHookWriter) SetSpawner(fn func(int) error)       { s.spawn = fn }
func (s *stubHookWriter) SetAdminStatus(on bool)              { s.admin = on }
func (s *stubHookWriter) ActorTerminated(t actor.Termination) { s.terminated = append(s.terminated, t) }
func (s *stubHookWriter) Close() error                        { s.closed = true; return nil }

func TestMultiWriterAttemptsAllWriters(t *testing.T) {
	failing := &collectWriter{err: errors.New("first down")}
	ok := &collectWriter{}
	mw := NewMultiWriter(failing, nil, ok)

	err := mw.Write(context.Background(), sampleSnapshot(1, time.Unix(0, 0)))
	if err == nil || err.Error() != "first down" {
		t.Fatalf("expected first error, got %v", err)
	}
	if ok.count() != 1 {
		t.Fatalf("second writer skipped after failure")
	}
}

func TestMultiWriterForwardsHooks(t *testing.T) {
	s := &stubHookWriter{}
	mw := NewMultiWriter(&collectWriter{}, s)

	mw.SetSpawner(func(int) error { return nil })
	if s.spawn == nil {
		t.Fatalf("spawner not forwarded")
	}
	mw.SetAdminStatus(true)
	if !s.admin {
		t.Fatalf("admin status not forwarded")
	}
	mw.ActorTerminated(actor.Termination{ActorID: "a1", Reason: actor.ReasonDied})
	if len(s.terminated) != 1 {
		t.Fatalf("termination not forwarded")
	}
	if err := mw.Close(); err != nil || !s.closed {
		t.Fatalf("close not forwarded: %v", err)
	}
}

func TestMultiWriterLogWriter(t *testing.T) {
	if lw := NewMultiWriter(&collectWriter{}).LogWriter(); lw != nil {
		t.Fatalf("expected no log writer without a log display, got %T", lw)
	}
	p := &fakeProgram{}
	mw := NewMultiWriter(&collectWriter{}, &TUIWriter{program: p})
	lw := mw.LogWriter()
	if lw == nil {
		t.Fatalf("expected the TUI log writer")
	}
	if _, err := lw.Write([]byte("msg=hello\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(p.msgs) != 1 {
		t.Fatalf("expected one log message, got %d", len(p.msgs))
	}
}
