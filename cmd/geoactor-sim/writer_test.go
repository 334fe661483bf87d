package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"geoactor-sim/internal/config"
	"geoactor-sim/internal/geo"
	"geoactor-sim/internal/telemetry"
)

func TestNewWriterLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.jsonl")
	cfg := config.Default()
	cfg.Sinks = []string{config.SinkFile}
	cfg.File.Path = path

	w, err := newWriter(&cfg)
	if err != nil {
		t.Fatalf("newWriter returned error: %v", err)
	}
	snap := telemetry.Snapshot{
		ID:             1,
		EventTimestamp: time.Unix(0, 0).UTC().Format(telemetry.TimestampLayout),
		Location:       geo.Point{Lat: 1, Lon: 2},
		UUID:           123456,
	}
	if err := w.Write(context.Background(), snap); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("expected log file to be non-empty")
	}
}

func TestNewWriterUnknownSink(t *testing.T) {
	cfg := config.Default()
	cfg.Sinks = []string{"kafka"}
	if _, err := newWriter(&cfg); err == nil {
		t.Fatalf("expected error for unknown sink")
	}
}

func TestNewWriterNoSinks(t *testing.T) {
	cfg := config.Default()
	cfg.Sinks = nil
	w, err := newWriter(&cfg)
	if err != nil {
		t.Fatalf("newWriter returned error: %v", err)
	}
	if err := w.Write(context.Background(), telemetry.Snapshot{}); err != nil {
		t.Fatalf("empty writer should accept snapshots: %v", err)
	}
}

func TestLoadFieldsDegradesOnMalformedAppdef(t *testing.T) {
	cfg := config.Default()
	cfg.Appdef = "{'fields': [ broken"
	if fields := loadFields(context.Background(), &cfg); len(fields) != 0 {
		t.Fatalf("expected no fields, got %v", fields)
	}

	cfg.Appdef = "{'fields':[{'name':'age','type':'Integer'},{'name':'driver','type':'String'}]}"
	if fields := loadFields(context.Background(), &cfg); len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %v", fields)
	}
}

func TestWriteSample(t *testing.T) {
	dir := t.TempDir()
	appdef := filepath.Join(dir, "appdef.json")
	if err := os.WriteFile(appdef, []byte(`{"fields":[{"name":"uuid","type":"Long"},{"name":"age","type":"Integer"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.AppdefFile = appdef

	var out strings.Builder
	if err := writeSample(context.Background(), &out, &cfg, 7); err != nil {
		t.Fatalf("writeSample: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(out.String()), &got); err != nil {
		t.Fatalf("sample is not json: %v\n%s", err, out.String())
	}
	if got["route_length"] != float64(0) {
		t.Fatalf("route_length = %v", got["route_length"])
	}
	age, ok := got["age"].(float64)
	if !ok || age < 16 || age > 60 {
		t.Fatalf("age = %v", got["age"])
	}
	if uuid, _ := got["uuid"].(float64); uuid < 100000 || uuid > 999999 {
		t.Fatalf("uuid = %v", got["uuid"])
	}
}

func TestApplySimulateFlags(t *testing.T) {
	cfg := config.Default()
	if err := simulateCmd.Flags().Set("log-file", "/tmp/out.jsonl"); err != nil {
		t.Fatal(err)
	}
	if err := simulateCmd.Flags().Set("actors", "4"); err != nil {
		t.Fatal(err)
	}
	applySimulateFlags(simulateCmd, &cfg)
	if cfg.Actors != 4 || cfg.File.Path != "/tmp/out.jsonl" || !cfg.HasSink(config.SinkFile) || !cfg.HasSink(config.SinkHTTP) {
		t.Fatalf("flags not applied: %+v", cfg)
	}
}
