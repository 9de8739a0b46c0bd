package sinks

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"emberhold/server/logging"
)

func TestConsoleSinkHonorsUseColor(t *testing.T) {
	event := logging.Event{Type: "gameplay.world_clock", Severity: logging.SeverityWarn}

	var plain bytes.Buffer
	if err := NewConsoleSink(&plain, logging.ConsoleConfig{}).Write(event); err != nil {
		t.Fatalf("write: %v", err)
	}
	if strings.Contains(plain.String(), "\x1b[") {
		t.Fatalf("color escape emitted with UseColor disabled: %q", plain.String())
	}

	var colored bytes.Buffer
	if err := NewConsoleSink(&colored, logging.ConsoleConfig{UseColor: true}).Write(event); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(colored.String(), ansiYellow) {
		t.Fatalf("warn severity not colored: %q", colored.String())
	}
}

func TestJSONSinkFlushesWhenBatchFills(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONSink(&buf, logging.JSONConfig{MaxBatch: 2, FlushInterval: time.Hour})
	defer sink.Close(context.Background())

	if err := sink.Write(logging.Event{Type: "scheduler.task_failed"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("partial batch flushed early: %q", buf.String())
	}

	if err := sink.Write(logging.Event{Type: "scheduler.task_failed"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Count(buf.String(), "\n")
	if lines != 2 {
		t.Fatalf("expected 2 flushed lines at the batch boundary, got %d", lines)
	}
}

func TestJSONFileSinkWritesToConfiguredPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	sink, err := NewJSONFileSink(logging.JSONConfig{FilePath: path, MaxBatch: 1})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := sink.Write(logging.Event{Type: "lifecycle.player_joined"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(string(data), "lifecycle.player_joined") {
		t.Fatalf("event missing from file: %q", string(data))
	}
}

func TestJSONFileSinkRequiresPath(t *testing.T) {
	if _, err := NewJSONFileSink(logging.JSONConfig{}); err == nil {
		t.Fatalf("expected an error for an empty file path")
	}
}
