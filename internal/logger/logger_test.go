package logger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewWriter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, false)
	l.Debug().Msg("hidden")
	l.Info().Str("file", "a.gif").Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("output %q is not a single JSON line: %v", buf.String(), err)
	}
	if entry["message"] != "hello" || entry["file"] != "a.gif" || entry["level"] != "info" {
		t.Fatalf("entry = %v", entry)
	}
	if _, ok := entry["pid"]; !ok {
		t.Fatal("missing pid field")
	}
}

func TestLevel(t *testing.T) {
	if got := NewWriter(&bytes.Buffer{}, true).GetLevel(); got != zerolog.DebugLevel {
		t.Fatalf("debug level = %v", got)
	}
	if got := NewWriter(&bytes.Buffer{}, false).GetLevel(); got != zerolog.InfoLevel {
		t.Fatalf("default level = %v", got)
	}
}

func TestExtendAndSince(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, false)
	child := l.Extend(l.With().Str("req", "r1"))
	Since(child.Info(), time.Now().Add(-time.Second)).Msg("done")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["req"] != "r1" {
		t.Fatalf("req = %v", entry["req"])
	}
	if d, _ := entry["duration"].(float64); d < 1000 {
		t.Fatalf("duration = %v, want >= 1000ms", entry["duration"])
	}
}

func TestNop(t *testing.T) {
	Nop().Error().Msg("discarded")
}
