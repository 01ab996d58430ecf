package zerologger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerWritesKeyValuePairs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: zerolog.DebugLevel, Output: &buf})

	logger.Info("session acquired", "account_id", "acc-1", "error", errors.New("none"), "dangling")

	entry := decodeLine(t, buf.String())
	if entry["message"] != "session acquired" {
		t.Fatalf("unexpected message %#v", entry["message"])
	}
	if entry["level"] != "info" {
		t.Fatalf("unexpected level %#v", entry["level"])
	}
	if entry["account_id"] != "acc-1" {
		t.Fatalf("expected account_id field, got %#v", entry)
	}
	if entry["error"] != "none" {
		t.Fatalf("expected error field, got %#v", entry["error"])
	}
	if entry["extra"] != "dangling" {
		t.Fatalf("expected trailing key under extra, got %#v", entry["extra"])
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: zerolog.WarnLevel, Output: &buf})
	logger.Debug("hidden")
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below level, got %q", buf.String())
	}
	logger.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected warn output, got %q", buf.String())
	}
}

func TestWithFieldsAndProvider(t *testing.T) {
	var buf bytes.Buffer
	provider := NewProvider(New(Options{Level: zerolog.InfoLevel, Output: &buf}))

	named := provider.GetLogger("launcher")
	fielded, ok := named.(*Logger)
	if !ok {
		t.Fatalf("expected zerologger logger, got %T", named)
	}
	fielded.WithFields(map[string]any{"operation": "fetch_all"}).Info("done")

	entry := decodeLine(t, buf.String())
	if entry["logger"] != "launcher" || entry["operation"] != "fetch_all" {
		t.Fatalf("expected provider and fields context, got %#v", entry)
	}
}

func decodeLine(t *testing.T, raw string) map[string]any {
	t.Helper()
	line := strings.TrimSpace(raw)
	if idx := strings.LastIndex(line, "\n"); idx >= 0 {
		line = line[idx+1:]
	}
	entry := map[string]any{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", line, err)
	}
	return entry
}
