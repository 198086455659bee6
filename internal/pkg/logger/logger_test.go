package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func parseLogLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("failed to parse log line %q: %v", line, err)
	}
	return entry
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{
		Level:       "info",
		Format:      "json",
		Output:      &buf,
		ServiceName: "loopmix-test",
	})

	log.Info("hello", "key", "value")

	entry := parseLogLine(t, buf.String())
	if entry["msg"] != "hello" {
		t.Errorf("expected msg=hello, got %v", entry["msg"])
	}
	if entry["service"] != "loopmix-test" {
		t.Errorf("expected service=loopmix-test, got %v", entry["service"])
	}
	if entry["key"] != "value" {
		t.Errorf("expected key=value, got %v", entry["key"])
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{
		Level:  "info",
		Format: "text",
		Output: &buf,
	})

	log.Info("plain text entry")

	if !strings.Contains(buf.String(), "plain text entry") {
		t.Errorf("expected text output to contain message, got %s", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{
		Level:  "warn",
		Format: "json",
		Output: &buf,
	})

	log.Debug("debug entry")
	log.Info("info entry")
	log.Warn("warn entry")

	out := buf.String()
	if strings.Contains(out, "debug entry") || strings.Contains(out, "info entry") {
		t.Errorf("expected debug/info to be filtered at warn level, got %s", out)
	}
	if !strings.Contains(out, "warn entry") {
		t.Errorf("expected warn entry in output, got %s", out)
	}
}

func TestWithJobID(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.WithJobID(42).Info("claimed")

	entry := parseLogLine(t, buf.String())
	if entry["job_id"] != float64(42) {
		t.Errorf("expected job_id=42, got %v", entry["job_id"])
	}
}

func TestWithComponentAndStage(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.WithComponent("pipeline").WithStage("merge").Info("merging")

	entry := parseLogLine(t, buf.String())
	if entry["component"] != "pipeline" {
		t.Errorf("expected component=pipeline, got %v", entry["component"])
	}
	if entry["stage"] != "merge" {
		t.Errorf("expected stage=merge, got %v", entry["stage"])
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	ctx := ContextWithJobID(context.Background(), 7)
	log.FromContext(ctx).Info("from context")

	entry := parseLogLine(t, buf.String())
	if entry["job_id"] != float64(7) {
		t.Errorf("expected job_id=7 from context, got %v", entry["job_id"])
	}
}

func TestFromContextWithoutJobID(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.FromContext(context.Background()).Info("bare")

	entry := parseLogLine(t, buf.String())
	if _, ok := entry["job_id"]; ok {
		t.Errorf("expected no job_id, got %v", entry["job_id"])
	}
}

func TestWithErrorNil(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.WithError(nil).Info("no error attached")

	entry := parseLogLine(t, buf.String())
	if _, ok := entry["error"]; ok {
		t.Errorf("expected no error attribute, got %v", entry["error"])
	}
}

func TestDefaultLevelFallback(t *testing.T) {
	if got := parseLevel("bogus"); got != parseLevel("info") {
		t.Errorf("expected unknown level to fall back to info")
	}
}
