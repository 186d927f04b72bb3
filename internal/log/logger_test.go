package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func resetForTest() {
	logger = nil
	once = *new(sync.Once)
}

func TestSetupWithJSON(t *testing.T) {
	resetForTest()
	var buf bytes.Buffer

	SetupWith("DEBUG", "json", &buf)
	if logger == nil {
		t.Fatal("Logger should not be nil")
	}

	Debug("debug line", "k", "v")

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if out["msg"] != "debug line" || out["k"] != "v" {
		t.Errorf("unexpected record: %v", out)
	}
}

func TestSetupOnlyOnce(t *testing.T) {
	resetForTest()
	var first, second bytes.Buffer

	SetupWith("INFO", "text", &first)
	SetupWith("DEBUG", "json", &second)

	Info("hello")
	Debug("hidden")

	if second.Len() != 0 {
		t.Fatalf("second Setup should be ignored, got %q", second.String())
	}
	if !strings.Contains(first.String(), "msg=hello") {
		t.Errorf("expected text record, got %q", first.String())
	}
	if strings.Contains(first.String(), "hidden") {
		t.Errorf("debug record should be filtered at INFO, got %q", first.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"info":  slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, nil)
	logger = slog.New(h)

	WithComponent("test-comp").Info("hello")

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}

	if out["component"] != "test-comp" {
		t.Errorf("Expected component 'test-comp', got %v", out["component"])
	}
	if out["msg"] != "hello" {
		t.Errorf("Expected msg 'hello', got %v", out["msg"])
	}
}

func TestWithAction(t *testing.T) {
	var buf bytes.Buffer
	logger = slog.New(slog.NewJSONHandler(&buf, nil))

	WithAction(nil, "Set").Info("action msg")

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if out["action"] != "Set" {
		t.Errorf("Expected action 'Set', got %v", out["action"])
	}
}

func TestWithMessage(t *testing.T) {
	var buf bytes.Buffer
	logger = slog.New(slog.NewJSONHandler(&buf, nil))

	WithMessage(WithComponent("dispatch"), "msg-123").Info("message log")

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if out["message_id"] != "msg-123" {
		t.Errorf("Expected message_id 'msg-123', got %v", out["message_id"])
	}
	if out["component"] != "dispatch" {
		t.Errorf("Expected component 'dispatch', got %v", out["component"])
	}

	buf.Reset()
	WithMessage(nil, "").Info("no id")
	out = nil
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if _, ok := out["message_id"]; ok {
		t.Errorf("Expected no message_id, got %v", out["message_id"])
	}
}
