package slogobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/leofalp/chatwire/observability"
)

// decodeLines parses JSON log output into one map per record.
func decodeLines(t *testing.T, out *bytes.Buffer) []map[string]any {
	t.Helper()
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		records = append(records, record)
	}
	return records
}

// TestObserver_LevelFiltering verifies records below the level are dropped and
// trace is printed as TRACE.
func TestObserver_LevelFiltering(t *testing.T) {
	var out bytes.Buffer
	observer := New(WithOutput(&out), WithFormat(FormatJSON), WithLevel(slog.LevelInfo))

	ctx := context.Background()
	observer.Debug(ctx, "hidden")
	observer.Info(ctx, "shown", observability.String("k", "v"))
	observer.Error(ctx, "failed", observability.Error(errors.New("boom")))

	records := decodeLines(t, &out)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d: %s", len(records), out.String())
	}
	if records[0]["msg"] != "shown" || records[0]["k"] != "v" {
		t.Errorf("unexpected record %v", records[0])
	}
	if records[1]["level"] != "ERROR" || records[1]["error"] != "boom" {
		t.Errorf("unexpected record %v", records[1])
	}

	out.Reset()
	traced := New(WithOutput(&out), WithFormat(FormatJSON), WithLevel(LevelTrace))
	traced.Trace(ctx, "very verbose")
	if records := decodeLines(t, &out); len(records) != 1 || records[0]["level"] != "TRACE" {
		t.Errorf("unexpected trace output %s", out.String())
	}
}

// TestObserver_Span verifies span lifecycle records and that an error status
// raises the end record to warn.
func TestObserver_Span(t *testing.T) {
	var out bytes.Buffer
	observer := New(WithOutput(&out), WithFormat(FormatJSON), WithLevel(slog.LevelDebug))

	ctx, span := observer.StartSpan(context.Background(), "chat.completion", observability.String(observability.AttrLLMModel, "gpt-4o"))
	if observability.SpanFromContext(ctx) != span {
		t.Fatal("span must be attached to the context")
	}
	span.AddEvent("http.request.prepared", observability.Int(observability.AttrHTTPRequestBodySize, 12))
	span.RecordError(errors.New("boom"))
	span.SetStatus(observability.StatusError, "boom")
	span.End()

	records := decodeLines(t, &out)
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d: %s", len(records), out.String())
	}
	if records[0]["msg"] != "Span started" || records[0]["llm.model"] != "gpt-4o" {
		t.Errorf("unexpected start %v", records[0])
	}
	if records[1]["event"] != "http.request.prepared" {
		t.Errorf("unexpected event %v", records[1])
	}
	if records[2]["level"] != "ERROR" {
		t.Errorf("unexpected error record %v", records[2])
	}
	end := records[3]
	if end["msg"] != "Span ended" || end["level"] != "WARN" || end["status"] != "error" || end["status.description"] != "boom" {
		t.Errorf("unexpected end %v", end)
	}
}

// TestObserver_TextFormat verifies the default text handler output.
func TestObserver_TextFormat(t *testing.T) {
	var out bytes.Buffer
	observer := New(WithOutput(&out), WithFormat(FormatText), WithLevel(slog.LevelInfo))
	observer.Warn(context.Background(), "careful", observability.Int("n", 3))
	if !strings.Contains(out.String(), "level=WARN") || !strings.Contains(out.String(), "n=3") {
		t.Errorf("unexpected text output %q", out.String())
	}
}

// TestObserver_WithLogger verifies an injected logger is used as is.
func TestObserver_WithLogger(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&out, nil)).With("component", "test")
	New(WithLogger(logger)).Info(context.Background(), "hello")
	if !strings.Contains(out.String(), `"component":"test"`) {
		t.Errorf("injected logger not used: %s", out.String())
	}
}

// TestOptions_FromEnv verifies format and level are read from the environment.
func TestOptions_FromEnv(t *testing.T) {
	t.Setenv("CHATWIRE_LOG_FORMAT", "JSON")
	t.Setenv("CHATWIRE_LOG_LEVEL", "debug")
	if FormatFromEnv() != FormatJSON || LevelFromEnv() != slog.LevelDebug {
		t.Errorf("unexpected env config %v %v", FormatFromEnv(), LevelFromEnv())
	}

	t.Setenv("CHATWIRE_LOG_FORMAT", "")
	t.Setenv("CHATWIRE_LOG_LEVEL", "")
	if FormatFromEnv() != FormatText || LevelFromEnv() != slog.LevelInfo {
		t.Errorf("unexpected defaults %v %v", FormatFromEnv(), LevelFromEnv())
	}
}

// TestParseLevel verifies level names, including aliases.
func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"trace":   LevelTrace,
		"DEBUG":   slog.LevelDebug,
		" info ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"loud":    slog.LevelInfo,
	}
	for name, want := range cases {
		if got := ParseLevel(name); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}
