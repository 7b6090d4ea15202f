package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected default logger")
	}
}

func TestStartSpanNestsTraceAndParent(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "debug"))

	ctx, outer := StartSpan(ctx, "outer")
	traceID := TraceIDFromContext(ctx)
	outerID := SpanIDFromContext(ctx)
	if traceID == "" || outerID == "" {
		t.Fatal("expected trace and span ids on context")
	}

	inner, span := StartSpan(ctx, "inner")
	if TraceIDFromContext(inner) != traceID {
		t.Fatal("expected child span to reuse trace id")
	}
	span.End(errors.New("boom"))
	outer.End(nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two log lines, got %d: %s", len(lines), buf.String())
	}

	var failed map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &failed); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if failed["msg"] != "span failed" || failed["parent_span_id"] != outerID || failed["error"] != "boom" {
		t.Fatalf("unexpected failed span entry: %v", failed)
	}
}

func TestNewIgnoresUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "chatty")
	logger.Debug("hidden")
	logger.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output for fallback level: %s", buf.String())
	}
}
