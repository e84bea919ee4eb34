package observability

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
)

func TestStdLoggerFormatting(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLogger(log.New(&buf, "", 0))
	l.Info("pages written", Int(MetricPageCount, 3), String("file", "out.pdf"))

	line := buf.String()
	if !strings.HasPrefix(line, "INFO pages written") {
		t.Errorf("line = %q", line)
	}
	if !strings.Contains(line, "pdf.pages.count=3") {
		t.Errorf("missing int field: %q", line)
	}
	if !strings.Contains(line, "file=out.pdf") {
		t.Errorf("missing string field: %q", line)
	}
}

func TestStdLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLogger(log.New(&buf, "", 0)).With(String("build", "abc123"))
	l.Warn("slow stage", Int64("ms", 1500))
	line := buf.String()
	if !strings.Contains(line, "build=abc123") || !strings.Contains(line, "ms=1500") {
		t.Errorf("line = %q", line)
	}
	if !strings.HasPrefix(line, "WARN ") {
		t.Errorf("level prefix missing: %q", line)
	}
}

func TestErrorField(t *testing.T) {
	f := Error("cause", errors.New("boom"))
	if f.Key() != "cause" {
		t.Errorf("key = %q", f.Key())
	}
	if err, ok := f.Value().(error); !ok || err.Error() != "boom" {
		t.Errorf("value = %v", f.Value())
	}
}

func TestNopTracer(t *testing.T) {
	ctx := context.Background()
	got, span := NopTracer().StartSpan(ctx, "pdf.assemble")
	if got != ctx {
		t.Error("nop tracer must not replace the context")
	}
	span.SetTag("pages", 1)
	span.SetError(errors.New("boom"))
	span.Finish()
}

func TestNopLoggerIsSilent(t *testing.T) {
	var l Logger = NopLogger{}
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
	if _, ok := l.With(String("a", "b")).(NopLogger); !ok {
		t.Error("With must stay a nop")
	}
}
