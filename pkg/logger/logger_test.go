package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.name); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestInitFormats(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: "info", Format: "json", Output: &buf})
	slog.Info("json check")
	if !strings.Contains(buf.String(), `"level":"INFO"`) {
		t.Errorf("Expected JSON output, got: %s", buf.String())
	}

	buf.Reset()
	Init(&Config{Level: "info", Format: "text", Output: &buf})
	slog.Info("text check")
	if !strings.Contains(buf.String(), "level=INFO") {
		t.Errorf("Expected text output, got: %s", buf.String())
	}
}

func TestInitLevelGating(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: "warn", Format: "text", Output: &buf})

	slog.Info("should be suppressed")
	slog.Warn("should appear")

	if strings.Contains(buf.String(), "should be suppressed") {
		t.Error("Info message should be suppressed at warn level")
	}
	if !strings.Contains(buf.String(), "should appear") {
		t.Error("Warn message should appear at warn level")
	}
}

func TestNewHasComponent(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: "debug", Format: "text", Output: &buf})

	New("portal").Info("hello")
	if !strings.Contains(buf.String(), "component=portal") {
		t.Errorf("Expected component=portal, got: %s", buf.String())
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: "debug", Format: "text", Output: &buf})

	ctx := context.Background()
	ctx = context.WithValue(ctx, RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, UsernameKey, "operator")
	ctx = WithJob(ctx, "job-9")

	WithContext(ctx).Info("tagged")

	out := buf.String()
	for _, want := range []string{"request_id=req-1", "username=operator", "job_id=job-9"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in log, got: %s", want, out)
		}
	}
}

func TestWithContextEmpty(t *testing.T) {
	Init(&Config{Level: "info", Format: "text"})

	if WithContext(context.Background()) == nil {
		t.Error("Expected non-nil logger")
	}
}

func TestLogFunctions(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(handler))

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-123")

	Info(ctx, "info message", "key", "value")
	if !strings.Contains(buf.String(), "info message") {
		t.Error("Expected info message in log")
	}

	buf.Reset()
	Debug(ctx, "debug message")
	if !strings.Contains(buf.String(), "debug message") {
		t.Error("Expected debug message in log")
	}

	buf.Reset()
	Warn(ctx, "warn message")
	if !strings.Contains(buf.String(), "warn message") {
		t.Error("Expected warn message in log")
	}

	buf.Reset()
	Error(ctx, "error message")
	if !strings.Contains(buf.String(), "error message") {
		t.Error("Expected error message in log")
	}
}
