package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompactHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewCompactHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})).
		With(componentKey, "depcache")

	l.Info("diff pass complete", "classes", 3, "durationMs", int64(12), "scope", "com.example Foo")

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "[INFO]  "), line)
	assert.Contains(t, line, "[depcache] diff pass complete |")
	assert.Contains(t, line, "classes=3")
	assert.Contains(t, line, "duration=12ms")
	assert.Contains(t, line, `scope="com.example Foo"`)
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestCompactHandlerFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewCompactHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	l.Info("hidden")
	l.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "[WARN]  ")
}

func TestRunIDShortened(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, slog.LevelInfo, false)
	t.Cleanup(func() { SetOutput(os.Stderr, slog.LevelInfo, false) })

	ctx := WithRunID(context.Background(), "0123456789abcdef")
	InfoContext(ctx, "snapshot written")

	assert.Equal(t, "0123456789abcdef", GetRunID(ctx))
	assert.Contains(t, buf.String(), "run=01234567")
	assert.NotContains(t, buf.String(), "89abcdef")
}

func TestJSONOutputAtTraceLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, LevelTrace, true)
	t.Cleanup(func() { SetOutput(os.Stderr, slog.LevelInfo, false) })

	ctx := WithRunID(context.Background(), "run-1")
	TraceContext(ctx, "replaying class", "class", "com/example/Foo")

	var entry map[string]any
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	assert.Equal(t, "replaying class", entry["msg"])
	assert.Equal(t, "run-1", entry["runID"])
	assert.Equal(t, "com/example/Foo", entry["class"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		verbosity string
		count     int
		want      slog.Level
	}{
		{"", 0, slog.LevelInfo},
		{"", 1, slog.LevelDebug},
		{"", 3, LevelTrace},
		{"WARN", 2, slog.LevelWarn},
		{"quiet", 0, slog.LevelError},
		{"trace", 0, LevelTrace},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.verbosity, tt.count), "%q/%d", tt.verbosity, tt.count)
	}
}
