package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_FormatByEnvironment(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		wantJSON    bool
	}{
		{name: "production uses json", environment: "production", wantJSON: true},
		{name: "development uses console", environment: "development"},
		{name: "empty uses console", environment: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Level: slog.LevelInfo, Environment: tt.environment, Writer: &buf})
			log.Info("chapter switched")

			if tt.wantJSON {
				assert.Contains(t, buf.String(), `"msg":"chapter switched"`)
			} else {
				assert.Contains(t, buf.String(), "INF")
				assert.Contains(t, buf.String(), "chapter switched")
			}
		})
	}
}

func TestNew_ExplicitFormatWins(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Environment: "development", Writer: &buf})
	log.Info("test")

	assert.Contains(t, buf.String(), `"msg":"test"`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestConsoleHandler_Enabled(t *testing.T) {
	h := NewConsoleHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo})

	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestConsoleHandler_Handle(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewConsoleHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	log.Warn("checkpoint write failed", "document_id", "doc-1", "attempt", 2, "elapsed", 1500*time.Millisecond)

	out := buf.String()
	assert.Contains(t, out, "WRN")
	assert.Contains(t, out, "checkpoint write failed")
	assert.Contains(t, out, "document_id=doc-1")
	assert.Contains(t, out, "attempt=2")
	assert.Contains(t, out, "elapsed=1.5s")
}

func TestConsoleHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	h := NewConsoleHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	assert.Equal(t, h, h.WithGroup(""))

	grouped := h.WithAttrs([]slog.Attr{slog.String("component", "music")}).WithGroup("http")
	slog.New(grouped).Info("request", "status", 200)

	out := buf.String()
	assert.Contains(t, out, "http.component=music")
	assert.Contains(t, out, "http.status=200")
}

func TestConsoleHandler_AddSource(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewConsoleHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo, AddSource: true}))
	log.Info("with source")

	assert.Contains(t, buf.String(), "logger_test.go:")
}

func TestLevelLabel(t *testing.T) {
	label, color := levelLabel(slog.LevelError)
	assert.Equal(t, "ERR", label)
	assert.Equal(t, colorRed, color)

	label, _ = levelLabel(slog.LevelDebug)
	assert.Equal(t, "DBG", label)
}

func TestLogger_Helpers(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	log.WithError(errors.New("disk full")).
		WithField("attempt", 3).
		WithFields(map[string]any{"backend": "sqlite"}).
		Info("flush")

	out := buf.String()
	assert.Contains(t, out, `"error":"disk full"`)
	assert.Contains(t, out, `"attempt":3`)
	assert.Contains(t, out, `"backend":"sqlite"`)
}

func TestLogger_WithSession(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	log.WithSession("ses-abc", "doc-42").Info("session started")

	assert.Contains(t, buf.String(), `"session_id":"ses-abc"`)
	assert.Contains(t, buf.String(), `"document_id":"doc-42"`)
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() {
		Discard().WithSession("s", "d").Info("dropped")
	})
}
