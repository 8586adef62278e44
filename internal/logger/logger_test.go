package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoopLogger(t *testing.T) {
	l := OrNoop(nil)
	_, ok := l.(*NoopLogger)
	assert.True(t, ok)

	// Should not panic
	l.Debug("sql generated", "sql", "DELETE FROM user")
	l.Info("sql executed")
	l.Warn("delete without criteria affects every row", "table", "user")
	l.Error("sql failed", "error", "boom")
}

func TestSlogAdapter_Levels(t *testing.T) {
	tests := []struct {
		name      string
		logFunc   func(Logger)
		wantLevel string
		wantMsg   string
	}{
		{"debug", func(l Logger) { l.Debug("sql generated", "operation", "insert") }, "DEBUG", "sql generated"},
		{"info", func(l Logger) { l.Info("sql executed", "operation", "list") }, "INFO", "sql executed"},
		{"warn", func(l Logger) { l.Warn("delete without criteria", "operation", "delete") }, "WARN", "delete without criteria"},
		{"error", func(l Logger) { l.Error("sql failed", "operation", "update") }, "ERROR", "sql failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFunc(NewTextLogger(&buf, slog.LevelDebug))

			out := buf.String()
			assert.Contains(t, out, "level="+tt.wantLevel)
			assert.Contains(t, out, tt.wantMsg)
			assert.Contains(t, out, "operation=")
		})
	}
}

func TestSlogAdapter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewTextLogger(&buf, slog.LevelWarn)

	l.Debug("sql generated")
	l.Info("sql executed")
	assert.Empty(t, buf.String())

	l.Warn("delete without criteria")
	assert.Contains(t, buf.String(), "delete without criteria")
}

func TestSlogAdapter_With(t *testing.T) {
	var buf bytes.Buffer
	base := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, nil)))

	base.With("table", "user").Info("sql executed", "rows", 2)

	out := buf.String()
	assert.Contains(t, out, `"table":"user"`)
	assert.Contains(t, out, `"rows":2`)
}

func TestNewSlogAdapter_NilUsesDefault(t *testing.T) {
	assert.NotPanics(t, func() {
		NewSlogAdapter(nil).Debug("sql generated")
	})
}

func BenchmarkNoopLogger(b *testing.B) {
	l := &NoopLogger{}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		l.Debug("sql generated",
			"operation", "list",
			"table", "user",
			"params", 3)
	}
}
