package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log/global"
)

// syncBuffer is shared by the exporters' goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNew_Formats(t *testing.T) {
	var buf bytes.Buffer
	New(slog.LevelInfo, "json", &buf).Info("hello", slog.String("k", "v"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "hello", line["msg"])
	require.Equal(t, "v", line["k"])

	buf.Reset()
	New(slog.LevelInfo, "text", &buf).Info("hello")
	require.Contains(t, buf.String(), "msg=hello")
}

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := New(slog.LevelWarn, "text", &buf)

	logger.Info("quiet")
	require.Empty(t, buf.String())

	logger.Warn("loud")
	require.Contains(t, buf.String(), "loud")
}

func TestTeeHandler(t *testing.T) {
	var a, b bytes.Buffer
	logger := slog.New(teeHandler{
		slog.NewTextHandler(&a, nil),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	}).With(slog.String("svc", "tasks"))

	logger.Info("only a")
	logger.Error("both")

	require.Contains(t, a.String(), "only a")
	require.Contains(t, a.String(), "svc=tasks")
	require.NotContains(t, b.String(), "only a")
	require.Contains(t, b.String(), "both")
}

func TestSetupOTel_ExportsSpans(t *testing.T) {
	prevTP, prevMP, prevLP := otel.GetTracerProvider(), otel.GetMeterProvider(), global.GetLoggerProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
		global.SetLoggerProvider(prevLP)
	})

	var buf syncBuffer
	shutdown, err := SetupOTel(context.Background(), &buf, time.Hour)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "sweep-run")
	span.End()

	WithOTel(New(slog.LevelInfo, "text", &bytes.Buffer{})).Info("bridged line")

	require.NoError(t, shutdown(context.Background()))
	out := buf.String()
	require.True(t, strings.Contains(out, "sweep-run"), "span missing from %s", out)
	require.Contains(t, out, "bridged line")
}
