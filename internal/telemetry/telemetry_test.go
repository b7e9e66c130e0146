package telemetry

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/zhouzirui/z-chat/backend/internal/config"
)

func TestSetupLoggingWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "chat.log")

	cleanup, err := SetupLogging(path)
	require.NoError(t, err)
	log.Printf("[test] hello from the log")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[test] hello from the log")
}

func TestSetupLoggingEmptyPathIsNoop(t *testing.T) {
	cleanup, err := SetupLogging("")
	require.NoError(t, err)
	cleanup()
}

func TestSetupFileLoggingSkipsConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tui.log")

	cleanup, err := SetupFileLogging(path)
	require.NoError(t, err)
	assert.Equal(t, path, log.Writer().(*lumberjack.Logger).Filename)
	log.Printf("[test] file only")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[test] file only")
}

func TestSetupFileLoggingEmptyPathDiscards(t *testing.T) {
	cleanup, err := SetupFileLogging("")
	require.NoError(t, err)
	assert.Equal(t, io.Discard, log.Writer())
	cleanup()
	assert.Equal(t, os.Stderr, log.Writer())
}

func TestInitDisabledKeepsGlobals(t *testing.T) {
	before := otel.GetTracerProvider()

	cleanup, err := Init(context.Background(), config.TelemetryConfig{})
	require.NoError(t, err)
	cleanup()

	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestInitExportsSpansToFile(t *testing.T) {
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})

	dir := t.TempDir()
	cleanup, err := Init(context.Background(), config.TelemetryConfig{
		OTelEnabled:  true,
		OTelDir:      dir,
		ServiceName:  "z-chat-test",
		ExportPeriod: 60,
	})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "test.span")
	span.End()
	counter, err := otel.Meter("test").Int64Counter("test.counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	cleanup()

	traces, err := os.ReadFile(filepath.Join(dir, traceFileName))
	require.NoError(t, err)
	assert.Contains(t, string(traces), "test.span")
	assert.Contains(t, string(traces), "z-chat-test")

	metrics, err := os.ReadFile(filepath.Join(dir, metricFileName))
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "test.counter")
}
