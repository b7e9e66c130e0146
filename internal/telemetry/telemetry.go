// Package telemetry 负责日志落盘与 OpenTelemetry 初始化。
package telemetry

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/zhouzirui/z-chat/backend/internal/config"
)

const (
	traceFileName  = "traces.log"
	metricFileName = "metrics.log"
)

func rotatingFile(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

// SetupLogging tees the standard logger into a rotating file. An empty path keeps stderr only.
// The returned func closes the file and restores stderr.
func SetupLogging(logFile string) (func(), error) {
	return setupLogging(logFile, os.Stderr)
}

// SetupFileLogging sends the standard logger to logFile only, for full-screen terminal use.
// An empty path discards log output.
func SetupFileLogging(logFile string) (func(), error) {
	if logFile == "" {
		log.SetOutput(io.Discard)
		return func() { log.SetOutput(os.Stderr) }, nil
	}
	return setupLogging(logFile, nil)
}

func setupLogging(logFile string, console io.Writer) (func(), error) {
	if logFile == "" {
		return func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file := rotatingFile(logFile)
	if console != nil {
		log.SetOutput(io.MultiWriter(console, file))
	} else {
		log.SetOutput(file)
	}
	log.Printf("[telemetry] logging to %s", logFile)

	return func() {
		log.SetOutput(os.Stderr)
		if err := file.Close(); err != nil {
			log.Printf("[telemetry] failed to close log file: %v", err)
		}
	}, nil
}

// Init installs global tracer and meter providers that write to files under cfg.OTelDir.
// When telemetry is disabled the otel no-op globals stay in place.
func Init(ctx context.Context, cfg config.TelemetryConfig) (func(), error) {
	if !cfg.OTelEnabled {
		return func() {}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if err := os.MkdirAll(cfg.OTelDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}

	traceFile := rotatingFile(filepath.Join(cfg.OTelDir, traceFileName))
	traceExporter, err := stdouttrace.New(
		stdouttrace.WithWriter(traceFile),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)

	metricsFile := rotatingFile(filepath.Join(cfg.OTelDir, metricFileName))
	metricExporter, err := stdoutmetric.New(
		stdoutmetric.WithWriter(metricsFile),
		stdoutmetric.WithPrettyPrint(),
	)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	interval := time.Duration(cfg.ExportPeriod) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	log.Printf("[telemetry] otel enabled service=%s dir=%s interval=%s", cfg.ServiceName, cfg.OTelDir, interval)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Printf("[telemetry] failed to shutdown tracer provider: %v", err)
		}
		if err := mp.Shutdown(shutdownCtx); err != nil {
			log.Printf("[telemetry] failed to shutdown meter provider: %v", err)
		}
		if err := traceFile.Close(); err != nil {
			log.Printf("[telemetry] failed to close trace file: %v", err)
		}
		if err := metricsFile.Close(); err != nil {
			log.Printf("[telemetry] failed to close metrics file: %v", err)
		}
	}, nil
}
