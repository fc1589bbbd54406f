package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogsConfig holds OTLP log export configuration.
type LogsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	ServiceVersion    string
	Insecure          bool
}

// LogExporter ships zap entries to the collector alongside the local log output.
type LogExporter struct {
	provider    *sdklog.LoggerProvider
	logger      *zap.Logger
	serviceName string
}

// NewLogExporter creates the OTLP/gRPC log pipeline. When export is disabled
// Attach leaves loggers untouched.
func NewLogExporter(ctx context.Context, cfg LogsConfig, logger *zap.Logger) (*LogExporter, error) {
	e := &LogExporter{logger: logger, serviceName: cfg.ServiceName}
	if !cfg.Enabled {
		logger.Info("OTEL log export disabled")
		return e, nil
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP logs exporter: %w", err)
	}

	res, err := serviceResource(cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		return nil, err
	}
	e.provider = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(e.provider)

	logger.Info("OpenTelemetry log export initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.String("service_name", cfg.ServiceName),
	)
	return e, nil
}

// Attach returns a logger that writes to log's core and to the OTEL bridge.
// The bridge only receives entries log's own core accepts.
func (e *LogExporter) Attach(log *zap.Logger) *zap.Logger {
	if e.provider == nil {
		return log
	}
	bridge := otelzap.NewCore(e.serviceName, otelzap.WithLoggerProvider(e.provider))
	return log.WithOptions(zap.WrapCore(func(base zapcore.Core) zapcore.Core {
		return zapcore.NewTee(base, &levelFilterCore{Core: bridge, enabler: base})
	}))
}

// Shutdown flushes buffered records, waiting at most 10 seconds.
func (e *LogExporter) Shutdown(ctx context.Context) error {
	if e.provider == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := e.provider.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown logger provider: %w", err)
	}
	return nil
}

// IsEnabled reports whether logs are exported.
func (e *LogExporter) IsEnabled() bool {
	return e.provider != nil
}

// levelFilterCore gates a core behind another core's level.
type levelFilterCore struct {
	zapcore.Core
	enabler zapcore.LevelEnabler
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return c.enabler.Enabled(lvl) && c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.enabler.Enabled(entry.Level) {
		return ce
	}
	return c.Core.Check(entry, ce)
}

func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{Core: c.Core.With(fields), enabler: c.enabler}
}
