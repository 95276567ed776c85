package observability

import (
	"github.com/promoreel/promoreel/internal/observability/logger"
	"github.com/promoreel/promoreel/internal/observability/metrics"
	"github.com/promoreel/promoreel/internal/observability/tracing"
	"go.uber.org/fx"
)

// Module wires logging, tracing, and metrics providers.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		newLoggerConfig,
		logger.New,
		newTracingConfig,
		tracing.NewProvider,
		newMetricsConfig,
		metrics.NewProvider,
		metrics.NewRecorder,
		metrics.NewHTTPMetrics,
	),
)

func newLoggerConfig(cfg Config) logger.Config {
	return logger.Config{
		ServiceName:         cfg.ServiceName,
		Environment:         cfg.Environment,
		Version:             cfg.Version,
		Level:               cfg.LogLevel,
		Format:              cfg.LogFormat,
		Debug:               cfg.Debug(),
		IncludeCaller:       true,
		IncludeStackOnError: true,
	}
}

func newTracingConfig(cfg Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.OtelEnabled,
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   cfg.Version,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		SamplingRatio:    cfg.OtelSamplingRatio,
	}
}

func newMetricsConfig(cfg Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.OtelEnabled,
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   cfg.Version,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
	}
}
