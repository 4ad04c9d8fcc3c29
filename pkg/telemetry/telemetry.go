// Package telemetry provides OpenTelemetry integration for distributed
// tracing. Configuration is loaded from the standard OTEL_* environment
// variables; tracing is off unless OTEL_ENABLED is "true".
//
// Environment variables:
//
//	OTEL_ENABLED                  - Enable/disable tracing (default: false)
//	OTEL_SERVICE_NAME             - Service name (default: hprof-analysis)
//	OTEL_SERVICE_VERSION          - Service version (default: unknown)
//	OTEL_EXPORTER_OTLP_ENDPOINT   - OTLP collector endpoint
//	OTEL_EXPORTER_OTLP_PROTOCOL   - grpc or http/protobuf (default: grpc)
//	OTEL_EXPORTER_OTLP_HEADERS    - Headers (e.g., Authorization=Bearer xxx)
//	OTEL_EXPORTER_OTLP_INSECURE   - Use insecure connection (default: false)
//	OTEL_TRACES_SAMPLER           - Sampler type (default: always_on)
//	OTEL_TRACES_SAMPLER_ARG       - Sampler argument (e.g., ratio)
//	OTEL_RESOURCE_ATTRIBUTES      - Additional resource attributes
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace"
)

var (
	globalConfig *Config
	configOnce   sync.Once
)

// ShutdownFunc is a function that shuts down the TracerProvider.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(_ context.Context) error {
	return nil
}

// Init initializes OpenTelemetry and sets up the global TracerProvider. When
// tracing is disabled it returns a no-op shutdown function and the global
// provider remains the default no-op provider.
func Init(ctx context.Context) (ShutdownFunc, error) {
	cfg := loadConfig()

	if !cfg.Enabled {
		return noopShutdown, nil
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return noopShutdown, err
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return noopShutdown, err
	}

	tp := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithBatcher(exporter),
		trace.WithSampler(createSampler(cfg)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// Enabled returns whether OpenTelemetry tracing is enabled.
func Enabled() bool {
	return loadConfig().Enabled
}

// loadConfig loads configuration once and caches it.
func loadConfig() *Config {
	configOnce.Do(func() {
		globalConfig = LoadFromEnv()
	})
	return globalConfig
}
