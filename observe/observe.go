package observe

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"gopkg.in/go-playground/validator.v9"

	"github.com/jonwraymond/rpcrelay/observe/exporters"
)

// Config configures telemetry for one relay process.
type Config struct {
	ServiceName string `mapstructure:"service_name" validate:"required"`
	// Version is stamped on the resource as service.version.
	Version string        `mapstructure:"-"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// TracingConfig configures span export for relayed calls.
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Exporter string `mapstructure:"exporter" validate:"omitempty,oneof=otlp stdout none"`
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`

	// SamplePct is the ratio of root calls traced, 0 to 1. Calls arriving
	// with a sampled parent are always traced.
	SamplePct float64 `mapstructure:"sample_pct" validate:"gte=0,lte=1"`
}

// MetricsConfig configures OpenTelemetry metric export.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Exporter string `mapstructure:"exporter" validate:"omitempty,oneof=otlp prometheus stdout none"`
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`

	// Registerer receives the prometheus exporter's collector.
	// Default: prometheus.DefaultRegisterer
	Registerer prometheus.Registerer `mapstructure:"-"`
}

var validate = validator.New()

// Validate checks the exporter names, the sample ratio and the log level.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Observer hands out the telemetry primitives of the process.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Shutdown flushes pending spans and metrics, honoring ctx. It is safe to
//   call more than once.
type Observer interface {
	Tracer() trace.Tracer
	Meter() metric.Meter
	Logger() zerolog.Logger
	Shutdown(ctx context.Context) error
}

type telemetry struct {
	tracer   trace.Tracer
	meter    metric.Meter
	logger   zerolog.Logger
	shutdown []func(context.Context) error
}

// NewObserver sets up tracing and metrics as cfg enables them and installs
// the providers globally. Disabled signals get no-op implementations. The
// logger is built separately so startup can log before telemetry exists.
func NewObserver(ctx context.Context, cfg Config, logger zerolog.Logger) (Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}

	t := &telemetry{
		tracer: tracenoop.NewTracerProvider().Tracer(cfg.ServiceName),
		meter:  noop.NewMeterProvider().Meter(cfg.ServiceName),
		logger: logger,
	}

	if cfg.Tracing.Enabled {
		exp, err := exporters.NewTracingExporter(ctx, exporters.Config{
			Name:     cfg.Tracing.Exporter,
			Endpoint: cfg.Tracing.Endpoint,
			Insecure: cfg.Tracing.Insecure,
		})
		if err != nil {
			return nil, fmt.Errorf("observe: tracing: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sampler(cfg.Tracing.SamplePct))),
			sdktrace.WithBatcher(exp),
		)
		otel.SetTracerProvider(tp)
		t.tracer = tp.Tracer(cfg.ServiceName)
		t.shutdown = append(t.shutdown, tp.Shutdown)
	}

	if cfg.Metrics.Enabled {
		reader, err := exporters.NewMetricsReader(ctx, exporters.Config{
			Name:       cfg.Metrics.Exporter,
			Endpoint:   cfg.Metrics.Endpoint,
			Insecure:   cfg.Metrics.Insecure,
			Registerer: cfg.Metrics.Registerer,
		})
		if err != nil {
			_ = t.Shutdown(ctx)
			return nil, fmt.Errorf("observe: metrics: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader))
		otel.SetMeterProvider(mp)
		t.meter = mp.Meter(cfg.ServiceName)
		t.shutdown = append(t.shutdown, mp.Shutdown)
	}

	logger.Info().
		Str("tracing", exporterName(cfg.Tracing.Enabled, cfg.Tracing.Exporter)).
		Str("metrics", exporterName(cfg.Metrics.Enabled, cfg.Metrics.Exporter)).
		Float64("sample_pct", cfg.Tracing.SamplePct).
		Msg("telemetry configured")

	return t, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	}
	return sdktrace.TraceIDRatioBased(ratio)
}

func exporterName(enabled bool, name string) string {
	if !enabled || name == "" {
		return "none"
	}
	return name
}

func (t *telemetry) Tracer() trace.Tracer   { return t.tracer }
func (t *telemetry) Meter() metric.Meter    { return t.meter }
func (t *telemetry) Logger() zerolog.Logger { return t.logger }

// Shutdown stops every provider, even when an earlier one fails.
func (t *telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, stop := range t.shutdown {
		if err := stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
