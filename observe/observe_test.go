package observe

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func TestConfigValidate(t *testing.T) {
	base := func(mod func(*Config)) Config {
		c := Config{
			ServiceName: "rpcrelay",
			Tracing:     TracingConfig{Enabled: true, Exporter: "otlp", SamplePct: 0.1},
			Metrics:     MetricsConfig{Enabled: true, Exporter: "prometheus"},
			Logging:     LoggingConfig{Level: "info", Format: "json"},
		}
		mod(&c)
		return c
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "relay defaults", cfg: base(func(*Config) {})},
		{name: "zero values", cfg: Config{ServiceName: "rpcrelay"}},
		{name: "missing service name", cfg: base(func(c *Config) { c.ServiceName = "" }), wantErr: true},
		{name: "zipkin tracing", cfg: base(func(c *Config) { c.Tracing.Exporter = "zipkin" }), wantErr: true},
		{name: "prometheus is metrics only", cfg: base(func(c *Config) { c.Tracing.Exporter = "prometheus" }), wantErr: true},
		{name: "statsd metrics", cfg: base(func(c *Config) { c.Metrics.Exporter = "statsd" }), wantErr: true},
		{name: "sample above one", cfg: base(func(c *Config) { c.Tracing.SamplePct = 1.5 }), wantErr: true},
		{name: "negative sample", cfg: base(func(c *Config) { c.Tracing.SamplePct = -0.1 }), wantErr: true},
		{name: "trace log level", cfg: base(func(c *Config) { c.Logging.Level = "trace" }), wantErr: true},
		{name: "xml log format", cfg: base(func(c *Config) { c.Logging.Format = "xml" }), wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr != (err != nil) {
				t.Fatalf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tc := range tests {
		if got := sampler(tc.ratio).Description(); got != tc.want {
			t.Errorf("sampler(%v) = %q, want %q", tc.ratio, got, tc.want)
		}
	}
}

func TestNewObserver_Disabled(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{ServiceName: "rpcrelay"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}
	if obs.Tracer() == nil || obs.Meter() == nil {
		t.Fatal("expected no-op tracer and meter")
	}
	if _, span := obs.Tracer().Start(context.Background(), "x"); span.SpanContext().IsValid() {
		t.Error("disabled tracing must not produce recorded spans")
	}
	if err := obs.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestNewObserver_PrometheusRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := NewObserver(context.Background(), Config{
		ServiceName: "rpcrelay",
		Version:     "test",
		Tracing:     TracingConfig{Enabled: true, Exporter: "none", SamplePct: 1},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "prometheus", Registerer: reg},
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}
	defer func() { _ = obs.Shutdown(context.Background()) }()

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	metrics.RecordCall(context.Background(), CallMeta{Namespace: "steemd", Method: "get_config"}, 0, CallResult{}, nil)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), "rpcrelay_call_total") {
			return
		}
	}
	t.Error("expected rpcrelay_call_total in the prometheus registry")
}

func TestNewObserver_InvalidConfig(t *testing.T) {
	_, err := NewObserver(context.Background(), Config{}, zerolog.Nop())
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got: %v", err)
	}
}

func TestObserver_ShutdownTwice(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{
		ServiceName: "rpcrelay",
		Tracing:     TracingConfig{Enabled: true, Exporter: "none"},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "none"},
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}
	if err := obs.Shutdown(context.Background()); err != nil {
		t.Errorf("first Shutdown: %v", err)
	}
	if err := obs.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}
