package exporters

import (
	"bytes"
	"context"
	"strings"
	"testing"

	promclient "github.com/prometheus/client_golang/prometheus"
)

func TestExporter_InvalidName(t *testing.T) {
	_, err := NewTracingExporter(context.Background(), Config{Name: "jaeger"})
	if err == nil {
		t.Fatal("expected error for unsupported exporter name")
	}
	if !strings.Contains(strings.ToLower(err.Error()), "unknown exporter") {
		t.Errorf("expected error to contain 'unknown exporter', got: %v", err)
	}
}

func TestExporter_StdoutTracing(t *testing.T) {
	var buf bytes.Buffer
	exp, err := NewTracingExporter(context.Background(), Config{Name: "stdout", Writer: &buf})
	if err != nil {
		t.Fatalf("failed to create stdout tracing exporter: %v", err)
	}
	if exp == nil {
		t.Fatal("expected non-nil exporter")
	}
}

func TestExporter_StdoutMetrics(t *testing.T) {
	var buf bytes.Buffer
	reader, err := NewMetricsReader(context.Background(), Config{Name: "stdout", Writer: &buf})
	if err != nil {
		t.Fatalf("failed to create stdout metrics reader: %v", err)
	}
	if reader == nil {
		t.Fatal("expected non-nil reader")
	}
}

func TestExporter_OtlpMissingEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")

	_, err := NewTracingExporter(context.Background(), Config{Name: "otlp"})
	if err == nil {
		t.Fatal("expected error when OTLP endpoint not configured")
	}
	if !strings.Contains(strings.ToLower(err.Error()), "endpoint") {
		t.Errorf("expected error to contain 'endpoint', got: %v", err)
	}

	_, err = NewMetricsReader(context.Background(), Config{Name: "otlp"})
	if err == nil {
		t.Fatal("expected error when OTLP metrics endpoint not configured")
	}
}

func TestExporter_OtlpWithConfiguredEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	exp, err := NewTracingExporter(context.Background(), Config{
		Name:     "otlp",
		Endpoint: "localhost:4317",
		Insecure: true,
	})
	if err != nil {
		t.Fatalf("failed to create OTLP exporter with endpoint: %v", err)
	}
	if exp == nil {
		t.Fatal("expected non-nil exporter")
	}
	_ = exp.Shutdown(context.Background())
}

func TestExporter_OtlpWithEnvEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4317")

	exp, err := NewTracingExporter(context.Background(), Config{Name: "otlp"})
	if err != nil {
		t.Fatalf("failed to create OTLP exporter with env endpoint: %v", err)
	}
	_ = exp.Shutdown(context.Background())
}

func TestExporter_PrometheusUsesRegisterer(t *testing.T) {
	reg := promclient.NewRegistry()
	reader, err := NewMetricsReader(context.Background(), Config{Name: "prometheus", Registerer: reg})
	if err != nil {
		t.Fatalf("failed to create Prometheus reader: %v", err)
	}
	if reader == nil {
		t.Fatal("expected non-nil reader")
	}

	// A second exporter on the same registry collides with the first.
	if _, err := NewMetricsReader(context.Background(), Config{Name: "prometheus", Registerer: reg}); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestExporter_None(t *testing.T) {
	exp, err := NewTracingExporter(context.Background(), Config{Name: "none"})
	if err != nil {
		t.Fatalf("failed to create none exporter: %v", err)
	}
	if exp == nil {
		t.Fatal("expected non-nil discard exporter")
	}

	reader, err := NewMetricsReader(context.Background(), Config{})
	if err != nil {
		t.Fatalf("failed to create none metrics reader: %v", err)
	}
	if reader == nil {
		t.Fatal("expected non-nil manual reader")
	}
}

func TestExporter_MetricsInvalidName(t *testing.T) {
	_, err := NewMetricsReader(context.Background(), Config{Name: "badvalue"})
	if err == nil {
		t.Fatal("expected error for invalid metrics exporter name")
	}
	if !strings.Contains(strings.ToLower(err.Error()), "unknown") {
		t.Errorf("expected error to contain 'unknown', got: %v", err)
	}
}
