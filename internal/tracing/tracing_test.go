package tracing

import (
	"context"
	"testing"
	"time"
)

func shutdownProvider(t *testing.T, p *Provider) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(Config{ServiceName: "nearlist-api", Enabled: false})
	if err != nil {
		t.Fatalf("NewProvider failed for disabled tracing: %v", err)
	}
	if provider == nil {
		t.Fatal("nil provider for disabled tracing")
	}
	if provider.IsEnabled() {
		t.Error("IsEnabled() = true, want false")
	}
}

func TestNewProvider_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing service name", Config{Enabled: true, SamplingRate: 0.1}},
		{"negative sampling rate", Config{ServiceName: "nearlist-api", Enabled: true, SamplingRate: -0.1}},
		{"sampling rate above one", Config{ServiceName: "nearlist-api", Enabled: true, SamplingRate: 1.5}},
		{"unknown exporter", Config{ServiceName: "nearlist-api", Enabled: true, SamplingRate: 0.1, ExporterType: "zipkin"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProvider(tt.cfg); err == nil {
				t.Errorf("NewProvider accepted config %+v", tt.cfg)
			}
		})
	}
}

func TestNewProvider_Exporters(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{
			"otlp-http sampled at 10%",
			Config{ServiceName: "nearlist-api", Enabled: true, Environment: "test",
				ExporterType: "otlp-http", OTLPEndpoint: "localhost:4318", SamplingRate: 0.1, InsecureMode: true},
		},
		{
			"otlp-grpc sampled at 100%",
			Config{ServiceName: "nearlist-api", Enabled: true, Environment: "test",
				ExporterType: "otlp-grpc", OTLPEndpoint: "localhost:4317", SamplingRate: 1.0, InsecureMode: true},
		},
		{
			"default exporter never sampled",
			Config{ServiceName: "nearlist-api", Enabled: true, Environment: "test", SamplingRate: 0.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.cfg)
			if err != nil {
				t.Fatalf("NewProvider failed: %v", err)
			}
			if !provider.IsEnabled() {
				t.Error("IsEnabled() = false, want true")
			}
			shutdownProvider(t, provider)
		})
	}
}

func TestProvider_Tracer(t *testing.T) {
	provider, err := NewProvider(Config{
		ServiceName:  "nearlist-api",
		Enabled:      true,
		Environment:  "test",
		ExporterType: "otlp-http",
		SamplingRate: 1.0,
		InsecureMode: true,
	})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	defer shutdownProvider(t, provider)

	tracer := provider.Tracer("search")
	if tracer == nil {
		t.Fatal("Tracer returned nil")
	}
	_, span := tracer.Start(context.Background(), "rank_candidates")
	if span == nil {
		t.Fatal("tracer produced a nil span")
	}
	span.End()
}

func TestProvider_ShutdownWithoutInit(t *testing.T) {
	// A zero provider comes from disabled tracing; Shutdown must be a
	// safe no-op.
	shutdownProvider(t, &Provider{})
}
