package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("GATEWAY_BASE_URL", "https://gateway.example/")
	t.Setenv("SIDE_EFFECT_TIMEOUT", "not-a-duration")

	cfg := Load()

	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.DBType != "" {
		t.Fatalf("expected structured store to be unconfigured, got %q", cfg.DBType)
	}
	if cfg.Gateway.BaseURL != "https://gateway.example" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Gateway.BaseURL)
	}
	if cfg.SideEffectTimeout != 15*time.Second {
		t.Fatalf("expected fallback timeout, got %s", cfg.SideEffectTimeout)
	}
}

func TestGetenvBool(t *testing.T) {
	t.Setenv("PAYRELAY_FLAG", "off")
	if getenvBool("PAYRELAY_FLAG", true) {
		t.Fatalf("expected off to parse as false")
	}
	t.Setenv("PAYRELAY_FLAG", "maybe")
	if !getenvBool("PAYRELAY_FLAG", true) {
		t.Fatalf("expected unknown value to keep default")
	}
}

func TestLoadObservability(t *testing.T) {
	t.Setenv("LOG_LEVEL", " DEBUG ")
	t.Setenv("OTEL_ENABLED", "yes")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "HTTP")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.5")

	obs := Load().Observability

	if obs.LogLevel != "debug" {
		t.Fatalf("expected normalised log level, got %q", obs.LogLevel)
	}
	if !obs.OtelEnabled {
		t.Fatalf("expected otel enabled")
	}
	if obs.OtelProtocol != "http" {
		t.Fatalf("expected traces protocol to win, got %q", obs.OtelProtocol)
	}
	if obs.OtelSamplingRatio != 0.5 {
		t.Fatalf("expected sampling ratio 0.5, got %v", obs.OtelSamplingRatio)
	}
}
