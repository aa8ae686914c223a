package config

import (
	"testing"
	"time"
)

// clearEnv unsets every variable Load reads so defaults apply regardless of
// the host environment. t.Setenv restores originals on cleanup.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "READ_TIMEOUT", "READ_HEADER_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT",
		"MAX_HEADER_BYTES", "GIN_MODE", "LOG_LEVEL", "LOG_PRETTY", "SWAGGER_ENABLED",
		"API_BASE_PATH", "DB_PATH", "TENANT_ID", "RATE_RPS", "RATE_BURST",
		"CORS_ALLOWED_ORIGINS", "ENABLE_HSTS", "HSTS_MAX_AGE",
		"IDEMPOTENCY_TTL", "IDEMPOTENCY_SWEEP_INTERVAL",
		"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE",
		"OTEL_SERVICE_NAME", "OTEL_TRACES_SAMPLER_ARG",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.GinMode != "release" || cfg.LogLevel != "info" {
		t.Fatalf("server defaults wrong: %+v", cfg)
	}
	if cfg.ReadTimeout != 15*time.Second || cfg.WriteTimeout != 20*time.Second {
		t.Fatalf("timeout defaults wrong: %+v", cfg)
	}
	if cfg.APIBasePath != "/api/v1" || cfg.DBPath != "plate.db" || cfg.TenantID != "plateful" {
		t.Fatalf("app defaults wrong: %+v", cfg)
	}
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate defaults wrong: rps=%v burst=%d", cfg.RateRPS, cfg.RateBurst)
	}
	if cfg.IdempotencyTTL != 24*time.Hour || cfg.IdemSweepEvery != time.Hour {
		t.Fatalf("idempotency defaults wrong: ttl=%v sweep=%v", cfg.IdempotencyTTL, cfg.IdemSweepEvery)
	}
	if cfg.OTEL.Enabled || cfg.OTEL.ServiceName != "plate-backend" || cfg.OTEL.SampleRatio != 1.0 {
		t.Fatalf("otel defaults wrong: %+v", cfg.OTEL)
	}
	if len(cfg.CORS.AllowedOrigins) != 0 {
		t.Fatalf("expected no default CORS origins, got %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("GIN_MODE", "DEBUG")
	t.Setenv("LOG_LEVEL", "Warning")
	t.Setenv("RATE_RPS", "2.5")
	t.Setenv("IDEMPOTENCY_TTL", "30m")
	t.Setenv("IDEMPOTENCY_SWEEP_INTERVAL", "0s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example , https://b.example,,")
	t.Setenv("OTEL_ENABLED", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.GinMode != "debug" {
		t.Fatalf("GinMode = %q, want lowercased debug", cfg.GinMode)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q, want warning normalized to warn", cfg.LogLevel)
	}
	if cfg.RateRPS != 2.5 {
		t.Fatalf("RateRPS = %v", cfg.RateRPS)
	}
	if cfg.IdempotencyTTL != 30*time.Minute || cfg.IdemSweepEvery != 0 {
		t.Fatalf("idempotency overrides wrong: ttl=%v sweep=%v", cfg.IdempotencyTTL, cfg.IdemSweepEvery)
	}
	if got := cfg.CORS.AllowedOrigins; len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("CORS origins = %v", got)
	}
	if !cfg.OTEL.Enabled {
		t.Fatalf("OTEL_ENABLED=yes should enable tracing")
	}
}

func TestLoadBadValuesFallBackToDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("READ_TIMEOUT", "soon")
	t.Setenv("MAX_HEADER_BYTES", "lots")
	t.Setenv("LOG_PRETTY", "maybe")
	t.Setenv("GIN_MODE", "turbo")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ReadTimeout != 15*time.Second || cfg.MaxHeaderBytes != 1<<20 {
		t.Fatalf("unparseable values should keep defaults: %+v", cfg)
	}
	if cfg.LogPretty {
		t.Fatalf("unrecognized bool should keep default false")
	}
	if cfg.GinMode != "release" {
		t.Fatalf("unknown gin mode should normalize to release, got %q", cfg.GinMode)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"bad log level", "LOG_LEVEL", "loud"},
		{"negative rps", "RATE_RPS", "-1"},
		{"zero burst", "RATE_BURST", "0"},
		{"zero ttl", "IDEMPOTENCY_TTL", "0s"},
		{"negative sweep", "IDEMPOTENCY_SWEEP_INTERVAL", "-1h"},
		{"sample ratio out of range", "OTEL_TRACES_SAMPLER_ARG", "1.5"},
		{"negative timeout", "READ_TIMEOUT", "-1s"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%s should fail validation", tc.key, tc.value)
			}
		})
	}
}

func TestNormalizeBasePath(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", "/"},
		{"/", "/"},
		{"api/v1", "/api/v1"},
		{"/api/v1/", "/api/v1"},
		{"  /api/v1  ", "/api/v1"},
		{"/api/v1///", "/api/v1"},
	}
	for _, tc := range cases {
		if got := normalizeBasePath(tc.in); got != tc.want {
			t.Fatalf("normalizeBasePath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
