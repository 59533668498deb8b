package config

import (
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every variable the loader reads so earlier tests (or the
// developer's shell) cannot leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"PORT", "READ_TIMEOUT", "READ_HEADER_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT",
		"MAX_HEADER_BYTES", "GIN_MODE", "LOG_LEVEL", "LOG_PRETTY", "SWAGGER_ENABLED",
		"API_BASE_PATH", "DB_PATH", "TAX_RATE", "SEED_DEMO",
		"SESSION_TTL", "SESSION_SWEEP_INTERVAL", "STORAGE_TIMEOUT", "DEDUPE_TTL",
		"RATE_RPS", "RATE_BURST", "CORS_ALLOWED_ORIGINS",
		"ENABLE_HSTS", "HSTS_MAX_AGE",
		"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE",
		"OTEL_SERVICE_NAME", "OTEL_TRACES_SAMPLER_ARG",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.TaxRate != 0.05 {
		t.Fatalf("tax rate = %v, want 0.05", cfg.TaxRate)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Fatalf("session ttl = %v", cfg.SessionTTL)
	}
	if cfg.SessionSweepInterval != 5*time.Minute {
		t.Fatalf("sweep interval = %v", cfg.SessionSweepInterval)
	}
	if cfg.StorageTimeout != 5*time.Second {
		t.Fatalf("storage timeout = %v", cfg.StorageTimeout)
	}
	if cfg.DedupeTTL != 24*time.Hour {
		t.Fatalf("dedupe ttl = %v", cfg.DedupeTTL)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("api base path = %q", cfg.APIBasePath)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("gin mode = %q", cfg.GinMode)
	}
	if cfg.SeedDemo {
		t.Fatalf("seed demo must default to off")
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("TAX_RATE", "0.18")
	t.Setenv("SESSION_TTL", "10m")
	t.Setenv("SESSION_SWEEP_INTERVAL", "1m")
	t.Setenv("SEED_DEMO", "true")
	t.Setenv("API_BASE_PATH", "api/v2/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" || cfg.TaxRate != 0.18 || !cfg.SeedDemo {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.SessionTTL != 10*time.Minute || cfg.SessionSweepInterval != time.Minute {
		t.Fatalf("session durations: %v / %v", cfg.SessionTTL, cfg.SessionSweepInterval)
	}
	// Base path is normalized: leading slash added, trailing stripped.
	if cfg.APIBasePath != "/api/v2" {
		t.Fatalf("api base path = %q", cfg.APIBasePath)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("cors origins: %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"tax rate above one", map[string]string{"TAX_RATE": "1.5"}, "TAX_RATE"},
		{"negative tax rate", map[string]string{"TAX_RATE": "-0.1"}, "TAX_RATE"},
		{"sweep not shorter than ttl", map[string]string{"SESSION_TTL": "5m", "SESSION_SWEEP_INTERVAL": "5m"}, "SESSION_SWEEP_INTERVAL"},
		{"zero rate burst", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"sampler out of range", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "2"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func TestLoad_IgnoresUnparseableValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("TAX_RATE", "lots")
	t.Setenv("SESSION_TTL", "soon")
	t.Setenv("RATE_BURST", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Unparseable values fall back to defaults rather than failing.
	if cfg.TaxRate != 0.05 || cfg.SessionTTL != 30*time.Minute || cfg.RateBurst != 10 {
		t.Fatalf("fallbacks not applied: %+v", cfg)
	}
}

func TestNormalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":        "/",
		"/":       "/",
		"api":     "/api",
		"/api/":   "/api",
		"/api/v1": "/api/v1",
	}
	for in, want := range cases {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}
