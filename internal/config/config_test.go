package config

import (
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every variable Load reads so defaults are observable even
// when the host shell exports some of them.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"PORT", "READ_TIMEOUT", "READ_HEADER_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT",
		"MAX_HEADER_BYTES", "GIN_MODE", "LOG_LEVEL", "LOG_PRETTY", "API_BASE_PATH",
		"DB_PATH", "APP_BASE_URL", "RATE_RPS", "RATE_BURST", "CORS_ALLOWED_ORIGINS",
		"ENABLE_HSTS", "HSTS_MAX_AGE", "IDEMPOTENCY_TTL",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"AMQP_URL", "AMQP_INVITE_QUEUE", "AMQP_MAX_CONSUME",
		"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS", "SMTP_FROM",
		"LLM_BASE_URL", "LLM_MODEL", "LLM_TIMEOUT",
		"AUTH_JWT_SECRET", "AUTH_SESSION_TTL",
		"CACHE_ACTIVE_TTL", "CACHE_SWEEP_INTERVAL", "CACHE_FLUSH_LOCK_TTL",
		"WORKER_TRANSCRIBE_ATTEMPTS", "WORKER_BACKOFF_BASE",
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
	if cfg.Port != "8080" || cfg.GinMode != "release" || cfg.LogLevel != "info" {
		t.Fatalf("server defaults: %+v", cfg)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("APIBasePath = %q", cfg.APIBasePath)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.AMQP.InviteQueue != "invite-queue" {
		t.Fatalf("subsystem defaults: redis=%q queue=%q", cfg.Redis.Addr, cfg.AMQP.InviteQueue)
	}
	if cfg.Cache.ActiveTTL != 24*time.Hour || cfg.Cache.FlushLockTTL != 10*time.Second {
		t.Fatalf("cache defaults: %+v", cfg.Cache)
	}
	if cfg.Worker.TranscribeAttempts != 3 || cfg.Worker.BackoffBase != time.Second {
		t.Fatalf("worker defaults: %+v", cfg.Worker)
	}
}

func TestLoad_OverridesAndNormalization(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9999")
	t.Setenv("GIN_MODE", "DEBUG")
	t.Setenv("LOG_LEVEL", "warning")
	t.Setenv("API_BASE_PATH", "api/v2/")
	t.Setenv("APP_BASE_URL", "https://app.example.com/")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example.com , https://b.example.com ,")
	t.Setenv("SMTP_USER", "mailer@example.com")
	t.Setenv("CACHE_ACTIVE_TTL", "90m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9999" || cfg.GinMode != "debug" {
		t.Fatalf("overrides: %+v", cfg)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.APIBasePath != "/api/v2" {
		t.Fatalf("APIBasePath = %q", cfg.APIBasePath)
	}
	if cfg.AppBaseURL != "https://app.example.com" {
		t.Fatalf("AppBaseURL = %q", cfg.AppBaseURL)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("origins = %+v", cfg.CORS.AllowedOrigins)
	}
	// From falls back to User when unset.
	if cfg.SMTP.From != "mailer@example.com" {
		t.Fatalf("SMTP.From = %q", cfg.SMTP.From)
	}
	if cfg.Cache.ActiveTTL != 90*time.Minute {
		t.Fatalf("ActiveTTL = %v", cfg.Cache.ActiveTTL)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := map[string]struct {
		key, val, wantErr string
	}{
		"bad log level":    {"LOG_LEVEL", "verbose", "LOG_LEVEL"},
		"zero burst":       {"RATE_BURST", "0", "RATE_BURST"},
		"negative rps":     {"RATE_RPS", "-1", "RATE_RPS"},
		"zero consume":     {"AMQP_MAX_CONSUME", "0", "AMQP_MAX_CONSUME"},
		"zero attempts":    {"WORKER_TRANSCRIBE_ATTEMPTS", "0", "WORKER_TRANSCRIBE_ATTEMPTS"},
		"bad sample ratio": {"OTEL_TRACES_SAMPLER_ARG", "1.5", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.val)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want mention of %s", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_GinModeFallsBackToRelease(t *testing.T) {
	clearEnv(t)
	t.Setenv("GIN_MODE", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("GinMode = %q", cfg.GinMode)
	}
}

func Test_normalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":         "/",
		"/":        "/",
		"api":      "/api",
		"/api/v1/": "/api/v1",
		" /api ":   "/api",
	}
	for in, want := range cases {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func Test_getbool(t *testing.T) {
	t.Setenv("FLAG_UNDER_TEST", "yes")
	if !getbool("FLAG_UNDER_TEST", false) {
		t.Fatalf("yes should parse true")
	}
	t.Setenv("FLAG_UNDER_TEST", "off")
	if getbool("FLAG_UNDER_TEST", true) {
		t.Fatalf("off should parse false")
	}
	t.Setenv("FLAG_UNDER_TEST", "maybe")
	if !getbool("FLAG_UNDER_TEST", true) {
		t.Fatalf("garbage should fall back to default")
	}
}
