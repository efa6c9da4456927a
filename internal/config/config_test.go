package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.InferenceTimeout != 30*time.Second {
		t.Fatalf("InferenceTimeout = %v, want 30s", cfg.InferenceTimeout)
	}
	if cfg.InferenceModelID != "dolphin-3.0-mistral-24b" {
		t.Fatalf("InferenceModelID = %q, want default model", cfg.InferenceModelID)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("DatabaseURL = %q, want empty default", cfg.DatabaseURL)
	}
	if cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin = true, want false default")
	}
}

func TestLoadParsesCredentialPairs(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("INFERENCE_HEADERS", "X-Api-Key=abc; User-Agent=relay/1.0")
	t.Setenv("INFERENCE_COOKIES", "session=xyz")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.InferenceHeaders["X-Api-Key"] != "abc" || cfg.InferenceHeaders["User-Agent"] != "relay/1.0" {
		t.Fatalf("InferenceHeaders = %v", cfg.InferenceHeaders)
	}
	if cfg.InferenceCookies["session"] != "xyz" {
		t.Fatalf("InferenceCookies = %v", cfg.InferenceCookies)
	}
}

func TestLoadRejectsMalformedPairs(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("INFERENCE_HEADERS", "not-a-pair")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want parse error")
	}
}

func TestLoadRejectsShortInferenceTimeout(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("INFERENCE_TIMEOUT", "100ms")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want validation error")
	}
}

func TestLoadUsesExplicitInferenceURL(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("INFERENCE_URL", "http://localhost:7777/chat")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.InferenceURL != "http://localhost:7777/chat" {
		t.Fatalf("InferenceURL = %q, want explicit value", cfg.InferenceURL)
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"INFERENCE_URL",
		"INFERENCE_MODEL_ID",
		"INFERENCE_MODEL_NAME",
		"INFERENCE_TIMEOUT",
		"INFERENCE_HEADERS",
		"INFERENCE_COOKIES",
		"DATABASE_URL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
