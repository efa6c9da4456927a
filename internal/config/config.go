package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the chat relay service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	InferenceURL       string
	InferenceModelID   string
	InferenceModelName string
	InferenceTimeout   time.Duration
	// Credentials travel as explicit header/cookie maps so nothing about the
	// provider account lives in process-wide state.
	InferenceHeaders map[string]string
	InferenceCookies map[string]string

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "chatrelay"),
		AllowAnyOrigin:           false,
		InferenceURL:             envOrDefault("INFERENCE_URL", "https://outerface.venice.ai/api/inference/chat"),
		InferenceModelID:         envOrDefault("INFERENCE_MODEL_ID", "dolphin-3.0-mistral-24b"),
		InferenceModelName:       envOrDefault("INFERENCE_MODEL_NAME", "Venice Uncensored"),
		InferenceTimeout:         30 * time.Second,
		DatabaseURL:              trimmedEnv("DATABASE_URL"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 2 * time.Minute,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.InferenceTimeout, err = durationFromEnv("INFERENCE_TIMEOUT", cfg.InferenceTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.InferenceHeaders, err = pairsFromEnv("INFERENCE_HEADERS")
	if err != nil {
		return Config{}, err
	}
	cfg.InferenceCookies, err = pairsFromEnv("INFERENCE_COOKIES")
	if err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.InferenceURL) == "" {
		return Config{}, fmt.Errorf("INFERENCE_URL must not be empty")
	}
	if cfg.InferenceTimeout < time.Second {
		return Config{}, fmt.Errorf("INFERENCE_TIMEOUT must be at least 1s")
	}
	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}

// pairsFromEnv parses "key=value;key2=value2" lists, the shape used for the
// provider's header and cookie credentials.
func pairsFromEnv(key string) (map[string]string, error) {
	v := trimmedEnv(key)
	if v == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(v, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("%s parse error: expected key=value, got %q", key, pair)
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return out, nil
}
