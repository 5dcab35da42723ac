package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the Vibe assistant backend.
type Config struct {
	Port      int
	Version   string
	GenAI     GenAIConfig
	Backend   BackendConfig
	Telemetry TelemetryConfig
}

// GenAIConfig configures the generative-text endpoint client.
type GenAIConfig struct {
	Endpoint       string
	APIKey         string
	Model          string
	RequestTimeout time.Duration
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	MaxAttempts    int
}

// BackendConfig points at the external collaborators: the shared
// task/link persistence backend and the web-content extractor.
type BackendConfig struct {
	SharedURL     string
	WebContentURL string
	Timeout       time.Duration
	AppURL        string
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("VIBE_PORT", 8002),
		Version: envStr("VIBE_VERSION", "0.2.0"),
		GenAI: GenAIConfig{
			Endpoint:       envStr("GENAI_ENDPOINT", "https://generativelanguage.googleapis.com"),
			APIKey:         envStr("GENAI_API_KEY", ""),
			Model:          envStr("GENAI_MODEL", "gemini-2.5-flash"),
			RequestTimeout: envDur("GENAI_REQUEST_TIMEOUT", 60*time.Second),
			RetryBaseDelay: envDur("GENAI_RETRY_BASE_DELAY", 4*time.Second),
			RetryMaxDelay:  envDur("GENAI_RETRY_MAX_DELAY", 10*time.Second),
			MaxAttempts:    envInt("GENAI_MAX_ATTEMPTS", 3),
		},
		Backend: BackendConfig{
			SharedURL:     envStr("SHARED_BACKEND_URL", "http://localhost:8001"),
			WebContentURL: envStr("WEB_CONTENT_URL", "http://localhost:8003"),
			Timeout:       envDur("BACKEND_TIMEOUT", 15*time.Second),
			AppURL:        envStr("VIBE_ONE_URL", "http://localhost:5175"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "vibe-assistant"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
