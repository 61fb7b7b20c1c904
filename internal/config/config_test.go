package config

import (
	"reflect"
	"testing"
	"time"
)

var allVars = []string{
	"ADDR", "LOG_LEVEL", "REDIS_URL", "DATABASE_URL",
	"ORACLE_PROVIDER", "ORACLE_TIMEOUT", "GEMINI_API_KEY", "GEMINI_MODEL",
	"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL", "BEDROCK_MODEL_ID", "AWS_REGION",
	"FIREBASE_SERVICE_ACCOUNT_BASE64", "FIREBASE_PROJECT_ID",
	"RATE_LIMIT_MAX_REQUESTS", "RATE_LIMIT_WINDOW", "RATE_LIMIT_SWEEP_THRESHOLD",
	"EXPLANATION_CACHE_TTL", "ENCRYPTION_KEY", "OTLP_ENDPOINT", "FEEDBACK_TOPIC_ARN",
	"SECRETS_GEMINI_API_KEY", "SECRETS_FIREBASE_SERVICE_ACCOUNT", "SHUTDOWN_TIMEOUT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range allVars {
		t.Setenv(v, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"Addr", cfg.Addr, ":8080"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"OracleProvider", cfg.OracleProvider, ProviderGemini},
		{"OracleTimeout", cfg.OracleTimeout, 60 * time.Second},
		{"GeminiModel", cfg.GeminiModel, "gemini-1.5-flash-latest"},
		{"OpenAIBaseURL", cfg.OpenAIBaseURL, "https://api.openai.com/v1"},
		{"RateLimitMaxRequests", cfg.RateLimitMaxRequests, 5},
		{"RateLimitWindow", cfg.RateLimitWindow, time.Minute},
		{"RateLimitSweepThreshold", cfg.RateLimitSweepThreshold, 1000},
		{"ExplanationCacheTTL", cfg.ExplanationCacheTTL, 10 * time.Minute},
		{"ShutdownTimeout", cfg.ShutdownTimeout, 30 * time.Second},
		{"RedisURL", cfg.RedisURL, ""},
		{"GeminiAPIKey", cfg.GeminiAPIKey, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADDR", ":9090")
	t.Setenv("ORACLE_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test-key")
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "20")
	t.Setenv("RATE_LIMIT_WINDOW", "2m")
	t.Setenv("ORACLE_TIMEOUT", "15")
	t.Setenv("EXPLANATION_CACHE_TTL", "0")
	t.Setenv("FIREBASE_PROJECT_ID", "stem-explainer")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.OracleProvider != ProviderOpenAI || cfg.OpenAIAPIKey != "sk-test-key" {
		t.Errorf("oracle = %q/%q", cfg.OracleProvider, cfg.OpenAIAPIKey)
	}
	if cfg.RateLimitMaxRequests != 20 {
		t.Errorf("RateLimitMaxRequests = %d, want 20", cfg.RateLimitMaxRequests)
	}
	if cfg.RateLimitWindow != 2*time.Minute {
		t.Errorf("RateLimitWindow = %v, want 2m", cfg.RateLimitWindow)
	}
	if cfg.OracleTimeout != 15*time.Second {
		t.Errorf("OracleTimeout = %v, want 15s", cfg.OracleTimeout)
	}
	if cfg.ExplanationCacheTTL != 0 {
		t.Errorf("ExplanationCacheTTL = %v, want 0 (disabled)", cfg.ExplanationCacheTTL)
	}
	if missing := cfg.Credentials(); len(missing) != 0 {
		t.Errorf("Credentials() = %v, want none", missing)
	}
}

func TestCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{
			name: "gemini complete",
			cfg:  Config{OracleProvider: ProviderGemini, GeminiAPIKey: "k", FirebaseServiceAccount: "sa"},
		},
		{
			name: "nothing set",
			cfg:  Config{OracleProvider: ProviderGemini},
			want: []string{"GEMINI_API_KEY", "FIREBASE_SERVICE_ACCOUNT_BASE64"},
		},
		{
			name: "bedrock needs a region",
			cfg:  Config{OracleProvider: ProviderBedrock, FirebaseProjectID: "p"},
			want: []string{"AWS_REGION"},
		},
		{
			name: "openai key",
			cfg:  Config{OracleProvider: ProviderOpenAI, FirebaseProjectID: "p"},
			want: []string{"OPENAI_API_KEY"},
		},
		{
			name: "unknown provider",
			cfg:  Config{OracleProvider: "llama", FirebaseProjectID: "p"},
			want: []string{"ORACLE_PROVIDER"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.Credentials()
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Credentials() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		envValue     string
		defaultValue string
		expected     string
	}{
		{"env set", "TEST_VAR", "custom", "default", "custom"},
		{"env not set", "TEST_VAR_UNSET", "", "default", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.expected {
				t.Errorf("getEnv(%q, %q) = %q, want %q", tt.key, tt.defaultValue, got, tt.expected)
			}
		})
	}
}

func TestGetIntEnv_Invalid(t *testing.T) {
	for _, v := range []string{"abc", "-3", "0"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("TEST_INT", v)
			if got := getIntEnv("TEST_INT", 7); got != 7 {
				t.Errorf("getIntEnv(%q) = %d, want default 7", v, got)
			}
		})
	}
}

func TestGetDurationEnv(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"30", 30 * time.Second},
		{"90s", 90 * time.Second},
		{"1h", time.Hour},
		{"soon", 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			if got := getDurationEnv("TEST_DURATION", 5*time.Second); got != tt.want {
				t.Errorf("getDurationEnv(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
