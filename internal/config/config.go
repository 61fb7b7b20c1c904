package config

import (
	"os"
	"strconv"
	"time"
)

const (
	ProviderGemini  = "gemini"
	ProviderBedrock = "bedrock"
	ProviderOpenAI  = "openai"
)

type Config struct {
	Addr        string
	LogLevel    string
	RedisURL    string
	DatabaseURL string

	OracleProvider string
	OracleTimeout  time.Duration
	GeminiAPIKey   string
	GeminiModel    string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string
	BedrockModelID string
	AWSRegion      string

	FirebaseServiceAccount string
	FirebaseProjectID      string

	RateLimitMaxRequests    int
	RateLimitWindow         time.Duration
	RateLimitSweepThreshold int

	ExplanationCacheTTL time.Duration
	EncryptionKey       string
	OTLPEndpoint        string
	FeedbackTopicARN    string

	// Secret names looked up in AWS Secrets Manager when the plain value
	// is empty.
	GeminiAPIKeySecret           string
	FirebaseServiceAccountSecret string

	ShutdownTimeout time.Duration
}

// Load reads the environment. Absent values fall back to defaults; missing
// credentials are reported by Credentials, never here.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:        getEnv("ADDR", ":8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		RedisURL:    getEnv("REDIS_URL", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		OracleProvider: getEnv("ORACLE_PROVIDER", ProviderGemini),
		OracleTimeout:  getDurationEnv("ORACLE_TIMEOUT", 60*time.Second),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-1.5-flash-latest"),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", "anthropic.claude-3-5-haiku-20241022-v1:0"),
		AWSRegion:      getEnv("AWS_REGION", ""),

		FirebaseServiceAccount: getEnv("FIREBASE_SERVICE_ACCOUNT_BASE64", ""),
		FirebaseProjectID:      getEnv("FIREBASE_PROJECT_ID", ""),

		RateLimitMaxRequests:    getIntEnv("RATE_LIMIT_MAX_REQUESTS", 5),
		RateLimitWindow:         getDurationEnv("RATE_LIMIT_WINDOW", 60*time.Second),
		RateLimitSweepThreshold: getIntEnv("RATE_LIMIT_SWEEP_THRESHOLD", 1000),

		ExplanationCacheTTL: getDurationEnv("EXPLANATION_CACHE_TTL", 10*time.Minute),
		EncryptionKey:       getEnv("ENCRYPTION_KEY", ""),
		OTLPEndpoint:        getEnv("OTLP_ENDPOINT", ""),
		FeedbackTopicARN:    getEnv("FEEDBACK_TOPIC_ARN", ""),

		GeminiAPIKeySecret:           getEnv("SECRETS_GEMINI_API_KEY", ""),
		FirebaseServiceAccountSecret: getEnv("SECRETS_FIREBASE_SERVICE_ACCOUNT", ""),

		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	return cfg, nil
}

// Credentials lists the environment variables whose absence keeps the
// service from generating anything. An unknown provider is reported as
// ORACLE_PROVIDER.
func (c *Config) Credentials() []string {
	var missing []string

	switch c.OracleProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	case ProviderBedrock:
		if c.AWSRegion == "" {
			missing = append(missing, "AWS_REGION")
		}
	default:
		missing = append(missing, "ORACLE_PROVIDER")
	}

	if c.FirebaseServiceAccount == "" && c.FirebaseProjectID == "" {
		missing = append(missing, "FIREBASE_SERVICE_ACCOUNT_BASE64")
	}
	return missing
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

// getDurationEnv accepts whole seconds ("60") or a Go duration ("1m").
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
