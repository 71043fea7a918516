package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	ServerPort string
	GinMode    string
	LogLevel   string
	LogFormat  string

	// GeminiAPIKey is the credential for the remote question generator.
	// Empty means the fallback question bank is always used.
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	GeminiTimeout time.Duration
	QuestionCount int

	AdvanceDelay time.Duration
	SkipDelay    time.Duration
	RewardURL    string
	SessionTTL   time.Duration
	MaxSessions  int
	StartRate    int

	// Optional infrastructure. Empty URLs disable the component.
	RedisURL     string
	DatabaseURL  string
	MaxDBConns   int32
	AMQPURL      string
	AMQPExchange string

	JWTSecret              string
	JWTExpiry              time.Duration
	OperatorPassphraseHash string
	BcryptCost             int

	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		ServerPort:             getEnv("SERVER_PORT", "8080"),
		GinMode:                getEnv("GIN_MODE", "debug"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "pretty"),
		GeminiAPIKey:           getEnv("GEMINI_API_KEY", os.Getenv("API_KEY")),
		GeminiModel:            getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL:          getEnv("GEMINI_BASE_URL", ""),
		GeminiTimeout:          time.Duration(getEnvInt("GEMINI_TIMEOUT_SECONDS", 30)) * time.Second,
		QuestionCount:          getEnvInt("QUESTION_COUNT", 10),
		AdvanceDelay:           time.Duration(getEnvInt("ADVANCE_DELAY_MS", 1500)) * time.Millisecond,
		SkipDelay:              time.Duration(getEnvInt("SKIP_DELAY_MS", 800)) * time.Millisecond,
		RewardURL:              getEnv("REWARD_URL", "https://ibb.co/0jfS097Z"),
		SessionTTL:             time.Duration(getEnvInt("SESSION_TTL_MINUTES", 30)) * time.Minute,
		MaxSessions:            getEnvInt("MAX_SESSIONS", 1000),
		StartRate:              getEnvInt("START_RATE_PER_MINUTE", 6),
		RedisURL:               getEnv("REDIS_URL", ""),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		MaxDBConns:             int32(getEnvInt("MAX_DB_CONNS", 4)),
		AMQPURL:                getEnv("AMQP_URL", ""),
		AMQPExchange:           getEnv("AMQP_EXCHANGE", "quizlock.events"),
		JWTSecret:              getEnv("JWT_SECRET", "change-this-to-a-secure-random-string"),
		JWTExpiry:              time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 12)) * time.Hour,
		OperatorPassphraseHash: getEnv("OPERATOR_PASSPHRASE_HASH", ""),
		BcryptCost:             getEnvInt("BCRYPT_COST", 10),
		AllowedOrigins:         parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
