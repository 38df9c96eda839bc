package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration, loaded from environment variables
// with sensible development defaults.
type Config struct {
	Port     int
	Env      string
	LogLevel string

	// Session persistence. Store selects the backend: memory, file, or
	// redis.
	SessionStore  string
	SessionsDir   string
	SessionCap    int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration

	// Turn logging. An empty TurnLogPath disables the file log; an empty
	// DatabaseURL disables the SQL log.
	TurnLogPath string
	DatabaseURL string

	// Model backend.
	LLMBaseURL    string
	LLMAPIKey     string
	LLMModel      string
	LLMTimeout    time.Duration
	LLMMaxRetries int

	// Payment simulator.
	PaymentSuccessRate float64
	PaymentProcessWait time.Duration
	PaymentSettleWait  time.Duration
	GatewayBaseURL     string

	// Flow tuning.
	AutoAdvanceThreshold int
	QuoteRatesPath       string

	AdminJWTSecret     string
	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:     getEnvAsInt("PORT", 8080),
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		SessionStore:  strings.ToLower(getEnv("SESSION_STORE", "memory")),
		SessionsDir:   getEnv("SESSIONS_DIR", "data/sessions"),
		SessionCap:    getEnvAsInt("SESSION_CAP", 1000),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 24*time.Hour),

		TurnLogPath: getEnv("TURN_LOG_PATH", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		LLMBaseURL:    getEnv("LLM_BASE_URL", "http://localhost:11434/v1"),
		LLMAPIKey:     getEnv("LLM_API_KEY", ""),
		LLMModel:      getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:    getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
		LLMMaxRetries: getEnvAsInt("LLM_MAX_RETRIES", 3),

		PaymentSuccessRate: getEnvAsFloat("PAYMENT_SUCCESS_RATE", 0.85),
		PaymentProcessWait: getEnvAsDuration("PAYMENT_PROCESS_WAIT", 2*time.Second),
		PaymentSettleWait:  getEnvAsDuration("PAYMENT_SETTLE_WAIT", 5*time.Second),
		GatewayBaseURL:     getEnv("GATEWAY_BASE_URL", ""),

		AutoAdvanceThreshold: getEnvAsInt("AUTO_ADVANCE_THRESHOLD", 80),
		QuoteRatesPath:       getEnv("QUOTE_RATES_PATH", ""),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	switch c.SessionStore {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("config: unknown session store %q", c.SessionStore)
	}
	if c.PaymentSuccessRate < 0 || c.PaymentSuccessRate > 1 {
		return fmt.Errorf("config: payment success rate %.2f out of range", c.PaymentSuccessRate)
	}
	if c.AutoAdvanceThreshold < 1 || c.AutoAdvanceThreshold > 100 {
		return fmt.Errorf("config: auto-advance threshold %d out of range", c.AutoAdvanceThreshold)
	}
	return nil
}

// IsProduction reports whether the app runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
