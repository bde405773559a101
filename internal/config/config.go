package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv            string
	AppName           string
	APIPrefix         string
	AppPort           string
	DatabaseURL       string
	JWTSecret         string
	JWTAlgorithm      string
	JWTAudience       string
	JWTIssuer         string
	JWTTTLHours       int
	BcryptCost        int
	CORSAllowOrigins  []string
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	OpenRouterModel   string
	AIMaxOutputTokens int
	AITemperature     float64
	AITimeoutSeconds  int
	AIReferer         string
	AIAppTitle        string
	HistoryMaxTurns   int
	HistoryMaxUsers   int
	PersonaName       string
	StaticDir         string
}

func Load() Config {
	_ = godotenv.Load(".env")

	return Config{
		AppEnv:       getEnv("APP_ENV", "local"),
		AppName:      getEnv("APP_NAME", "Choti Companion API"),
		APIPrefix:    getEnv("API_PREFIX", "/api"),
		AppPort:      getEnv("APP_PORT", "3000"),
		DatabaseURL:  getEnv("DATABASE_URL", "sqlite://data/choti.db"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		JWTAlgorithm: getEnv("JWT_ALGORITHM", "HS256"),
		JWTAudience:  getEnv("JWT_AUDIENCE", ""),
		JWTIssuer:    getEnv("JWT_ISSUER", ""),
		JWTTTLHours:  getEnvInt("JWT_TTL_HOURS", 24*30),
		BcryptCost:   getEnvInt("BCRYPT_COST", 10),
		CORSAllowOrigins: getEnvCSV(
			"CORS_ALLOW_ORIGINS",
			[]string{"http://localhost:3000", "http://127.0.0.1:3000", "http://localhost:5173"},
		),
		OpenRouterAPIKey:  getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterModel:   getEnv("OPENROUTER_MODEL", "google/gemini-2.0-flash-001"),
		AIMaxOutputTokens: getEnvInt("AI_MAX_OUTPUT_TOKENS", 1024),
		AITemperature:     getEnvFloat("AI_TEMPERATURE", 0.9),
		AITimeoutSeconds:  getEnvInt("AI_TIMEOUT_SECONDS", 20),
		AIReferer:         getEnv("AI_REFERER", "http://localhost:3000"),
		AIAppTitle:        getEnv("AI_APP_TITLE", "Choti Companion"),
		HistoryMaxTurns:   getEnvInt("HISTORY_MAX_TURNS", 40),
		HistoryMaxUsers:   getEnvInt("HISTORY_MAX_USERS", 1000),
		PersonaName:       getEnv("PERSONA_NAME", "Choti"),
		StaticDir:         getEnvAllowEmpty("STATIC_DIR", "public"),
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("DATABASE_URL is required")
	}
	secret := strings.TrimSpace(c.JWTSecret)
	if secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if secret == "change-me-in-production" {
		return errors.New("JWT_SECRET must not use insecure default value")
	}
	if len(secret) < 16 {
		return errors.New("JWT_SECRET is too short; use at least 16 characters")
	}
	if strings.TrimSpace(c.JWTAlgorithm) == "" {
		return errors.New("JWT_ALGORITHM is required")
	}
	if c.JWTTTLHours <= 0 {
		return errors.New("JWT_TTL_HOURS must be positive")
	}
	if c.HistoryMaxTurns <= 0 {
		return errors.New("HISTORY_MAX_TURNS must be positive")
	}
	if c.HistoryMaxUsers <= 0 {
		return errors.New("HISTORY_MAX_USERS must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("BCRYPT_COST must be between 4 and 31")
	}
	return nil
}

// AIEnabled reports whether completions go to OpenRouter. Without a key
// every reply comes from the fallback responder.
func (c Config) AIEnabled() bool {
	return strings.TrimSpace(c.OpenRouterAPIKey) != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// getEnvAllowEmpty lets an explicitly empty variable override the fallback.
func getEnvAllowEmpty(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvCSV(key string, fallback []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, item := range parts {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}
