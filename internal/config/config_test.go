package config

import "testing"

func validConfig() Config {
	return Config{
		DatabaseURL:     "sqlite://data/choti.db",
		JWTSecret:       "a-very-long-test-secret",
		JWTAlgorithm:    "HS256",
		JWTTTLHours:     720,
		BcryptCost:      10,
		HistoryMaxTurns: 40,
		HistoryMaxUsers: 1000,
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsWeakOrMissingValues(t *testing.T) {
	cases := map[string]func(*Config){
		"missing database":   func(c *Config) { c.DatabaseURL = " " },
		"missing secret":     func(c *Config) { c.JWTSecret = "" },
		"insecure default":   func(c *Config) { c.JWTSecret = "change-me-in-production" },
		"short secret":       func(c *Config) { c.JWTSecret = "short" },
		"missing algorithm":  func(c *Config) { c.JWTAlgorithm = "" },
		"zero ttl":           func(c *Config) { c.JWTTTLHours = 0 },
		"zero history turns": func(c *Config) { c.HistoryMaxTurns = 0 },
		"zero history users": func(c *Config) { c.HistoryMaxUsers = -1 },
		"bcrypt too low":     func(c *Config) { c.BcryptCost = 2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadReadsEnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "4100")
	t.Setenv("AI_TEMPERATURE", "0.4")
	t.Setenv("HISTORY_MAX_TURNS", "12")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("STATIC_DIR", "")
	t.Setenv("OPENROUTER_API_KEY", "")

	cfg := Load()
	if cfg.AppPort != "4100" {
		t.Fatalf("expected APP_PORT override, got %q", cfg.AppPort)
	}
	if cfg.AITemperature != 0.4 {
		t.Fatalf("expected AI_TEMPERATURE=0.4, got %v", cfg.AITemperature)
	}
	if cfg.HistoryMaxTurns != 12 {
		t.Fatalf("expected HISTORY_MAX_TURNS=12, got %d", cfg.HistoryMaxTurns)
	}
	if len(cfg.CORSAllowOrigins) != 2 || cfg.CORSAllowOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected CORS origins: %#v", cfg.CORSAllowOrigins)
	}
	if cfg.StaticDir != "" {
		t.Fatalf("expected empty STATIC_DIR to disable static files, got %q", cfg.StaticDir)
	}
	if cfg.AIEnabled() {
		t.Fatalf("expected AI disabled without an API key")
	}
}

func TestLoadFallsBackOnUnparsableNumbers(t *testing.T) {
	t.Setenv("AI_MAX_OUTPUT_TOKENS", "lots")
	t.Setenv("AI_TEMPERATURE", "warm")

	cfg := Load()
	if cfg.AIMaxOutputTokens != 1024 {
		t.Fatalf("expected default max tokens, got %d", cfg.AIMaxOutputTokens)
	}
	if cfg.AITemperature != 0.9 {
		t.Fatalf("expected default temperature, got %v", cfg.AITemperature)
	}
}
