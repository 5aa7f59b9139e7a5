package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL         string
	Port                int
	AllowedOrigins      string
	JWTSecret           string
	OpenAIAPIKey        string
	LogLevel            string
	Env                 string
	RecordNumberRetries int
}

// Production reports whether APP_ENV selects the production profile.
func (c Config) Production() bool { return c.Env == "production" }

// Load reads .env (when present) and the process environment. Process
// variables win over .env entries. Invalid values are errors.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, so callers can test without touching os.Environ.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	cfg := Config{
		DatabaseURL:         get("DATABASE_URL"),
		Port:                8080,
		AllowedOrigins:      get("ALLOWED_ORIGINS"),
		JWTSecret:           get("JWT_SECRET"),
		OpenAIAPIKey:        get("OPENAI_API_KEY"),
		LogLevel:            "info",
		Env:                 "development",
		RecordNumberRetries: 3,
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required (environment variable or .env)")
	}

	if raw := get("SERVER_PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid SERVER_PORT: %q", raw)
		}
		cfg.Port = port
	}

	if raw := get("LOG_LEVEL"); raw != "" {
		switch strings.ToLower(raw) {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = strings.ToLower(raw)
		default:
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %q", raw)
		}
	}

	if raw := get("APP_ENV"); raw != "" {
		switch strings.ToLower(raw) {
		case "production", "development":
			cfg.Env = strings.ToLower(raw)
		default:
			return Config{}, fmt.Errorf("invalid APP_ENV: %q", raw)
		}
	}

	if raw := get("RECORD_NUMBER_RETRIES"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid RECORD_NUMBER_RETRIES: %q", raw)
		}
		cfg.RecordNumberRetries = n
	}

	return cfg, nil
}

// RequireJWTSecret is checked by the HTTP server only; CLI commands run without one.
func (c Config) RequireJWTSecret() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required to run the server")
	}
	return nil
}
