package config_test

import (
	"strings"
	"testing"

	"autoshop-crm/internal/config"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := config.FromEnv(envOf(map[string]string{"DATABASE_URL": "postgres://localhost/crm"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("port: got %d, want 8080", cfg.Port)
	}
	if cfg.LogLevel != "info" || cfg.Env != "development" {
		t.Errorf("log defaults: got level=%q env=%q", cfg.LogLevel, cfg.Env)
	}
	if cfg.RecordNumberRetries != 3 {
		t.Errorf("retries: got %d, want 3", cfg.RecordNumberRetries)
	}
	if cfg.Production() {
		t.Error("development profile reported as production")
	}
	if err := cfg.RequireJWTSecret(); err == nil {
		t.Error("expected missing JWT_SECRET to be reported")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := config.FromEnv(envOf(map[string]string{
		"DATABASE_URL":          "postgres://localhost/crm",
		"SERVER_PORT":           "9090",
		"LOG_LEVEL":             "DEBUG",
		"APP_ENV":               "production",
		"RECORD_NUMBER_RETRIES": "5",
		"JWT_SECRET":            "s3cret",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 9090 || cfg.LogLevel != "debug" || !cfg.Production() || cfg.RecordNumberRetries != 5 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if err := cfg.RequireJWTSecret(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"DATABASE_URL":          {},
		"SERVER_PORT":           {"DATABASE_URL": "x", "SERVER_PORT": "eighty"},
		"LOG_LEVEL":             {"DATABASE_URL": "x", "LOG_LEVEL": "verbose"},
		"APP_ENV":               {"DATABASE_URL": "x", "APP_ENV": "staging"},
		"RECORD_NUMBER_RETRIES": {"DATABASE_URL": "x", "RECORD_NUMBER_RETRIES": "0"},
	}
	for key, env := range cases {
		t.Run(key, func(t *testing.T) {
			_, err := config.FromEnv(envOf(env))
			if err == nil {
				t.Fatalf("expected error for %s", key)
			}
			if !strings.Contains(err.Error(), key) {
				t.Errorf("error %q does not name %s", err, key)
			}
		})
	}
}
