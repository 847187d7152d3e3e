package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("AUTH_PASS", "secret")
	t.Setenv("PORT", "")
	t.Setenv("FILE_RETENTION_HOURS", "")
	t.Setenv("AUTH_ENABLED", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Fatalf("Port = %q, want 8000", cfg.Port)
	}
	if cfg.FileRetention != time.Hour {
		t.Fatalf("FileRetention = %s, want 1h", cfg.FileRetention)
	}
	if !cfg.AuthEnabled {
		t.Fatalf("AuthEnabled should default to true")
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("CORSAllowedOrigins = %#v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfigRequiresPasswordWhenAuthEnabled(t *testing.T) {
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("AUTH_PASS", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error without AUTH_PASS")
	}
}

func TestLoadConfigAuthDisabled(t *testing.T) {
	t.Setenv("AUTH_ENABLED", "false")
	t.Setenv("AUTH_PASS", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example.com, ,https://b.example.com ")
	t.Setenv("MAX_CONCURRENT_JOBS", "0")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.AuthEnabled {
		t.Fatalf("AuthEnabled = true, want false")
	}
	expected := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.CORSAllowedOrigins) != len(expected) {
		t.Fatalf("CORSAllowedOrigins = %#v, want %#v", cfg.CORSAllowedOrigins, expected)
	}
	for i, origin := range expected {
		if cfg.CORSAllowedOrigins[i] != origin {
			t.Fatalf("CORSAllowedOrigins[%d] = %q, want %q", i, cfg.CORSAllowedOrigins[i], origin)
		}
	}
	if cfg.MaxConcurrentJobs != 1 {
		t.Fatalf("MaxConcurrentJobs = %d, want 1", cfg.MaxConcurrentJobs)
	}
}

func TestLoadClientConfigKeepsEmptyBackend(t *testing.T) {
	t.Setenv("BACKEND_URL", "")
	t.Setenv("SAME_ORIGIN", "")

	cfg := LoadClientConfig()
	if cfg.BackendURL != "" {
		t.Fatalf("BackendURL = %q, want empty", cfg.BackendURL)
	}
	if cfg.SameOrigin != "http://localhost:8000" {
		t.Fatalf("SameOrigin = %q", cfg.SameOrigin)
	}
}
