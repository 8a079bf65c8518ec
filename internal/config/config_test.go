package config

import (
	"strings"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("api.base_url", "https://wedding.example.com/api")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HTTPAddress != "0.0.0.0:8080" {
		t.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if cfg.CachePath != "evermore-cache.db" {
		t.Fatalf("unexpected cache path %q", cfg.CachePath)
	}
	if cfg.TokenPath != "auth_token" {
		t.Fatalf("unexpected token path %q", cfg.TokenPath)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("unexpected log level %q", cfg.LogLevel)
	}
	if cfg.RequestTimeoutSeconds != 15 || cfg.UploadTimeoutSeconds != 90 {
		t.Fatalf("unexpected timeouts %d/%d", cfg.RequestTimeoutSeconds, cfg.UploadTimeoutSeconds)
	}
}

func TestLoadRequiresBaseURL(t *testing.T) {
	configViper := NewViper()

	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected error for missing base url")
	}
}

func TestLoadRejectsBaseURLWithoutAPIPath(t *testing.T) {
	configViper := NewViper()
	configViper.Set("api.base_url", "https://wedding.example.com")

	_, err := Load(configViper)
	if err == nil {
		t.Fatalf("expected error for base url missing the /api suffix")
	}
	if !strings.Contains(err.Error(), "/api") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestLoadAcceptsBaseURLWithTrailingSlash(t *testing.T) {
	configViper := NewViper()
	configViper.Set("api.base_url", "https://wedding.example.com/api/")

	if _, err := Load(configViper); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
}

func TestLoadRejectsBlankPaths(t *testing.T) {
	configViper := NewViper()
	configViper.Set("api.base_url", "https://wedding.example.com/api")
	configViper.Set("cache.path", "  ")

	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected error for blank cache path")
	}

	configViper = NewViper()
	configViper.Set("api.base_url", "https://wedding.example.com/api")
	configViper.Set("auth.token_path", "")

	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected error for blank token path")
	}
}

func TestLoadOverrides(t *testing.T) {
	configViper := NewViper()
	configViper.Set("api.base_url", "https://wedding.example.com/api")
	configViper.Set("http.address", "127.0.0.1:9090")
	configViper.Set("firestore.project_id", "evermore-prod")
	configViper.Set("api.timeout_seconds", 30)

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HTTPAddress != "127.0.0.1:9090" {
		t.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if cfg.FirestoreProjectID != "evermore-prod" {
		t.Fatalf("unexpected project id %q", cfg.FirestoreProjectID)
	}
	if cfg.RequestTimeoutSeconds != 30 {
		t.Fatalf("unexpected request timeout %d", cfg.RequestTimeoutSeconds)
	}
}
