package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SECRET", "s3cret")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TokenLifetime != time.Hour {
		t.Errorf("expected token lifetime 1h, got %s", cfg.TokenLifetime)
	}
	if cfg.DatabaseURL != "wisepal.db" {
		t.Errorf("unexpected default DATABASE_URL %q", cfg.DatabaseURL)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("expected 2 default CORS origins, got %v", cfg.CORSOrigins)
	}
	if cfg.Env != "development" {
		t.Errorf("expected development env by default, got %q", cfg.Env)
	}
	if cfg.WriteTimeout != 120*time.Second {
		t.Errorf("expected 120s write timeout, got %s", cfg.WriteTimeout)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when SECRET is empty")
	}
}

func TestLoadGeminiKeyFallback(t *testing.T) {
	t.Setenv("SECRET", "s3cret")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gem-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GoogleAPIKey != "gem-key" {
		t.Fatalf("expected fallback key, got %q", cfg.GoogleAPIKey)
	}
}

func TestLoadTrimsOrigins(t *testing.T) {
	t.Setenv("SECRET", "s3cret")
	t.Setenv("CORS_ORIGINS", " http://a.test , ,http://b.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"http://a.test", "http://b.test"}
	if len(cfg.CORSOrigins) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.CORSOrigins)
	}
	for i := range want {
		if cfg.CORSOrigins[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, cfg.CORSOrigins)
		}
	}
}

func TestLoadRejectsNonPositiveLifetime(t *testing.T) {
	t.Setenv("SECRET", "s3cret")
	t.Setenv("TOKEN_LIFETIME", "0s")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero token lifetime")
	}
}
