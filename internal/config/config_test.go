package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("MODE", "")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("CORS_ORIGINS", "")
	cfg := FromEnv()
	if cfg.Mode != ModeOffline {
		t.Fatalf("mode = %q", cfg.Mode)
	}
	if cfg.DBDriver != "sqlite" || cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected db/addr: %q %q", cfg.DBDriver, cfg.HTTPAddr)
	}
	if cfg.SessionTTL != 8*time.Hour {
		t.Fatalf("session ttl = %v", cfg.SessionTTL)
	}
	if !cfg.EnableRegistration {
		t.Fatalf("registration should default on")
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("origins = %v", cfg.CORSOrigins)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("MODE", "online")
	t.Setenv("SESSION_TTL", "90m")
	t.Setenv("QUIZ_STATE_TTL", "garbage")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("ENABLE_REGISTRATION", "no")
	cfg := FromEnv()
	if cfg.LogMode != "prod" {
		t.Fatalf("online mode should log prod, got %q", cfg.LogMode)
	}
	if cfg.SessionTTL != 90*time.Minute {
		t.Fatalf("session ttl = %v", cfg.SessionTTL)
	}
	if cfg.QuizStateTTL != 2*time.Hour {
		t.Fatalf("bad duration should fall back, got %v", cfg.QuizStateTTL)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("origins = %v", cfg.CORSOrigins)
	}
	if cfg.EnableRegistration {
		t.Fatalf("registration should be disabled")
	}
}
