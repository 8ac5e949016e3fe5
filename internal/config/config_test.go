package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":3001" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":3001")
	}
	if cfg.CallDuration != 2*time.Minute {
		t.Fatalf("CallDuration = %v, want 2m", cfg.CallDuration)
	}
	if cfg.CallBudgetSeconds() != 120 {
		t.Fatalf("CallBudgetSeconds() = %d, want 120", cfg.CallBudgetSeconds())
	}
	if cfg.RateLimitMax != 100 {
		t.Fatalf("RateLimitMax = %d, want 100", cfg.RateLimitMax)
	}
	if cfg.TavusBaseURL != "https://tavusapi.com" {
		t.Fatalf("TavusBaseURL = %q", cfg.TavusBaseURL)
	}
}

func TestLoadRejectsShortCallDuration(t *testing.T) {
	t.Setenv("APP_CALL_DURATION", "2s")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() should reject APP_CALL_DURATION below 5s")
	}
}

func TestLoadRejectsSupabaseURLWithoutKey(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() should require SUPABASE_SERVICE_ROLE_KEY when SUPABASE_URL is set")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("APP_CALL_DURATION", "90s")
	t.Setenv("APP_RATE_LIMIT_MAX", "5")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CallBudgetSeconds() != 90 {
		t.Fatalf("CallBudgetSeconds() = %d, want 90", cfg.CallBudgetSeconds())
	}
	if cfg.RateLimitMax != 5 {
		t.Fatalf("RateLimitMax = %d, want 5", cfg.RateLimitMax)
	}
}
