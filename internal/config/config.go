package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the practice-call service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	FrontendOrigin string
	AllowAnyOrigin bool

	TavusAPIKey  string
	TavusBaseURL string

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseJWTSecret  string

	MalePersonaID   string
	FemalePersonaID string
	MaleReplicaID   string
	FemaleReplicaID string

	CallDuration          time.Duration
	CallInactivityTimeout time.Duration

	RateLimitWindow time.Duration
	RateLimitMax    int

	DatabaseURL string
	RedisURL    string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:           envOrDefault("APP_BIND_ADDR", ":3001"),
		MetricsNamespace:   envOrDefault("APP_METRICS_NAMESPACE", "lovechat"),
		FrontendOrigin:     envOrDefault("FRONTEND_URL", "http://localhost:5173"),
		AllowAnyOrigin:     false,
		TavusAPIKey:        stringsTrimSpace("TAVUS_API_KEY"),
		TavusBaseURL:       envOrDefault("TAVUS_BASE_URL", "https://tavusapi.com"),
		SupabaseURL:        stringsTrimSpace("SUPABASE_URL"),
		SupabaseServiceKey: stringsTrimSpace("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseJWTSecret:  stringsTrimSpace("SUPABASE_JWT_SECRET"),
		MalePersonaID:      stringsTrimSpace("MALE_PERSONA_ID"),
		FemalePersonaID:    stringsTrimSpace("FEMALE_PERSONA_ID"),
		MaleReplicaID:      stringsTrimSpace("MALE_REPLICA_ID"),
		FemaleReplicaID:    stringsTrimSpace("FEMALE_REPLICA_ID"),
		DatabaseURL:        stringsTrimSpace("DATABASE_URL"),
		RedisURL:           stringsTrimSpace("REDIS_URL"),
		ShutdownTimeout:    15 * time.Second,
		// Fixed per-attempt budget; the controller ends the call when it runs out.
		CallDuration:          2 * time.Minute,
		CallInactivityTimeout: 5 * time.Minute,
		RateLimitWindow:       15 * time.Minute,
		RateLimitMax:          100,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CallDuration, err = durationFromEnv("APP_CALL_DURATION", cfg.CallDuration)
	if err != nil {
		return Config{}, err
	}
	cfg.CallInactivityTimeout, err = durationFromEnv("APP_CALL_INACTIVITY_TIMEOUT", cfg.CallInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.RateLimitWindow, err = durationFromEnv("APP_RATE_LIMIT_WINDOW", cfg.RateLimitWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.RateLimitMax, err = intFromEnv("APP_RATE_LIMIT_MAX", cfg.RateLimitMax)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.CallDuration < 5*time.Second {
		return Config{}, fmt.Errorf("APP_CALL_DURATION must be at least 5s")
	}
	if cfg.CallInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_CALL_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.RateLimitMax <= 0 {
		return Config{}, fmt.Errorf("APP_RATE_LIMIT_MAX must be positive")
	}
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceKey == "" {
		return Config{}, fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY is required when SUPABASE_URL is set")
	}

	return cfg, nil
}

// CallBudgetSeconds returns the countdown budget in whole seconds.
func (c Config) CallBudgetSeconds() int {
	return int(c.CallDuration / time.Second)
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
