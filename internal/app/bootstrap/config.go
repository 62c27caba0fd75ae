package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the portal security service.
// It merges file defaults and environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	// RedisURL selects the shared-state backend. Empty means single-instance
	// in-memory stores.
	RedisURL string

	JWTPrivateKeyPEM  string
	JWTPublicKeyPEM   string
	JWTKeyID          string
	AllowEphemeralJWT bool

	Argon2MemoryKiB   int
	Argon2Iterations  int
	Argon2Parallelism int

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	LockoutThreshold    int
	LockoutBaseDuration time.Duration
	LockoutMultiplier   int
	LockoutMaxDuration  time.Duration
	LockoutIdleTTL      time.Duration

	RateLimit       int
	RateLimitWindow time.Duration

	AllowedOrigins []string
	AnomalyWindow  time.Duration

	EventLogCapacity int
	SweepInterval    time.Duration

	SecureCookies bool
	CSRFTokenTTL  time.Duration

	MaxDBConns int32
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"dependencies"`
	Security struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"security"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:           "portal-security",
		HTTPPort:            8080,
		GRPCPort:            9090,
		JWTKeyID:            "portal-security-key-1",
		AllowEphemeralJWT:   true,
		Argon2MemoryKiB:     64 * 1024,
		Argon2Iterations:    3,
		Argon2Parallelism:   2,
		AccessTokenTTL:      15 * time.Minute,
		RefreshTokenTTL:     7 * 24 * time.Hour,
		LockoutThreshold:    5,
		LockoutBaseDuration: 15 * time.Minute,
		LockoutMultiplier:   2,
		LockoutMaxDuration:  24 * time.Hour,
		LockoutIdleTTL:      48 * time.Hour,
		RateLimit:           100,
		RateLimitWindow:     time.Minute,
		AnomalyWindow:       30 * time.Minute,
		EventLogCapacity:    4096,
		SweepInterval:       5 * time.Minute,
		SecureCookies:       true,
		CSRFTokenTTL:        time.Hour,
		MaxDBConns:          20,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.Security.AllowedOrigins) > 0 {
			cfg.AllowedOrigins = f.Security.AllowedOrigins
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.JWTPrivateKeyPEM = envOrDefault("JWT_PRIVATE_KEY_PEM", cfg.JWTPrivateKeyPEM)
	cfg.JWTPublicKeyPEM = envOrDefault("JWT_PUBLIC_KEY_PEM", cfg.JWTPublicKeyPEM)
	cfg.JWTKeyID = envOrDefault("JWT_KEY_ID", cfg.JWTKeyID)
	cfg.AllowEphemeralJWT = envBool("JWT_ALLOW_EPHEMERAL", cfg.AllowEphemeralJWT)
	cfg.AllowedOrigins = envCSV("ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.SecureCookies = envBool("SECURE_COOKIES", cfg.SecureCookies)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.Argon2MemoryKiB = envInt("ARGON2_MEMORY_KIB", cfg.Argon2MemoryKiB)
	cfg.Argon2Iterations = envInt("ARGON2_ITERATIONS", cfg.Argon2Iterations)
	cfg.Argon2Parallelism = envInt("ARGON2_PARALLELISM", cfg.Argon2Parallelism)
	cfg.LockoutThreshold = envInt("LOCKOUT_THRESHOLD", cfg.LockoutThreshold)
	cfg.LockoutMultiplier = envInt("LOCKOUT_MULTIPLIER", cfg.LockoutMultiplier)
	cfg.RateLimit = envInt("RATE_LIMIT_REQUESTS", cfg.RateLimit)
	cfg.EventLogCapacity = envInt("EVENT_LOG_CAPACITY", cfg.EventLogCapacity)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))

	cfg.AccessTokenTTL = time.Duration(envInt("ACCESS_TOKEN_TTL_MINUTES", int(cfg.AccessTokenTTL.Minutes()))) * time.Minute
	cfg.RefreshTokenTTL = time.Duration(envInt("REFRESH_TOKEN_TTL_HOURS", int(cfg.RefreshTokenTTL.Hours()))) * time.Hour
	cfg.LockoutBaseDuration = time.Duration(envInt("LOCKOUT_BASE_MINUTES", int(cfg.LockoutBaseDuration.Minutes()))) * time.Minute
	cfg.LockoutMaxDuration = time.Duration(envInt("LOCKOUT_MAX_HOURS", int(cfg.LockoutMaxDuration.Hours()))) * time.Hour
	cfg.LockoutIdleTTL = time.Duration(envInt("LOCKOUT_IDLE_HOURS", int(cfg.LockoutIdleTTL.Hours()))) * time.Hour
	cfg.RateLimitWindow = time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", int(cfg.RateLimitWindow.Seconds()))) * time.Second
	cfg.AnomalyWindow = time.Duration(envInt("ANOMALY_WINDOW_MINUTES", int(cfg.AnomalyWindow.Minutes()))) * time.Minute
	cfg.SweepInterval = time.Duration(envInt("SWEEP_INTERVAL_SECONDS", int(cfg.SweepInterval.Seconds()))) * time.Second
	cfg.CSRFTokenTTL = time.Duration(envInt("CSRF_TOKEN_TTL_MINUTES", int(cfg.CSRFTokenTTL.Minutes()))) * time.Minute

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if (cfg.JWTPrivateKeyPEM == "" || cfg.JWTPublicKeyPEM == "") && !cfg.AllowEphemeralJWT {
		return Config{}, fmt.Errorf("missing JWT_PRIVATE_KEY_PEM or JWT_PUBLIC_KEY_PEM")
	}
	if cfg.LockoutThreshold < 1 {
		return Config{}, fmt.Errorf("LOCKOUT_THRESHOLD must be at least 1")
	}
	if cfg.LockoutMultiplier < 1 {
		return Config{}, fmt.Errorf("LOCKOUT_MULTIPLIER must be at least 1")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
