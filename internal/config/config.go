// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string

	GridName       string
	WelcomeMessage string

	AllowAnonymous   bool
	RequireTOS       bool
	RequireInventory bool
	SkipLocalAuth    bool
	MinLoginLevel    int
	TokenLifetime    time.Duration

	HypergridEnabled  bool
	GatekeeperTimeout time.Duration
	SimulatorTimeout  time.Duration

	DefaultRegion RegionSeed
}

// RegionSeed describes the region registered at startup when the
// registry is empty, so a standalone deployment has somewhere to land
// logins.
type RegionSeed struct {
	Name string
	Host string
	Port int
	X    int // grid cells
	Y    int
}

// Configured reports whether a seed region was provided.
func (r RegionSeed) Configured() bool {
	return r.Name != "" && r.Host != ""
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/logind.db"),

		GridName:       getEnv("GRID_NAME", "Halcyon Grid"),
		WelcomeMessage: getEnv("WELCOME_MESSAGE", "Welcome!"),

		AllowAnonymous:   getEnvBool("ALLOW_ANONYMOUS", false),
		RequireTOS:       getEnvBool("REQUIRE_TOS", false),
		RequireInventory: getEnvBool("REQUIRE_INVENTORY", true),
		SkipLocalAuth:    getEnvBool("SKIP_LOCAL_AUTH", false),
		MinLoginLevel:    getEnvInt("MIN_LOGIN_LEVEL", 0),
		TokenLifetime:    getEnvDuration("TOKEN_LIFETIME", 24*time.Hour),

		HypergridEnabled:  getEnvBool("HYPERGRID_ENABLED", false),
		GatekeeperTimeout: getEnvDuration("GATEKEEPER_TIMEOUT", 30*time.Second),
		SimulatorTimeout:  getEnvDuration("SIMULATOR_TIMEOUT", 30*time.Second),

		DefaultRegion: RegionSeed{
			Name: getEnv("DEFAULT_REGION_NAME", ""),
			Host: getEnv("DEFAULT_REGION_HOST", ""),
			Port: getEnvInt("DEFAULT_REGION_PORT", 9000),
			X:    getEnvInt("DEFAULT_REGION_X", 1000),
			Y:    getEnvInt("DEFAULT_REGION_Y", 1000),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.MinLoginLevel < 0 {
		return fmt.Errorf("MIN_LOGIN_LEVEL must be >= 0")
	}
	if c.TokenLifetime <= 0 {
		return fmt.Errorf("TOKEN_LIFETIME must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
