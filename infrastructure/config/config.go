// Package config loads the service configuration from the environment,
// optionally overlaid from a YAML file whose runtime-tunable portion can
// be hot-reloaded by the watcher.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`

	// Storage configuration
	StorageDriver string `yaml:"storage_driver"` // "sqlite" or "memory"
	SQLitePath    string `yaml:"sqlite_path"`

	// Provider configuration
	Provider        string        `yaml:"provider"` // "openai" or "stub"
	OpenAIAPIKey    string        `yaml:"-"`
	OpenAIBaseURL   string        `yaml:"openai_base_url"`
	ProviderTimeout time.Duration `yaml:"provider_timeout"`

	// Turn rate limiting, applied per path
	TurnRateLimit  int           `yaml:"turn_rate_limit"`
	TurnRateWindow time.Duration `yaml:"turn_rate_window"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Feature flags
	EnableCORS bool `yaml:"enable_cors"`

	// Hot-reloadable tuning file; empty disables the watcher
	DynamicConfigPath string `yaml:"dynamic_config_path"`
}

// LoadConfig loads configuration from the environment. If CONFIG_FILE
// points at a YAML file it is read first and the environment overrides it.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress:   ":8080",
		Environment:     "development",
		StorageDriver:   "sqlite",
		SQLitePath:      "loom.db",
		Provider:        "openai",
		ProviderTimeout: 120 * time.Second,
		TurnRateLimit:   30,
		TurnRateWindow:  time.Minute,
		LogLevel:        "info",
		EnableCORS:      true,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.ServerAddress = getEnv("SERVER_ADDRESS", cfg.ServerAddress)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.StorageDriver = getEnv("STORAGE_DRIVER", cfg.StorageDriver)
	cfg.SQLitePath = getEnv("SQLITE_PATH", cfg.SQLitePath)
	cfg.Provider = getEnv("PROVIDER", cfg.Provider)
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", cfg.ProviderTimeout)
	cfg.TurnRateLimit = getEnvInt("TURN_RATE_LIMIT", cfg.TurnRateLimit)
	cfg.TurnRateWindow = getEnvDuration("TURN_RATE_WINDOW", cfg.TurnRateWindow)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.EnableCORS = getEnvBool("ENABLE_CORS", cfg.EnableCORS)
	cfg.DynamicConfigPath = getEnv("DYNAMIC_CONFIG_PATH", cfg.DynamicConfigPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	switch c.Provider {
	case "openai", "stub":
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.Provider == "openai" && c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when the openai provider is selected")
	}
	if c.TurnRateLimit <= 0 {
		return fmt.Errorf("turn rate limit must be positive")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
