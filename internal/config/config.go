package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"studyfeedback/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig `validate:"required"`
	Server   ServerConfig   `validate:"required"`
	Notify   NotifyConfig
	Log      LogConfig
	Render   RenderConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver string `validate:"required,oneof=postgres sqlite"`
	URL    string `validate:"required"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string `validate:"required,numeric"`
}

// NotifyConfig sizes the compiled notification template cache
type NotifyConfig struct {
	CacheSize int           `validate:"min=1"`
	TTL       time.Duration `validate:"min=0"`
}

// LogConfig selects level and encoding of the process logger
type LogConfig struct {
	Level  string `validate:"omitempty,oneof=ERROR WARN INFO DEBUG TRACE"`
	Format string `validate:"oneof=json console"`
}

// RenderConfig bounds study-wide batch rendering
type RenderConfig struct {
	Concurrency int `validate:"min=1,max=256"`
}

var validate = validator.New()

// LoadDotEnv reads .env files into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: loadDatabaseConfig(),
		Server:   loadServerConfig(),
		Notify:   loadNotifyConfig(),
		Log:      loadLogConfig(),
		Render:   loadRenderConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadDatabaseConfig() DatabaseConfig {
	url := os.Getenv("DATABASE_URL")
	driver := strings.ToLower(getEnvOrDefault("DB_DRIVER", ""))
	if driver == "" {
		driver = inferDriver(url)
	}
	return DatabaseConfig{Driver: driver, URL: url}
}

// inferDriver picks postgres for postgres:// URLs and sqlite for anything else
func inferDriver(url string) string {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port: getEnvOrDefault("PORT", "8080"),
	}
}

func loadNotifyConfig() NotifyConfig {
	return NotifyConfig{
		CacheSize: getEnvIntOrDefault("NOTIFY_CACHE_SIZE", 128),
		TTL:       getEnvDurationOrDefault("NOTIFY_CACHE_TTL", 10*time.Minute),
	}
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  strings.ToUpper(getEnvOrDefault("LOG_LEVEL", "INFO")),
		Format: getEnvOrDefault("LOG_FORMAT", "console"),
	}
}

func loadRenderConfig() RenderConfig {
	return RenderConfig{
		Concurrency: getEnvIntOrDefault("RENDER_CONCURRENCY", 8),
	}
}

func validateConfig(config *Config) error {
	if config.Database.URL == "" {
		return errors.ConfigInvalid("DATABASE_URL is required")
	}
	if err := validate.Struct(config); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
