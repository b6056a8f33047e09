// Package config reads schemasync settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is loaded when no env file is named and it exists.
const DefaultEnvFile = ".env"

const (
	EnvDatabaseURL     = "SCHEMASYNC_DATABASE_URL"
	EnvIgnoredSchemas  = "SCHEMASYNC_IGNORED_SCHEMAS"
	EnvExclusiveSchema = "SCHEMASYNC_EXCLUSIVE_SCHEMA"
	EnvLogLevel        = "SCHEMASYNC_LOG_LEVEL"
	EnvLogFormat       = "SCHEMASYNC_LOG_FORMAT"
)

type Config struct {
	DatabaseURL     string
	IgnoredSchemas  []string
	ExclusiveSchema string
	LogLevel        string
	LogFormat       string
}

// Load reads the configuration. A named envFile must exist; without one,
// DefaultEnvFile is used when present. Variables already set in the
// environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("error loading env file %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading env file %s: %w", DefaultEnvFile, err)
	}

	return &Config{
		DatabaseURL:     getEnv(EnvDatabaseURL, ""),
		IgnoredSchemas:  splitAndTrim(getEnv(EnvIgnoredSchemas, ""), ","),
		ExclusiveSchema: getEnv(EnvExclusiveSchema, ""),
		LogLevel:        strings.ToLower(getEnv(EnvLogLevel, "info")),
		LogFormat:       strings.ToLower(getEnv(EnvLogFormat, "text")),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(str, sep string) []string {
	if str == "" {
		return nil
	}
	parts := strings.Split(str, sep)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
