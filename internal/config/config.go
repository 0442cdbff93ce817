package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"gobiodiv/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	UI        UIConfig
	Analysis  AnalysisConfig
	Profiling ProfilingConfig
}

// DatabaseConfig holds database connection settings. An empty URL selects
// the in-memory result store.
type DatabaseConfig struct {
	URL     string
	SSLMode string
}

// Enabled reports whether results are persisted to Postgres
func (d DatabaseConfig) Enabled() bool { return d.URL != "" }

// DSN returns the connection string with SSLMode applied unless the URL
// already sets sslmode
func (d DatabaseConfig) DSN() string {
	if d.SSLMode == "" || strings.Contains(d.URL, "sslmode=") {
		return d.URL
	}
	switch {
	case !strings.Contains(d.URL, "://"):
		return d.URL + " sslmode=" + d.SSLMode
	case strings.Contains(d.URL, "?"):
		return d.URL + "&sslmode=" + d.SSLMode
	default:
		return d.URL + "?sslmode=" + d.SSLMode
	}
}

// ServerConfig holds API server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// UIConfig holds report server settings
type UIConfig struct {
	Port string
}

// ProfilingConfig holds performance profiling settings
type ProfilingConfig struct {
	Port    string
	Enabled bool
}

// Load reads configuration from environment variables and validates it.
// MOB_CONFIG names an optional YAML file with analysis defaults; MOB_*
// variables override it.
func Load() (*Config, error) {
	analysis := DefaultAnalysis()
	if path := os.Getenv("MOB_CONFIG"); path != "" {
		loaded, err := LoadAnalysis(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load analysis configuration")
		}
		analysis = *loaded
	}
	applyAnalysisEnv(&analysis)

	config := &Config{
		Database: DatabaseConfig{
			URL:     os.Getenv("DATABASE_URL"),
			SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
		},
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			GinMode: getEnvOrDefault("GIN_MODE", "debug"),
		},
		UI: UIConfig{
			Port: getEnvOrDefault("UI_PORT", "8081"),
		},
		Analysis: analysis,
		Profiling: ProfilingConfig{
			Port:    getEnvOrDefault("PPROF_PORT", "6060"),
			Enabled: getEnvBoolOrDefault("PPROF_ENABLED", false),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func applyAnalysisEnv(a *AnalysisConfig) {
	a.NMin = getEnvFloatOrDefault("MOB_N_MIN", a.NMin)
	a.NPerm = getEnvIntOrDefault("MOB_NPERM", a.NPerm)
	a.Seed = getEnvInt64OrDefault("MOB_SEED", a.Seed)
	a.Workers = getEnvIntOrDefault("MOB_WORKERS", a.Workers)
	a.UnbiasedPIE = getEnvBoolOrDefault("MOB_UNBIASED_PIE", a.UnbiasedPIE)
	if a.Workers == 0 {
		a.Workers = runtime.NumCPU()
	}
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("server port is required")
	}
	if config.Server.Port == config.UI.Port {
		return errors.ConfigInvalid("PORT and UI_PORT must differ")
	}
	return config.Analysis.Validate()
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

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
