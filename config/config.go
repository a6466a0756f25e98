// Package config reads process settings from the environment and request files from disk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/bcdannyboy/mcprice/logger"
)

// Config holds all settings read from the environment.
type Config struct {
	Env string // development, staging, production, test

	// Logging
	LogLevel  string
	LogFormat string

	// Engine
	Workers    int
	BlockSize  int
	Confidence float64
	PilotPaths int

	// Grid defaults for requests that leave them out
	Paths int
	Steps int
	Seed  uint64

	CalibrationMaxIter int
}

// Load reads configuration from environment variables, after loading a .env file if one
// is found.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("MCPRICE_ENV", "development"),

		LogLevel:  getEnv("MCPRICE_LOG_LEVEL", "info"),
		LogFormat: getEnv("MCPRICE_LOG_FORMAT", "console"),

		Workers:    getEnvAsInt("MCPRICE_WORKERS", runtime.GOMAXPROCS(0)),
		BlockSize:  getEnvAsInt("MCPRICE_BLOCK_SIZE", 512),
		Confidence: getEnvAsFloat("MCPRICE_CONFIDENCE", 0.95),
		PilotPaths: getEnvAsInt("MCPRICE_PILOT_PATHS", 20000),

		Paths: getEnvAsInt("MCPRICE_PATHS", 100000),
		Steps: getEnvAsInt("MCPRICE_STEPS", 252),
		Seed:  getEnvAsUint("MCPRICE_SEED", 1),

		CalibrationMaxIter: getEnvAsInt("MCPRICE_CALIBRATION_MAX_ITER", 4000),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case "development", "staging", "production", "test":
	default:
		return fmt.Errorf("MCPRICE_ENV must be one of: development, staging, production, test")
	}
	if c.Workers < 1 {
		return fmt.Errorf("MCPRICE_WORKERS must be positive, got %d", c.Workers)
	}
	if c.BlockSize < 1 {
		return fmt.Errorf("MCPRICE_BLOCK_SIZE must be positive, got %d", c.BlockSize)
	}
	if c.Confidence <= 0 || c.Confidence >= 1 {
		return fmt.Errorf("MCPRICE_CONFIDENCE must be in (0, 1), got %v", c.Confidence)
	}
	if c.PilotPaths < 2 {
		return fmt.Errorf("MCPRICE_PILOT_PATHS must be at least 2, got %d", c.PilotPaths)
	}
	if c.CalibrationMaxIter < 1 {
		return fmt.Errorf("MCPRICE_CALIBRATION_MAX_ITER must be positive, got %d", c.CalibrationMaxIter)
	}
	return nil
}

// Logger is the logger configuration.
func (c *Config) Logger() logger.Config {
	return logger.Config{Env: c.Env, Level: c.LogLevel, Format: c.LogFormat}
}

// loadEnvFile tries to load .env from the working directory, then next to the executable.
func loadEnvFile() {
	paths := []string{".env"}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), ".env"))
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsUint(key string, defaultValue uint64) uint64 {
	value, err := strconv.ParseUint(os.Getenv(key), 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}
