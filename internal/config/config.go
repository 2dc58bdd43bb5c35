/**
 * Configuration for the identity scan worker
 *
 * Loads configuration from environment variables. The detection bundle
 * (keyword lists and thresholds) lives in a separate JSON file referenced
 * by DETECTION_CONFIG_PATH; see detection.go.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration
	RedisURL string

	// PostgreSQL configuration
	DatabaseURL string

	// Remote OCR service, used when OCR_ENGINE=remote
	OCREngine    string
	RemoteOCRURL string

	// Worker configuration
	WorkerConcurrency int
	OCRConcurrency    int
	MaxFileSize       int64
	ProcessingTimeout int // milliseconds per job

	// Tesseract configuration
	TesseractPath string
	OCRLanguages  string // '+'-separated tesseract language codes

	// Detection bundle
	DetectionConfigPath string

	// Annotated report output
	ReportDir     string
	ReportEnabled bool

	// Temporary directory for file processing
	TempDir string

	// Node environment
	NodeEnv string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:            getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		DatabaseURL:         getEnvOrThrow("DATABASE_URL"),
		OCREngine:           getEnvOrDefault("OCR_ENGINE", "tesseract"),
		RemoteOCRURL:        getEnvOrDefault("REMOTE_OCR_URL", ""),
		WorkerConcurrency:   getEnvAsIntOrDefault("WORKER_CONCURRENCY", 10),
		OCRConcurrency:      getEnvAsIntOrDefault("OCR_CONCURRENCY", 4),
		MaxFileSize:         getEnvAsInt64OrDefault("MAX_FILE_SIZE", 104857600), // 100MB
		ProcessingTimeout:   getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 300000), // 5 minutes
		TesseractPath:       getEnvOrDefault("TESSERACT_PATH", "/usr/bin/tesseract"),
		OCRLanguages:        getEnvOrDefault("OCR_LANGUAGES", "eng"),
		DetectionConfigPath: getEnvOrDefault("DETECTION_CONFIG_PATH", "configs/detection.json"),
		ReportDir:           getEnvOrDefault("REPORT_DIR", ""),
		ReportEnabled:       getEnvOrDefault("REPORT_DIR", "") != "",
		TempDir:             getEnvOrDefault("TEMP_DIR", "/tmp/idscan"),
		NodeEnv:             getEnvOrDefault("NODE_ENV", "development"),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.OCREngine != "tesseract" && c.OCREngine != "remote" {
		return fmt.Errorf("OCR_ENGINE must be tesseract or remote, got %q", c.OCREngine)
	}

	if c.OCREngine == "remote" && c.RemoteOCRURL == "" {
		return fmt.Errorf("REMOTE_OCR_URL is required when OCR_ENGINE=remote")
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.OCRConcurrency < 1 || c.OCRConcurrency > 32 {
		return fmt.Errorf("OCR_CONCURRENCY must be between 1 and 32, got %d", c.OCRConcurrency)
	}

	if c.MaxFileSize < 1024 || c.MaxFileSize > 10737418240 { // 1KB to 10GB
		return fmt.Errorf("MAX_FILE_SIZE must be between 1KB and 10GB, got %d", c.MaxFileSize)
	}

	if c.DetectionConfigPath == "" {
		return fmt.Errorf("DETECTION_CONFIG_PATH is required")
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrThrow gets environment variable or returns error
func getEnvOrThrow(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("Required environment variable %s is not set", key))
	}
	return value
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}
