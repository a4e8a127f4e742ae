package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultStagingTTL          = "1h"
	defaultSweepInterval       = "5m"
	defaultMaxUploadSize       = 50 * 1024 * 1024
	defaultPreviewRows         = 5
	defaultImportChunkSize     = 100
	defaultImportWorkers       = 4
	defaultMaxImportAttempts   = 3
	defaultRetryBackoff        = "2s"
	defaultTaskTimeout         = "10m"
	defaultRowErrorTolerance   = 0.2
	defaultTaskRetentionDays   = 30
	defaultValidationSample    = 100
	defaultFoundThreshold      = 50
	defaultNameConclusive      = 70
	defaultContentScoreCeiling = 95
)

// Config holds the runtime knobs of the import pipeline. Everything has
// a sensible default so the service boots with an empty environment.
type Config struct {
	// staging
	StagingTTL    time.Duration
	SweepInterval time.Duration
	MaxUploadSize int64
	PreviewRows   int

	// import
	ImportChunkSize   int
	ImportWorkers     int
	MaxImportAttempts int
	RetryBackoff      time.Duration
	TaskTimeout       time.Duration
	RowErrorTolerance float64 // fraction of processed rows allowed to fail coercion
	TaskRetentionDays int

	// header validation
	ValidationSampleRows int
	FoundThreshold       int // minimum combined score to report a match
	NameConclusiveScore  int // name score at which content heuristics are skipped
	ContentScoreCeiling  int
}

func Load() (*Config, error) {
	cfg := &Config{
		MaxUploadSize:        parseInt64Env("MAX_UPLOAD_SIZE", defaultMaxUploadSize),
		PreviewRows:          parseIntEnv("PREVIEW_ROWS", defaultPreviewRows),
		ImportChunkSize:      parseIntEnv("IMPORT_CHUNK_SIZE", defaultImportChunkSize),
		ImportWorkers:        parseIntEnv("IMPORT_WORKERS", defaultImportWorkers),
		MaxImportAttempts:    parseIntEnv("IMPORT_MAX_ATTEMPTS", defaultMaxImportAttempts),
		RowErrorTolerance:    parseFloatEnv("IMPORT_ROW_ERROR_TOLERANCE", defaultRowErrorTolerance),
		TaskRetentionDays:    parseIntEnv("IMPORT_TASK_RETENTION_DAYS", defaultTaskRetentionDays),
		ValidationSampleRows: parseIntEnv("VALIDATION_SAMPLE_ROWS", defaultValidationSample),
		FoundThreshold:       parseIntEnv("MATCHER_FOUND_THRESHOLD", defaultFoundThreshold),
		NameConclusiveScore:  parseIntEnv("MATCHER_NAME_CONCLUSIVE_SCORE", defaultNameConclusive),
		ContentScoreCeiling:  parseIntEnv("MATCHER_CONTENT_SCORE_CEILING", defaultContentScoreCeiling),
	}

	var err error
	if cfg.StagingTTL, err = parseDurationEnv("STAGING_TTL", defaultStagingTTL); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = parseDurationEnv("STAGING_SWEEP_INTERVAL", defaultSweepInterval); err != nil {
		return nil, err
	}
	if cfg.RetryBackoff, err = parseDurationEnv("IMPORT_RETRY_BACKOFF", defaultRetryBackoff); err != nil {
		return nil, err
	}
	if cfg.TaskTimeout, err = parseDurationEnv("IMPORT_TASK_TIMEOUT", defaultTaskTimeout); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.StagingTTL <= 0 {
		return fmt.Errorf("STAGING_TTL must be > 0")
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be > 0")
	}
	if c.PreviewRows <= 0 {
		return fmt.Errorf("PREVIEW_ROWS must be > 0")
	}
	if c.ImportChunkSize <= 0 {
		return fmt.Errorf("IMPORT_CHUNK_SIZE must be > 0")
	}
	if c.ImportWorkers <= 0 {
		return fmt.Errorf("IMPORT_WORKERS must be > 0")
	}
	if c.RowErrorTolerance < 0 || c.RowErrorTolerance > 1 {
		return fmt.Errorf("IMPORT_ROW_ERROR_TOLERANCE must be in [0,1]")
	}
	if c.FoundThreshold < 0 || c.FoundThreshold > 100 {
		return fmt.Errorf("MATCHER_FOUND_THRESHOLD must be in [0,100]")
	}
	return nil
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func parseInt64Env(name string, fallback int64) int64 {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func parseFloatEnv(name string, fallback float64) float64 {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
