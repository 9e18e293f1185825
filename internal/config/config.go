// Package config provides configuration management for the pipeline jobs.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"blsdata/pkg/utils"
)

// Storage backends.
const (
	BackendS3         = "s3"
	BackendFilesystem = "filesystem"
	BackendMemory     = "memory"
)

// Environment variables honoured on top of the YAML file. The names match
// the ones the deployed functions receive.
const (
	EnvBucketName = "BUCKET_NAME"
	EnvPrefix     = "S3_PREFIX"
	EnvRegion     = "AWS_REGION"
	EnvLogLevel   = "PIPELINE_LOG_LEVEL"
)

// Configuration validation errors.
var (
	ErrInvalidBackend           = errors.New("storage.backend must be one of: s3, filesystem, memory")
	ErrMissingBucket            = errors.New("storage.bucket is required for the s3 backend")
	ErrMissingRoot              = errors.New("storage.root is required for the filesystem backend")
	ErrInvalidBaseURL           = errors.New("sync.base_url must be an absolute http(s) URL ending in '/'")
	ErrInvalidAPIURL            = errors.New("fetch.api_url must be an absolute http(s) URL")
	ErrMissingFetchKey          = errors.New("fetch.key is required")
	ErrMissingReportKeys        = errors.New("report.series_key and report.population_key are required")
	ErrInvalidYearRange         = errors.New("report.from_year cannot exceed report.to_year")
	ErrInvalidMaxAttempts       = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("retry.initial_delay_ms must be non-negative")
	ErrInvalidBackoffMultiplier = errors.New("retry.backoff_multiplier must be >= 1.0")
	ErrInvalidTimeout           = errors.New("retry.timeout_sec must be at least 1")
	ErrInvalidLogLevel          = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat         = errors.New("logging.format must be 'text' or 'json'")
)

// Config represents the complete pipeline configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Sync    SyncConfig    `yaml:"sync"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Report  ReportConfig  `yaml:"report"`
	Retry   RetryPolicy   `yaml:"retry"`
	Logging LoggingConfig `yaml:"logging"`
	Server  ServerConfig  `yaml:"server"`
	Ledger  LedgerConfig  `yaml:"ledger"`
}

// StorageConfig selects and configures the object store.
type StorageConfig struct {
	Backend         string `yaml:"backend"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Root            string `yaml:"root"`
	Prefix          string `yaml:"prefix"`
	PathStyle       bool   `yaml:"path_style"`
}

// SyncConfig configures the directory reconciler.
type SyncConfig struct {
	BaseURL       string `yaml:"base_url"`
	Contact       string `yaml:"contact"`
	TimeoutSec    int    `yaml:"timeout_sec"`
	GuardManifest bool   `yaml:"guard_manifest"`
}

// FetchConfig configures the dataset fetcher.
type FetchConfig struct {
	APIURL     string `yaml:"api_url"`
	Key        string `yaml:"key"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// ReportConfig configures the report generator.
type ReportConfig struct {
	SeriesKey     string `yaml:"series_key"`
	PopulationKey string `yaml:"population_key"`
	TriggerPrefix string `yaml:"trigger_prefix"`
	SeriesID      string `yaml:"series_id"`
	Period        string `yaml:"period"`
	FromYear      int    `yaml:"from_year"`
	ToYear        int    `yaml:"to_year"`
}

// RetryPolicy defines retry behavior of the job wrapper.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig configures the HTTP trigger server.
type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	Watch   bool   `yaml:"watch"`
}

// LedgerConfig configures the run history database. An empty DSN disables it.
type LedgerConfig struct {
	DSN string `yaml:"dsn"`
}

// DefaultConfig returns the configuration used by the deployed pipeline.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: BackendS3,
			Region:  "us-east-1",
			Prefix:  "bls/",
		},
		Sync: SyncConfig{
			BaseURL:       "https://download.bls.gov/pub/time.series/pr/",
			TimeoutSec:    60,
			GuardManifest: true,
		},
		Fetch: FetchConfig{
			APIURL:     "https://datausa.io/api/data?drilldowns=Nation&measures=Population",
			Key:        "datausa/population.json",
			TimeoutSec: 10,
		},
		Report: ReportConfig{
			SeriesKey:     "bls/files/pr.data.0.Current",
			PopulationKey: "datausa/population.json",
			TriggerPrefix: "datausa/population.json",
			SeriesID:      "PRS30006032",
			Period:        "Q01",
			FromYear:      2013,
			ToYear:        2018,
		},
		Retry: RetryPolicy{
			MaxAttempts:       1,
			InitialDelayMs:    500,
			MaxDelayMs:        30000,
			BackoffMultiplier: 2.0,
			TimeoutSec:        300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Address: "0.0.0.0",
			Port:    8080,
		},
	}
}

// LoadConfig loads configuration from a YAML file layered over the defaults,
// then applies environment overrides. An empty path uses defaults only.
func LoadConfig(filepath string) (*Config, error) {
	cfg := DefaultConfig()

	if filepath != "" {
		data, err := os.ReadFile(filepath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvBucketName); ok && v != "" {
		c.Storage.Bucket = v
	}

	if v, ok := lookup(EnvPrefix); ok && v != "" {
		c.Storage.Prefix = v
	}

	if v, ok := lookup(EnvRegion); ok && v != "" {
		c.Storage.Region = v
	}

	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendS3:
		if c.Storage.Bucket == "" {
			return ErrMissingBucket
		}
	case BackendFilesystem:
		if c.Storage.Root == "" {
			return ErrMissingRoot
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Storage.Backend)
	}

	if !isHTTPURL(c.Sync.BaseURL) || !strings.HasSuffix(c.Sync.BaseURL, "/") {
		return ErrInvalidBaseURL
	}

	if !isHTTPURL(c.Fetch.APIURL) {
		return ErrInvalidAPIURL
	}

	if c.Fetch.Key == "" {
		return ErrMissingFetchKey
	}

	if c.Report.SeriesKey == "" || c.Report.PopulationKey == "" {
		return ErrMissingReportKeys
	}

	if c.Report.FromYear > c.Report.ToYear {
		return ErrInvalidYearRange
	}

	// Validate retry policy
	if c.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if c.Retry.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if c.Retry.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}

	if c.Retry.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return ErrInvalidLogFormat
	}

	return nil
}

// ManifestKey is the object key of the sync manifest.
func (c *Config) ManifestKey() string {
	return c.Storage.Prefix + "metadata.json"
}

// FailuresKey is the object key of the download failure log.
func (c *Config) FailuresKey() string {
	return c.Storage.Prefix + "sync_failures.json"
}

// FileKey follows structure: {prefix}files/{file_name}.
func (c *Config) FileKey(fileName string) string {
	return c.Storage.Prefix + "files/" + fileName
}

// GetRetryDelay calculates exponential backoff delay for attempt number.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 1; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	// Cap at max delay
	if int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

// GetTimeout returns the invocation deadline.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// SyncTimeout returns the HTTP timeout of the reconciler.
func (c *Config) SyncTimeout() time.Duration {
	return time.Duration(c.Sync.TimeoutSec) * time.Second
}

// FetchTimeout returns the HTTP timeout of the fetcher.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSec) * time.Second
}

// ListenAddr returns the HTTP server listen address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Backend: %s, Bucket: %s, Prefix: %s, MaxAttempts: %d}",
		c.Storage.Backend,
		c.Storage.Bucket,
		c.Storage.Prefix,
		c.Retry.MaxAttempts,
	)
}

func isHTTPURL(raw string) bool {
	return utils.NewHTTPHelper("").IsValidURL(raw)
}
