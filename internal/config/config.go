// Package config provides unified configuration for the benchmark harness.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the full harness configuration.
type Config struct {
	Dataset   DatasetConfig    `yaml:"dataset"`
	Providers []ProviderConfig `yaml:"providers"`
	Test      TestConfig       `yaml:"test"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// DatasetConfig describes the deterministic dataset to generate.
type DatasetConfig struct {
	// Seed determines all randomness in generation.
	Seed int64 `yaml:"seed"`

	// TotalSizeGB is the aggregate dataset size target in GiB.
	TotalSizeGB float64 `yaml:"total_size_gb"`

	// FileCount is the number of files to generate.
	FileCount int `yaml:"file_count"`

	// MinFileSizeMB and MaxFileSizeMB bound individual file sizes.
	MinFileSizeMB int `yaml:"min_file_size_mb"`
	MaxFileSizeMB int `yaml:"max_file_size_mb"`

	// SizeDistribution is one of "fixed", "random", "mixed".
	SizeDistribution string `yaml:"size_distribution"`

	// DirectoryDepth is the maximum nesting depth for generated files.
	DirectoryDepth int `yaml:"directory_depth"`

	// FilesPerDirectory controls how many files share a directory shard.
	FilesPerDirectory int `yaml:"files_per_directory"`

	// DataPath is the dataset root; the manifest and event streams live here.
	DataPath string `yaml:"data_path"`
}

// ProviderConfig describes one S3-compatible target.
type ProviderConfig struct {
	// ID identifies the provider; event streams are named after it.
	ID string `yaml:"id"`

	// Endpoint is the S3-compatible endpoint URL.
	Endpoint string `yaml:"endpoint"`

	// Region for signing.
	Region string `yaml:"region"`

	// Namespace is the environment-variable prefix for credential lookup.
	// Required; there is no inferred fallback.
	Namespace string `yaml:"namespace"`

	// Bucket is the stable bucket name for this provider.
	Bucket string `yaml:"bucket"`

	// InsecureSSL disables TLS certificate verification.
	InsecureSSL bool `yaml:"insecure_ssl"`

	// Profile is an optional AWS shared-credentials profile name.
	Profile string `yaml:"profile"`

	// Client selects the storage client backend: "s3" (default) or "blob".
	Client string `yaml:"client"`
}

// TestConfig describes the benchmark execution parameters.
type TestConfig struct {
	Iterations       int      `yaml:"iterations"`
	Operations       []string `yaml:"operations"`
	WarmupOperations int      `yaml:"warmup_operations"`
	RetryAttempts    int      `yaml:"retry_attempts"`
	TimeoutSeconds   int      `yaml:"timeout_seconds"`
	CleanupAfterRun  bool     `yaml:"cleanup_after_run"`
	VerifyChecksums  bool     `yaml:"verify_checksums"`

	// HeadSample bounds the number of HEAD probes per iteration. 0 uses the default.
	HeadSample int `yaml:"head_sample"`

	// RateLimit caps operation starts per second. 0 disables throttling.
	RateLimit int `yaml:"rate_limit"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// DefaultOperations is the canonical operation cycle when the configuration
// does not enumerate one.
var DefaultOperations = []string{"PUT", "LIST", "HEAD", "GET", "DELETE"}

// knownOperations guards against typos in the operations list.
var knownOperations = map[string]bool{
	"PUT": true, "GET": true, "LIST": true, "HEAD": true, "DELETE": true,
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults fills optional fields that have sensible defaults.
func (c *Config) applyDefaults() {
	if len(c.Test.Operations) == 0 {
		c.Test.Operations = append([]string(nil), DefaultOperations...)
	}
	if c.Test.TimeoutSeconds == 0 {
		c.Test.TimeoutSeconds = 300
	}
	if c.Test.HeadSample == 0 {
		c.Test.HeadSample = 10
	}
	if c.Dataset.FilesPerDirectory == 0 {
		c.Dataset.FilesPerDirectory = 100
	}
	if c.Dataset.DirectoryDepth == 0 {
		c.Dataset.DirectoryDepth = 1
	}
	for i := range c.Providers {
		if c.Providers[i].Client == "" {
			c.Providers[i].Client = "s3"
		}
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
}

// Validate checks the configuration. All failures here are fatal; no partial
// work is performed on an invalid configuration.
func (c *Config) Validate() error {
	d := c.Dataset
	switch d.SizeDistribution {
	case "fixed", "random", "mixed":
	default:
		return fmt.Errorf("unknown size_distribution %q (want fixed, random or mixed)", d.SizeDistribution)
	}
	if d.FileCount <= 0 {
		return fmt.Errorf("dataset.file_count must be positive, got %d", d.FileCount)
	}
	if d.TotalSizeGB <= 0 {
		return fmt.Errorf("dataset.total_size_gb must be positive, got %g", d.TotalSizeGB)
	}
	if d.MinFileSizeMB <= 0 || d.MaxFileSizeMB < d.MinFileSizeMB {
		return fmt.Errorf("dataset file size bounds invalid: min=%dMB max=%dMB", d.MinFileSizeMB, d.MaxFileSizeMB)
	}
	if d.DataPath == "" {
		return fmt.Errorf("dataset.data_path is required")
	}

	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}
	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.ID == "" {
			return fmt.Errorf("provider id is required")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate provider id %q", p.ID)
		}
		seen[p.ID] = true
		if p.Endpoint == "" {
			return fmt.Errorf("provider %s: endpoint is required", p.ID)
		}
		if p.Bucket == "" {
			return fmt.Errorf("provider %s: bucket is required", p.ID)
		}
		if p.Namespace == "" {
			return fmt.Errorf("provider %s: namespace is required for credential lookup", p.ID)
		}
		switch p.Client {
		case "s3", "blob":
		default:
			return fmt.Errorf("provider %s: unknown client %q (want s3 or blob)", p.ID, p.Client)
		}
	}

	t := c.Test
	if t.Iterations <= 0 {
		return fmt.Errorf("test.iterations must be positive, got %d", t.Iterations)
	}
	if t.RetryAttempts < 0 {
		return fmt.Errorf("test.retry_attempts must not be negative, got %d", t.RetryAttempts)
	}
	for _, op := range t.Operations {
		if !knownOperations[strings.ToUpper(op)] {
			return fmt.Errorf("unknown operation %q in test.operations", op)
		}
	}

	return nil
}

// Provider returns the provider configuration with the given id.
func (c *Config) Provider(id string) (ProviderConfig, error) {
	for _, p := range c.Providers {
		if p.ID == id {
			return p, nil
		}
	}
	return ProviderConfig{}, fmt.Errorf("unknown provider id %q", id)
}
