package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory when
// no --config flag is given.
const DefaultPath = "leakctl.yaml"

// DefaultBatchSize is the number of documents submitted per bulk request.
const DefaultBatchSize = 200000

// Environment variables that override file values.
const (
	EnvURL      = "LEAKCTL_ES_URL"
	EnvUsername = "LEAKCTL_ES_USERNAME"
	EnvPassword = "LEAKCTL_ES_PASSWORD"
)

// Elasticsearch holds connection settings for the cluster.
type Elasticsearch struct {
	URL                string        `yaml:"url"`
	Username           string        `yaml:"username"`
	Password           string        `yaml:"password"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	Timeout            time.Duration `yaml:"timeout"`
}

// Lifecycle holds the ILM policy thresholds used by setup.
type Lifecycle struct {
	RolloverMaxSize string `yaml:"rollover_max_size"`
	RolloverMaxAge  string `yaml:"rollover_max_age"`
	DeleteMinAge    string `yaml:"delete_min_age"`
}

// Config is the complete leakctl configuration.
type Config struct {
	Elasticsearch Elasticsearch `yaml:"elasticsearch"`
	Lifecycle     Lifecycle     `yaml:"lifecycle"`

	// Alias is the rollover alias every bulk write targets.
	Alias string `yaml:"alias"`
	// IndexPrefix names the backing indices (<prefix>-000001, ...).
	IndexPrefix string `yaml:"index_prefix"`
	Policy      string `yaml:"policy"`
	Template    string `yaml:"template"`

	// BatchSize is the flush-and-submit threshold in document count.
	BatchSize    int    `yaml:"batch_size"`
	MaxLineBytes int    `yaml:"max_line_bytes"`
	Ledger       string `yaml:"ledger"`
}

// Default returns the configuration used when no file or overrides exist.
func Default() Config {
	return Config{
		Elasticsearch: Elasticsearch{
			URL:                "https://localhost:9200",
			Username:           "elasticuser",
			InsecureSkipVerify: true,
			Timeout:            100 * time.Second,
		},
		Lifecycle: Lifecycle{
			RolloverMaxSize: "50gb",
			RolloverMaxAge:  "30d",
			DeleteMinAge:    "90d",
		},
		Alias:        "leaks",
		IndexPrefix:  "leaks",
		Policy:       "leaks_policy",
		Template:     "leaks_template",
		BatchSize:    DefaultBatchSize,
		MaxLineBytes: 64 << 20,
		Ledger:       ".leakctl/ledger.db",
	}
}

// Load reads the YAML file at path on top of the defaults and then applies
// environment overrides. A missing file is not an error unless required is
// set, which callers use when the path was given explicitly.
func Load(path string, required bool) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvURL); v != "" {
		c.Elasticsearch.URL = v
	}
	if v := os.Getenv(EnvUsername); v != "" {
		c.Elasticsearch.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		c.Elasticsearch.Password = v
	}
}

// FirstIndex is the bootstrap backing index, e.g. leaks-000001.
func (c Config) FirstIndex() string {
	return c.IndexPrefix + "-000001"
}

// IndexPattern matches every backing index, e.g. leaks-*.
func (c Config) IndexPattern() string {
	return c.IndexPrefix + "-*"
}

// Validate checks the configuration for values the commands cannot work with.
func (c Config) Validate() error {
	if c.Elasticsearch.URL == "" {
		return errors.New("elasticsearch.url is required")
	}
	if c.Elasticsearch.Timeout <= 0 {
		return fmt.Errorf("elasticsearch.timeout must be positive, got %s", c.Elasticsearch.Timeout)
	}
	if c.Alias == "" {
		return errors.New("alias is required")
	}
	if c.IndexPrefix == "" {
		return errors.New("index_prefix is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.MaxLineBytes <= 0 {
		return fmt.Errorf("max_line_bytes must be positive, got %d", c.MaxLineBytes)
	}
	return nil
}
