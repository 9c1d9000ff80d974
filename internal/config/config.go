package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Fetch   FetchConfig   `yaml:"fetch,omitempty"`
	Images  ImagesConfig  `yaml:"images,omitempty"`
	Render  RenderConfig  `yaml:"render,omitempty"`
	Cache   CacheConfig   `yaml:"cache,omitempty"`
	Output  OutputConfig  `yaml:"output,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
	Events  EventsConfig  `yaml:"events,omitempty"`
}

// SourceConfig identifies the upstream catalog. IndexURL points at the page
// listing every entry; SiteRoot resolves relative links and serves as the
// Referer for media requests.
type SourceConfig struct {
	IndexURL  string `yaml:"index_url"`
	SiteRoot  string `yaml:"site_root,omitempty"`
	UserAgent string `yaml:"user_agent,omitempty"`
}

// FetchConfig holds network tuning knobs and retry options.
type FetchConfig struct {
	Workers           int              `yaml:"workers,omitempty"`
	Timeout           string           `yaml:"timeout,omitempty"`
	PolitenessDelay   string           `yaml:"politeness_delay,omitempty"`
	MaxRetries        int              `yaml:"max_retries,omitempty"`
	RetryBackoff      RetryBackoffMode `yaml:"retry_backoff,omitempty"`
	RetryInitialDelay string           `yaml:"retry_initial_delay,omitempty"`
	RetryMaxDelay     string           `yaml:"retry_max_delay,omitempty"`
}

// ImagesConfig selects the image quality tier and encode parallelism.
// EncodeWorkers <= 0 means one worker per CPU.
type ImagesConfig struct {
	Quality       QualityTier `yaml:"quality,omitempty"`
	EncodeWorkers int         `yaml:"encode_workers,omitempty"`
}

// RenderConfig tunes entry rendering.
type RenderConfig struct {
	MaxBodySections int `yaml:"max_body_sections,omitempty"`
}

// CacheConfig locates the durable cache directory shared across runs.
type CacheConfig struct {
	Dir string `yaml:"dir,omitempty"`
}

// OutputConfig represents output configuration.
type OutputConfig struct {
	Directory string `yaml:"directory,omitempty"`
}

// LoggingConfig controls log verbosity and format.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is non-empty
// (host:port).
type MetricsConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

// EventsConfig enables run event publication to NATS.
type EventsConfig struct {
	Enabled       bool   `yaml:"enabled,omitempty"`
	URL           string `yaml:"url,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`
}

// Load loads configuration from the specified file, expands environment
// variables, applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	if err := loadEnvFile(); err != nil {
		// Don't fail if .env doesn't exist, just log it
		fmt.Fprintf(os.Stderr, "Note: .env file not found or couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	exampleConfig := Config{
		Source: SourceConfig{
			IndexURL: "https://dex.example.org/wiki/Catalog_index",
			SiteRoot: "https://dex.example.org",
		},
		Fetch: FetchConfig{
			Workers:         4,
			Timeout:         "30s",
			PolitenessDelay: "500ms",
			MaxRetries:      3,
			RetryBackoff:    RetryBackoffExponential,
		},
		Images: ImagesConfig{
			Quality: QualityFast,
		},
		Render: RenderConfig{
			MaxBodySections: 1,
		},
		Cache: CacheConfig{
			Dir: "./cache",
		},
		Output: OutputConfig{
			Directory: "./dict",
		},
	}

	data, err := yaml.Marshal(&exampleConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
