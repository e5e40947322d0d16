package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default source location: the public iNaturalist open-data bucket.
const (
	DefaultURLTemplate = "https://inaturalist-open-data.s3.amazonaws.com/photos/{id}/medium.{ext}"
	DefaultReferer     = "https://www.inaturalist.org/"
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:129.0) Gecko/20100101 Firefox/129.0"
)

// Header policies for the manifest's first row
const (
	HeaderAuto   = "auto"
	HeaderAlways = "always"
	HeaderNever  = "never"
)

// Config holds all configuration options for a harvest run
type Config struct {
	Input    InputConfig    `yaml:"input" json:"input"`
	Output   OutputConfig   `yaml:"output" json:"output"`
	Download DownloadConfig `yaml:"download" json:"download"`
	UI       UIConfig       `yaml:"ui" json:"ui"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// InputConfig describes the manifest
type InputConfig struct {
	Manifest string `yaml:"manifest" json:"manifest"`
	Header   string `yaml:"header" json:"header"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	Directory    string `yaml:"directory" json:"directory"`
	Quality      int    `yaml:"quality" json:"quality"`
	SweepStaging bool   `yaml:"sweep_staging" json:"sweep_staging"`
}

// DownloadConfig holds fetch and worker pool configuration
type DownloadConfig struct {
	Workers             int           `yaml:"workers" json:"workers"`
	Timeout             time.Duration `yaml:"timeout" json:"timeout"`
	RetryAttempts       int           `yaml:"retry_attempts" json:"retry_attempts"`
	RetryBackoff        time.Duration `yaml:"retry_backoff" json:"retry_backoff"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host" json:"max_idle_conns_per_host"`
	MaxBodyBytes        int64         `yaml:"max_body_bytes" json:"max_body_bytes"`
	URLTemplate         string        `yaml:"url_template" json:"url_template"`
	Extensions          []string      `yaml:"extensions" json:"extensions"`
	UserAgent           string        `yaml:"user_agent" json:"user_agent"`
	Referer             string        `yaml:"referer" json:"referer"`
}

// UIConfig controls terminal output
type UIConfig struct {
	Progress bool `yaml:"progress" json:"progress"`
	NoColor  bool `yaml:"no_color" json:"no_color"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			Header: HeaderAuto,
		},
		Output: OutputConfig{
			Quality: 95,
		},
		Download: DownloadConfig{
			Workers:             16,
			Timeout:             10 * time.Second,
			RetryAttempts:       3,
			RetryBackoff:        500 * time.Millisecond,
			MaxIdleConnsPerHost: 128,
			MaxBodyBytes:        50 << 20,
			URLTemplate:         DefaultURLTemplate,
			Extensions:          []string{"jpeg", "jpg", "png", "webp"},
			UserAgent:           DefaultUserAgent,
			Referer:             DefaultReferer,
		},
		UI: UIConfig{
			Progress: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from IMGHARVEST_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("IMGHARVEST_INPUT"); v != "" {
		c.Input.Manifest = v
	}
	if v := os.Getenv("IMGHARVEST_HEADER"); v != "" {
		c.Input.Header = v
	}
	if v := os.Getenv("IMGHARVEST_OUTPUT_DIR"); v != "" {
		c.Output.Directory = v
	}
	if v := os.Getenv("IMGHARVEST_QUALITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IMGHARVEST_QUALITY: %w", err))
		} else {
			c.Output.Quality = n
		}
	}
	if v := os.Getenv("IMGHARVEST_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IMGHARVEST_WORKERS: %w", err))
		} else {
			c.Download.Workers = n
		}
	}
	if v := os.Getenv("IMGHARVEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IMGHARVEST_TIMEOUT: %w", err))
		} else {
			c.Download.Timeout = d
		}
	}
	if v := os.Getenv("IMGHARVEST_URL_TEMPLATE"); v != "" {
		c.Download.URLTemplate = v
	}
	if v := os.Getenv("IMGHARVEST_USER_AGENT"); v != "" {
		c.Download.UserAgent = v
	}
	if v := os.Getenv("IMGHARVEST_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("IMGHARVEST_LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".imgharvest.yaml",
		".imgharvest.yml",
		filepath.Join(home, ".config", "imgharvest", "config.yaml"),
		filepath.Join(home, ".config", "imgharvest", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Input.Manifest == "" {
		errs = append(errs, errors.New("input manifest path is required"))
	}
	switch strings.ToLower(c.Input.Header) {
	case HeaderAuto, HeaderAlways, HeaderNever:
	default:
		errs = append(errs, fmt.Errorf("invalid header policy %q (auto, always, never)", c.Input.Header))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		errs = append(errs, errors.New("jpeg quality must be between 1 and 100"))
	}

	if c.Download.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.RetryAttempts <= 0 {
		errs = append(errs, errors.New("retry attempts must be positive"))
	}
	if c.Download.RetryBackoff < 0 {
		errs = append(errs, errors.New("retry backoff cannot be negative"))
	}
	if !strings.Contains(c.Download.URLTemplate, "{id}") || !strings.Contains(c.Download.URLTemplate, "{ext}") {
		errs = append(errs, errors.New("url template must contain {id} and {ext}"))
	}
	if len(c.Download.Extensions) == 0 {
		errs = append(errs, errors.New("at least one source extension is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges explicitly set command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["input"].(string); ok && v != "" {
		c.Input.Manifest = v
	}
	if v, ok := flags["header"].(string); ok && v != "" {
		c.Input.Header = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.Directory = v
	}
	if v, ok := flags["quality"].(int); ok && v > 0 {
		c.Output.Quality = v
	}
	if v, ok := flags["sweep-staging"].(bool); ok {
		c.Output.SweepStaging = v
	}
	if v, ok := flags["workers"].(int); ok && v > 0 {
		c.Download.Workers = v
	}
	if v, ok := flags["timeout"].(time.Duration); ok && v > 0 {
		c.Download.Timeout = v
	}
	if v, ok := flags["url-template"].(string); ok && v != "" {
		c.Download.URLTemplate = v
	}
	if v, ok := flags["extensions"].([]string); ok && len(v) > 0 {
		c.Download.Extensions = v
	}
	if v, ok := flags["progress"].(bool); ok {
		c.UI.Progress = v
	}
	if v, ok := flags["no-color"].(bool); ok {
		c.UI.NoColor = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok && v != "" {
		c.Logging.File = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: command line flags > environment variables > .env file > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".imgharvest.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)
	config.Input.Header = strings.ToLower(config.Input.Header)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
