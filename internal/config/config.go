package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "TRUSTSCAN_CONFIG"
	proxyURLEnv   = "TRUSTSCAN_PROXY"
)

// Config holds settings shared across the application: where the source
// lives, how requests are shaped, and safety caps for unbounded runs.
type Config struct {
	BaseURL         string            `yaml:"baseUrl"`
	Headers         map[string]string `yaml:"headers"`
	TimeoutSeconds  int               `yaml:"timeoutSeconds"`
	MaxRetries      int               `yaml:"maxRetries"`
	ProxyURL        string            `yaml:"proxyUrl"`
	DefaultLanguage string            `yaml:"defaultLanguage"`
	// MaxPages caps allPages runs so a bad total never produces an
	// unbounded crawl.
	MaxPages    int           `yaml:"maxPages"`
	Concurrency int           `yaml:"concurrency"`
	Logging     LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Timeout resolves the request timeout as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Load reads YAML configuration from path (or $TRUSTSCAN_CONFIG when path
// is empty) and applies environment overrides. A missing file is not an
// error: defaults are returned.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
		cfg.fillDefaults()
	}

	if v := os.Getenv(proxyURLEnv); v != "" {
		cfg.ProxyURL = v
	}

	return cfg, nil
}

func (c *Config) fillDefaults() {
	def := defaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = def.TimeoutSeconds
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = def.DefaultLanguage
	}
	if c.MaxPages <= 0 {
		c.MaxPages = def.MaxPages
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
}

func defaultConfig() Config {
	return Config{
		BaseURL:         "https://www.trustpilot.com",
		TimeoutSeconds:  15,
		MaxRetries:      3,
		DefaultLanguage: "en",
		MaxPages:        5,
		Concurrency:     5,
		Logging:         LoggingConfig{Level: "info"},
	}
}
