package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// AppKeyEnv overrides the configured application key so secrets can stay out
// of checked-in config files.
const AppKeyEnv = "APITEST_APP_KEY"

// Config represents the apitest configuration.
type Config struct {
	BaseURL         string            `yaml:"baseURL,omitempty"`
	AppKey          string            `yaml:"appKey,omitempty"`
	DefaultGuard    string            `yaml:"defaultGuard,omitempty"`
	Timeout         int               `yaml:"timeout,omitempty"` // milliseconds
	FollowRedirects *bool             `yaml:"followRedirects,omitempty"`
	MaxRedirects    int               `yaml:"maxRedirects,omitempty"`
	ValidateSSL     *bool             `yaml:"validateSSL,omitempty"`
	Proxy           string            `yaml:"proxy,omitempty"`
	Headers         map[string]string `yaml:"headers,omitempty"` // Default headers for all requests
	SessionCookie   string            `yaml:"sessionCookie,omitempty"`
	NoColor         *bool             `yaml:"noColor,omitempty"`
}

// ConfigFilenames contains the possible config file names, checked in order.
var ConfigFilenames = []string{
	".apitest.yaml",
	".apitest.yml",
	"apitest.yaml",
	"apitest.yml",
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		DefaultGuard:  "session",
		Timeout:       30000, // 30 seconds
		MaxRedirects:  10,
		SessionCookie: "apitest-session",
	}
}

// getBool returns the value of a bool pointer, or the default if nil.
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// BoolPtr returns a pointer to a bool value.
func BoolPtr(b bool) *bool {
	return &b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true.
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true.
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetNoColor returns the no color setting, defaulting to false.
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// Load loads configuration from the specified path, or searches the current
// directory when path is empty. The APITEST_APP_KEY environment variable
// overrides the appKey field either way.
func Load(path string) (*Config, error) {
	if path != "" {
		return loadFromFile(path)
	}
	return FindAndLoad(".")
}

// FindAndLoad searches for a config file in the given directory.
func FindAndLoad(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadFromFile(configPath)
		}
	}

	// Return defaults if no config file found
	cfg := DefaultConfig()
	applyEnv(cfg)
	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if key := os.Getenv(AppKeyEnv); key != "" {
		cfg.AppKey = key
	}
}

// Merge merges another config into this one, with other taking precedence.
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.BaseURL != "" {
		result.BaseURL = other.BaseURL
	}
	if other.AppKey != "" {
		result.AppKey = other.AppKey
	}
	if other.DefaultGuard != "" {
		result.DefaultGuard = other.DefaultGuard
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.SessionCookie != "" {
		result.SessionCookie = other.SessionCookie
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	// Merge headers
	if len(other.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range other.Headers {
			result.Headers[k] = v
		}
	}

	return &result
}

// Save saves the configuration to a file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
