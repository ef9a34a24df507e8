package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/hitexec/packages/http"
	"github.com/abdul-hamid-achik/hitexec/packages/logging"
	"github.com/abdul-hamid-achik/hitexec/packages/validation"
)

// Config represents the hitexec configuration
type Config struct {
	Timeout         int               `json:"timeout,omitempty" yaml:"timeout,omitempty" validate:"gte=0"` // milliseconds
	MaxAttempts     int               `json:"maxAttempts,omitempty" yaml:"maxAttempts,omitempty" validate:"gte=0,lte=10"`
	FollowRedirects *bool             `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`
	MaxRedirects    int               `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty" validate:"gte=0"`
	ValidateSSL     *bool             `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	Proxy           string            `json:"proxy,omitempty" yaml:"proxy,omitempty" validate:"omitempty,url"`
	Headers         map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"` // Default headers for all requests
	StatusCodes     string            `json:"statusCodes,omitempty" yaml:"statusCodes,omitempty" validate:"omitempty,statusrange"`
	Auth            string            `json:"auth,omitempty" yaml:"auth,omitempty" validate:"omitempty,authscheme"`
	RateLimit       float64           `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty" validate:"gte=0"` // requests per second
	RequestID       *bool             `json:"requestId,omitempty" yaml:"requestId,omitempty"`
	History         string            `json:"history,omitempty" yaml:"history,omitempty"` // SQLite database path
	Verbose         *bool             `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor         *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty"`
	Log             logging.Config    `json:"log,omitempty" yaml:"log,omitempty"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetRequestID returns whether requests are tagged with X-Request-ID, defaulting to false
func (c *Config) GetRequestID() bool {
	return getBool(c.RequestID, false)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// TimeoutDuration returns Timeout as a duration.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// StatusRange parses StatusCodes. It returns nil when no range is configured.
func (c *Config) StatusRange() (*validation.StatusRange, error) {
	if c.StatusCodes == "" {
		return nil, nil
	}
	r, err := validation.ParseStatusRange(c.StatusCodes)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ClientOptions converts the transport settings into client options.
func (c *Config) ClientOptions() []http.ClientOption {
	opts := []http.ClientOption{
		http.WithFollowRedirects(c.GetFollowRedirects()),
		http.WithValidateSSL(c.GetValidateSSL()),
	}
	if c.Timeout > 0 {
		opts = append(opts, http.WithTimeout(c.TimeoutDuration()))
	}
	if c.MaxRedirects > 0 {
		opts = append(opts, http.WithMaxRedirects(c.MaxRedirects))
	}
	if c.MaxAttempts > 0 {
		opts = append(opts, http.WithMaxAttempts(c.MaxAttempts))
	}
	if c.Proxy != "" {
		opts = append(opts, http.WithProxy(c.Proxy))
	}
	if len(c.Headers) > 0 {
		opts = append(opts, http.WithDefaultHeaders(c.Headers))
	}
	return opts
}

// ConfigFilenames contains the possible config file names, in lookup order
var ConfigFilenames = []string{
	".hitexec.json",
	"hitexec.config.json",
	".hitexec.yaml",
	".hitexec.yml",
	"hitexec.config.yaml",
	".hitexecrc",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	path := FindConfigFile(dir)
	if path == "" {
		return DefaultConfig(), nil
	}
	return loadConfigFromFile(path)
}

// FindConfigFile returns the first config file present in dir, or "".
func FindConfigFile(dir string) string {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}
	return ""
}

// loadConfigFromFile decodes YAML for .yaml/.yml files and JSON otherwise,
// on top of the defaults, then validates the result.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if isYAML(path) {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return config, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxAttempts > 0 {
		result.MaxAttempts = other.MaxAttempts
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.StatusCodes != "" {
		result.StatusCodes = other.StatusCodes
	}
	if other.Auth != "" {
		result.Auth = other.Auth
	}
	if other.RateLimit > 0 {
		result.RateLimit = other.RateLimit
	}
	if other.History != "" {
		result.History = other.History
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.RequestID != nil {
		result.RequestID = other.RequestID
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	// Merge headers without touching the receiver's map
	if len(other.Headers) > 0 {
		headers := make(map[string]string, len(result.Headers)+len(other.Headers))
		for k, v := range result.Headers {
			headers[k] = v
		}
		for k, v := range other.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	if other.Log.Level != "" {
		result.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		result.Log.Format = other.Log.Format
	}
	if other.Log.File != "" {
		result.Log.File = other.Log.File
	}
	if other.Log.MaxSizeMB > 0 {
		result.Log.MaxSizeMB = other.Log.MaxSizeMB
	}
	if other.Log.MaxBackups > 0 {
		result.Log.MaxBackups = other.Log.MaxBackups
	}

	return &result
}

// SaveConfig saves the configuration to a file, as YAML for .yaml/.yml paths
func (c *Config) SaveConfig(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
