package config

import "github.com/abdul-hamid-achik/hitexec/packages/logging"

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:         30000, // 30 seconds
		MaxAttempts:     3,
		FollowRedirects: BoolPtr(true),
		MaxRedirects:    10,
		ValidateSSL:     BoolPtr(true),
		StatusCodes:     "",
		RateLimit:       0,
		Log:             logging.DefaultConfig(),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.Timeout == defaults.Timeout &&
		c.MaxAttempts == defaults.MaxAttempts &&
		c.GetFollowRedirects() == defaults.GetFollowRedirects() &&
		c.MaxRedirects == defaults.MaxRedirects &&
		c.GetValidateSSL() == defaults.GetValidateSSL() &&
		c.Proxy == "" &&
		len(c.Headers) == 0 &&
		c.StatusCodes == "" &&
		c.Auth == "" &&
		c.RateLimit == 0 &&
		!c.GetRequestID() &&
		c.History == "" &&
		!c.GetVerbose() &&
		!c.GetNoColor() &&
		c.Log == defaults.Log
}
