package config

import (
	"os"
	"time"
)

// Default values for configuration.
const (
	DefaultScheme         = "http"
	DefaultPattern        = `^(?P<host>[^:\s]+):(?P<port>\d+)$`
	DefaultCommentPrefix  = "#"
	DefaultWebhookTimeout = 10 * time.Second
)

// Environment variable names.
const (
	EnvScheme  = "PROXYLIST_SCHEME"
	EnvPattern = "PROXYLIST_PATTERN"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Sources:       []string{},
		Scheme:        DefaultScheme,
		Pattern:       DefaultPattern,
		SkipBlank:     true,
		CommentPrefix: DefaultCommentPrefix,
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() {
	if scheme := os.Getenv(EnvScheme); scheme != "" {
		c.Scheme = scheme
	}
	if pattern := os.Getenv(EnvPattern); pattern != "" {
		c.Pattern = pattern
	}
}
