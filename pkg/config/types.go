// Package config provides configuration loading and validation for proxylist.
package config

import (
	"regexp"
	"time"

	"github.com/ccollicutt/proxylist/pkg/patternset"
	"github.com/ccollicutt/proxylist/pkg/proxy"
)

// Config is the root configuration structure loaded from YAML.
type Config struct {
	// Sources are proxy list files or glob patterns.
	Sources []string `yaml:"sources"`

	// Scheme is assigned to every parsed proxy.
	Scheme string `yaml:"scheme"`

	// Pattern is a regex with named groups host, and optionally port,
	// username and password.
	Pattern string `yaml:"pattern"`

	// IncludePatterns and ExcludePatterns are files holding one regex per
	// line. When includes are given only matching lines are parsed.
	IncludePatterns []string `yaml:"include_patterns,omitempty"`
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty"`

	SkipBlank     bool   `yaml:"skip_blank"`
	CommentPrefix string `yaml:"comment_prefix"`
	SkipInvalid   bool   `yaml:"skip_invalid"`
	Prescan       bool   `yaml:"prescan"`

	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`

	// Populated during validation and loading.
	scheme          proxy.Scheme
	compiledPattern *regexp.Regexp
	includes        *patternset.Set
	excludes        *patternset.Set
}

// ProxyScheme returns the validated scheme.
func (c *Config) ProxyScheme() proxy.Scheme {
	return c.scheme
}

// CompiledPattern returns the pre-compiled line pattern.
func (c *Config) CompiledPattern() *regexp.Regexp {
	return c.compiledPattern
}

// Includes returns the include set, or nil when no include files are configured.
func (c *Config) Includes() *patternset.Set {
	return c.includes
}

// Excludes returns the exclude set, or nil when no exclude files are configured.
func (c *Config) Excludes() *patternset.Set {
	return c.excludes
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnRecords fires only when at least one proxy was parsed (default).
	WebhookTriggerOnRecords WebhookTrigger = "on_records"
	// WebhookTriggerAlways fires after every run.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for sending parse results.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url"`

	// Token is an optional bearer token for authentication.
	// ${VAR} and $VAR are expanded from the environment.
	Token string `yaml:"token,omitempty"`

	// Trigger determines when the webhook fires.
	// Defaults to "on_records" if not specified.
	Trigger WebhookTrigger `yaml:"trigger,omitempty"`

	// Timeout is the HTTP request timeout.
	// Defaults to 10s if not specified.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}
