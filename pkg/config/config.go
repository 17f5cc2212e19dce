package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/proxylist/pkg/patternset"
	"github.com/ccollicutt/proxylist/pkg/proxy"
	"github.com/ccollicutt/proxylist/pkg/source"
)

// Load reads and validates a configuration file, then compiles the include
// and exclude pattern files it names.
func Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if err := cfg.LoadPatternSets(ctx); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks a configuration for errors and compiles the line pattern.
// Sources may be empty; callers that read standard input do not need them.
func Validate(cfg *Config) error {
	scheme, err := proxy.ParseScheme(cfg.Scheme)
	if err != nil {
		return fmt.Errorf("scheme: %w", err)
	}
	cfg.scheme = scheme

	if err := validatePattern(cfg); err != nil {
		return fmt.Errorf("pattern: %w", err)
	}

	for i, src := range cfg.Sources {
		if strings.TrimSpace(src) == "" {
			return fmt.Errorf("sources[%d]: path is empty", i)
		}
	}
	for i, f := range cfg.IncludePatterns {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("include_patterns[%d]: path is empty", i)
		}
	}
	for i, f := range cfg.ExcludePatterns {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("exclude_patterns[%d]: path is empty", i)
		}
	}

	// Webhooks are optional, but validate if present
	for i := range cfg.Webhooks {
		if err := cfg.Webhooks[i].Validate(); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return fmt.Errorf("webhooks[%d] (%s): %w", i, name, err)
		}
	}

	return nil
}

func validatePattern(cfg *Config) error {
	if cfg.Pattern == "" {
		return errors.New("pattern is required")
	}

	re, err := regexp.Compile(cfg.Pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}

	if _, err := proxy.NewLinePattern(cfg.scheme, re); err != nil {
		return err
	}

	cfg.compiledPattern = re
	return nil
}

// LoadPatternSets compiles the include and exclude pattern files. Each list
// of files is read as one stream, so line numbers in errors count across
// files.
func (c *Config) LoadPatternSets(ctx context.Context) error {
	var err error
	if c.includes, err = buildSet(ctx, c.IncludePatterns); err != nil {
		return fmt.Errorf("include_patterns: %w", err)
	}
	if c.excludes, err = buildSet(ctx, c.ExcludePatterns); err != nil {
		return fmt.Errorf("exclude_patterns: %w", err)
	}
	return nil
}

func buildSet(ctx context.Context, files []string) (*patternset.Set, error) {
	if len(files) == 0 {
		return nil, nil
	}
	src := source.NewFileSource(files)
	defer src.Close()
	return patternset.Build(ctx, src)
}

// Validate checks the webhook URL and trigger and fills in the default
// trigger and timeout.
func (wh *WebhookConfig) Validate() error {
	if wh.URL == "" {
		return errors.New("url is required")
	}

	// Validate URL format
	u, err := url.Parse(wh.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url must have a host")
	}

	wh.Token = expandEnvVar(wh.Token)

	switch wh.Trigger {
	case "":
		wh.Trigger = WebhookTriggerOnRecords
	case WebhookTriggerOnRecords, WebhookTriggerAlways, WebhookTriggerNever:
	default:
		return fmt.Errorf("invalid trigger %q (must be on_records, always, or never)", wh.Trigger)
	}

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	return nil
}

// expandEnvVar expands a token given as ${VAR} or $VAR.
func expandEnvVar(s string) string {
	switch {
	case strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}"):
		return os.Getenv(s[2 : len(s)-1])
	case strings.HasPrefix(s, "$") && !strings.HasPrefix(s, "${"):
		return os.Getenv(s[1:])
	default:
		return s
	}
}
