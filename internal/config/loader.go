package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment key, e.g. GROUPWATCH_GROUP_ID.
const EnvPrefix = "GROUPWATCH_"

// EnvConfigPath names the variable holding the YAML file path.
const EnvConfigPath = EnvPrefix + "CONFIG"

// Load builds a Config by layering defaults, optional file, env vars and
// command-line overrides. Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) from path, or GROUPWATCH_CONFIG when path is empty
//  3. env (prefix GROUPWATCH_)
//  4. overrides, keyed by koanf tag; empty values are ignored
func Load(_ context.Context, path string, overrides map[string]string) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// GROUPWATCH_GROUP_ID -> group_id; underscores are kept to match the
	// flat koanf tags.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	for key, val := range overrides {
		if val == "" {
			continue
		}
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("%w: override %s: %w", ErrLoadConfig, key, err)
		}
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Job = strings.ToLower(strings.TrimSpace(c.Job))
	c.GroupID = strings.TrimSpace(c.GroupID)
	c.WebhookURL = strings.TrimSpace(c.WebhookURL)
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
}

// Validate reports the first invalid field wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.GroupID == "":
		return fmt.Errorf("%w: group_id must not be empty", ErrInvalidConfig)
	case c.WebhookURL == "":
		return fmt.Errorf("%w: webhook_url must not be empty", ErrInvalidConfig)
	case c.HTTPTimeout <= 0 || c.HTTPTimeout > MaxHTTPTimeout:
		return fmt.Errorf("%w: http_timeout must be within (0, %s], got %s", ErrInvalidConfig, MaxHTTPTimeout, c.HTTPTimeout)
	case c.RequestDelay < 0:
		return fmt.Errorf("%w: request_delay must not be negative", ErrInvalidConfig)
	case c.TopN <= 0:
		return fmt.Errorf("%w: top_n must be positive", ErrInvalidConfig)
	case c.MaxLinesPerMessage <= 0 || c.MaxMessageChars <= 0:
		return fmt.Errorf("%w: message limits must be positive", ErrInvalidConfig)
	}
	switch c.Job {
	case JobMembers, JobLevels, JobGains:
	default:
		return fmt.Errorf("%w: unknown job %q", ErrInvalidConfig, c.Job)
	}
	switch c.StorageDriver {
	case StorageFile:
		if c.StateDir == "" {
			return fmt.Errorf("%w: state_dir must not be empty", ErrInvalidConfig)
		}
	case StorageSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path must not be empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage_driver %q", ErrInvalidConfig, c.StorageDriver)
	}
	return nil
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.WebhookURL != "" {
		c.WebhookURL = "<redacted>"
	}
	if c.VerificationCode != "" {
		c.VerificationCode = "<redacted>"
	}
	return c
}
