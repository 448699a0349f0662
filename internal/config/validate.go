package config

import (
	"fmt"
	"strings"

	"github.com/blackwell-systems/seedprune/internal/policy"
)

// ConfigError reports an invalid or unreadable configuration. It is fatal at
// startup.
type ConfigError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Field, e.Msg, e.Err)
	}
	return fmt.Sprintf("config %s: %s", e.Field, e.Msg)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	validLevels  = []string{"trace", "debug", "info", "warn", "error"}
	validFormats = []string{"console", "json"}
)

// Validate checks every section and returns the first problem found as a
// *ConfigError.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Client.Host) == "" {
		return &ConfigError{Field: "client.host", Msg: "must not be empty"}
	}
	if c.Client.Port < 1 || c.Client.Port > 65535 {
		return &ConfigError{Field: "client.port", Msg: fmt.Sprintf("must be between 1 and 65535 (got %d)", c.Client.Port)}
	}
	if c.Client.Timeout < 0 {
		return &ConfigError{Field: "client.timeout", Msg: "must not be negative"}
	}
	if c.Client.RateLimit < 0 {
		return &ConfigError{Field: "client.rate_limit", Msg: "must not be negative"}
	}

	if len(c.Rules) == 0 {
		return &ConfigError{Field: "rules", Msg: fmt.Sprintf("must contain a %s rule", policy.DefaultKey)}
	}
	for key, r := range c.Rules {
		if strings.TrimSpace(key) == "" {
			return &ConfigError{Field: "rules", Msg: "rule keys must not be empty"}
		}
		if r.MinTime < 0 {
			return &ConfigError{Field: fmt.Sprintf("rules.%s.min_time", key), Msg: "must not be negative"}
		}
		if r.MaxRatio < 0 {
			return &ConfigError{Field: fmt.Sprintf("rules.%s.max_ratio", key), Msg: "must not be negative"}
		}
	}
	if _, err := c.PolicyStore(); err != nil {
		return err
	}

	if !contains(validLevels, strings.ToLower(c.Logging.Level)) {
		return &ConfigError{Field: "logging.level", Msg: fmt.Sprintf("must be one of %s (got %q)", strings.Join(validLevels, ", "), c.Logging.Level)}
	}
	if !contains(validFormats, strings.ToLower(c.Logging.Format)) {
		return &ConfigError{Field: "logging.format", Msg: fmt.Sprintf("must be one of %s (got %q)", strings.Join(validFormats, ", "), c.Logging.Format)}
	}

	if c.Schedule.Interval <= 0 {
		return &ConfigError{Field: "schedule.interval", Msg: "must be greater than zero"}
	}
	if c.Schedule.Concurrency < 1 {
		return &ConfigError{Field: "schedule.concurrency", Msg: fmt.Sprintf("must be at least 1 (got %d)", c.Schedule.Concurrency)}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
