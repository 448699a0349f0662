package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrConfigExists is returned by Generate when the target file exists and
// overwriting was not requested.
var ErrConfigExists = errors.New("config file exists already")

// Generate writes the built-in configuration to path as indented JSON,
// creating parent directories as needed. An existing file is only replaced
// when force is set.
func Generate(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(Default().document(), "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	data = append(data, '\n')

	// The file may hold RPC credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// document renders c in the on-disk layout: upper-case section names and
// durations as strings. encoding/json sorts map keys.
func (c *Config) document() map[string]interface{} {
	rules := make(map[string]interface{}, len(c.Rules))
	for k, r := range c.Rules {
		rules[k] = map[string]interface{}{
			"min_time":  r.MinTime,
			"max_ratio": r.MaxRatio,
		}
	}

	return map[string]interface{}{
		"CLIENT": map[string]interface{}{
			"host":       c.Client.Host,
			"port":       c.Client.Port,
			"user":       c.Client.User,
			"password":   c.Client.Password,
			"path":       c.Client.Path,
			"ssl":        c.Client.SSL,
			"timeout":    c.Client.Timeout.String(),
			"rate_limit": c.Client.RateLimit,
		},
		"RULES": rules,
		"MESSAGES": map[string]interface{}{
			"unregistered": c.Messages.Unregistered,
			"local_errors": c.Messages.LocalErrors,
		},
		"LOGGING": map[string]interface{}{
			"level":  c.Logging.Level,
			"format": c.Logging.Format,
		},
		"SCHEDULE": map[string]interface{}{
			"interval":    c.Schedule.Interval.String(),
			"concurrency": c.Schedule.Concurrency,
		},
	}
}
