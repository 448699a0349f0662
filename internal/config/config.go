// Package config provides configuration loading for seedprune.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/blackwell-systems/seedprune/internal/classifier"
	"github.com/blackwell-systems/seedprune/internal/policy"
	"github.com/blackwell-systems/seedprune/internal/transmission"
)

// keyDelimiter separates nested viper keys. Rule keys such as "apollo.rip/"
// contain dots, so the viper default cannot be used.
const keyDelimiter = "::"

const (
	appName  = "seedprune"
	fileName = "config.json"
)

// Config holds all application configuration.
type Config struct {
	Client   ClientConfig          `mapstructure:"client"`
	Rules    map[string]RuleConfig `mapstructure:"rules"`
	Messages MessagesConfig        `mapstructure:"messages"`
	Logging  LoggingConfig         `mapstructure:"logging"`
	Schedule ScheduleConfig        `mapstructure:"schedule"`

	// Source is the file the configuration was read from, empty when only
	// defaults and environment were used.
	Source string `mapstructure:"-"`
}

// ClientConfig holds Transmission RPC connection settings.
type ClientConfig struct {
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	User      string        `mapstructure:"user"`
	Password  string        `mapstructure:"password"`
	Path      string        `mapstructure:"path"`
	SSL       bool          `mapstructure:"ssl"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
}

// RuleConfig is one entry of the RULES section. MinTime is in seconds.
type RuleConfig struct {
	MinTime  int64   `mapstructure:"min_time"`
	MaxRatio float64 `mapstructure:"max_ratio"`
}

// MessagesConfig holds the error phrases that trigger retirement.
type MessagesConfig struct {
	Unregistered []string `mapstructure:"unregistered"`
	LocalErrors  []string `mapstructure:"local_errors"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ScheduleConfig controls periodic sweeps and retirement fan-out.
type ScheduleConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Concurrency int           `mapstructure:"concurrency"`
}

// DefaultRules returns the built-in tracker rules, seed times already
// padded by policy.SeedTimeBuffer.
func DefaultRules() map[string]RuleConfig {
	return map[string]RuleConfig{
		"apollo.rip/": {
			MinTime:  policy.BufferedSeconds(30 * 24 * time.Hour),
			MaxRatio: 2.0,
		},
		"landof.tv/": {
			MinTime:  policy.BufferedSeconds(120 * time.Hour),
			MaxRatio: 1.0,
		},
		policy.DefaultKey: {
			MinTime:  policy.BufferedSeconds(240 * time.Hour),
			MaxRatio: 2.0,
		},
	}
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			Host:    transmission.DefaultHost,
			Port:    transmission.DefaultPort,
			Path:    transmission.DefaultPath,
			Timeout: transmission.DefaultTimeout,
		},
		Rules: DefaultRules(),
		Messages: MessagesConfig{
			Unregistered: append([]string(nil), classifier.DefaultUnregisteredMessages...),
			LocalErrors:  append([]string(nil), classifier.DefaultLocalErrors...),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Schedule: ScheduleConfig{
			Interval:    time.Hour,
			Concurrency: 1,
		},
	}
}

// Dir returns the seedprune config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/seedprune if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appName), nil
}

// Path returns the default config file location.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults.
//
// An empty configPath means the default location, which may be absent. An
// explicitly named file must exist. The result is not validated: callers
// apply command-line overrides first and then call Validate.
func Load(configPath string) (*Config, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	setDefaults(v)

	source := configPath
	if source == "" {
		p, err := Path()
		if err != nil {
			return nil, &ConfigError{Field: "path", Msg: "cannot determine config directory", Err: err}
		}
		if _, err := os.Stat(p); err == nil {
			source = p
		}
	}

	if source != "" {
		v.SetConfigFile(source)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, &ConfigError{Field: "file", Msg: fmt.Sprintf("failed to read %s", source), Err: err}
		}
	}

	v.SetEnvPrefix("SEEDPRUNE")
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &ConfigError{Field: "file", Msg: "failed to decode config", Err: err}
	}
	// Rules are not given viper defaults: a file-level RULES section replaces
	// the built-in rules wholesale instead of merging with them.
	if !v.IsSet("rules") {
		cfg.Rules = DefaultRules()
	}
	cfg.Source = source
	return cfg, nil
}

// setDefaults sets default values in viper.
func setDefaults(v *viper.Viper) {
	def := Default()
	key := func(parts ...string) string { return strings.Join(parts, keyDelimiter) }

	v.SetDefault(key("client", "host"), def.Client.Host)
	v.SetDefault(key("client", "port"), def.Client.Port)
	v.SetDefault(key("client", "user"), "")
	v.SetDefault(key("client", "password"), "")
	v.SetDefault(key("client", "path"), def.Client.Path)
	v.SetDefault(key("client", "ssl"), false)
	v.SetDefault(key("client", "timeout"), def.Client.Timeout.String())
	v.SetDefault(key("client", "rate_limit"), 0)

	v.SetDefault(key("messages", "unregistered"), def.Messages.Unregistered)
	v.SetDefault(key("messages", "local_errors"), def.Messages.LocalErrors)

	v.SetDefault(key("logging", "level"), def.Logging.Level)
	v.SetDefault(key("logging", "format"), def.Logging.Format)

	v.SetDefault(key("schedule", "interval"), def.Schedule.Interval.String())
	v.SetDefault(key("schedule", "concurrency"), def.Schedule.Concurrency)
}

// Overrides carries command-line values. Zero values leave the config as is.
type Overrides struct {
	Host        string
	Port        int
	User        string
	Password    string
	LogLevel    string
	LogFormat   string
	Concurrency int
}

// WithOverrides returns a copy of c with the non-zero overrides applied.
func (c *Config) WithOverrides(o Overrides) *Config {
	out := *c
	out.Rules = make(map[string]RuleConfig, len(c.Rules))
	for k, r := range c.Rules {
		out.Rules[k] = r
	}
	out.Messages.Unregistered = append([]string(nil), c.Messages.Unregistered...)
	out.Messages.LocalErrors = append([]string(nil), c.Messages.LocalErrors...)

	if o.Host != "" {
		out.Client.Host = o.Host
	}
	if o.Port != 0 {
		out.Client.Port = o.Port
	}
	if o.User != "" {
		out.Client.User = o.User
	}
	if o.Password != "" {
		out.Client.Password = o.Password
	}
	if o.LogLevel != "" {
		out.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		out.Logging.Format = o.LogFormat
	}
	if o.Concurrency != 0 {
		out.Schedule.Concurrency = o.Concurrency
	}
	return &out
}

// TransmissionConfig returns the RPC client settings.
func (c *Config) TransmissionConfig() transmission.Config {
	return transmission.Config{
		Host:      c.Client.Host,
		Port:      c.Client.Port,
		Username:  c.Client.User,
		Password:  c.Client.Password,
		UseSSL:    c.Client.SSL,
		Path:      c.Client.Path,
		Timeout:   c.Client.Timeout,
		RateLimit: c.Client.RateLimit,
	}
}

// PolicyStore builds the policy store from the RULES section. Tracker rules
// are declared in lexical key order, which decides precedence between keys
// of equal length.
func (c *Config) PolicyStore() (*policy.Store, error) {
	var (
		def     policy.Policy
		haveDef bool
		keys    = make([]string, 0, len(c.Rules))
	)
	for k, r := range c.Rules {
		if policy.IsDefaultKey(k) {
			def = r.policy()
			haveDef = true
			continue
		}
		keys = append(keys, k)
	}
	if !haveDef {
		return nil, &ConfigError{Field: "rules", Msg: fmt.Sprintf("missing %s rule", policy.DefaultKey)}
	}
	sort.Strings(keys)

	rules := make([]policy.TrackerRule, 0, len(keys))
	for _, k := range keys {
		rules = append(rules, policy.TrackerRule{MatchKey: k, Policy: c.Rules[k].policy()})
	}

	store, err := policy.NewStore(def, rules)
	if err != nil {
		return nil, &ConfigError{Field: "rules", Msg: "invalid rules", Err: err}
	}
	return store, nil
}

// Classifier builds a classifier from the MESSAGES section.
func (c *Config) Classifier() *classifier.Classifier {
	return classifier.New(c.Messages.Unregistered, c.Messages.LocalErrors)
}

func (r RuleConfig) policy() policy.Policy {
	return policy.Policy{MinSeedTimeSeconds: r.MinTime, MaxRatio: r.MaxRatio}
}
