package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Fullex26/uptimegram/pkg/models"
)

const DefaultConfigPath = "/etc/uptimegram/config.yaml"

type Config struct {
	URL       string         `yaml:"url"` // fallback base URL when telegram.url is unset
	Telegram  TelegramConfig `yaml:"telegram"`
	Templates string         `yaml:"templates"` // directory overriding the embedded templates
	Store     StoreConfig    `yaml:"store"`
	Redis     RedisConfig    `yaml:"redis"`
	Metrics   MetricsConfig  `yaml:"metrics"`
	Log       LogConfig      `yaml:"log"`
}

type TelegramConfig struct {
	APIKey string      `yaml:"api_key"`
	ChatID string      `yaml:"chat_id"`
	APIURL string      `yaml:"api_url"` // Bot API endpoint override
	URL    string      `yaml:"url"`     // base URL used for links in messages
	Event  EventConfig `yaml:"event"`
}

// EventConfig maps event kinds to whether they trigger a notification.
// Kinds absent from the map are disabled.
type EventConfig map[models.EventKind]bool

type StoreConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // rotated log file; stderr when empty
}

// Enabled reports whether notifications are on for the given kind
func (e EventConfig) Enabled(kind models.EventKind) bool {
	return e[kind]
}

// Kinds returns the enabled event kinds in sorted order
func (e EventConfig) Kinds() []models.EventKind {
	var kinds []models.EventKind
	for k, on := range e {
		if on {
			kinds = append(kinds, k)
		}
	}
	slices.Sort(kinds)
	return kinds
}

// Validate checks the channel credentials
func (t TelegramConfig) Validate() error {
	if strings.TrimSpace(t.APIKey) == "" {
		return fmt.Errorf("telegram api_key is required")
	}
	if strings.TrimSpace(t.ChatID) == "" {
		return fmt.Errorf("telegram chat_id is required")
	}
	return nil
}

// Load reads and parses the config file, expanding env vars
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in config
	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns sane defaults
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path: "/var/lib/uptimegram/uptimegram.db",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			Channel: "uptime:events",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  ":9464",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the config for errors
func (c *Config) Validate() error {
	if err := c.Telegram.Validate(); err != nil {
		return err
	}

	if err := validateURL("url", c.URL); err != nil {
		return err
	}
	if err := validateURL("telegram url", c.Telegram.URL); err != nil {
		return err
	}

	for kind := range c.Telegram.Event {
		if strings.TrimSpace(string(kind)) == "" {
			return fmt.Errorf("telegram event kinds must not be empty")
		}
	}

	if c.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required when redis is enabled")
		}
		if c.Redis.Channel == "" {
			return fmt.Errorf("redis channel is required when redis is enabled")
		}
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics listen address is required when metrics are enabled")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	return nil
}

func validateURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid %s: %q (must be absolute, e.g. http://uptime.example.com)", field, raw)
	}
	return nil
}

// BaseURL returns the link base without a trailing slash. telegram.url wins
// over the top-level url.
func (c *Config) BaseURL() string {
	base := c.Telegram.URL
	if base == "" {
		base = c.URL
	}
	return strings.TrimRight(base, "/")
}
