// ABOUTME: Configuration loading and parsing for intent-bridge
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for broker timing knobs.
const (
	DefaultTimeout      = 3000 * time.Second
	DefaultPollInterval = time.Second
	DefaultHistoryDays  = 3
)

// Config represents the complete intent-bridge configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Broker   BrokerConfig   `yaml:"broker"`
	Relay    RelayConfig    `yaml:"relay"`
	Auth     AuthConfig     `yaml:"auth"`
	Agent    AgentConfig    `yaml:"agent"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// BrokerConfig holds the per-call wait ceiling, the poll interval and the
// history retention window
type BrokerConfig struct {
	Timeout      time.Duration `yaml:"-"`
	PollInterval time.Duration `yaml:"-"`
	// HistoryDays is how long completed requests are retained. Zero or
	// negative disables sweeping.
	HistoryDays int `yaml:"history_days"`

	// Raw string values for YAML unmarshaling
	TimeoutRaw      string `yaml:"timeout"`
	PollIntervalRaw string `yaml:"poll_interval"`
}

// RelayConfig holds chat relay (Matrix) configuration
type RelayConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Homeserver  string `yaml:"homeserver"`
	UserID      string `yaml:"user_id"`
	AccessToken string `yaml:"access_token"`
}

// AuthConfig holds admin authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// AgentConfig holds the credential the local MCP agent presents
type AgentConfig struct {
	APIKey string `yaml:"api_key"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	cfg := Config{
		Broker: BrokerConfig{HistoryDays: DefaultHistoryDays},
	}
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Relay.Enabled {
		if c.Relay.Homeserver == "" {
			return fmt.Errorf("relay.homeserver is required when relay is enabled")
		}
		if c.Relay.UserID == "" {
			return fmt.Errorf("relay.user_id is required when relay is enabled")
		}
		if c.Relay.AccessToken == "" {
			return fmt.Errorf("relay.access_token is required when relay is enabled")
		}
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	cfg.Broker.Timeout = DefaultTimeout
	if cfg.Broker.TimeoutRaw != "" {
		cfg.Broker.Timeout, err = time.ParseDuration(cfg.Broker.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing timeout %q: %w", cfg.Broker.TimeoutRaw, err)
		}
	}

	cfg.Broker.PollInterval = DefaultPollInterval
	if cfg.Broker.PollIntervalRaw != "" {
		cfg.Broker.PollInterval, err = time.ParseDuration(cfg.Broker.PollIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing poll_interval %q: %w", cfg.Broker.PollIntervalRaw, err)
		}
	}

	return nil
}
