// ABOUTME: Configuration loading and parsing for the support chat client
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete support-chat configuration
type Config struct {
	Gateway    GatewayConfig    `yaml:"gateway"`
	Websocket  WebsocketConfig  `yaml:"websocket"`
	Bot        BotConfig        `yaml:"bot"`
	Customer   CustomerConfig   `yaml:"customer"`
	Transports TransportsConfig `yaml:"transports"`
	FAQ        FAQConfig        `yaml:"faq"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// GatewayConfig holds the ticketing backend binding
type GatewayConfig struct {
	BaseURL        string `yaml:"base_url"`
	AccountID      int64  `yaml:"account_id"`
	InboxID        int64  `yaml:"inbox_id"`
	APIAccessToken string `yaml:"api_access_token"`
}

// WebsocketConfig holds the push channel endpoint
type WebsocketConfig struct {
	URL string `yaml:"url"`
}

// BotConfig holds the FAQ bot endpoint configuration
type BotConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// CustomerConfig identifies the storefront customer for contact creation
type CustomerConfig struct {
	Name        string `yaml:"name"`
	Email       string `yaml:"email"`
	PhoneNumber string `yaml:"phone_number"`
}

// TransportsConfig holds delivery-transport timing configuration
type TransportsConfig struct {
	PollInterval time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	PollIntervalRaw string `yaml:"poll_interval"`
}

// FAQConfig holds the bot-mode entry prompt and canned topics
type FAQConfig struct {
	Greeting string   `yaml:"greeting"`
	Topics   []string `yaml:"topics"`
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

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway.base_url is required")
	}
	if c.Gateway.AccountID == 0 {
		return fmt.Errorf("gateway.account_id is required")
	}
	if c.Gateway.InboxID == 0 {
		return fmt.Errorf("gateway.inbox_id is required")
	}
	if c.Gateway.APIAccessToken == "" {
		return fmt.Errorf("gateway.api_access_token is required")
	}
	if c.Websocket.URL == "" {
		return fmt.Errorf("websocket.url is required")
	}
	if c.Bot.Endpoint == "" {
		return fmt.Errorf("bot.endpoint is required")
	}
	if c.Customer.Email == "" {
		return fmt.Errorf("customer.email is required")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Bot.TimeoutRaw != "" {
		cfg.Bot.Timeout, err = time.ParseDuration(cfg.Bot.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing bot timeout %q: %w", cfg.Bot.TimeoutRaw, err)
		}
	}

	if cfg.Transports.PollIntervalRaw != "" {
		cfg.Transports.PollInterval, err = time.ParseDuration(cfg.Transports.PollIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing poll_interval %q: %w", cfg.Transports.PollIntervalRaw, err)
		}
	}

	return nil
}
