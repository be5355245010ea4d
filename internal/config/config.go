// Package config handles onboard-agent configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/onboard-agent/config.yaml,
// /etc/onboard-agent/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "onboard-agent", "config.yaml"))
	}

	paths = append(paths, "/etc/onboard-agent/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all onboard-agent configuration.
type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Agent     AgentConfig     `yaml:"agent"`
	Calendar  CalendarConfig  `yaml:"calendar"`
	Email     EmailConfig     `yaml:"email"`
	Contacts  ContactsConfig  `yaml:"contacts"`
	DataDir   string          `yaml:"data_dir"`
	LogLevel  string          `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// DefaultMaxIterations is the fallback iteration cap when the config
// leaves it unset.
const DefaultMaxIterations = 8

// AgentConfig controls the orchestration loop.
type AgentConfig struct {
	// MaxIterations bounds the completion/tool loop within a single
	// request. Exceeding it produces a partial answer, not an error.
	MaxIterations int `yaml:"max_iterations"`

	// CompletionRetries is the number of additional attempts made when
	// the completion provider reports overload.
	CompletionRetries int `yaml:"completion_retries"`

	// AttemptTimeoutSec bounds each individual completion attempt.
	AttemptTimeoutSec int `yaml:"attempt_timeout_sec"`

	// EnabledDefault is the agent feature gate applied to users without
	// an explicit entry in Users.
	EnabledDefault bool `yaml:"enabled_default"`

	// Users maps a user id to an explicit feature-gate override.
	Users map[string]bool `yaml:"users"`
}

// AgentEnabled resolves the per-user feature gate. Explicit entries in
// Users win; everyone else gets EnabledDefault.
func (c AgentConfig) AgentEnabled(userID string) bool {
	if v, ok := c.Users[userID]; ok {
		return v
	}
	return c.EnabledDefault
}

// CalendarConfig defines the CalDAV connection settings.
type CalendarConfig struct {
	URL      string `yaml:"url"`      // CalDAV endpoint (collection URL)
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Timezone string `yaml:"timezone"` // IANA name, e.g. "America/New_York"
}

// Configured reports whether the calendar integration can be enabled.
func (c CalendarConfig) Configured() bool {
	return c.URL != ""
}

// EmailConfig defines the mail account used by the email tools.
type EmailConfig struct {
	// From is the sender address for outbound mail (e.g. "Onboarding <hr@host>").
	From string     `yaml:"from"`
	SMTP SMTPConfig `yaml:"smtp"`
	IMAP IMAPConfig `yaml:"imap"`
}

// Configured reports whether the email integration can be enabled.
func (c EmailConfig) Configured() bool {
	return c.SMTP.Host != "" && c.From != ""
}

// SMTPConfig defines outbound mail delivery settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// StartTLS upgrades a plaintext connection (port 587 convention).
	// When false, implicit TLS is used (port 465 convention).
	StartTLS bool `yaml:"starttls"`
}

// IMAPConfig defines inbox access settings for the search tool.
type IMAPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	TLS      bool   `yaml:"tls"`
}

// ContactsConfig points at the vCard directory for people lookups.
type ContactsConfig struct {
	// Dir is a directory of .vcf files. Empty disables the contact tools.
	Dir string `yaml:"dir"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8080},
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet-4-20250514",
		},
		Agent: AgentConfig{
			MaxIterations:     DefaultMaxIterations,
			CompletionRetries: 3,
			AttemptTimeoutSec: 60,
			EnabledDefault:    true,
		},
		DataDir: ".",
	}
}

// applyDefaults fills zero-value fields with sensible defaults after
// unmarshalling, so a partial config file behaves predictably.
func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}
	if c.Agent.MaxIterations <= 0 {
		c.Agent.MaxIterations = DefaultMaxIterations
	}
	if c.Agent.CompletionRetries < 0 {
		c.Agent.CompletionRetries = 0
	}
	if c.Agent.AttemptTimeoutSec <= 0 {
		c.Agent.AttemptTimeoutSec = 60
	}
	if c.Email.SMTP.Host != "" {
		if c.Email.SMTP.Port == 0 {
			c.Email.SMTP.Port = 587
		}
		if !c.Email.SMTP.StartTLS && c.Email.SMTP.Port != 465 {
			c.Email.SMTP.StartTLS = true
		}
	}
	if c.Email.IMAP.Host != "" {
		if c.Email.IMAP.Port == 0 {
			c.Email.IMAP.Port = 993
		}
		if !c.Email.IMAP.TLS && c.Email.IMAP.Port != 143 {
			c.Email.IMAP.TLS = true
		}
	}
}
