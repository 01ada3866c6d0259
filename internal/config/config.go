package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models trackline.yml.
type Config struct {
	Server struct {
		BasePath               string          `yaml:"base_path"`
		JWTSecret              string          `yaml:"jwt_secret"`
		AllowLegacyActorHeader bool            `yaml:"allow_legacy_actor_header"`
		Webhooks               []WebhookConfig `yaml:"webhooks"`
	} `yaml:"server"`
	Review struct {
		ApprovePatterns        []string `yaml:"approve_patterns"`
		RequestChangesPatterns []string `yaml:"request_changes_patterns"`
	} `yaml:"review"`
}

type WebhookConfig struct {
	URL     string `yaml:"url"`
	Enabled *bool  `yaml:"enabled"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	for i, p := range c.Review.ApprovePatterns {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("config.review.approve_patterns[%d] is empty", i)
		}
	}
	for i, p := range c.Review.RequestChangesPatterns {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("config.review.request_changes_patterns[%d] is empty", i)
		}
	}
	for i, hook := range c.Server.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.server.webhooks[%d].url is required", i)
		}
	}
	return nil
}

// Path returns the config file path for a data directory.
func Path(dir string) string {
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "trackline.yml")
}

// Load reads and validates config from the data directory.
func Load(dir string) (*Config, error) {
	path := Path(dir)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(dir string) (*Config, error) {
	path := Path(dir)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  base_path: /v1
  allow_legacy_actor_header: false

review:
  approve_patterns:
    - approved
    - lgtm
    - looks good to me
  request_changes_patterns:
    - changes requested
    - request changes
    - needs changes
`
