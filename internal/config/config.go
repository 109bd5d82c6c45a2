package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models pairwise.yml.
type Config struct {
	Service struct {
		ID string `yaml:"id" json:"id"`
	} `yaml:"service" json:"service"`
	Tokens struct {
		Words []string `yaml:"words" json:"words,omitempty"`
	} `yaml:"tokens" json:"tokens"`
	Content struct {
		Default    string              `yaml:"default" json:"default"`
		Categories map[string][]string `yaml:"categories" json:"categories"`
		Items      []ContentSeed       `yaml:"items" json:"items,omitempty"`
	} `yaml:"content" json:"content"`
	Rounds struct {
		SupervisorParticipates bool   `yaml:"supervisor_participates" json:"supervisor_participates"`
		DefaultCategory        string `yaml:"default_category" json:"default_category,omitempty"`
	} `yaml:"rounds" json:"rounds"`
	Webhooks []WebhookConfig `yaml:"webhooks" json:"webhooks,omitempty"`
}

type ContentSeed struct {
	Text string   `yaml:"text" json:"text"`
	Tags []string `yaml:"tags" json:"tags"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url" json:"url"`
	Events         []string `yaml:"events" json:"events,omitempty"`
	Secret         string   `yaml:"secret" json:"-"`
	Enabled        *bool    `yaml:"enabled" json:"enabled,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds" json:"timeout_seconds,omitempty"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with pw init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Service.ID) == "" {
		return fmt.Errorf("config.service.id is required")
	}
	for i, w := range c.Tokens.Words {
		if strings.TrimSpace(w) == "" {
			return fmt.Errorf("config.tokens.words[%d] is empty", i)
		}
	}
	for category, tags := range c.Content.Categories {
		if strings.TrimSpace(category) == "" {
			return fmt.Errorf("config.content.categories contains empty category")
		}
		if len(tags) == 0 {
			return fmt.Errorf("category %s has no tags", category)
		}
		for _, tag := range tags {
			if strings.TrimSpace(tag) == "" {
				return fmt.Errorf("category %s has empty tag", category)
			}
		}
	}
	for i, item := range c.Content.Items {
		if strings.TrimSpace(item.Text) == "" {
			return fmt.Errorf("config.content.items[%d] has empty text", i)
		}
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must be positive", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "pairwise.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(serviceID string) string {
	return fmt.Sprintf(defaultTemplate, serviceID)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default(serviceID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(serviceID))).Decode(&cfg)
	cfg.Service.ID = serviceID
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

// WebhookEnabled reports whether a hook should receive deliveries.
func (w WebhookConfig) WebhookEnabled() bool {
	return (w.Enabled == nil || *w.Enabled) && strings.TrimSpace(w.URL) != ""
}

const defaultTemplate = `service:
  id: %s

# Leave words empty to use the built-in pool of 79 words.
tokens:
  words: []

content:
  default: "Share something interesting you learned recently."
  categories:
    general: [general, conversation]
    technical: [technical, programming, problem-solving]
    personal: [personal, reflection, goals]
    academic: [academic, learning, study]
  # Seeded into an empty workspace; leave empty for the built-in prompts.
  items: []

rounds:
  supervisor_participates: false
  default_category: ""

webhooks: []
`
