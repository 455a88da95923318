package agent

import (
	"maps"
	"os"
	"time"
)

// Config selects and parameterizes one provider adapter.
type Config struct {
	Provider  string         `yaml:"provider" json:"provider"`
	Model     string         `yaml:"model" json:"model"`
	BaseURL   string         `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	APIKey    string         `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	APIKeyEnv string         `yaml:"api_key_env,omitempty" json:"api_key_env,omitempty"`
	MaxTokens int            `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	Timeout   time.Duration  `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Options   map[string]any `yaml:"options,omitempty" json:"options,omitempty"`
}

const defaultMaxTokens = 4096

// DefaultConfig returns the default agent configuration.
func DefaultConfig() Config {
	return Config{
		Provider:  "openai",
		MaxTokens: defaultMaxTokens,
		Timeout:   10 * time.Minute,
	}
}

// Merge applies non-zero values from source into c. Options are merged key
// by key.
func (c *Config) Merge(source *Config) {
	if source.Provider != "" {
		c.Provider = source.Provider
	}
	if source.Model != "" {
		c.Model = source.Model
	}
	if source.BaseURL != "" {
		c.BaseURL = source.BaseURL
	}
	if source.APIKey != "" {
		c.APIKey = source.APIKey
	}
	if source.APIKeyEnv != "" {
		c.APIKeyEnv = source.APIKeyEnv
	}
	if source.MaxTokens > 0 {
		c.MaxTokens = source.MaxTokens
	}
	if source.Timeout > 0 {
		c.Timeout = source.Timeout
	}
	if len(source.Options) > 0 {
		if c.Options == nil {
			c.Options = make(map[string]any, len(source.Options))
		}
		maps.Copy(c.Options, source.Options)
	}
}

// ResolveAPIKey returns APIKey, or the value of the APIKeyEnv environment
// variable, or the value of fallbackEnv.
func (c *Config) ResolveAPIKey(fallbackEnv string) string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.APIKeyEnv != "" {
		return os.Getenv(c.APIKeyEnv)
	}
	if fallbackEnv != "" {
		return os.Getenv(fallbackEnv)
	}
	return ""
}

// StringOption returns Options[key] when it is a non-empty string.
func (c *Config) StringOption(key, fallback string) string {
	if s, ok := c.Options[key].(string); ok && s != "" {
		return s
	}
	return fallback
}
