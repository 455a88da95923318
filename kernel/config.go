package kernel

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tailored-agentic-units/toolbench/agent"
	"github.com/tailored-agentic-units/toolbench/memory"
	"github.com/tailored-agentic-units/toolbench/session"
	"github.com/tailored-agentic-units/toolbench/tools/sandbox"
	"github.com/tailored-agentic-units/toolbench/tools/sqlquery"
)

const (
	// DefaultMaxRounds bounds the number of tool-bearing rounds per run.
	DefaultMaxRounds = 10

	defaultObserver = "slog"
)

// ToolsConfig selects the tools offered to the model.
type ToolsConfig struct {
	// Enabled turns tool use on; nil means enabled.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	// Parallelism caps concurrent tool calls within one round; 0 means no cap.
	Parallelism int               `yaml:"parallelism,omitempty" json:"parallelism,omitempty"`
	SQL         []sqlquery.Config `yaml:"sql,omitempty" json:"sql,omitempty"`
	Sandbox     *sandbox.Config   `yaml:"sandbox,omitempty" json:"sandbox,omitempty"`
}

// IsEnabled reports whether tools are offered to the model.
func (c *ToolsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Merge applies non-zero values from source into c. Tool lists replace
// rather than append.
func (c *ToolsConfig) Merge(source *ToolsConfig) {
	if source.Enabled != nil {
		enabled := *source.Enabled
		c.Enabled = &enabled
	}
	if source.Parallelism > 0 {
		c.Parallelism = source.Parallelism
	}
	if len(source.SQL) > 0 {
		c.SQL = make([]sqlquery.Config, len(source.SQL))
		for i, sc := range source.SQL {
			merged := sqlquery.DefaultConfig()
			merged.Merge(&sc)
			c.SQL[i] = merged
		}
	}
	if source.Sandbox != nil {
		merged := sandbox.DefaultConfig()
		merged.Merge(source.Sandbox)
		c.Sandbox = &merged
	}
}

// Config holds initialization parameters for every kernel subsystem.
type Config struct {
	Agent          agent.Config            `yaml:"agent" json:"agent"`
	Agents         map[string]agent.Config `yaml:"agents,omitempty" json:"agents,omitempty"`
	Session        session.Config          `yaml:"session" json:"session"`
	Memory         memory.Config           `yaml:"memory" json:"memory"`
	Tools          ToolsConfig             `yaml:"tools" json:"tools"`
	MaxRounds      int                     `yaml:"max_rounds,omitempty" json:"max_rounds,omitempty"`
	RoundTimeout   time.Duration           `yaml:"round_timeout,omitempty" json:"round_timeout,omitempty"`
	SessionTimeout time.Duration           `yaml:"session_timeout,omitempty" json:"session_timeout,omitempty"`
	SystemPrompt   string                  `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`
	// Observer names a registered observer; EventLog, when set, also appends
	// events to a JSONL file.
	Observer string `yaml:"observer,omitempty" json:"observer,omitempty"`
	EventLog string `yaml:"event_log,omitempty" json:"event_log,omitempty"`
}

// DefaultConfig returns a Config with defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Agent:     agent.DefaultConfig(),
		Session:   session.DefaultConfig(),
		Memory:    memory.DefaultConfig(),
		MaxRounds: DefaultMaxRounds,
		Observer:  defaultObserver,
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method. Named agents are layered over the merged
// default agent.
func (c *Config) Merge(source *Config) {
	c.Agent.Merge(&source.Agent)
	c.Session.Merge(&source.Session)
	c.Memory.Merge(&source.Memory)
	c.Tools.Merge(&source.Tools)

	if source.MaxRounds > 0 {
		c.MaxRounds = source.MaxRounds
	}
	if source.RoundTimeout > 0 {
		c.RoundTimeout = source.RoundTimeout
	}
	if source.SessionTimeout > 0 {
		c.SessionTimeout = source.SessionTimeout
	}
	if source.SystemPrompt != "" {
		c.SystemPrompt = source.SystemPrompt
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
	if source.EventLog != "" {
		c.EventLog = source.EventLog
	}

	if len(source.Agents) > 0 {
		c.Agents = make(map[string]agent.Config, len(source.Agents))
		for name, ac := range source.Agents {
			merged := agent.DefaultConfig()
			merged.Merge(&ac)
			c.Agents[name] = merged
		}
	}
}

// LoadConfig reads a YAML (or JSON) config file, merges it over the defaults,
// and returns the result.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
