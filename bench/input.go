package bench

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tailored-agentic-units/toolbench/core/protocol"
)

// ErrInvalidInput reports an unusable input file or query template.
var ErrInvalidInput = errors.New("invalid bench input")

// System selects the prompt set and the result extraction for a bench.
type System string

const (
	SystemPromptQL          System = "promptql"
	SystemToolCalling       System = "tool_calling"
	SystemToolCallingPython System = "tool_calling_python"
)

// ParseSystem validates a system name.
func ParseSystem(s string) (System, error) {
	switch sys := System(s); sys {
	case SystemPromptQL, SystemToolCalling, SystemToolCallingPython:
		return sys, nil
	}
	return "", fmt.Errorf("%w: unknown system %q", ErrInvalidInput, s)
}

type PromptQLInput struct {
	RetrievalPrompt    string `yaml:"retrieval_prompt"`
	OraclePrompt       string `yaml:"oracle_prompt"`
	ResultArtifactName string `yaml:"result_artifact_name"`
	ResultArtifactKey  string `yaml:"result_artifact_key"`
}

type ToolCallingInput struct {
	RetrievalPrompt string `yaml:"retrieval_prompt"`
	OraclePrompt    string `yaml:"oracle_prompt"`
	ResultTagName   string `yaml:"result_tag_name"`
}

// Variation is one parameterization of the query templates.
type Variation struct {
	Name                string         `yaml:"name"`
	Parameters          map[string]any `yaml:"parameters"`
	GroundTruthPath     string         `yaml:"ground_truth_path"`
	OracleDataFilePaths []string       `yaml:"oracle_data_file_paths"`
}

// Input is a bench input file. Relative paths inside it resolve against the
// file's directory.
type Input struct {
	PromptQL    PromptQLInput    `yaml:"promptql"`
	ToolCalling ToolCallingInput `yaml:"tool_calling"`
	Variations  []Variation      `yaml:"variations"`

	dir string
}

// LoadInput reads and validates a YAML input file.
func LoadInput(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}

	var in Input
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, path, err)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	in.dir = filepath.Dir(abs)
	return &in, nil
}

// Validate checks that variations exist and have unique, path-safe names.
func (in *Input) Validate() error {
	if len(in.Variations) == 0 {
		return fmt.Errorf("%w: no variations", ErrInvalidInput)
	}
	seen := make(map[string]bool, len(in.Variations))
	for i, v := range in.Variations {
		if v.Name == "" || strings.ContainsAny(v.Name, `/\`) {
			return fmt.Errorf("%w: variation %d has invalid name %q", ErrInvalidInput, i, v.Name)
		}
		if seen[v.Name] {
			return fmt.Errorf("%w: duplicate variation %q", ErrInvalidInput, v.Name)
		}
		seen[v.Name] = true
	}
	return nil
}

// Template returns the query template for the system and mode.
func (in *Input) Template(system System, oracle bool) string {
	switch {
	case system == SystemPromptQL && oracle:
		return in.PromptQL.OraclePrompt
	case system == SystemPromptQL:
		return in.PromptQL.RetrievalPrompt
	case oracle:
		return in.ToolCalling.OraclePrompt
	default:
		return in.ToolCalling.RetrievalPrompt
	}
}

// Resolve returns path relative to the input file's directory.
func (in *Input) Resolve(path string) string {
	if filepath.IsAbs(path) || in.dir == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(in.dir, path)
}

// OracleArtifacts loads the variation's oracle data files. Each file holds
// one artifact record.
func (in *Input) OracleArtifacts(v Variation) ([]protocol.Artifact, error) {
	artifacts := make([]protocol.Artifact, 0, len(v.OracleDataFilePaths))
	for _, p := range v.OracleDataFilePaths {
		path := in.Resolve(p)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read oracle data: %w", err)
		}
		var a protocol.Artifact
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("%w: oracle data %s: %v", ErrInvalidInput, path, err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}

// Render substitutes {name} placeholders in template with parameter values.
// Doubled braces produce literal braces. A placeholder without a matching
// parameter is an error.
func Render(template string, params map[string]any) (string, error) {
	var b strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		switch {
		case c == '{' && i+1 < len(template) && template[i+1] == '{':
			b.WriteByte('{')
			i++
		case c == '}' && i+1 < len(template) && template[i+1] == '}':
			b.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: unclosed placeholder at offset %d", ErrInvalidInput, i)
			}
			name := template[i+1 : i+1+end]
			val, ok := params[name]
			if !ok {
				return "", fmt.Errorf("%w: missing parameter %q", ErrInvalidInput, name)
			}
			fmt.Fprint(&b, val)
			i += end + 1
		case c == '}':
			return "", fmt.Errorf("%w: single '}' at offset %d", ErrInvalidInput, i)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}
