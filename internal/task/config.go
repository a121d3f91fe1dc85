// Package task runs a decomposed natural-language task with voting
// micro-agents. A task file describes the step types, the margin k and the
// number of steps; Execute drives the run through the solver.
package task

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fyrsmithlabs/maker/internal/pricing"
)

// DefaultMaxResponseLength is the red-flag word limit when a task file sets none.
const DefaultMaxResponseLength = 750

// ErrInvalidConfig wraps every task file validation failure.
var ErrInvalidConfig = errors.New("invalid task config")

var requiredKeys = []string{"task_description", "decomposition", "model", "k", "estimated_steps"}

// StepType is one kind of micro-step produced by decomposition.
type StepType struct {
	Name              string   `json:"name" toml:"name"`
	Description       string   `json:"description" toml:"description"`
	Frequency         string   `json:"frequency" toml:"frequency"`
	MicroAgentPrompt  string   `json:"micro_agent_prompt" toml:"micro_agent_prompt"`
	OutputFormat      string   `json:"output_format" toml:"output_format"`
	RedFlagIndicators []string `json:"red_flag_indicators" toml:"red_flag_indicators"`
	// FormatSpec overrides the task-level format spec for this step type.
	FormatSpec string `json:"format_spec,omitempty" toml:"format_spec,omitempty"`
}

// Decomposition is the step plan for a task.
type Decomposition struct {
	EstimatedSteps      int        `json:"estimated_steps" toml:"estimated_steps"`
	StepTypes           []StepType `json:"step_types" toml:"step_types"`
	ExecutionOrder      string     `json:"execution_order" toml:"execution_order"`
	StateRepresentation string     `json:"state_representation" toml:"state_representation"`
}

// CostEstimate is the upfront price recorded by `maker plan`.
type CostEstimate struct {
	Model          string  `json:"model" toml:"model"`
	EstimatedCalls int     `json:"estimated_calls" toml:"estimated_calls"`
	InputTokens    int     `json:"input_tokens" toml:"input_tokens"`
	OutputTokens   int     `json:"output_tokens" toml:"output_tokens"`
	InputCost      float64 `json:"input_cost" toml:"input_cost"`
	OutputCost     float64 `json:"output_cost" toml:"output_cost"`
	TotalCost      float64 `json:"total_cost" toml:"total_cost"`
}

// CostFromEstimate copies a pricing estimate into the task file shape.
func CostFromEstimate(e pricing.Estimate) *CostEstimate {
	return &CostEstimate{
		Model:          e.Model,
		EstimatedCalls: e.EstimatedCalls,
		InputTokens:    e.InputTokens,
		OutputTokens:   e.OutputTokens,
		InputCost:      e.InputCost,
		OutputCost:     e.OutputCost,
		TotalCost:      e.TotalCost,
	}
}

// Config is a task file.
type Config struct {
	TaskDescription   string        `json:"task_description" toml:"task_description"`
	SuccessCriteria   string        `json:"success_criteria" toml:"success_criteria"`
	Decomposition     Decomposition `json:"decomposition" toml:"decomposition"`
	Model             string        `json:"model" toml:"model"`
	K                 int           `json:"k" toml:"k"`
	EstimatedSteps    int           `json:"estimated_steps" toml:"estimated_steps"`
	MaxResponseLength int           `json:"max_response_length,omitempty" toml:"max_response_length,omitempty"`
	FormatSpec        string        `json:"format_spec,omitempty" toml:"format_spec,omitempty"`
	CostEstimate      *CostEstimate `json:"cost_estimate,omitempty" toml:"cost_estimate,omitempty"`
}

// RunConfig is the immutable record the voting core consumes.
type RunConfig struct {
	K                 int    `json:"k"`
	NumSteps          int    `json:"num_steps"`
	MaxResponseLength int    `json:"max_response_length"`
	FormatSpec        string `json:"format_spec"`
}

// RunConfig extracts the voting parameters.
func (c *Config) RunConfig() RunConfig {
	return RunConfig{
		K:                 c.K,
		NumSteps:          c.EstimatedSteps,
		MaxResponseLength: c.maxResponseLength(),
		FormatSpec:        c.FormatSpec,
	}
}

func (c *Config) maxResponseLength() int {
	if c.MaxResponseLength > 0 {
		return c.MaxResponseLength
	}
	return DefaultMaxResponseLength
}

// StepType returns the step type with the given name.
func (c *Config) StepType(name string) (StepType, bool) {
	for _, st := range c.Decomposition.StepTypes {
		if st.Name == name {
			return st, true
		}
	}
	return StepType{}, false
}

// StepTypeNames lists step type names in declaration order.
func (c *Config) StepTypeNames() []string {
	names := make([]string, len(c.Decomposition.StepTypes))
	for i, st := range c.Decomposition.StepTypes {
		names[i] = st.Name
	}
	return names
}

// LoadConfig reads a task file. Files ending in .toml are TOML, anything
// else is JSON.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("task file not found: %s", path)
		}
		return nil, fmt.Errorf("reading task file: %w", err)
	}

	var (
		cfg     Config
		present func(key string) bool
	)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, fmt.Errorf("parsing TOML task file: %w", err)
		}
		present = func(key string) bool { return md.IsDefined(key) }
	} else {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing JSON task file: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decoding JSON task file: %w", err)
		}
		present = func(key string) bool { _, ok := raw[key]; return ok }
	}

	var missing []string
	for _, key := range requiredKeys {
		if !present(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required keys: %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the semantic constraints of a task file.
func (c *Config) Validate() error {
	if len(c.Decomposition.StepTypes) == 0 {
		return fmt.Errorf("%w: decomposition must contain non-empty step_types", ErrInvalidConfig)
	}
	if c.K < 1 {
		return fmt.Errorf("%w: k must be >= 1, got %d", ErrInvalidConfig, c.K)
	}
	if c.EstimatedSteps < 0 {
		return fmt.Errorf("%w: estimated_steps must be >= 0, got %d", ErrInvalidConfig, c.EstimatedSteps)
	}
	if c.MaxResponseLength < 0 {
		return fmt.Errorf("%w: max_response_length must be >= 0, got %d", ErrInvalidConfig, c.MaxResponseLength)
	}
	if _, err := ParseFormatSpec(c.FormatSpec); err != nil {
		return fmt.Errorf("%w: format_spec: %v", ErrInvalidConfig, err)
	}

	seen := make(map[string]bool, len(c.Decomposition.StepTypes))
	for i, st := range c.Decomposition.StepTypes {
		if st.Name == "" {
			return fmt.Errorf("%w: step_types[%d] has no name", ErrInvalidConfig, i)
		}
		if seen[st.Name] {
			return fmt.Errorf("%w: duplicate step type %q", ErrInvalidConfig, st.Name)
		}
		seen[st.Name] = true
		if strings.TrimSpace(st.MicroAgentPrompt) == "" {
			return fmt.Errorf("%w: step type %q has no micro_agent_prompt", ErrInvalidConfig, st.Name)
		}
		if _, err := ParseFormatSpec(st.FormatSpec); err != nil {
			return fmt.Errorf("%w: step type %q format_spec: %v", ErrInvalidConfig, st.Name, err)
		}
	}
	return nil
}

// Save writes the task file as indented JSON, or TOML for .toml paths.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("encoding TOML task file: %w", err)
		}
	} else {
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("encoding JSON task file: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing task file: %w", err)
	}
	return nil
}
