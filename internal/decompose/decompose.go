// Package decompose asks a model to split a task into micro-step types and
// turns the answer into a runnable task file.
package decompose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/maker/internal/llm"
	"github.com/fyrsmithlabs/maker/internal/pricing"
	"github.com/fyrsmithlabs/maker/internal/reliability"
	"github.com/fyrsmithlabs/maker/internal/task"
	"go.uber.org/zap"
)

const (
	// DefaultSuccessCriteria is used when the caller gives none.
	DefaultSuccessCriteria = "Task completed successfully"

	// DefaultEstimatedSteps stands in for a missing step estimate.
	DefaultEstimatedSteps = 100

	decomposeTemperature = 0.3
	decomposeMaxTokens   = 2000
)

var (
	// ErrEmptyTask is returned for a blank task description.
	ErrEmptyTask = errors.New("decompose: task description is empty")

	// ErrInvalidResponse is returned when the model's answer is not a usable
	// decomposition.
	ErrInvalidResponse = errors.New("decompose: invalid decomposition response")
)

// SystemPrompt frames the decomposition request.
const SystemPrompt = `You are an expert at breaking down complex tasks into the smallest possible atomic steps for execution by micro-agents in the MAKER framework.

Your goal is to decompose tasks following the principle of Maximal Agentic Decomposition (MAD), where each step should be:
1. As small and focused as possible
2. Independently executable
3. Have a clear input and output
4. Be verifiable

You will also generate focused micro-agent prompts for each step type.`

const promptTemplate = `Analyze the following task and decompose it into the smallest possible atomic steps:

**Task Description:**
%s

**Success Criteria:**
%s

Please provide:
1. The total estimated number of steps required
2. A breakdown of the different types of steps (there may be only one type, or several)
3. For each step type, a focused micro-agent prompt template

Micro-agent prompts may use these placeholders: {task_description}, {success_criteria}, {current_step}, {total_steps}, {action_history}.

Respond with a JSON object in this exact format:
{
  "estimated_steps": <number>,
  "step_types": [
    {
      "name": "<step_type_name>",
      "description": "<what this step does>",
      "frequency": "<how often this step occurs>",
      "micro_agent_prompt": "<the prompt template for this step type>",
      "output_format": "<expected output format, preferably JSON>",
      "red_flag_indicators": ["<indicator1>", "<indicator2>"]
    }
  ],
  "execution_order": "<description of how steps are sequenced>",
  "state_representation": "<how to represent state between steps>"
}

Be specific and practical. The micro-agent prompts should be clear, focused, and include the exact output format expected.`

// Decomposer turns task descriptions into decompositions.
type Decomposer struct {
	completer llm.Completer
	logger    *zap.Logger
}

// Option configures a Decomposer.
type Option func(*Decomposer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Decomposer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New returns a Decomposer backed by completer.
func New(completer llm.Completer, opts ...Option) *Decomposer {
	d := &Decomposer{completer: completer, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decompose asks the model for a decomposition of description.
func (d *Decomposer) Decompose(ctx context.Context, description, criteria string) (task.Decomposition, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return task.Decomposition{}, ErrEmptyTask
	}
	if strings.TrimSpace(criteria) == "" {
		criteria = DefaultSuccessCriteria
	}

	resp, err := d.completer.Complete(ctx, llm.Request{
		System:      SystemPrompt,
		Prompt:      fmt.Sprintf(promptTemplate, description, criteria),
		Temperature: decomposeTemperature,
		MaxTokens:   decomposeMaxTokens,
	})
	if err != nil {
		return task.Decomposition{}, fmt.Errorf("requesting decomposition: %w", err)
	}

	dec, err := ParseResponse(resp.Text)
	if err != nil {
		d.logger.Debug("unusable decomposition response", zap.Int("length", len(resp.Text)), zap.Error(err))
		return task.Decomposition{}, err
	}
	d.logger.Info("task decomposed",
		zap.Int("estimated_steps", dec.EstimatedSteps),
		zap.Int("step_types", len(dec.StepTypes)),
	)
	return dec, nil
}

// ParseResponse decodes a decomposition, tolerating a surrounding code fence.
func ParseResponse(raw string) (task.Decomposition, error) {
	var dec task.Decomposition
	if err := json.Unmarshal([]byte(stripFence(raw)), &dec); err != nil {
		return task.Decomposition{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(dec.StepTypes) == 0 {
		return task.Decomposition{}, fmt.Errorf("%w: no step types", ErrInvalidResponse)
	}
	for i, st := range dec.StepTypes {
		if strings.TrimSpace(st.Name) == "" || strings.TrimSpace(st.MicroAgentPrompt) == "" {
			return task.Decomposition{}, fmt.Errorf("%w: step type %d needs a name and a micro_agent_prompt", ErrInvalidResponse, i)
		}
	}
	return dec, nil
}

func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// EstimateParameters returns the step count, falling back to
// DefaultEstimatedSteps, and the recommended margin for it.
func EstimateParameters(dec task.Decomposition) (steps, k int) {
	steps = dec.EstimatedSteps
	if steps <= 0 {
		steps = DefaultEstimatedSteps
	}
	return steps, reliability.RecommendK(steps)
}

// PlanOptions tunes Plan.
type PlanOptions struct {
	SuccessCriteria string
	// Model defaults to pricing.RecommendedModel.
	Model string
	// K overrides the recommended margin when positive.
	K       int
	Pricing pricing.Options
}

// Plan decomposes description and assembles a complete task file. The cost
// estimate is left out for models missing from the price table.
func (d *Decomposer) Plan(ctx context.Context, description string, opts PlanOptions) (*task.Config, error) {
	criteria := strings.TrimSpace(opts.SuccessCriteria)
	if criteria == "" {
		criteria = DefaultSuccessCriteria
	}
	dec, err := d.Decompose(ctx, description, criteria)
	if err != nil {
		return nil, err
	}

	steps, k := EstimateParameters(dec)
	if opts.K > 0 {
		k = opts.K
	}
	dec.EstimatedSteps = steps
	model := opts.Model
	if model == "" {
		model = pricing.RecommendedModel()
	}

	cfg := &task.Config{
		TaskDescription: strings.TrimSpace(description),
		SuccessCriteria: criteria,
		Decomposition:   dec,
		Model:           model,
		K:               k,
		EstimatedSteps:  steps,
	}
	est, err := pricing.EstimateCost(steps, k, model, opts.Pricing)
	switch {
	case err == nil:
		cfg.CostEstimate = task.CostFromEstimate(est)
	case errors.Is(err, pricing.ErrUnknownModel):
		d.logger.Warn("no pricing for model, skipping cost estimate", zap.String("model", model))
	default:
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
