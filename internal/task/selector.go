package task

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/maker/internal/llm"
)

const selectorSystemPrompt = "You select the correct step type. Reply with only the name."

// Selector picks the step type for a step.
type Selector interface {
	Select(ctx context.Context, state State, step int) (string, error)
}

// NewSelector returns a constant selector for single-type tasks, an LLM
// selector when completer is set and round-robin otherwise.
func NewSelector(cfg *Config, completer llm.Completer) Selector {
	names := cfg.StepTypeNames()
	if len(names) == 1 {
		return constantSelector(names[0])
	}
	if completer == nil {
		return roundRobinSelector(names)
	}
	descriptions := make(map[string]string, len(names))
	for _, st := range cfg.Decomposition.StepTypes {
		descriptions[st.Name] = st.Description
	}
	return &llmSelector{names: names, descriptions: descriptions, completer: completer}
}

type constantSelector string

func (s constantSelector) Select(context.Context, State, int) (string, error) {
	return string(s), nil
}

type roundRobinSelector []string

func (s roundRobinSelector) Select(_ context.Context, _ State, step int) (string, error) {
	return s[step%len(s)], nil
}

// llmSelector asks the model which step type applies. Unknown answers fall
// back to the first type.
type llmSelector struct {
	names        []string
	descriptions map[string]string
	completer    llm.Completer
}

func (s *llmSelector) Select(ctx context.Context, state State, step int) (string, error) {
	var options strings.Builder
	for _, n := range s.names {
		fmt.Fprintf(&options, "- %s: %s\n", n, s.descriptions[n])
	}
	prompt := fmt.Sprintf("Task: %s\nCurrent step: %d\nPrevious actions: %d\n\nAvailable step types:\n%s\n"+
		"Which step type should be used for this step? Reply with ONLY the step type name.",
		state.TaskDescription, step+1, len(state.History), options.String())

	resp, err := s.completer.Complete(ctx, llm.Request{
		System:      selectorSystemPrompt,
		Prompt:      prompt,
		Temperature: 0,
		MaxTokens:   50,
	})
	if err != nil {
		return "", fmt.Errorf("selecting step type: %w", err)
	}

	chosen := strings.TrimSpace(resp.Text)
	for _, n := range s.names {
		if n == chosen {
			return n, nil
		}
	}
	selectorFallbacks.Inc()
	return s.names[0], nil
}
