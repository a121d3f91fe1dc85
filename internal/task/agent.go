package task

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/maker/internal/llm"
	"github.com/fyrsmithlabs/maker/internal/voting"
)

const microAgentSystemPrompt = "You are a focused micro-agent. Respond only with the requested output format, no additional text."

// Sampling parameters for micro-agent calls.
const (
	microAgentTemperature = 0.7
	microAgentMaxTokens   = 500
)

// MicroAgent samples responses for one step type.
type MicroAgent struct {
	stepType  StepType
	completer llm.Completer
}

// NewMicroAgent returns a generator for st backed by completer.
func NewMicroAgent(st StepType, completer llm.Completer) *MicroAgent {
	return &MicroAgent{stepType: st, completer: completer}
}

// Generate renders the step prompt for state and returns one completion.
func (m *MicroAgent) Generate(ctx context.Context, state State) (string, error) {
	resp, err := m.completer.Complete(ctx, llm.Request{
		System:      microAgentSystemPrompt,
		Prompt:      state.Render(m.stepType.MicroAgentPrompt),
		Temperature: microAgentTemperature,
		MaxTokens:   microAgentMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("micro-agent %s: %w", m.stepType.Name, err)
	}
	return resp.Text, nil
}

// Parser decodes micro-agent responses. The next state is the current
// state with the action appended, so every sample for the same action
// agrees on it.
type Parser struct{}

// ParseAction implements voting.Parser.
func (Parser) ParseAction(raw string) (Action, error) {
	return ParseAction(raw)
}

// ParseNextState implements voting.Parser.
func (Parser) ParseNextState(raw string, current State) (State, error) {
	action, err := ParseAction(raw)
	if err != nil {
		return State{}, err
	}
	return current.Apply(action), nil
}

var (
	_ voting.Generator[State]      = (*MicroAgent)(nil)
	_ voting.Parser[State, Action] = Parser{}
)
