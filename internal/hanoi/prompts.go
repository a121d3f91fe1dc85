package hanoi

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/maker/internal/llm"
	"github.com/fyrsmithlabs/maker/internal/voting"
)

// SystemPrompt frames the model as a single-move micro-agent.
const SystemPrompt = `You are a precise, focused micro-agent specialized in determining single moves in the Towers of Hanoi puzzle.
You always respond with valid JSON in the exact format requested, with no additional text or explanation.
You are highly reliable and never make illegal moves.`

const (
	agentTemperature = 0.7
	agentMaxTokens   = 100
)

// MovePrompt asks for the next move from s.
func MovePrompt(s State) string {
	return fmt.Sprintf(`You are a Towers of Hanoi expert. Your task is to determine the next single move.

**Current State:**
Peg 0: %s
Peg 1: %s
Peg 2: %s

**Goal:** Move all %d disks to Peg %d

**Rules:**
1. Only move one disk at a time
2. A larger disk cannot be placed on top of a smaller disk
3. Only the top disk of each peg can be moved

**Your Task:**
Determine the next optimal move that progresses toward the goal.

**Output Format:**
Respond with ONLY a JSON object in this exact format:
{"disk": <disk_number>, "from": <source_peg>, "to": <destination_peg>}

Example: {"disk": 1, "from": 0, "to": 2}

Do not include any explanation or additional text. Only output the JSON object.
`, formatPeg(s.Pegs[0]), formatPeg(s.Pegs[1]), formatPeg(s.Pegs[2]), s.Disks, GoalPeg)
}

// Agent asks a model for the next move.
type Agent struct {
	completer llm.Completer
}

// NewAgent returns a move generator backed by completer.
func NewAgent(completer llm.Completer) *Agent {
	return &Agent{completer: completer}
}

// Generate implements voting.Generator.
func (a *Agent) Generate(ctx context.Context, s State) (string, error) {
	resp, err := a.completer.Complete(ctx, llm.Request{
		System:      SystemPrompt,
		Prompt:      MovePrompt(s),
		Temperature: agentTemperature,
		MaxTokens:   agentMaxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

var _ voting.Generator[State] = (*Agent)(nil)
