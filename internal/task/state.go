package task

import (
	"encoding/json"
	"strconv"
	"strings"
)

// State is the task state shown to micro-agents. It is immutable: Apply
// returns a new value and never touches the receiver's history.
type State struct {
	TaskDescription string   `json:"task_description"`
	SuccessCriteria string   `json:"success_criteria"`
	CurrentStep     int      `json:"current_step"`
	TotalSteps      int      `json:"total_steps"`
	History         []Action `json:"action_history"`
}

// NewState returns the initial state for a task file.
func NewState(cfg *Config) State {
	return State{
		TaskDescription: cfg.TaskDescription,
		SuccessCriteria: cfg.SuccessCriteria,
		TotalSteps:      cfg.EstimatedSteps,
		History:         []Action{},
	}
}

// Apply records action as the next completed step.
func (s State) Apply(action Action) State {
	history := make([]Action, len(s.History), len(s.History)+1)
	copy(history, s.History)
	next := s
	next.History = append(history, action)
	next.CurrentStep = s.CurrentStep + 1
	return next
}

// Equal compares states field by field, actions by vote key.
func (s State) Equal(other State) bool {
	if s.TaskDescription != other.TaskDescription ||
		s.SuccessCriteria != other.SuccessCriteria ||
		s.CurrentStep != other.CurrentStep ||
		s.TotalSteps != other.TotalSteps ||
		len(s.History) != len(other.History) {
		return false
	}
	for i := range s.History {
		if s.History[i].VoteKey() != other.History[i].VoteKey() {
			return false
		}
	}
	return true
}

// Render fills the {task_description}, {success_criteria}, {current_step},
// {total_steps} and {action_history} placeholders in template.
func (s State) Render(template string) string {
	history, err := json.Marshal(s.History)
	if err != nil {
		history = []byte("[]")
	}
	return strings.NewReplacer(
		"{task_description}", s.TaskDescription,
		"{success_criteria}", s.SuccessCriteria,
		"{current_step}", strconv.Itoa(s.CurrentStep),
		"{total_steps}", strconv.Itoa(s.TotalSteps),
		"{action_history}", string(history),
	).Replace(template)
}
