package task

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fyrsmithlabs/maker/internal/llm"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		TaskDescription: "count to three",
		SuccessCriteria: "three numbers emitted",
		Decomposition: Decomposition{
			EstimatedSteps: 3,
			StepTypes: []StepType{{
				Name:              "count",
				Description:       "emit the next number",
				MicroAgentPrompt:  "Task: {task_description}\nStep {current_step} of {total_steps}\nHistory: {action_history}",
				OutputFormat:      `{"n": <number>}`,
				RedFlagIndicators: []string{"I'm not sure"},
			}},
		},
		Model:          "google/gemini-2.0-flash-001",
		K:              2,
		EstimatedSteps: 3,
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// scriptedCompleter answers each call from a function of the call index and
// request. It is safe for concurrent use.
type scriptedCompleter struct {
	mu    sync.Mutex
	calls []llm.Request
	reply func(i int, req llm.Request) (string, error)
}

func (s *scriptedCompleter) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	s.mu.Lock()
	i := len(s.calls)
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	text, err := s.reply(i, req)
	if err != nil {
		return llm.Response{}, err
	}
	return llm.Response{Text: text}, nil
}

func (s *scriptedCompleter) Calls() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Request, len(s.calls))
	copy(out, s.calls)
	return out
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}
