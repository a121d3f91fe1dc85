package http

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Events  string `json:"events"`
}

// KMinRequest is the request body for POST /api/v1/kmin.
type KMinRequest struct {
	NumSteps           int     `json:"num_steps"`
	PerStepSuccessRate float64 `json:"per_step_success_rate"`
	TargetSuccessRate  float64 `json:"target_success_rate"`
	// RedFlagRate only affects ExpectedSamplesPerStep.
	RedFlagRate float64 `json:"red_flag_rate"`
}

// KMinResponse is the response body for POST /api/v1/kmin.
type KMinResponse struct {
	K                      int     `json:"k"`
	ErrorBound             float64 `json:"error_bound"`
	SuccessLowerBound      float64 `json:"success_lower_bound"`
	ExpectedSamplesPerStep float64 `json:"expected_samples_per_step"`
}

// CostRequest is the request body for POST /api/v1/cost.
type CostRequest struct {
	NumSteps          int     `json:"num_steps"`
	K                 int     `json:"k"`
	Model             string  `json:"model"`
	AvgPromptTokens   int     `json:"avg_prompt_tokens"`
	AvgResponseTokens int     `json:"avg_response_tokens"`
	RedFlagRate       float64 `json:"red_flag_rate"`
}

// HanoiRequest is the request body for POST /api/v1/simulations/hanoi.
type HanoiRequest struct {
	RunID string `json:"run_id"`
	Disks int    `json:"disks"`
	// P is the simulated per-sample success rate.
	P           float64 `json:"p"`
	K           int     `json:"k"`
	MaxAttempts int     `json:"max_attempts"`
	Parallelism int     `json:"parallelism"`
	Seed        uint64  `json:"seed"`
}

// HanoiResponse is the response body for POST /api/v1/simulations/hanoi.
type HanoiResponse struct {
	RunID          string  `json:"run_id"`
	Solved         bool    `json:"solved"`
	Steps          int     `json:"steps"`
	StepsCompleted int     `json:"steps_completed"`
	Attempts       int     `json:"attempts"`
	K              int     `json:"k"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Error          string  `json:"error,omitempty"`
}
