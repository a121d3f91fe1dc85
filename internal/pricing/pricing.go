// Package pricing estimates what a voting run costs on OpenRouter models.
package pricing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ErrUnknownModel is returned for models missing from the price table.
var ErrUnknownModel = errors.New("unknown model")

// Model describes one priced model. Prices are USD per million tokens.
type Model struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	InputPrice    float64 `json:"input_price"`
	OutputPrice   float64 `json:"output_price"`
	ContextWindow int     `json:"context_window"`
	Recommended   bool    `json:"recommended"`
}

var models = []Model{
	{ID: "google/gemini-2.0-flash-001", Name: "Google Gemini 2.0 Flash", InputPrice: 0.10, OutputPrice: 0.40, ContextWindow: 1048576, Recommended: true},
	{ID: "meta-llama/llama-3.1-8b-instruct", Name: "Meta Llama 3.1 8B", InputPrice: 0.05, OutputPrice: 0.05, ContextWindow: 131072, Recommended: true},
	{ID: "anthropic/claude-3.5-sonnet", Name: "Claude 3.5 Sonnet", InputPrice: 3.00, OutputPrice: 15.00, ContextWindow: 200000},
	{ID: "openai/gpt-4o-mini", Name: "GPT-4o Mini", InputPrice: 0.15, OutputPrice: 0.60, ContextWindow: 128000, Recommended: true},
}

// Models returns the price table in declaration order.
func Models() []Model {
	out := make([]Model, len(models))
	copy(out, models)
	return out
}

// Lookup returns the model with the given ID.
func Lookup(id string) (Model, error) {
	for _, m := range models {
		if m.ID == id {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("%w: %s", ErrUnknownModel, id)
}

// RecommendedModel returns the cheapest recommended model by combined
// input and output price.
func RecommendedModel() string {
	var rec []Model
	for _, m := range models {
		if m.Recommended {
			rec = append(rec, m)
		}
	}
	if len(rec) == 0 {
		return models[0].ID
	}
	sort.SliceStable(rec, func(i, j int) bool {
		return rec[i].InputPrice+rec[i].OutputPrice < rec[j].InputPrice+rec[j].OutputPrice
	})
	return rec[0].ID
}

// Options tunes the per-call token assumptions. Zero values take defaults.
type Options struct {
	AvgPromptTokens   int
	AvgResponseTokens int
	// RedFlagRate is the fraction of samples expected to be discarded.
	// Negative means none; zero takes the default of 0.1.
	RedFlagRate float64
}

const (
	defaultPromptTokens   = 500
	defaultResponseTokens = 100
	defaultRedFlagRate    = 0.1
)

func (o Options) withDefaults() Options {
	if o.AvgPromptTokens <= 0 {
		o.AvgPromptTokens = defaultPromptTokens
	}
	if o.AvgResponseTokens <= 0 {
		o.AvgResponseTokens = defaultResponseTokens
	}
	switch {
	case o.RedFlagRate == 0:
		o.RedFlagRate = defaultRedFlagRate
	case o.RedFlagRate < 0:
		o.RedFlagRate = 0
	}
	return o
}

// Estimate is the cost breakdown of a run.
type Estimate struct {
	ModelID        string  `json:"model_id"`
	Model          string  `json:"model"`
	NumSteps       int     `json:"num_steps"`
	K              int     `json:"k"`
	EstimatedCalls int     `json:"estimated_calls"`
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	InputCost      float64 `json:"input_cost"`
	OutputCost     float64 `json:"output_cost"`
	TotalCost      float64 `json:"total_cost"`
}

// EstimateCost prices numSteps steps voted with margin k. A step is assumed
// to take (2k-1) calls, inflated by the red-flag rate.
func EstimateCost(numSteps, k int, modelID string, opts Options) (Estimate, error) {
	if numSteps < 0 {
		return Estimate{}, fmt.Errorf("num_steps must be >= 0, got %d", numSteps)
	}
	if k < 1 {
		return Estimate{}, fmt.Errorf("k must be >= 1, got %d", k)
	}
	if opts.RedFlagRate >= 1 {
		return Estimate{}, fmt.Errorf("red_flag_rate must be < 1, got %v", opts.RedFlagRate)
	}
	m, err := Lookup(modelID)
	if err != nil {
		return Estimate{}, err
	}
	opts = opts.withDefaults()

	callsPerStep := float64(2*k-1) * (1 + opts.RedFlagRate)
	calls := float64(numSteps) * callsPerStep
	inTokens := calls * float64(opts.AvgPromptTokens)
	outTokens := calls * float64(opts.AvgResponseTokens)
	inCost := inTokens / 1_000_000 * m.InputPrice
	outCost := outTokens / 1_000_000 * m.OutputPrice

	return Estimate{
		ModelID:        m.ID,
		Model:          m.Name,
		NumSteps:       numSteps,
		K:              k,
		EstimatedCalls: int(calls),
		InputTokens:    int(inTokens),
		OutputTokens:   int(outTokens),
		InputCost:      inCost,
		OutputCost:     outCost,
		TotalCost:      inCost + outCost,
	}, nil
}

var printer = message.NewPrinter(language.English)

// Format renders the estimate for terminal output.
func (e Estimate) Format() string {
	var b strings.Builder
	b.WriteString("Cost Estimate for MAKER Task\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	b.WriteString(printer.Sprintf("Model: %s\n", e.Model))
	b.WriteString(printer.Sprintf("Steps: %d\n", e.NumSteps))
	b.WriteString(printer.Sprintf("Voting Parameter (k): %d\n\n", e.K))
	b.WriteString(printer.Sprintf("Estimated LLM Calls: %d\n", e.EstimatedCalls))
	b.WriteString(printer.Sprintf("Input Tokens: %d\n", e.InputTokens))
	b.WriteString(printer.Sprintf("Output Tokens: %d\n\n", e.OutputTokens))
	b.WriteString("Cost Breakdown:\n")
	b.WriteString(fmt.Sprintf("  Input:  $%.4f\n", e.InputCost))
	b.WriteString(fmt.Sprintf("  Output: $%.4f\n", e.OutputCost))
	b.WriteString("  " + strings.Repeat("-", 40) + "\n")
	b.WriteString(fmt.Sprintf("  TOTAL:  $%.4f\n", e.TotalCost))
	return b.String()
}

// FormatModels lists the price table.
func FormatModels() string {
	var b strings.Builder
	b.WriteString("Available OpenRouter Models:\n")
	b.WriteString(strings.Repeat("=", 80) + "\n\n")
	for _, m := range models {
		rec := ""
		if m.Recommended {
			rec = " [RECOMMENDED]"
		}
		b.WriteString(m.Name + rec + "\n")
		b.WriteString("  ID: " + m.ID + "\n")
		b.WriteString(fmt.Sprintf("  Input:  $%.2f / 1M tokens\n", m.InputPrice))
		b.WriteString(fmt.Sprintf("  Output: $%.2f / 1M tokens\n", m.OutputPrice))
		b.WriteString(printer.Sprintf("  Context: %d tokens\n\n", m.ContextWindow))
	}
	return b.String()
}
