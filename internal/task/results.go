package task

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Results is the file written after a run.
type Results struct {
	Completed      bool     `json:"completed"`
	StepsCompleted int      `json:"steps_completed"`
	Actions        []Action `json:"actions"`
	ElapsedSeconds float64  `json:"elapsed_seconds"`
	ConfigFile     string   `json:"config_file"`
}

// Results converts the outcome for a run of configFile.
func (o *Outcome) Results(configFile string) Results {
	actions := o.Actions
	if actions == nil {
		actions = []Action{}
	}
	return Results{
		Completed:      o.Completed,
		StepsCompleted: o.StepsCompleted,
		Actions:        actions,
		ElapsedSeconds: math.Round(o.Elapsed.Seconds()*100) / 100,
		ConfigFile:     configFile,
	}
}

// ResultsPath derives <name>_results.json next to the task file.
func ResultsPath(configFile string) string {
	ext := filepath.Ext(configFile)
	return strings.TrimSuffix(configFile, ext) + "_results.json"
}

// WriteResults writes r as indented JSON.
func WriteResults(path string, r Results) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return nil
}
