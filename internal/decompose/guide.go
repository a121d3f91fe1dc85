package decompose

import (
	"strings"

	"github.com/fyrsmithlabs/maker/internal/task"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Guide renders a decomposition for review before a run.
func Guide(dec task.Decomposition) string {
	rule := strings.Repeat("=", 80)
	sub := "   " + strings.Repeat("-", 70)

	var b strings.Builder
	b.WriteString("Task Decomposition Analysis\n" + rule + "\n\n")
	b.WriteString(printer.Sprintf("Estimated Total Steps: %d\n\nStep Types:\n", dec.EstimatedSteps))

	for i, st := range dec.StepTypes {
		b.WriteString(printer.Sprintf("\n%d. %s\n", i+1, st.Name))
		b.WriteString("   Description: " + st.Description + "\n")
		b.WriteString("   Frequency: " + st.Frequency + "\n\n")
		b.WriteString("   Micro-agent Prompt:\n" + sub + "\n")
		b.WriteString(st.MicroAgentPrompt + "\n" + sub + "\n\n")
		b.WriteString("   Expected Output Format:\n   " + st.OutputFormat + "\n\n")
		b.WriteString("   Red Flag Indicators:\n   " + strings.Join(st.RedFlagIndicators, ", ") + "\n")
	}

	b.WriteString("\nExecution Order:\n" + dec.ExecutionOrder + "\n")
	b.WriteString("\nState Representation:\n" + dec.StateRepresentation + "\n")
	return b.String()
}
