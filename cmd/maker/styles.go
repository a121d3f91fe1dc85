package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("51"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45")).
			Width(22)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231"))

	okStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

// field is one label/value row of a summary box.
type field struct {
	label string
	value string
}

func kv(label string, format string, args ...any) field {
	return field{label: label, value: fmt.Sprintf(format, args...)}
}

// summary renders a titled box of label/value rows.
func summary(title string, fields ...field) string {
	rows := make([]string, 0, len(fields)+1)
	rows = append(rows, titleStyle.Render(title))
	for _, f := range fields {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
			labelStyle.Render(f.label+":"),
			valueStyle.Render(f.value),
		))
	}
	return boxStyle.Render(strings.Join(rows, "\n"))
}

func status(ok bool, msg string) string {
	if ok {
		return okStyle.Render("✓ " + msg)
	}
	return failStyle.Render("✗ " + msg)
}
