package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/maker/internal/config"
	"github.com/fyrsmithlabs/maker/internal/llm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// isolate points HOME at an empty directory so the runtime config falls back
// to defaults, and clears variables that would override them.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, name := range []string{"OPENROUTER_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "MAKER_EVENTS_NATS_URL", "MAKER_VOTING_K"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	return home
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// executeCommand runs the root command with args, feeding stdin, and returns
// everything written to stdout and stderr.
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// stubModel replaces the model client for the duration of the test.
func stubModel(t *testing.T, reply func(req llm.Request) (string, error)) *int {
	t.Helper()
	calls := new(int)
	prev := newCompleter
	newCompleter = func(config.LLMConfig, *zap.Logger) (llm.Completer, error) {
		return llm.CompleterFunc(func(_ context.Context, req llm.Request) (llm.Response, error) {
			*calls++
			text, err := reply(req)
			return llm.Response{Text: text}, err
		}), nil
	}
	t.Cleanup(func() { newCompleter = prev })
	return calls
}

func findCommand(name string) *cobra.Command {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func TestRootCmd_Subcommands(t *testing.T) {
	for _, name := range []string{"run", "plan", "kmin", "cost", "hanoi", "serve", "version"} {
		cmd := findCommand(name)
		if cmd == nil {
			t.Errorf("%s command not found in rootCmd", name)
			continue
		}
		if cmd.Short == "" {
			t.Errorf("%s command should have Short description", name)
		}
	}
}

func TestRootCmd_GlobalFlags(t *testing.T) {
	for _, name := range []string{"config", "log-level"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("rootCmd should have --%s flag", name)
		}
	}
}

func TestCommandFlags(t *testing.T) {
	tests := map[string][]string{
		"run":   {"yes", "output", "model", "k"},
		"plan":  {"criteria", "out", "model", "k"},
		"kmin":  {"steps", "p", "target"},
		"cost":  {"steps", "k", "model", "models"},
		"hanoi": {"disks", "simulate", "k", "seed"},
		"serve": {"host", "port"},
	}
	for name, flags := range tests {
		cmd := findCommand(name)
		require.NotNil(t, cmd, name)
		for _, f := range flags {
			assert.NotNil(t, cmd.Flags().Lookup(f), "%s should have --%s", name, f)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := executeCommand(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "maker dev\n", out)
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes ", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"maybe\n", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got, err := confirm(strings.NewReader(tt.input), &out, "Proceed?")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Equal(t, "Proceed? [y/N]: ", out.String())
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("  short ", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "héllo", truncate("héllo", 5))
}
