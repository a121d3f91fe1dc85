package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// setupTestHome points HOME at a temp dir and clears provider key variables.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, name := range providerKeyEnv {
		t.Setenv(name, "")
	}
	return home
}

func writeConfig(t *testing.T, home, content string, perm os.FileMode) string {
	t.Helper()
	dir := filepath.Join(home, ".config", "maker")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	home := setupTestHome(t)
	path := writeConfig(t, home, `voting:
  k: 4
  max_attempts: 120
  parallelism: 8
llm:
  provider: anthropic
  model: claude-3-5-haiku-latest
  api_key: sk-ant-test
  timeout: 30s
server:
  port: 9300
events:
  nats_url: nats://127.0.0.1:4222
`, 0600)

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.Voting.K != 4 {
		t.Errorf("Voting.K = %d, want 4", cfg.Voting.K)
	}
	if cfg.Voting.MaxAttempts != 120 {
		t.Errorf("Voting.MaxAttempts = %d, want 120", cfg.Voting.MaxAttempts)
	}
	if cfg.Voting.Parallelism != 8 {
		t.Errorf("Voting.Parallelism = %d, want 8", cfg.Voting.Parallelism)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("LLM.Provider = %q, want anthropic", cfg.LLM.Provider)
	}
	if cfg.LLM.APIKey.Value() != "sk-ant-test" {
		t.Errorf("LLM.APIKey not loaded")
	}
	if cfg.LLM.Timeout.Duration() != 30*time.Second {
		t.Errorf("LLM.Timeout = %v, want 30s", cfg.LLM.Timeout.Duration())
	}
	if cfg.Server.Port != 9300 {
		t.Errorf("Server.Port = %d, want 9300", cfg.Server.Port)
	}
	if cfg.Events.NATSURL != "nats://127.0.0.1:4222" {
		t.Errorf("Events.NATSURL = %q", cfg.Events.NATSURL)
	}
	// Defaults still apply to untouched fields.
	if cfg.Voting.MaxResponseLength != 750 {
		t.Errorf("Voting.MaxResponseLength = %d, want 750", cfg.Voting.MaxResponseLength)
	}
	if cfg.Events.SubjectPrefix != "maker.runs" {
		t.Errorf("Events.SubjectPrefix = %q, want maker.runs", cfg.Events.SubjectPrefix)
	}
}

func TestLoadWithFile_MissingFileUsesDefaults(t *testing.T) {
	setupTestHome(t)

	cfg, err := LoadWithFile("")
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}
	if cfg.LLM.Provider != "openrouter" {
		t.Errorf("LLM.Provider = %q, want openrouter", cfg.LLM.Provider)
	}
	if cfg.Voting.Parallelism != 1 {
		t.Errorf("Voting.Parallelism = %d, want 1", cfg.Voting.Parallelism)
	}
	if cfg.Server.ShutdownTimeout.Duration() != 10*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 10s", cfg.Server.ShutdownTimeout.Duration())
	}
}

func TestLoadWithFile_EnvOverrides(t *testing.T) {
	home := setupTestHome(t)
	path := writeConfig(t, home, "voting:\n  k: 2\n", 0600)

	t.Setenv("MAKER_VOTING_K", "5")
	t.Setenv("MAKER_VOTING_MAX_ATTEMPTS", "77")
	t.Setenv("MAKER_LLM_API_KEY", "from-env")
	t.Setenv("MAKER_SERVER_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v", err)
	}
	if cfg.Voting.K != 5 {
		t.Errorf("Voting.K = %d, want 5 from env", cfg.Voting.K)
	}
	if cfg.Voting.MaxAttempts != 77 {
		t.Errorf("Voting.MaxAttempts = %d, want 77", cfg.Voting.MaxAttempts)
	}
	if cfg.LLM.APIKey.Value() != "from-env" {
		t.Errorf("LLM.APIKey not overridden by env")
	}
	if cfg.Server.ShutdownTimeout.Duration() != 3*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 3s", cfg.Server.ShutdownTimeout.Duration())
	}
}

func TestLoadWithFile_ProviderKeyFallback(t *testing.T) {
	setupTestHome(t)
	t.Setenv("OPENROUTER_API_KEY", "or-key")

	cfg, err := LoadWithFile("")
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v", err)
	}
	if cfg.LLM.APIKey.Value() != "or-key" {
		t.Errorf("LLM.APIKey = %q, want provider env fallback", cfg.LLM.APIKey.Value())
	}
}

func TestLoadWithFile_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad provider", "llm:\n  provider: local\n", "llm.provider"},
		{"bad parallelism", "voting:\n  parallelism: 1000\n", "voting.parallelism"},
		{"bad target", "voting:\n  target_success_rate: 1.5\n", "voting.target_success_rate"},
		{"bad protocol", "telemetry:\n  protocol: udp\n", "telemetry.protocol"},
		{"bad port", "server:\n  port: 70000\n", "server.port"},
		{"bad duration", "llm:\n  timeout: soon\n", "unmarshal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := setupTestHome(t)
			path := writeConfig(t, home, tt.yaml, 0600)

			_, err := LoadWithFile(path)
			if err == nil {
				t.Fatalf("LoadWithFile() error = nil, want error mentioning %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadWithFile_RejectsInsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	home := setupTestHome(t)
	path := writeConfig(t, home, "voting:\n  k: 2\n", 0644)

	_, err := LoadWithFile(path)
	if err == nil || !strings.Contains(err.Error(), "insecure config file permissions") {
		t.Fatalf("LoadWithFile() error = %v, want permission error", err)
	}
}

func TestLoadWithFile_RejectsOversizedFile(t *testing.T) {
	home := setupTestHome(t)
	big := "# " + strings.Repeat("x", maxConfigFileSize) + "\n"
	path := writeConfig(t, home, big, 0600)

	_, err := LoadWithFile(path)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("LoadWithFile() error = %v, want size error", err)
	}
}

func TestValidateConfigPath(t *testing.T) {
	home := setupTestHome(t)

	tests := []struct {
		path    string
		wantErr bool
	}{
		{filepath.Join(home, ".config", "maker", "config.yaml"), false},
		{filepath.Join(home, ".config", "maker", "nested", "x.yaml"), false},
		{"/etc/maker/config.yaml", false},
		{filepath.Join(home, ".config", "maker-evil", "config.yaml"), true},
		{"/tmp/config.yaml", true},
		{filepath.Join(home, ".config", "maker", "..", "other.yaml"), true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := validateConfigPath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateConfigPath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"MAKER_VOTING_K":               "voting.k",
		"MAKER_LLM_API_KEY":            "llm.api_key",
		"MAKER_TELEMETRY_SERVICE_NAME": "telemetry.service_name",
		"MAKER_EVENTS_NATS_URL":        "events.nats_url",
		"MAKER_DEBUG":                  "debug",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEnsureConfigDir(t *testing.T) {
	home := setupTestHome(t)
	if err := EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	info, err := os.Stat(filepath.Join(home, ".config", "maker"))
	if err != nil || !info.IsDir() {
		t.Fatalf("config dir not created: %v", err)
	}
}

func TestSecret_NeverSerialized(t *testing.T) {
	s := Secret("sk-live-abc")

	if s.String() != "[REDACTED]" {
		t.Errorf("String() = %q", s.String())
	}
	if got := fmt.Sprintf("%v %s %#v", s, s, s); strings.Contains(got, "sk-live") {
		t.Errorf("formatted secret leaked: %q", got)
	}
	data, err := json.Marshal(struct {
		Key Secret `json:"key"`
	}{s})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "sk-live") {
		t.Errorf("json leaked secret: %s", data)
	}
	if !s.IsSet() || Secret("").IsSet() {
		t.Error("IsSet() mismatch")
	}
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1m30s")); err != nil {
		t.Fatal(err)
	}
	if d.Duration() != 90*time.Second {
		t.Errorf("Duration() = %v", d.Duration())
	}
	if err := d.UnmarshalText([]byte("-1s")); err == nil {
		t.Error("negative duration accepted")
	}
	out, _ := d.MarshalText()
	if string(out) != "1m30s" {
		t.Errorf("MarshalText() = %q", out)
	}
}
