// Package config provides configuration loading for maker.
package config

import (
	"fmt"
	"time"
)

// Config holds the maker runtime configuration. Task files describing what to
// solve are loaded separately by the task package.
type Config struct {
	Voting    VotingConfig    `koanf:"voting"`
	LLM       LLMConfig       `koanf:"llm"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Server    ServerConfig    `koanf:"server"`
	Events    EventsConfig    `koanf:"events"`
}

// VotingConfig holds defaults for the voting engine.
type VotingConfig struct {
	// K overrides the margin from the task file when non-zero.
	K                  int     `koanf:"k"`
	MaxAttempts        int     `koanf:"max_attempts"`
	Parallelism        int     `koanf:"parallelism"`
	MaxResponseLength  int     `koanf:"max_response_length"`
	PerStepSuccessRate float64 `koanf:"per_step_success_rate"`
	TargetSuccessRate  float64 `koanf:"target_success_rate"`
}

// LLMConfig holds generator provider settings.
type LLMConfig struct {
	Provider    string   `koanf:"provider"`
	Model       string   `koanf:"model"`
	APIKey      Secret   `koanf:"api_key"`
	BaseURL     string   `koanf:"base_url"`
	Temperature float64  `koanf:"temperature"`
	MaxTokens   int      `koanf:"max_tokens"`
	Timeout     Duration `koanf:"timeout"`
	RateLimit   float64  `koanf:"rate_limit"` // requests per second
	Burst       int      `koanf:"burst"`
	MaxRetries  int      `koanf:"max_retries"`
}

// LoggingConfig selects log level and format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"`
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// EventsConfig holds the NATS event publisher settings. An empty URL disables
// publishing.
type EventsConfig struct {
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// Providers supported by the llm package.
var validProviders = map[string]bool{
	"openrouter": true,
	"openai":     true,
	"anthropic":  true,
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Voting.MaxResponseLength == 0 {
		cfg.Voting.MaxResponseLength = 750
	}
	if cfg.Voting.Parallelism == 0 {
		cfg.Voting.Parallelism = 1
	}
	if cfg.Voting.TargetSuccessRate == 0 {
		cfg.Voting.TargetSuccessRate = 0.95
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openrouter"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 500
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = Duration(60 * time.Second)
	}
	if cfg.LLM.RateLimit == 0 {
		cfg.LLM.RateLimit = 5
	}
	if cfg.LLM.Burst == 0 {
		cfg.LLM.Burst = 10
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 3
	}
	if !cfg.LLM.APIKey.IsSet() {
		cfg.LLM.APIKey = providerKeyFromEnv(cfg.LLM.Provider)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "maker"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9190
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "maker.runs"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Voting.K < 0 {
		return fmt.Errorf("voting.k must be >= 0, got %d", c.Voting.K)
	}
	if c.Voting.MaxAttempts < 0 {
		return fmt.Errorf("voting.max_attempts must be >= 0, got %d", c.Voting.MaxAttempts)
	}
	if c.Voting.Parallelism < 1 || c.Voting.Parallelism > 64 {
		return fmt.Errorf("voting.parallelism must be between 1 and 64, got %d", c.Voting.Parallelism)
	}
	if c.Voting.MaxResponseLength < 0 {
		return fmt.Errorf("voting.max_response_length must be >= 0, got %d", c.Voting.MaxResponseLength)
	}
	if p := c.Voting.PerStepSuccessRate; p < 0 || p > 1 {
		return fmt.Errorf("voting.per_step_success_rate must be in [0, 1], got %v", p)
	}
	if t := c.Voting.TargetSuccessRate; t <= 0 || t >= 1 {
		return fmt.Errorf("voting.target_success_rate must be in (0, 1), got %v", t)
	}

	if !validProviders[c.LLM.Provider] {
		return fmt.Errorf("llm.provider must be one of openrouter, openai, anthropic; got %q", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be in [0, 2], got %v", c.LLM.Temperature)
	}
	if c.LLM.MaxTokens < 1 {
		return fmt.Errorf("llm.max_tokens must be >= 1, got %d", c.LLM.MaxTokens)
	}
	if c.LLM.RateLimit < 0 || c.LLM.Burst < 1 || c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm rate limit settings are invalid (rate_limit=%v burst=%d max_retries=%d)",
			c.LLM.RateLimit, c.LLM.Burst, c.LLM.MaxRetries)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http" {
		return fmt.Errorf("telemetry.protocol must be 'grpc' or 'http', got %q", c.Telemetry.Protocol)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be in [0, 1], got %v", c.Telemetry.SampleRate)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}
