package config

import (
	"fmt"
	"os"
	"time"

	"github.com/taskctl/supervisor/internal/env"
)

// Config holds the supervisord process's bootstrap configuration, loaded
// from the environment at startup.
type Config struct {
	// Identity
	RunnerID string `env:"SUP_RUNNER_ID"`

	// Retry/retention defaults applied when a submitted TaskSpec leaves the
	// corresponding field unset.
	DefaultMaxAttempts int `env:"SUP_DEFAULT_MAX_ATTEMPTS"`
	MaxTerminalPerSlot int `env:"SUP_MAX_TERMINAL_PER_SLOT"`

	// Bootstrap: an optional JSON file of TaskSpecs submitted on startup.
	TasksFile string `env:"SUP_TASKS_FILE"`

	// Shutdown
	ShutdownTimeout time.Duration `env:"SUP_SHUTDOWN_TIMEOUT"`

	// Observability
	LogLevel     string `env:"SUP_LOG_LEVEL"`
	OTelEnabled  bool   `env:"SUP_OTEL_ENABLED"`
	OTelEndpoint string `env:"SUP_OTEL_ENDPOINT"`
}

// Load parses environment variables into a Config, applying defaults to any
// field env.Load left at its zero value.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	// MaxTerminalPerSlot's own zero value is a meaningful setting ("disable
	// eviction", per registry.New), so unlike the other defaulted fields
	// below it can't default off of being the Go zero value - an operator
	// setting SUP_MAX_TERMINAL_PER_SLOT=0 must stick, not get silently
	// overridden to 200. Only fall back to the default when the env var was
	// never set at all.
	if _, set := os.LookupEnv("SUP_MAX_TERMINAL_PER_SLOT"); !set {
		c.MaxTerminalPerSlot = 200
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.OTelEndpoint == "" {
		c.OTelEndpoint = "localhost:4317"
	}
}

// Validate enforces the bootstrap invariants env.Load itself can't express.
// It satisfies env.Validator, though Config is the root struct loaded
// directly by Load above rather than nested under another config.
func (c *Config) Validate() error {
	if c.DefaultMaxAttempts < 0 {
		return fmt.Errorf("SUP_DEFAULT_MAX_ATTEMPTS must not be negative")
	}
	if c.MaxTerminalPerSlot < 0 {
		return fmt.Errorf("SUP_MAX_TERMINAL_PER_SLOT must not be negative")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown SUP_LOG_LEVEL: %s", c.LogLevel)
	}
	return nil
}
