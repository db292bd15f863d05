package engine

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ljramones/dynamis-audio/pkg/audioio"
	"github.com/ljramones/dynamis-audio/pkg/voices"
)

// Config is the full engine configuration surface. Everything is validated
// at startup; an invalid combination is a fatal configuration error, never
// something to recover from at runtime.
type Config struct {
	// LogLevel sets the global log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Output is the session audio format and device backend.
	Output audioio.Config `yaml:"output" json:"output"`

	// Voices is the budget scheduler tuning.
	Voices voices.Config `yaml:"voices" json:"voices"`

	// RingCapacity is the acoustic event ring size. Must be a power of
	// two; sized for burst scenarios.
	RingCapacity int `yaml:"ring_capacity" json:"ring_capacity"`

	// SpawnWait bounds the control-thread wait for spawning
	// initialization. On timeout the caller proceeds anyway.
	SpawnWait time.Duration `yaml:"spawn_wait" json:"spawn_wait"`

	// BookkeepingInterval is the cadence of per-emitter lifecycle ticks.
	BookkeepingInterval time.Duration `yaml:"bookkeeping_interval" json:"bookkeeping_interval"`
}

// DefaultConfig returns the stock engine configuration.
func DefaultConfig() Config {
	return Config{
		LogLevel:            "info",
		Output:              audioio.DefaultConfig(),
		Voices:              voices.DefaultConfig(),
		RingCapacity:        256,
		SpawnWait:           4 * time.Millisecond,
		BookkeepingInterval: 50 * time.Millisecond,
	}
}

// Validate checks every startup invariant across the config surface.
func (c *Config) Validate() error {
	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if err := c.Voices.Validate(); err != nil {
		return fmt.Errorf("voices: %w", err)
	}
	if c.RingCapacity < 2 || c.RingCapacity&(c.RingCapacity-1) != 0 {
		return fmt.Errorf("ring_capacity must be a power of two >= 2, got %d", c.RingCapacity)
	}
	if c.SpawnWait <= 0 {
		return fmt.Errorf("spawn_wait must be positive, got %v", c.SpawnWait)
	}
	if c.BookkeepingInterval <= 0 {
		return fmt.Errorf("bookkeeping_interval must be positive, got %v", c.BookkeepingInterval)
	}
	return nil
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
