package kernel

import (
	"fmt"
	"os"

	yaml "github.com/goccy/go-yaml"
)

// Config mirrors kernel.yml.
type Config struct {
	PriorityLevels int  `yaml:"priority_levels"`  // 8 (by default), at most 32
	TickMS         int  `yaml:"tick_ms"`          // 5 (by default)
	MaxTasks       int  `yaml:"max_tasks"`        // 16 (by default)
	StackCanary    bool `yaml:"stack_canary"`     // true (by default)
	CanaryEachTick bool `yaml:"canary_each_tick"` // also re-check the running task's canary on every tick
	TimerSlots     int  `yaml:"timer_slots"`      // 32 (by default)
	IdleStackBytes int  `yaml:"idle_stack_bytes"` // 1024 (by default)
}

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() Config {
	return Config{
		PriorityLevels: 8,
		TickMS:         5,
		MaxTasks:       16,
		StackCanary:    true,
		TimerSlots:     32,
		IdleStackBytes: 1024,
	}
}

// LoadConfig reads YAML and overrides defaults; empty or missing path = defaults only.
func LoadConfig(path string) Config {
	cfg := DefaultConfig()

	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	_ = yaml.Unmarshal(data, &cfg)

	// sanity clamps
	if cfg.PriorityLevels <= 0 {
		cfg.PriorityLevels = 8
	}
	if cfg.TickMS <= 0 {
		cfg.TickMS = 5
	}
	if cfg.MaxTasks <= 0 {
		cfg.MaxTasks = 16
	}
	if cfg.TimerSlots <= 0 {
		cfg.TimerSlots = 32
	}
	if cfg.IdleStackBytes < minStackBytes {
		cfg.IdleStackBytes = 1024
	}

	return cfg
}

// validate rejects configurations the kernel cannot run with. Misconfiguration
// is fatal at initialization, never patched up at runtime.
func (c Config) validate() error {
	if c.PriorityLevels < 1 || c.PriorityLevels > maxPriorityLevels {
		return fmt.Errorf("priority_levels must be within [1, %d], got %d", maxPriorityLevels, c.PriorityLevels)
	}
	if c.MaxTasks < 1 {
		return fmt.Errorf("max_tasks must be at least 1, got %d", c.MaxTasks)
	}
	if c.TickMS <= 0 {
		return fmt.Errorf("tick_ms must be positive, got %d", c.TickMS)
	}
	if c.TimerSlots < 0 {
		return fmt.Errorf("timer_slots must not be negative, got %d", c.TimerSlots)
	}
	if c.IdleStackBytes < minStackBytes {
		return fmt.Errorf("idle_stack_bytes must be at least %d, got %d", minStackBytes, c.IdleStackBytes)
	}
	return nil
}
