package kernel

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.PriorityLevels != 8 || cfg.TickMS != 5 || cfg.MaxTasks != 16 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.StackCanary || cfg.CanaryEachTick {
		t.Fatalf("unexpected canary defaults: %+v", cfg)
	}
	if cfg.TimerSlots != 32 || cfg.IdleStackBytes != 1024 {
		t.Fatalf("unexpected timer/idle defaults: %+v", cfg)
	}
	if err := cfg.validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if got := LoadConfig(""); got != DefaultConfig() {
		t.Fatalf("empty path: %+v", got)
	}
	if got := LoadConfig("/nonexistent/kernel.yml"); got != DefaultConfig() {
		t.Fatalf("missing file: %+v", got)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.yml")
	data := "priority_levels: 4\ntick_ms: 10\nmax_tasks: 8\nstack_canary: false\ncanary_each_tick: true\ntimer_slots: 4\nidle_stack_bytes: 2048\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := LoadConfig(path)
	want := Config{
		PriorityLevels: 4,
		TickMS:         10,
		MaxTasks:       8,
		StackCanary:    false,
		CanaryEachTick: true,
		TimerSlots:     4,
		IdleStackBytes: 2048,
	}
	if cfg != want {
		t.Fatalf("LoadConfig = %+v, want %+v", cfg, want)
	}
}

func TestLoadConfigClampsNonsense(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.yml")
	data := "priority_levels: 0\ntick_ms: -3\nmax_tasks: 0\ntimer_slots: -1\nidle_stack_bytes: 8\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := LoadConfig(path)
	def := DefaultConfig()
	if cfg.PriorityLevels != def.PriorityLevels || cfg.TickMS != def.TickMS ||
		cfg.MaxTasks != def.MaxTasks || cfg.TimerSlots != def.TimerSlots ||
		cfg.IdleStackBytes != def.IdleStackBytes {
		t.Fatalf("clamps not applied: %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	mod := func(f func(*Config)) Config {
		cfg := DefaultConfig()
		f(&cfg)
		return cfg
	}
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"defaults", DefaultConfig(), true},
		{"single level", mod(func(c *Config) { c.PriorityLevels = 1 }), true},
		{"max levels", mod(func(c *Config) { c.PriorityLevels = maxPriorityLevels }), true},
		{"zero levels", mod(func(c *Config) { c.PriorityLevels = 0 }), false},
		{"too many levels", mod(func(c *Config) { c.PriorityLevels = maxPriorityLevels + 1 }), false},
		{"zero max tasks", mod(func(c *Config) { c.MaxTasks = 0 }), false},
		{"zero tick", mod(func(c *Config) { c.TickMS = 0 }), false},
		{"negative timer slots", mod(func(c *Config) { c.TimerSlots = -1 }), false},
		{"zero timer slots", mod(func(c *Config) { c.TimerSlots = 0 }), true},
		{"tiny idle stack", mod(func(c *Config) { c.IdleStackBytes = minStackBytes - 1 }), false},
	}
	for _, tc := range cases {
		err := tc.cfg.validate()
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s: validation passed, want error", tc.name)
		}
	}
}
