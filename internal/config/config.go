// Package config loads the workload description a simulated board is
// booted with.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	KIND_ORDINARY = "ordinary"
	KIND_PERIODIC = "periodic"
)

// Config holds everything needed to boot and run a simulated board.
type Config struct {
	TicksPerMsec uint       `yaml:"ticks_per_msec"` // hardware ticks per logical ms
	StaticBudget uint       `yaml:"static_budget"`  // round budget of the static scheduler
	DefaultSlice uint       `yaml:"default_slice"`  // ticks per static slice
	CPUs         int        `yaml:"cpus"`
	RunTicks     uint64     `yaml:"run_ticks"` // hardware ticks per cpu before halting
	Log          LogConfig  `yaml:"log"`
	TraceDB      string     `yaml:"trace_db,omitempty"` // sqlite path, empty for in-memory traces only
	Tasks        []TaskSpec `yaml:"tasks,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// TaskSpec describes one thread of the workload. Ordinary tasks run Work
// ticks and exit, yielding every YieldEvery ticks when set. Periodic tasks
// run WorkPerJob ticks per activation, forever.
type TaskSpec struct {
	Name       string `yaml:"name"`
	Kind       string `yaml:"kind"`
	Work       uint64 `yaml:"work,omitempty"`
	YieldEvery uint64 `yaml:"yield_every,omitempty"`
	Cycle      uint64 `yaml:"cycle,omitempty"`
	Offset     uint64 `yaml:"offset,omitempty"`
	MaxTime    uint64 `yaml:"max_time,omitempty"`
	WorkPerJob uint64 `yaml:"work_per_job,omitempty"`
}

func (t TaskSpec) String() string {
	if t.Kind == KIND_PERIODIC {
		return fmt.Sprintf("%s: periodic cycle %d offset %d max %d", t.Name, t.Cycle, t.Offset, t.MaxTime)
	}
	return fmt.Sprintf("%s: ordinary work %d", t.Name, t.Work)
}

// Default returns sensible defaults with no tasks.
func Default() Config {
	return Config{
		TicksPerMsec: 1,
		StaticBudget: 100,
		DefaultSlice: 10,
		CPUs:         1,
		RunTicks:     1000,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads and validates the config at path. Keys missing from the file
// keep their default values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("YAML parse error: %w", err)
	}
	for i := range cfg.Tasks {
		if cfg.Tasks[i].Kind == "" {
			cfg.Tasks[i].Kind = KIND_ORDINARY
		}
		if cfg.Tasks[i].Name == "" {
			cfg.Tasks[i].Name = fmt.Sprintf("task%d", i)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var (
	ErrInvalid = errors.New("invalid config")
)

// Validate checks the board parameters and each task. Periodic admission
// conflicts are not checked here; that is the scheduler's job.
func (c Config) Validate() error {
	var errs []error
	if c.TicksPerMsec == 0 {
		errs = append(errs, fmt.Errorf("%w: ticks_per_msec must be positive", ErrInvalid))
	}
	if c.DefaultSlice == 0 {
		errs = append(errs, fmt.Errorf("%w: default_slice must be positive", ErrInvalid))
	}
	if c.CPUs < 1 {
		errs = append(errs, fmt.Errorf("%w: cpus must be at least 1, got %d", ErrInvalid, c.CPUs))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalid, c.Log.Format))
	}
	for i, t := range c.Tasks {
		if err := t.validate(); err != nil {
			errs = append(errs, fmt.Errorf("tasks[%d] %s: %w", i, t.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (t TaskSpec) validate() error {
	switch t.Kind {
	case KIND_ORDINARY:
		if t.Work == 0 {
			return fmt.Errorf("%w: ordinary task needs work", ErrInvalid)
		}
	case KIND_PERIODIC:
		if t.Cycle == 0 {
			return fmt.Errorf("%w: periodic task needs a cycle", ErrInvalid)
		}
		if t.MaxTime == 0 {
			return fmt.Errorf("%w: periodic task needs max_time", ErrInvalid)
		}
		if t.WorkPerJob == 0 {
			return fmt.Errorf("%w: periodic task needs work_per_job", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalid, t.Kind)
	}
	return nil
}

// Periodic returns the periodic tasks in file order.
func (c Config) Periodic() []TaskSpec {
	var ts []TaskSpec
	for _, t := range c.Tasks {
		if t.Kind == KIND_PERIODIC {
			ts = append(ts, t)
		}
	}
	return ts
}
