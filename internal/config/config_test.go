package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workload = `
ticks_per_msec: 2
cpus: 2
run_ticks: 500
log:
  level: debug
tasks:
  - name: shell
    work: 40
    yield_every: 5
  - name: sensor
    kind: periodic
    cycle: 100
    offset: 10
    max_time: 5
    work_per_job: 3
  - work: 7
`

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, uint(1), cfg.TicksPerMsec)
	assert.Equal(t, uint(10), cfg.DefaultSlice)
	assert.Equal(t, 1, cfg.CPUs)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.Tasks)
	require.NoError(t, cfg.Validate())
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(workload))
	require.NoError(t, err)

	assert.Equal(t, uint(2), cfg.TicksPerMsec)
	assert.Equal(t, 2, cfg.CPUs)
	assert.Equal(t, uint64(500), cfg.RunTicks)
	assert.Equal(t, "debug", cfg.Log.Level)
	// untouched keys keep their defaults
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, uint(100), cfg.StaticBudget)

	require.Len(t, cfg.Tasks, 3)
	assert.Equal(t, KIND_ORDINARY, cfg.Tasks[0].Kind)
	assert.Equal(t, uint64(5), cfg.Tasks[0].YieldEvery)
	assert.Equal(t, "task2", cfg.Tasks[2].Name)

	periodic := cfg.Periodic()
	require.Len(t, periodic, 1)
	assert.Equal(t, "sensor", periodic[0].Name)
	assert.Equal(t, uint64(100), periodic[0].Cycle)
	assert.Equal(t, uint64(10), periodic[0].Offset)
	assert.Equal(t, uint64(5), periodic[0].MaxTime)
}

func TestParse_BadYAML(t *testing.T) {
	_, err := Parse([]byte("cpus: [1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YAML parse error")
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"zero ticks", "ticks_per_msec: 0", "ticks_per_msec"},
		{"no cpus", "cpus: 0", "cpus"},
		{"bad format", "log:\n  format: xml", "log.format"},
		{"ordinary without work", "tasks:\n  - name: a", "needs work"},
		{"periodic without cycle", "tasks:\n  - kind: periodic\n    max_time: 1\n    work_per_job: 1", "needs a cycle"},
		{"periodic without max", "tasks:\n  - kind: periodic\n    cycle: 10\n    work_per_job: 1", "needs max_time"},
		{"unknown kind", "tasks:\n  - kind: sporadic\n    work: 1", "unknown kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workload.yaml")
	require.NoError(t, os.WriteFile(path, []byte(workload), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Tasks, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}
