package workload

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ttsched"
	"ttsched/internal/config"
	"ttsched/internal/trace"
)

const (
	NTICK = 200
)

func threadStats(t *testing.T, s trace.Summary, tid ttsched.Tid) trace.ThreadStats {
	t.Helper()
	for _, ts := range s.Threads {
		if ts.Tid == int(tid) {
			return ts
		}
	}
	t.Fatalf("no stats for tid %d", tid)
	return trace.ThreadStats{}
}

func TestSanityCheck(t *testing.T) {
	cfg := config.Default()
	cfg.RunTicks = NTICK
	cfg.Tasks = []config.TaskSpec{
		{Name: "a", Kind: config.KIND_ORDINARY, Work: 30},
		{Name: "b", Kind: config.KIND_ORDINARY, Work: 30, YieldEvery: 4},
		{Name: "sensor", Kind: config.KIND_PERIODIC, Cycle: 20, Offset: 5, MaxTime: 3, WorkPerJob: 2},
	}

	b, err := NewBoard(cfg, nil)
	require.NoError(t, err)
	s, err := b.Run(context.Background())
	require.NoError(t, err)

	// ordinary tasks ran to completion and were retired
	for _, name := range []string{"a", "b"} {
		tid := b.Tids[name]
		assert.Equal(t, uint64(30), threadStats(t, s, tid).RunTicks, name)
		_, ok := b.Pool.Status(tid)
		assert.False(t, ok, name)
	}
	assert.Equal(t, 1, b.Pool.Len())

	// the periodic task ran punctually at ticks 5, 25, ..., 185
	sensor := threadStats(t, s, b.Tids["sensor"])
	assert.Equal(t, 10, sensor.Dispatches)
	assert.Equal(t, uint64(20), sensor.RunTicks)
	assert.InDelta(t, 20.0, sensor.MeanPeriod, 1e-9)
	assert.InDelta(t, 0.0, sensor.PeriodSDev, 1e-9)

	// the tick that stops the cpu is never delivered
	assert.Equal(t, ttsched.Tms(NTICK-1), b.TT.Time())
	require.Len(t, s.CPUs, 1)
	assert.Equal(t, uint64(80), s.CPUs[0].BusyTicks)
}

func TestBoard_TicksPerMsec(t *testing.T) {
	cfg := config.Default()
	cfg.TicksPerMsec = 4
	cfg.RunTicks = 400
	cfg.Tasks = []config.TaskSpec{
		{Name: "spin", Kind: config.KIND_ORDINARY, Work: 1000},
		{Name: "p", Kind: config.KIND_PERIODIC, Cycle: 25, Offset: 0, MaxTime: 2, WorkPerJob: 1},
	}

	b, err := NewBoard(cfg, nil)
	require.NoError(t, err)
	s, err := b.Run(context.Background())
	require.NoError(t, err)

	// activations every 25ms are every 100 hardware ticks
	p := threadStats(t, s, b.Tids["p"])
	assert.Equal(t, 3, p.Dispatches)
	assert.InDelta(t, 100.0, p.MeanPeriod, 1e-9)
	assert.Equal(t, ttsched.Tms(99), b.TT.Time())

	spin := threadStats(t, s, b.Tids["spin"])
	assert.Equal(t, uint64(400-3), spin.RunTicks)
	assert.Positive(t, spin.Preemptions)
}

func TestBoard_MultiCPU(t *testing.T) {
	cfg := config.Default()
	cfg.CPUs = 2
	cfg.RunTicks = 1000
	for _, name := range []string{"a", "b", "c", "d"} {
		cfg.Tasks = append(cfg.Tasks, config.TaskSpec{Name: name, Kind: config.KIND_ORDINARY, Work: 50, YieldEvery: 7})
	}

	b, err := NewBoard(cfg, nil)
	require.NoError(t, err)
	s, err := b.Run(context.Background())
	require.NoError(t, err)

	total := uint64(0)
	for _, ts := range s.Threads {
		total += ts.RunTicks
	}
	assert.Equal(t, uint64(200), total)
	assert.Equal(t, 0, b.Pool.Len())
	require.Len(t, s.CPUs, 2)
	assert.Equal(t, uint64(200), s.CPUs[0].BusyTicks+s.CPUs[1].BusyTicks)
}

func TestBoard_RejectedReservation(t *testing.T) {
	cfg := config.Default()
	cfg.Tasks = []config.TaskSpec{
		{Name: "p1", Kind: config.KIND_PERIODIC, Cycle: 100, Offset: 10, MaxTime: 20, WorkPerJob: 1},
		{Name: "p2", Kind: config.KIND_PERIODIC, Cycle: 100, Offset: 20, MaxTime: 5, WorkPerJob: 1},
	}
	_, err := NewBoard(cfg, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ttsched.ErrConflict)
}

func TestBoard_DuplicateName(t *testing.T) {
	cfg := config.Default()
	cfg.Tasks = []config.TaskSpec{
		{Name: "x", Kind: config.KIND_ORDINARY, Work: 1},
		{Name: "x", Kind: config.KIND_ORDINARY, Work: 1},
	}
	_, err := NewBoard(cfg, nil)
	assert.ErrorContains(t, err, "duplicate task name")
}

func TestBoard_TraceDB(t *testing.T) {
	cfg := config.Default()
	cfg.RunTicks = 50
	cfg.TraceDB = filepath.Join(t.TempDir(), "trace.db")
	cfg.Tasks = []config.TaskSpec{{Name: "a", Kind: config.KIND_ORDINARY, Work: 10}}

	b, err := NewBoard(cfg, nil)
	require.NoError(t, err)
	_, err = b.Run(context.Background())
	require.NoError(t, err)

	ctx := context.Background()
	sink, err := trace.NewSQLiteSink(ctx, cfg.TraceDB, nil)
	require.NoError(t, err)
	defer sink.Close()
	stored, err := sink.Events(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.Recorder.Events(), stored)
}

func TestGenLoad(t *testing.T) {
	tasks := NewLoadGen(1).GenLoad(50)
	require.Len(t, tasks, 50)
	for _, task := range tasks {
		assert.Equal(t, config.KIND_ORDINARY, task.Kind)
		assert.GreaterOrEqual(t, task.Work, uint64(MIN_WORK))
		assert.LessOrEqual(t, task.Work, uint64(MAX_WORK))
		assert.Less(t, task.YieldEvery, uint64(MAX_YIELD_EVERY))
	}

	// same seed, same load
	assert.Equal(t, tasks, NewLoadGen(1).GenLoad(50))

	cfg := config.Default()
	cfg.Tasks = tasks
	assert.NoError(t, cfg.Validate())
}
