package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock []uint64

func (c fakeClock) now(cpu int) uint64 {
	return c[cpu]
}

func TestRecorder(t *testing.T) {
	clock := fakeClock{0, 0}
	r := NewRecorder(clock.now)

	r.Idle(1)
	r.Dispatch(0, 3)
	clock[0] = 10
	r.Preempt(0, 3)
	r.Stop(0, 3)

	events := r.Events()
	require.Len(t, events, 4)
	assert.Equal(t, Event{Tick: 0, CPU: 1, Kind: KIND_IDLE, Tid: NO_TID}, events[0])
	assert.Equal(t, Event{Tick: 0, CPU: 0, Kind: KIND_DISPATCH, Tid: 3}, events[1])
	assert.Equal(t, Event{Tick: 10, CPU: 0, Kind: KIND_PREEMPT, Tid: 3}, events[2])
	assert.Equal(t, Event{Tick: 10, CPU: 0, Kind: KIND_STOP, Tid: 3}, events[3])

	// Events hands out a copy
	events[0].Tid = 99
	assert.Equal(t, NO_TID, r.Events()[0].Tid)
	assert.Equal(t, 4, r.Len())
}

func TestSummarize(t *testing.T) {
	events := []Event{
		{Tick: 0, CPU: 0, Kind: KIND_DISPATCH, Tid: 1},
		{Tick: 10, CPU: 0, Kind: KIND_PREEMPT, Tid: 1},
		{Tick: 10, CPU: 0, Kind: KIND_STOP, Tid: 1},
		{Tick: 10, CPU: 0, Kind: KIND_DISPATCH, Tid: 2},
		{Tick: 15, CPU: 0, Kind: KIND_STOP, Tid: 2},
		{Tick: 15, CPU: 0, Kind: KIND_IDLE, Tid: NO_TID},
		{Tick: 20, CPU: 0, Kind: KIND_DISPATCH, Tid: 1},
		{Tick: 30, CPU: 0, Kind: KIND_STOP, Tid: 1},
		{Tick: 40, CPU: 0, Kind: KIND_DISPATCH, Tid: 1},
		// still running at the end
	}
	s := Summarize(events, 50)

	assert.Equal(t, uint64(50), s.Ticks)
	assert.Equal(t, len(events), s.Events)

	require.Len(t, s.Threads, 2)
	t1, t2 := s.Threads[0], s.Threads[1]
	assert.Equal(t, 1, t1.Tid)
	assert.Equal(t, 3, t1.Dispatches)
	assert.Equal(t, 1, t1.Preemptions)
	assert.Equal(t, uint64(30), t1.RunTicks)
	assert.InDelta(t, 20.0, t1.MeanPeriod, 1e-9)
	assert.InDelta(t, 0.0, t1.PeriodSDev, 1e-9)

	assert.Equal(t, 2, t2.Tid)
	assert.Equal(t, uint64(5), t2.RunTicks)
	assert.Equal(t, 0.0, t2.MeanPeriod)

	assert.InDelta(t, 30.0/35.0, t1.Share, 1e-9)
	assert.InDelta(t, 5.0/35.0, t2.Share, 1e-9)

	require.Len(t, s.CPUs, 1)
	assert.Equal(t, uint64(35), s.CPUs[0].BusyTicks)
	assert.Equal(t, 1, s.CPUs[0].IdleEvents)
	assert.InDelta(t, 0.7, s.CPUs[0].Utilization, 1e-9)

	assert.Contains(t, s.String(), "tid 1: dispatched 3")
}

func TestSummarize_Jitter(t *testing.T) {
	var events []Event
	for _, at := range []uint64{10, 110, 215, 310} {
		events = append(events,
			Event{Tick: at, CPU: 0, Kind: KIND_DISPATCH, Tid: 0},
			Event{Tick: at + 2, CPU: 0, Kind: KIND_STOP, Tid: 0},
		)
	}
	s := Summarize(events, 400)
	require.Len(t, s.Threads, 1)
	assert.InDelta(t, 100.0, s.Threads[0].MeanPeriod, 1e-9)
	assert.Greater(t, s.Threads[0].PeriodSDev, 0.0)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, 100)
	assert.Empty(t, s.Threads)
	assert.Empty(t, s.CPUs)
}

func TestSQLiteSink(t *testing.T) {
	ctx := context.Background()
	sink, err := NewSQLiteSink(ctx, ":memory:", nil)
	require.NoError(t, err)
	defer sink.Close()

	clock := fakeClock{5}
	r := NewRecorder(clock.now)
	r.Dispatch(0, 2)
	clock[0] = 9
	r.Stop(0, 2)
	r.Idle(0)

	require.NoError(t, r.Flush(ctx, sink))

	got, err := sink.Events(ctx)
	require.NoError(t, err)
	assert.Equal(t, r.Events(), got)
}

func TestFlush_NothingRecorded(t *testing.T) {
	r := NewRecorder(fakeClock{0}.now)
	// a nil sink would panic if it were written to
	assert.NoError(t, r.Flush(context.Background(), nil))
}

func TestKindString(t *testing.T) {
	for k := KIND_DISPATCH; k <= KIND_IDLE; k++ {
		got, err := parseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := parseKind("bogus")
	assert.Error(t, err)
}
